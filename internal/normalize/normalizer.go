// Package normalize converts heterogeneous protein-change notations into
// the canonical short form the rest of the pipeline consumes, and rejects
// variant classes outside the admitted set before any source client is
// ever called.
package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tierdx/tierdx/internal/domain"
)

var (
	shortMissensePattern = regexp.MustCompile(`^([A-Z])(\d+)([A-Z*])$`)
	longMissensePattern  = regexp.MustCompile(`^([A-Za-z]{3})(\d+)([A-Za-z]{3}|Ter|Stop)$`)
	frameshiftPattern    = regexp.MustCompile(`^([A-Z])(\d+)FS(\*(\d+))?$`)
	indelPattern         = regexp.MustCompile(`^[A-Z]?\d+(_[A-Z]?\d+)?(DEL|INS|DUP)[A-Z*]*$`)

	// rejectionTokens match free text describing variant classes the core
	// does not admit; matched against the lowercased, whitespace-trimmed
	// variant text.
	rejectionTokens = []string{
		"fusion", "rearrang", "amplification", " amp", "overexpression",
		"splice", "skipping", "trunc",
	}
	exonDeletionPattern = regexp.MustCompile(`exon\s*\d+.*del`)
)

// threeToOne maps three-letter amino acid codes (case-insensitive) to
// their one-letter equivalent, including the two stop-codon spellings.
var threeToOne = map[string]string{
	"ALA": "A", "ARG": "R", "ASN": "N", "ASP": "D", "CYS": "C",
	"GLN": "Q", "GLU": "E", "GLY": "G", "HIS": "H", "ILE": "I",
	"LEU": "L", "LYS": "K", "MET": "M", "PHE": "F", "PRO": "P",
	"SER": "S", "THR": "T", "TRP": "W", "TYR": "Y", "VAL": "V",
	"TER": "*", "STOP": "*",
}

// Normalizer is a deterministic, stateless protein-variant normalizer.
type Normalizer struct{}

// New returns a ready-to-use Normalizer. It carries no state because
// normalization never consults configuration or external data.
func New() *Normalizer {
	return &Normalizer{}
}

// Normalize validates and canonicalizes a raw input. It returns a
// *domain.RejectedVariantError, never a generic error, when the input must
// not proceed to evidence gathering.
func (n *Normalizer) Normalize(input domain.VariantInput) (*domain.NormalizedVariant, error) {
	input.Normalize()
	if !input.Valid() {
		return nil, &domain.RejectedVariantError{
			Gene: input.Gene, Variant: input.Variant,
			Reason: domain.ReasonEmptyGene,
		}
	}

	raw := strings.TrimSpace(input.Variant)
	text := raw
	if strings.HasPrefix(strings.ToLower(text), "p.") {
		text = text[2:]
	}
	lower := strings.ToLower(text)

	for _, tok := range rejectionTokens {
		if strings.Contains(lower, tok) {
			return nil, &domain.RejectedVariantError{
				Gene: input.Gene, Variant: raw,
				Reason: domain.ReasonUnsupportedClass, Detail: tok,
			}
		}
	}
	if exonDeletionPattern.MatchString(lower) {
		return nil, &domain.RejectedVariantError{
			Gene: input.Gene, Variant: raw,
			Reason: domain.ReasonUnsupportedClass, Detail: "exon_deletion",
		}
	}

	upper := strings.ToUpper(text)

	// Short missense wins over long missense when both could match, since
	// it is tried first.
	if m := shortMissensePattern.FindStringSubmatch(upper); m != nil {
		pos, _ := strconv.Atoi(m[2])
		kind := domain.VariantKindMissense
		if m[3] == "*" {
			kind = domain.VariantKindNonsense
		}
		canonical := m[1] + m[2] + m[3]
		return &domain.NormalizedVariant{
			Gene: input.Gene, TumorType: input.TumorType,
			VariantOriginal: raw, VariantNormalized: canonical,
			Kind: kind, Position: pos, RefAA: m[1], AltAA: m[3],
			HGVSProtein: "p." + canonical,
		}, nil
	}

	if m := longMissensePattern.FindStringSubmatch(upper); m != nil {
		ref, okRef := threeToOne[m[1]]
		alt, okAlt := threeToOne[m[3]]
		if okRef && okAlt {
			pos, _ := strconv.Atoi(m[2])
			kind := domain.VariantKindMissense
			if alt == "*" {
				kind = domain.VariantKindNonsense
			}
			canonical := ref + m[2] + alt
			return &domain.NormalizedVariant{
				Gene: input.Gene, TumorType: input.TumorType,
				VariantOriginal: raw, VariantNormalized: canonical,
				Kind: kind, Position: pos, RefAA: ref, AltAA: alt,
				HGVSProtein: "p." + canonical,
			}, nil
		}
	}

	if m := frameshiftPattern.FindStringSubmatch(upper); m != nil {
		pos, _ := strconv.Atoi(m[2])
		canonical := m[1] + m[2] + "fs"
		if m[4] != "" {
			canonical += "*" + m[4]
		}
		return &domain.NormalizedVariant{
			Gene: input.Gene, TumorType: input.TumorType,
			VariantOriginal: raw, VariantNormalized: canonical,
			Kind: domain.VariantKindFrameshift, Position: pos, RefAA: m[1],
			HGVSProtein: "p." + canonical,
		}, nil
	}

	if indelPattern.MatchString(upper) {
		kind := domain.VariantKindOtherIndel
		switch {
		case strings.Contains(upper, "DEL"):
			kind = domain.VariantKindDeletion
		case strings.Contains(upper, "INS"):
			kind = domain.VariantKindInsertion
		case strings.Contains(upper, "DUP"):
			kind = domain.VariantKindDuplication
		}
		return &domain.NormalizedVariant{
			Gene: input.Gene, TumorType: input.TumorType,
			VariantOriginal: raw, VariantNormalized: upper,
			Kind: kind,
		}, nil
	}

	return nil, &domain.RejectedVariantError{
		Gene: input.Gene, Variant: raw,
		Reason: domain.ReasonUnrecognizedNotation,
	}
}
