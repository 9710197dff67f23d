// Package tier implements the deterministic AMP/ASCO/CAP tier decision
// cascade (get_tier_hint): Classify checks twelve prioritized branches in a
// fixed order, each a predicate over an Evidence dossier with a fixed
// outcome, and returns the first that matches. The branches are written as
// code inside Classify; they are not held as a rule table that tests can
// enumerate.
package tier

import (
	"errors"
	"strings"

	"github.com/tierdx/tierdx/internal/config"
	"github.com/tierdx/tierdx/internal/domain"
)

var errEmptyVariant = errors.New("evidence dossier carries no variant")

// benignSignificances are the ClinVar significance strings that force
// Tier IV regardless of any other evidence.
var benignSignificances = map[string]bool{
	"benign": true, "likely benign": true,
}

// Engine is the pure decision function over an Evidence dossier.
type Engine struct {
	tables *config.Tables
}

// New builds an Engine bound to a fixed, shared set of decision tables.
func New(tables *config.Tables) *Engine {
	return &Engine{tables: tables}
}

// Classify runs the twelve-branch cascade and returns the first matching
// outcome. It never returns an error for a well-formed Evidence value; a
// programmer-error PipelineError is reserved for callers that pass in a
// dossier missing its Variant.
func (e *Engine) Classify(evidence domain.Evidence, tumorType string) (domain.TierResult, error) {
	if evidence.Variant.Gene == "" {
		return domain.TierResult{}, &domain.PipelineError{Stage: "classify", Err: errEmptyVariant}
	}

	gene := evidence.Variant.Gene
	canonical := evidence.Variant.VariantNormalized
	missing := len(evidence.AbsentSources) + len(evidence.DegradedSources)

	// 1. Benign.
	if evidence.MyVariant != nil && benignSignificances[strings.ToLower(evidence.MyVariant.ClinVarSignificance)] {
		return e.finish(domain.TierIV, domain.SublevelNone, domain.ReasonBenign, "ClinVar reports this variant as benign or likely benign.", missing), nil
	}

	// 2. Molecular subtype-defining.
	if e.tables.HasSubtype(gene, canonical, tumorType) {
		return e.finish(domain.TierI, domain.SublevelB, domain.ReasonSubtype, "Defines an established molecular subtype in this tumor type.", missing), nil
	}

	// 3. FDA variant-in-tumor approval.
	if sub, reason, ok := e.fdaVariantInTumor(evidence, tumorType, gene, canonical); ok {
		return e.finish(domain.TierI, sub, domain.ReasonFDAVariantInTumor, reason, missing), nil
	}

	// 4. Literature-extracted strong evidence.
	if e.literatureStrong(evidence, tumorType) {
		return e.finish(domain.TierI, domain.SublevelB, domain.ReasonLiteratureStrong, "Literature knowledge extraction reports FDA-approved or Phase 3 evidence for this tumor type.", missing), nil
	}

	// 5. Active variant-specific trial.
	if e.variantSpecificTrial(evidence, tumorType) {
		return e.finish(domain.TierII, domain.SublevelD, domain.ReasonTrialVariantSpecific, "An active trial explicitly enrolls this variant in this tumor type.", missing), nil
	}

	// 6. Investigational-only pair.
	if e.tables.IsInvestigationalOnly(gene, tumorType) {
		return e.finish(domain.TierIII, domain.SublevelNone, domain.ReasonInvestigationalOnly, "No approved targeted therapy exists for this gene in this tumor type.", missing), nil
	}

	// 7. Resistance without alternative.
	if resistant, hasAlt := e.resistanceStatus(evidence, gene); resistant {
		if hasAlt {
			return e.finish(domain.TierI, domain.SublevelA, domain.ReasonResistanceWithAlt, "This variant confers resistance to standard-of-care, but an FDA-approved alternative exists.", missing), nil
		}
		return e.finish(domain.TierII, domain.SublevelD, domain.ReasonResistanceNoAlt, "This variant confers resistance to standard-of-care with no approved alternative.", missing), nil
	}

	// 8. Prognostic / diagnostic only.
	if sub, reason, ok := e.prognosticOnly(evidence); ok {
		rc := domain.ReasonPrognosticStrong
		if sub == domain.SublevelC && reason == "weak" {
			rc = domain.ReasonPrognosticWeak
			return e.finish(domain.TierIII, domain.SublevelC, rc, "Weak prognostic evidence only; no predictive or diagnostic impact.", missing), nil
		}
		return e.finish(domain.TierII, domain.SublevelC, rc, "Prognostic evidence of Level A/B affects treatment planning.", missing), nil
	}

	// 9. FDA approval in a different tumor type.
	if e.fdaApprovedOffLabel(evidence) {
		return e.finish(domain.TierII, domain.SublevelA, domain.ReasonOffLabel, "Approved for this gene's alteration in a different tumor type.", missing), nil
	}

	// 10. Gene-level therapeutic evidence.
	if sub, reason, ok := e.geneLevelEvidence(evidence, gene); ok {
		rc := domain.ReasonGeneLevel
		if sub == domain.SublevelD {
			rc = domain.ReasonGeneLevelWeak
		}
		return e.finish(domain.TierII, sub, rc, reason, missing), nil
	}

	// 11. VUS in a cancer gene.
	if evidence.IsCancerGene {
		return e.finish(domain.TierIII, domain.SublevelB, domain.ReasonVUSInCancerGene, "Variant of unknown significance in a known cancer gene.", missing), nil
	}

	// 12. Default.
	return e.finish(domain.TierIII, domain.SublevelD, domain.ReasonNoEvidence, "No actionable evidence found for this variant.", missing), nil
}

func (e *Engine) finish(t domain.Tier, s domain.Sublevel, rc domain.ReasonCode, human string, missing int) domain.TierResult {
	return domain.TierResult{
		Tier: t, Sublevel: s, ReasonCode: rc, HumanReason: human,
		Confidence: computeConfidence(t, s, missing),
	}
}

func (e *Engine) fdaVariantInTumor(ev domain.Evidence, tumorType, gene, canonical string) (domain.Sublevel, string, bool) {
	if !MatchVariantClass(e.tables, gene, canonical, canonical) {
		return "", "", false
	}

	fdaMention := ev.FDA != nil && ev.FDA.MentionsVariantInLabel
	var assertionLevel domain.EvidenceLevel
	hasAssertion := false
	if ev.CIViC != nil {
		for _, a := range ev.CIViC.Assertions {
			if a.AMPTier == "I" && (a.AMPLevel == domain.LevelA || a.AMPLevel == domain.LevelB) &&
				matchesTumor(a.Disease, tumorType) {
				hasAssertion = true
				if !assertionBetter(assertionLevel, a.AMPLevel) {
					assertionLevel = a.AMPLevel
				}
			}
		}
	}
	cgiFDAStatus := false
	cgiNCCN := false
	if ev.CGI != nil {
		for _, b := range ev.CGI.Biomarkers {
			if b.Response == domain.ResponseSensitive && b.EvidenceStatus == "fda" {
				cgiFDAStatus = true
			}
			if b.EvidenceStatus == "nccn" {
				cgiNCCN = true
			}
		}
	}
	civicLevelAPredictive := false
	if ev.CIViC != nil {
		for _, item := range ev.CIViC.Items {
			if item.Level == domain.LevelA && item.Significance == domain.SignificancePredictive &&
				item.Response == domain.ResponseSensitive && matchesTumor(item.Disease, tumorType) {
				civicLevelAPredictive = true
			}
		}
	}

	if !fdaMention && !hasAssertion && !cgiFDAStatus && !civicLevelAPredictive {
		return "", "", false
	}

	if fdaMention || assertionLevel == domain.LevelA || civicLevelAPredictive || cgiFDAStatus {
		return domain.SublevelA, "FDA label or Level A evidence explicitly names this variant in this tumor type.", true
	}
	if assertionLevel == domain.LevelB || cgiNCCN {
		return domain.SublevelB, "CIViC assertion Level B or NCCN guideline status supports this variant in this tumor type.", true
	}
	return domain.SublevelA, "Strong variant-specific approval evidence.", true
}

func assertionBetter(current, candidate domain.EvidenceLevel) bool {
	if current == "" {
		return false
	}
	return current.Rank() <= candidate.Rank()
}

func matchesTumor(disease, tumorType string) bool {
	if tumorType == "" || disease == "" {
		return tumorType == "" && disease == ""
	}
	return strings.Contains(strings.ToLower(disease), strings.ToLower(tumorType)) ||
		strings.Contains(strings.ToLower(tumorType), strings.ToLower(disease))
}

func (e *Engine) literatureStrong(ev domain.Evidence, tumorType string) bool {
	if ev.Literature == nil || ev.Literature.Knowledge == nil {
		return false
	}
	tag := ev.Literature.Knowledge.EvidenceLevelTag
	return tag == "FDA-approved" || tag == "Phase 3"
}

func (e *Engine) variantSpecificTrial(ev domain.Evidence, tumorType string) bool {
	if ev.Trials == nil {
		return false
	}
	for _, t := range ev.Trials.Trials {
		if t.VariantExplicitlyMentioned {
			return true
		}
	}
	return false
}

// resistanceStatus reports whether drug aggregation shows a net
// resistance signal, and whether an FDA-approved alternative exists for
// that resistance (e.g. T790M resistance to first-gen EGFR TKIs has
// osimertinib as its approved alternative).
func (e *Engine) resistanceStatus(ev domain.Evidence, gene string) (resistant bool, hasAlternative bool) {
	if ev.DominantSignal != domain.DominantResistanceOnly && ev.DominantSignal != domain.DominantResistanceMajority {
		return false, false
	}
	if ev.FDA != nil {
		for _, m := range ev.FDA.Matches {
			if m.Drug != "" {
				return true, true
			}
		}
	}
	return true, false
}

func (e *Engine) prognosticOnly(ev domain.Evidence) (domain.Sublevel, string, bool) {
	if ev.CIViC == nil {
		return "", "", false
	}
	strong := false
	any := false
	for _, item := range ev.CIViC.Items {
		if item.Significance != domain.SignificancePrognostic {
			continue
		}
		any = true
		if item.Level == domain.LevelA || item.Level == domain.LevelB {
			strong = true
		}
	}
	if !any {
		return "", "", false
	}
	if strong {
		return domain.SublevelC, "strong", true
	}
	return domain.SublevelC, "weak", true
}

func (e *Engine) fdaApprovedOffLabel(ev domain.Evidence) bool {
	return ev.FDA != nil && len(ev.FDA.Matches) > 0 && !ev.FDA.MentionsVariantInLabel
}

func (e *Engine) geneLevelEvidence(ev domain.Evidence, gene string) (domain.Sublevel, string, bool) {
	if ev.CIViC != nil {
		for _, item := range ev.CIViC.Items {
			if item.Significance == domain.SignificancePredictive && item.Level == domain.LevelB {
				return domain.SublevelB, "CIViC Level B predictive evidence at the gene level.", true
			}
		}
	}
	if drugs, ok := e.tables.PathwayDrugs(gene); ok && len(drugs) > 0 {
		return domain.SublevelB, "Pathway-actionable tumor suppressor with a matching targeted drug.", true
	}
	if ev.CIViC != nil {
		for _, item := range ev.CIViC.Items {
			if item.Significance == domain.SignificancePredictive &&
				(item.Level == domain.LevelC || item.Level == domain.LevelD) {
				return domain.SublevelD, "Only case-series or preclinical gene-level evidence found.", true
			}
		}
	}
	return "", "", false
}
