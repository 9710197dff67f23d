// Package assess wires the normalizer, aggregator, tier engine, and
// narrator into the single per-variant pipeline every entry point (MCP
// tool, REST handler, validator) drives.
package assess

import (
	"context"
	"fmt"

	"github.com/tierdx/tierdx/internal/domain"
)

// Pipeline runs one variant end to end: normalize, gather evidence,
// classify, narrate.
type Pipeline struct {
	Normalizer domain.Normalizer
	Aggregator domain.Aggregator
	Engine     domain.TierEngine
	Narrator   domain.Narrator
	GeneNotes  func(gene string) string
}

// Run executes the full pipeline for one raw variant input and returns the
// finished Assessment. A RejectedVariantError from normalization is
// returned unwrapped so callers can distinguish admission rejection from
// infrastructure failure.
func (p *Pipeline) Run(ctx context.Context, input domain.VariantInput) (*domain.Assessment, error) {
	input.Normalize()

	normalized, err := p.Normalizer.Normalize(input)
	if err != nil {
		return nil, err
	}

	evidence, err := p.Aggregator.Gather(ctx, *normalized, input.TumorType)
	if err != nil {
		return nil, fmt.Errorf("gather evidence: %w", err)
	}

	result, err := p.Engine.Classify(*evidence, input.TumorType)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	geneNotes := ""
	if p.GeneNotes != nil {
		geneNotes = p.GeneNotes(normalized.Gene)
	}

	narrative := result.HumanReason
	var drugs []string
	if p.Narrator != nil {
		narrative, drugs, err = p.Narrator.WriteNarrative(ctx, result, *evidence, geneNotes)
		if err != nil {
			return nil, fmt.Errorf("write narrative: %w", err)
		}
	}

	return &domain.Assessment{
		Variant:              *normalized,
		Tier:                 result.Tier,
		Confidence:           result.Confidence,
		SublevelInternal:     result.Sublevel,
		ReasonCode:           result.ReasonCode,
		RecommendedTherapies: drugs,
		EvidenceSources:      presentSources(*evidence),
		Narrative:            narrative,
	}, nil
}

func presentSources(evidence domain.Evidence) []string {
	all := []struct {
		name    domain.SourceName
		present bool
	}{
		{domain.SourceMyVariant, evidence.MyVariant != nil},
		{domain.SourceFDA, evidence.FDA != nil},
		{domain.SourceCGI, evidence.CGI != nil},
		{domain.SourceVICC, evidence.VICC != nil},
		{domain.SourceCIViC, evidence.CIViC != nil},
		{domain.SourceLiterature, evidence.Literature != nil},
		{domain.SourceTrials, evidence.Trials != nil},
	}
	var present []string
	for _, s := range all {
		if s.present {
			present = append(present, string(s.name))
		}
	}
	return present
}
