package assess

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tierdx/tierdx/internal/domain"
)

type stubNormalizer struct {
	result *domain.NormalizedVariant
	err    error
}

func (s stubNormalizer) Normalize(_ domain.VariantInput) (*domain.NormalizedVariant, error) {
	return s.result, s.err
}

type stubAggregator struct {
	evidence *domain.Evidence
	err      error
}

func (s stubAggregator) Gather(_ context.Context, _ domain.NormalizedVariant, _ string) (*domain.Evidence, error) {
	return s.evidence, s.err
}

type stubEngine struct {
	result domain.TierResult
	err    error
}

func (s stubEngine) Classify(_ domain.Evidence, _ string) (domain.TierResult, error) {
	return s.result, s.err
}

func TestPipelineRunProducesAssessment(t *testing.T) {
	variant := domain.NormalizedVariant{Gene: "BRAF", VariantNormalized: "V600E"}
	p := &Pipeline{
		Normalizer: stubNormalizer{result: &variant},
		Aggregator: stubAggregator{evidence: &domain.Evidence{Variant: variant, FDA: &domain.FDAFragment{State: domain.FetchPresent}}},
		Engine:     stubEngine{result: domain.TierResult{Tier: domain.TierI, Sublevel: domain.SublevelA, ReasonCode: domain.ReasonFDAVariantInTumor, HumanReason: "approved", Confidence: 0.95}},
	}

	assessment, err := p.Run(context.Background(), domain.VariantInput{Gene: "braf", Variant: "V600E", TumorType: "melanoma"})
	require.NoError(t, err)
	assert.Equal(t, domain.TierI, assessment.Tier)
	assert.Equal(t, 0.95, assessment.Confidence)
	assert.Contains(t, assessment.EvidenceSources, "fda")
	assert.Equal(t, "approved", assessment.Narrative)
}

func TestPipelineRunPropagatesRejection(t *testing.T) {
	rejectErr := &domain.RejectedVariantError{Gene: "BRAF", Variant: "fusion", Reason: domain.ReasonUnsupportedClass}
	p := &Pipeline{Normalizer: stubNormalizer{err: rejectErr}}

	_, err := p.Run(context.Background(), domain.VariantInput{Gene: "BRAF", Variant: "fusion"})
	require.Error(t, err)
	assert.Equal(t, rejectErr, err)
}
