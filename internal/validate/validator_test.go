package validate

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tierdx/tierdx/internal/assess"
	"github.com/tierdx/tierdx/internal/domain"
)

type scriptedNormalizer struct{}

func (scriptedNormalizer) Normalize(input domain.VariantInput) (*domain.NormalizedVariant, error) {
	if input.Variant == "BADVARIANT" {
		return nil, &domain.RejectedVariantError{Gene: input.Gene, Variant: input.Variant, Reason: domain.ReasonUnrecognizedNotation}
	}
	return &domain.NormalizedVariant{Gene: input.Gene, VariantNormalized: input.Variant}, nil
}

type scriptedAggregator struct{}

func (scriptedAggregator) Gather(_ context.Context, v domain.NormalizedVariant, _ string) (*domain.Evidence, error) {
	return &domain.Evidence{Variant: v}, nil
}

type scriptedEngine struct{ byGene map[string]domain.Tier }

func (s scriptedEngine) Classify(evidence domain.Evidence, _ string) (domain.TierResult, error) {
	tier, ok := s.byGene[evidence.Variant.Gene]
	if !ok {
		return domain.TierResult{}, errors.New("no script for gene")
	}
	return domain.TierResult{Tier: tier}, nil
}

func TestValidatorRunComputesAccuracyAndConfusionMatrix(t *testing.T) {
	pipeline := &assess.Pipeline{
		Normalizer: scriptedNormalizer{},
		Aggregator: scriptedAggregator{},
		Engine:     scriptedEngine{byGene: map[string]domain.Tier{"BRAF": domain.TierI, "KRAS": domain.TierII, "TP53": domain.TierIII}},
	}
	v := New(pipeline, 2, logrus.New())

	cases := []domain.ValidationCase{
		{Gene: "BRAF", Variant: "V600E", ExpectedTier: domain.TierI},
		{Gene: "KRAS", Variant: "G12C", ExpectedTier: domain.TierI},
		{Gene: "TP53", Variant: "R282Q", ExpectedTier: domain.TierIII},
	}

	report, err := v.Run(context.Background(), cases)
	require.NoError(t, err)
	assert.Equal(t, 3, report.TotalCases)
	assert.InDelta(t, 2.0/3.0, report.OverallAccuracy, 1e-9)
	assert.Equal(t, 1, report.ConfusionMatrix[domain.TierI][domain.TierII])
	assert.Len(t, report.Failures, 1)
	assert.Equal(t, domain.TierII, report.Failures[0].PredictedTier)
}

func TestValidatorRunRecordsPipelineErrorsAsFailuresWithoutAbortingBatch(t *testing.T) {
	pipeline := &assess.Pipeline{
		Normalizer: scriptedNormalizer{},
		Aggregator: scriptedAggregator{},
		Engine:     scriptedEngine{byGene: map[string]domain.Tier{"BRAF": domain.TierI}},
	}
	v := New(pipeline, 2, logrus.New())

	cases := []domain.ValidationCase{
		{Gene: "BRAF", Variant: "BADVARIANT", ExpectedTier: domain.TierI},
		{Gene: "BRAF", Variant: "V600E", ExpectedTier: domain.TierI},
	}

	report, err := v.Run(context.Background(), cases)
	require.NoError(t, err)
	assert.Equal(t, 1.0, report.OverallAccuracy)
	require.Len(t, report.Failures, 1)
	assert.NotEmpty(t, report.Failures[0].Error)
}
