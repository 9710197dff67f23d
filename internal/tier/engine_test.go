package tier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tierdx/tierdx/internal/config"
	"github.com/tierdx/tierdx/internal/domain"
)

func newTestEngine() *Engine {
	return New(config.DefaultTables())
}

func variantOf(gene, canonical string) domain.NormalizedVariant {
	return domain.NormalizedVariant{Gene: gene, VariantNormalized: canonical, Kind: domain.VariantKindMissense}
}

func TestClassifyBenignIsAlwaysTierIV(t *testing.T) {
	e := newTestEngine()
	ev := domain.Evidence{
		Variant:   variantOf("BRAF", "V600E"),
		MyVariant: &domain.MyVariantFragment{State: domain.FetchPresent, ClinVarSignificance: "Likely benign"},
		CIViC: &domain.CIViCFragment{
			State: domain.FetchPresent,
			Assertions: []domain.CIViCAssertion{
				{AMPTier: "I", AMPLevel: domain.LevelA, Significance: domain.SignificancePredictive, Response: domain.ResponseSensitive, Disease: "melanoma"},
			},
		},
	}
	result, err := e.Classify(ev, "melanoma")
	require.NoError(t, err)
	assert.Equal(t, domain.TierIV, result.Tier)
	assert.Equal(t, domain.ReasonBenign, result.ReasonCode)
}

func TestClassifySubtypeDefining(t *testing.T) {
	e := newTestEngine()
	ev := domain.Evidence{Variant: variantOf("POLE", "P286R")}
	result, err := e.Classify(ev, "endometrial")
	require.NoError(t, err)
	assert.Equal(t, domain.TierI, result.Tier)
	assert.Equal(t, domain.SublevelB, result.Sublevel)
	assert.Equal(t, domain.ReasonSubtype, result.ReasonCode)
}

func TestClassifyFDAVariantInTumorLevelA(t *testing.T) {
	e := newTestEngine()
	ev := domain.Evidence{
		Variant: variantOf("BRAF", "V600E"),
		FDA: &domain.FDAFragment{
			State:                  domain.FetchPresent,
			Matches:                []domain.FDALabelMatch{{Drug: "vemurafenib"}},
			MentionsVariantInLabel: true,
		},
	}
	result, err := e.Classify(ev, "melanoma")
	require.NoError(t, err)
	assert.Equal(t, domain.TierI, result.Tier)
	assert.Equal(t, domain.SublevelA, result.Sublevel)
	assert.Equal(t, domain.ReasonFDAVariantInTumor, result.ReasonCode)
}

func TestClassifyInvestigationalOnlyOverridesOffLabel(t *testing.T) {
	e := newTestEngine()
	ev := domain.Evidence{
		Variant: variantOf("KRAS", "G12D"),
		FDA: &domain.FDAFragment{
			State:   domain.FetchPresent,
			Matches: []domain.FDALabelMatch{{Drug: "sotorasib"}},
		},
	}
	result, err := e.Classify(ev, "pancreatic")
	require.NoError(t, err)
	assert.Equal(t, domain.TierIII, result.Tier)
	assert.Equal(t, domain.ReasonInvestigationalOnly, result.ReasonCode)
}

func TestClassifyVariantSpecificTrialOutsideInvestigationalPair(t *testing.T) {
	e := newTestEngine()
	ev := domain.Evidence{
		Variant: variantOf("KRAS", "G12D"),
		Trials: &domain.TrialsFragment{
			State: domain.FetchPresent,
			Trials: []domain.ClinicalTrial{
				{NCTID: "NCT00000002", VariantExplicitlyMentioned: true, Status: "recruiting"},
			},
		},
	}
	result, err := e.Classify(ev, "nsclc")
	require.NoError(t, err)
	assert.Equal(t, domain.TierII, result.Tier)
	assert.Equal(t, domain.SublevelD, result.Sublevel)
	assert.Equal(t, domain.ReasonTrialVariantSpecific, result.ReasonCode)
}

func TestClassifyResistanceWithApprovedAlternative(t *testing.T) {
	e := newTestEngine()
	ev := domain.Evidence{
		Variant:        variantOf("EGFR", "T790M"),
		DominantSignal: domain.DominantResistanceOnly,
		FDA: &domain.FDAFragment{
			State:   domain.FetchPresent,
			Matches: []domain.FDALabelMatch{{Drug: "osimertinib"}},
		},
	}
	result, err := e.Classify(ev, "nsclc")
	require.NoError(t, err)
	assert.Equal(t, domain.TierI, result.Tier)
	assert.Equal(t, domain.ReasonResistanceWithAlt, result.ReasonCode)
}

func TestClassifyResistanceWithoutAlternative(t *testing.T) {
	e := newTestEngine()
	ev := domain.Evidence{
		Variant:        variantOf("XYZ1", "Q61R"),
		DominantSignal: domain.DominantResistanceOnly,
	}
	result, err := e.Classify(ev, "thyroid")
	require.NoError(t, err)
	assert.Equal(t, domain.TierII, result.Tier)
	assert.Equal(t, domain.ReasonResistanceNoAlt, result.ReasonCode)
}

func TestClassifyGeneLevelPathwayActionableTSG(t *testing.T) {
	e := newTestEngine()
	ev := domain.Evidence{Variant: variantOf("PTEN", "R130G")}
	result, err := e.Classify(ev, "endometrial")
	require.NoError(t, err)
	assert.Equal(t, domain.TierII, result.Tier)
	assert.Equal(t, domain.SublevelB, result.Sublevel)
	assert.Equal(t, domain.ReasonGeneLevel, result.ReasonCode)
}

func TestClassifyVUSInCancerGene(t *testing.T) {
	e := newTestEngine()
	ev := domain.Evidence{
		Variant:      variantOf("TP53", "R282Q"),
		IsCancerGene: true,
	}
	result, err := e.Classify(ev, "sarcoma")
	require.NoError(t, err)
	assert.Equal(t, domain.TierIII, result.Tier)
	assert.Equal(t, domain.SublevelB, result.Sublevel)
	assert.Equal(t, domain.ReasonVUSInCancerGene, result.ReasonCode)
}

func TestClassifyDefaultNoEvidence(t *testing.T) {
	e := newTestEngine()
	ev := domain.Evidence{Variant: variantOf("ABC9", "M1V")}
	result, err := e.Classify(ev, "unknown")
	require.NoError(t, err)
	assert.Equal(t, domain.TierIII, result.Tier)
	assert.Equal(t, domain.SublevelD, result.Sublevel)
	assert.Equal(t, domain.ReasonNoEvidence, result.ReasonCode)
}

func TestClassifyRejectsEmptyVariant(t *testing.T) {
	e := newTestEngine()
	_, err := e.Classify(domain.Evidence{}, "lung")
	require.Error(t, err)
	var pipelineErr *domain.PipelineError
	assert.ErrorAs(t, err, &pipelineErr)
}

func TestComputeConfidencePenalizesMissingSourcesButFloors(t *testing.T) {
	full := computeConfidence(domain.TierI, domain.SublevelA, 0)
	degraded := computeConfidence(domain.TierI, domain.SublevelA, 2)
	floored := computeConfidence(domain.TierI, domain.SublevelA, 20)
	assert.Equal(t, 1.00, full)
	assert.InDelta(t, 0.90, degraded, 1e-9)
	assert.Equal(t, 0.90, floored)
}

func TestMatchVariantClassRequireExplicitRejectsUnlistedToken(t *testing.T) {
	tables := config.DefaultTables()
	assert.True(t, MatchVariantClass(tables, "BRAF", "V600E", "V600E"))
	assert.False(t, MatchVariantClass(tables, "BRAF", "V600E", "D594G"))
}

func TestMatchVariantClassExcludeListWins(t *testing.T) {
	tables := config.DefaultTables()
	assert.False(t, MatchVariantClass(tables, "EGFR", "T790M", "T790M"))
}

func TestMatchVariantClassNoTableAdmitsAnything(t *testing.T) {
	tables := config.DefaultTables()
	assert.True(t, MatchVariantClass(tables, "TP53", "R282Q", "R282Q"))
}
