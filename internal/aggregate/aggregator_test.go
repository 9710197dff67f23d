package aggregate

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tierdx/tierdx/internal/domain"
)

type stubClient struct {
	name  domain.SourceName
	value any
	state domain.FetchState
	err   error
}

func (s *stubClient) Name() domain.SourceName { return s.name }
func (s *stubClient) Fetch(_ context.Context, _ domain.SourceRequest) (any, domain.FetchState, error) {
	return s.value, s.state, s.err
}

type stubCancerGenes struct{ genes map[string]bool }

func (s stubCancerGenes) IsCancerGene(gene string) bool { return s.genes[gene] }

func TestGatherMergesPresentFragmentsAndTracksAbsent(t *testing.T) {
	clients := []domain.SourceClient{
		&stubClient{name: domain.SourceMyVariant, value: &domain.MyVariantFragment{State: domain.FetchPresent, ClinVarSignificance: "Pathogenic"}, state: domain.FetchPresent},
		&stubClient{name: domain.SourceFDA, value: nil, state: domain.FetchAbsent},
		&stubClient{name: domain.SourceCGI, value: &domain.CGIFragment{State: domain.FetchDegraded}, state: domain.FetchDegraded},
	}
	agg := New(clients, logrus.New())
	variant := domain.NormalizedVariant{Gene: "BRAF", VariantNormalized: "V600E"}

	evidence, err := agg.Gather(context.Background(), variant, "melanoma")
	require.NoError(t, err)
	require.NotNil(t, evidence.MyVariant)
	assert.Equal(t, "Pathogenic", evidence.MyVariant.ClinVarSignificance)
	assert.Contains(t, evidence.AbsentSources, domain.SourceFDA)
	assert.Contains(t, evidence.DegradedSources, domain.SourceCGI)
}

func TestGatherPopulatesCancerGeneFromChecker(t *testing.T) {
	agg := New(nil, logrus.New(), WithCancerGeneChecker(stubCancerGenes{genes: map[string]bool{"TP53": true}}))
	evidence, err := agg.Gather(context.Background(), domain.NormalizedVariant{Gene: "TP53", VariantNormalized: "R282Q"}, "sarcoma")
	require.NoError(t, err)
	assert.True(t, evidence.IsCancerGene)
}

func TestComputeDerivedSignalsAppliesThreeToOneRule(t *testing.T) {
	agg := New(nil, logrus.New())
	evidence := &domain.Evidence{
		CIViC: &domain.CIViCFragment{
			State: domain.FetchPresent,
			Items: []domain.CIViCEvidenceItem{
				{Level: domain.LevelB, Significance: domain.SignificancePredictive, Response: domain.ResponseSensitive, Therapies: []string{"drugA"}},
				{Level: domain.LevelB, Significance: domain.SignificancePredictive, Response: domain.ResponseSensitive, Therapies: []string{"drugA"}},
				{Level: domain.LevelB, Significance: domain.SignificancePredictive, Response: domain.ResponseSensitive, Therapies: []string{"drugA"}},
				// high-quality (level B) so the low-quality minority filter
				// does not drop it and mask the 3:1 rule under test here.
				{Level: domain.LevelB, Significance: domain.SignificancePredictive, Response: domain.ResponseResistant, Therapies: []string{"drugA"}},
			},
		},
	}
	agg.computeDerivedSignals(evidence)
	require.Len(t, evidence.Drugs, 1)
	assert.Equal(t, domain.DrugSensitive, evidence.Drugs[0].NetSignal)
	assert.Contains(t, evidence.Conflicts, "drugA")
}

func TestDominantSignalEightyPercentThreshold(t *testing.T) {
	assert.Equal(t, domain.DominantSensitivityMajority, dominantSignal(8, 2))
	assert.Equal(t, domain.DominantMixed, dominantSignal(6, 4))
	assert.Equal(t, domain.DominantResistanceOnly, dominantSignal(0, 3))
	assert.Equal(t, domain.DominantMixed, dominantSignal(0, 0))
}

type stubScorer struct{}

func (stubScorer) ScorePaper(_ context.Context, _, _, _ string, paper domain.LiteraturePaper) (domain.LiteraturePaper, error) {
	paper.Score = 0.9
	paper.Signal = domain.SignalSensitivity
	return paper, nil
}

type stubExtractor struct{}

func (stubExtractor) ExtractKnowledge(_ context.Context, _, _ string, papers []domain.LiteraturePaper) (*domain.LiteratureKnowledge, error) {
	return &domain.LiteratureKnowledge{EvidenceLevelTag: "Phase 3", SensitiveTo: []string{"drugB"}}, nil
}

func TestGatherRunsLiteraturePipelineWhenWired(t *testing.T) {
	clients := []domain.SourceClient{
		&stubClient{name: domain.SourceLiterature, state: domain.FetchPresent, value: &domain.LiteratureFragment{
			State:  domain.FetchPresent,
			Papers: []domain.LiteraturePaper{{PaperID: "p1", Title: "a paper"}},
		}},
	}
	agg := New(clients, logrus.New(), WithLiteraturePipeline(stubScorer{}, stubExtractor{}))
	evidence, err := agg.Gather(context.Background(), domain.NormalizedVariant{Gene: "EGFR", VariantNormalized: "L858R"}, "nsclc")
	require.NoError(t, err)
	require.NotNil(t, evidence.Literature)
	require.NotNil(t, evidence.Literature.Knowledge)
	assert.Equal(t, "Phase 3", evidence.Literature.Knowledge.EvidenceLevelTag)
}

func TestNetSignalThreeToOneRule(t *testing.T) {
	assert.Equal(t, domain.DrugSensitive, netSignal(3, 1))
	assert.Equal(t, domain.DrugResistant, netSignal(1, 3))
	assert.Equal(t, domain.DrugMixed, netSignal(2, 1))
	assert.Equal(t, domain.DrugSensitive, netSignal(1, 0))
}
