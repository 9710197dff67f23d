package wiring

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tierdx/tierdx/internal/config"
	"github.com/tierdx/tierdx/internal/domain"
)

func testConfig() *domain.Config {
	return &domain.Config{
		Sources: domain.SourcesConfig{
			MyVariantBaseURL:   "https://myvariant.info/v1",
			FDABaseURL:         "https://api.fda.gov",
			CGICatalogURL:      "https://www.cancergenomeinterpreter.org/data/cgi_biomarkers_latest.tsv",
			VICCBaseURL:        "https://search.cancervariants.org/api",
			VICCEnabled:        true,
			CIViCBaseURL:       "https://civicdb.org/api",
			SemanticScholarURL: "https://api.semanticscholar.org",
			ClinicalTrialsURL:  "https://clinicaltrials.gov/api/v2",
			Timeout:            10 * time.Second,
		},
		Cache: domain.CacheConfig{
			CGICacheDir:     "./.cache/cgi",
			CGICacheTTLDays: 7,
		},
		LLM: domain.LLMConfig{
			LiteratureScoreThreshold: 0.5,
		},
		Validation: domain.ValidationConfig{
			MaxConcurrent: 4,
		},
	}
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestBuildWithoutLLMKeyOmitsNarrator(t *testing.T) {
	cfg := testConfig()
	tables := config.DefaultTables()

	pipeline := Build(cfg, tables, testLogger())

	require.NotNil(t, pipeline)
	assert.NotNil(t, pipeline.Normalizer)
	assert.NotNil(t, pipeline.Aggregator)
	assert.NotNil(t, pipeline.Engine)
	assert.Nil(t, pipeline.Narrator)
	assert.NotNil(t, pipeline.GeneNotes)
}

func TestBuildWithLLMKeyWiresNarrator(t *testing.T) {
	cfg := testConfig()
	cfg.LLM.APIKey = "test-key"
	cfg.LLM.BaseURL = "https://api.openai.com/v1"
	cfg.LLM.Model = "gpt-4o-mini"
	cfg.LLM.TimeoutSec = 30
	tables := config.DefaultTables()

	pipeline := Build(cfg, tables, testLogger())

	assert.NotNil(t, pipeline.Narrator)
}

func TestBuildValidatorReturnsValidator(t *testing.T) {
	cfg := testConfig()
	tables := config.DefaultTables()

	v := BuildValidator(cfg, tables, testLogger())

	require.NotNil(t, v)
}

func TestSourceClientsReturnsAllSources(t *testing.T) {
	cfg := testConfig()

	clients := SourceClients(cfg)

	assert.Len(t, clients, 7)
}

func TestPathwayGeneNotesUnknownGeneIsEmpty(t *testing.T) {
	tables := config.DefaultTables()
	notes := pathwayGeneNotes(tables)

	assert.Empty(t, notes("NOTAGENE"))
}

func TestPathwayGeneNotesKnownGeneIncludesDrugs(t *testing.T) {
	tables := config.DefaultTables()
	for gene, entry := range tables.PathwayActionableTSGs {
		notes := pathwayGeneNotes(tables)
		note := notes(gene)
		require.NotEmpty(t, note)
		for _, drug := range entry.Drugs {
			assert.Contains(t, note, drug)
		}
		break
	}
}
