// Package wiring assembles the concrete Pipeline and Validator from a
// loaded domain.Config: it is the single place that knows every
// constructor in pkg/sources, internal/normalize, internal/tier,
// internal/aggregate, internal/llm, and internal/validate.
package wiring

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tierdx/tierdx/internal/aggregate"
	"github.com/tierdx/tierdx/internal/assess"
	"github.com/tierdx/tierdx/internal/config"
	"github.com/tierdx/tierdx/internal/domain"
	"github.com/tierdx/tierdx/internal/llm"
	"github.com/tierdx/tierdx/internal/normalize"
	"github.com/tierdx/tierdx/internal/tier"
	"github.com/tierdx/tierdx/internal/validate"
	"github.com/tierdx/tierdx/pkg/sources"
)

// Build constructs the full assessment Pipeline from cfg, wiring every
// source client the aggregator fans out to and, when an LLM API key is
// configured, the narrator and literature-scoring services. Without an
// API key the pipeline still runs: the narrator falls back to nil (the
// tier engine's templated HumanReason is used directly) and literature
// fragments pass through unscored.
func Build(cfg *domain.Config, tables *config.Tables, log *logrus.Logger) *assess.Pipeline {
	clients := sourceClients(cfg)
	oncoKB := sources.NewOncoKBClient()

	aggOpts := []aggregate.Option{
		aggregate.WithCancerGeneChecker(oncoKB),
		aggregate.WithPerSourceDeadline(cfg.Sources.Timeout),
		aggregate.WithRelevanceFloor(cfg.LLM.LiteratureScoreThreshold),
	}

	var narrator domain.Narrator
	if cfg.LLM.APIKey != "" {
		chatClient := llm.NewHTTPChatClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, time.Duration(cfg.LLM.TimeoutSec)*time.Second)
		services := llm.NewServices(chatClient, cfg.LLM.Model, cfg.LLM.NarrativeMaxTokens, cfg.LLM.Temperature)
		aggOpts = append(aggOpts, aggregate.WithLiteraturePipeline(services, services))
		narrator = services
	}

	agg := aggregate.New(clients, log, aggOpts...)
	engine := tier.New(tables)

	return &assess.Pipeline{
		Normalizer: normalize.New(),
		Aggregator: agg,
		Engine:     engine,
		Narrator:   narrator,
		GeneNotes:  pathwayGeneNotes(tables),
	}
}

// BuildValidator wraps Build's pipeline in a Validator bounded by cfg's
// configured batch concurrency.
func BuildValidator(cfg *domain.Config, tables *config.Tables, log *logrus.Logger) *validate.Validator {
	pipeline := Build(cfg, tables, log)
	return validate.New(pipeline, cfg.Validation.MaxConcurrent, log)
}

// SourceClients builds the evidence-source client set directly, for
// callers (e.g. the list_source_health tool) that probe sources without
// running them through an Aggregator.
func SourceClients(cfg *domain.Config) []domain.SourceClient {
	return sourceClients(cfg)
}

func sourceClients(cfg *domain.Config) []domain.SourceClient {
	s := cfg.Sources
	clients := []domain.SourceClient{
		sources.NewMyVariantClient(s.MyVariantBaseURL, int(s.Timeout.Seconds())),
		sources.NewFDAClient(s.FDABaseURL, int(s.Timeout.Seconds())),
		sources.NewCGIClient(s.CGICatalogURL, cfg.Cache.CGICacheDir, cfg.Cache.CGICacheTTLDays),
		sources.NewVICCClient(s.VICCBaseURL, s.VICCEnabled, int(s.Timeout.Seconds())),
		sources.NewCIViCClient(s.CIViCBaseURL, int(s.Timeout.Seconds())),
		sources.NewLiteratureClient(s.SemanticScholarURL, int(s.Timeout.Seconds())),
		sources.NewTrialsClient(s.ClinicalTrialsURL, int(s.Timeout.Seconds())),
	}
	return clients
}

// pathwayGeneNotes renders the pathway-actionable drug list for a gene,
// handed to the narrator as freeform context; genes outside the table
// get no note.
func pathwayGeneNotes(tables *config.Tables) func(gene string) string {
	return func(gene string) string {
		entry, ok := tables.PathwayActionableTSGs[gene]
		if !ok {
			return ""
		}
		note := "pathway-actionable tumor suppressor; candidate drugs:"
		for _, d := range entry.Drugs {
			note += " " + d
		}
		return note
	}
}
