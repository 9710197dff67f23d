// Package aggregate fans out to every evidence source concurrently and
// merges the returned fragments into a single Evidence dossier, tolerating
// partial failure: a source that times out or errors degrades that one
// fragment rather than failing the whole assessment.
package aggregate

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tierdx/tierdx/internal/domain"
)

// PaperScorer rates a single paper's relevance to the queried variant; it
// is an aggregator-level concern the literature source client deliberately
// does not perform itself.
type PaperScorer interface {
	ScorePaper(ctx context.Context, gene, variant, tumorType string, paper domain.LiteraturePaper) (domain.LiteraturePaper, error)
}

// KnowledgeExtractor distills a set of scored papers into a single
// structured knowledge block.
type KnowledgeExtractor interface {
	ExtractKnowledge(ctx context.Context, gene, variant string, papers []domain.LiteraturePaper) (*domain.LiteratureKnowledge, error)
}

// cancerGeneChecker is satisfied by the OncoKB client's static-list lookup.
type cancerGeneChecker interface {
	IsCancerGene(gene string) bool
}

// Aggregator implements domain.Aggregator by fanning out to every
// registered source client and merging the results.
type Aggregator struct {
	clients       []domain.SourceClient
	perSourceDeadline time.Duration
	scorer        PaperScorer
	extractor     KnowledgeExtractor
	cancerGenes   cancerGeneChecker
	relevanceFloor float64
	log           *logrus.Entry
}

// Option configures an Aggregator at construction time.
type Option func(*Aggregator)

// WithLiteraturePipeline wires the relevance scorer and knowledge
// extractor; without it, literature fragments pass through unscored and
// LiteratureKnowledge is never populated.
func WithLiteraturePipeline(scorer PaperScorer, extractor KnowledgeExtractor) Option {
	return func(a *Aggregator) {
		a.scorer = scorer
		a.extractor = extractor
	}
}

// WithCancerGeneChecker wires the OncoKB static-list client so Gather can
// populate Evidence.IsCancerGene.
func WithCancerGeneChecker(c cancerGeneChecker) Option {
	return func(a *Aggregator) { a.cancerGenes = c }
}

// WithPerSourceDeadline overrides the default 8 second per-source budget.
func WithPerSourceDeadline(d time.Duration) Option {
	return func(a *Aggregator) { a.perSourceDeadline = d }
}

// WithRelevanceFloor overrides the default 0.5 minimum literature
// relevance score kept after scoring.
func WithRelevanceFloor(floor float64) Option {
	return func(a *Aggregator) { a.relevanceFloor = floor }
}

// New builds an Aggregator over the given source clients.
func New(clients []domain.SourceClient, log *logrus.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		clients:           clients,
		perSourceDeadline: 8 * time.Second,
		relevanceFloor:    0.5,
		log:               log.WithField("component", "aggregator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type fetchResult struct {
	source domain.SourceName
	value  any
	state  domain.FetchState
	err    error
}

// Gather fans out to every source concurrently, each bounded by its own
// deadline carved out of ctx, and merges whatever comes back.
func (a *Aggregator) Gather(ctx context.Context, variant domain.NormalizedVariant, tumorType string) (*domain.Evidence, error) {
	req := domain.SourceRequest{Variant: variant, TumorType: tumorType}
	results := make([]fetchResult, len(a.clients))

	var group errgroup.Group
	var mu sync.Mutex
	for i, client := range a.clients {
		i, client := i, client
		group.Go(func() error {
			sourceCtx, cancel := context.WithTimeout(ctx, a.perSourceDeadline)
			defer cancel()
			value, state, err := client.Fetch(sourceCtx, req)
			mu.Lock()
			results[i] = fetchResult{source: client.Name(), value: value, state: state, err: err}
			mu.Unlock()
			if err != nil {
				a.log.WithError(err).WithField("source", client.Name()).Warn("source fetch degraded")
			}
			return nil
		})
	}
	_ = group.Wait()

	evidence := &domain.Evidence{Variant: variant}
	for _, r := range results {
		a.applyFragment(evidence, r)
	}

	if a.cancerGenes != nil {
		evidence.IsCancerGene = a.cancerGenes.IsCancerGene(variant.Gene)
	}

	a.runLiteraturePipeline(ctx, evidence, variant, tumorType)
	a.computeDerivedSignals(evidence)

	return evidence, nil
}

func (a *Aggregator) applyFragment(evidence *domain.Evidence, r fetchResult) {
	switch r.state {
	case domain.FetchAbsent:
		evidence.AbsentSources = append(evidence.AbsentSources, r.source)
		return
	case domain.FetchDegraded:
		evidence.DegradedSources = append(evidence.DegradedSources, r.source)
	}
	if r.err != nil || r.value == nil {
		if r.state != domain.FetchAbsent {
			evidence.AbsentSources = append(evidence.AbsentSources, r.source)
		}
		return
	}

	switch r.source {
	case domain.SourceMyVariant:
		if v, ok := r.value.(*domain.MyVariantFragment); ok {
			evidence.MyVariant = v
		}
	case domain.SourceFDA:
		if v, ok := r.value.(*domain.FDAFragment); ok {
			evidence.FDA = v
		}
	case domain.SourceCGI:
		if v, ok := r.value.(*domain.CGIFragment); ok {
			evidence.CGI = v
		}
	case domain.SourceVICC:
		if v, ok := r.value.(*domain.VICCFragment); ok {
			evidence.VICC = v
		}
	case domain.SourceCIViC:
		if v, ok := r.value.(*domain.CIViCFragment); ok {
			evidence.CIViC = v
		}
	case domain.SourceLiterature:
		if v, ok := r.value.(*domain.LiteratureFragment); ok {
			evidence.Literature = v
		}
	case domain.SourceTrials:
		if v, ok := r.value.(*domain.TrialsFragment); ok {
			evidence.Trials = v
		}
	case domain.SourceOncoKB:
		if v, ok := r.value.(bool); ok {
			evidence.IsCancerGene = v
		}
	}
}

// runLiteraturePipeline scores each raw paper, drops anything under the
// relevance floor, and extracts a single knowledge block from what survives.
func (a *Aggregator) runLiteraturePipeline(ctx context.Context, evidence *domain.Evidence, variant domain.NormalizedVariant, tumorType string) {
	if evidence.Literature == nil || len(evidence.Literature.Papers) == 0 {
		return
	}
	if a.scorer == nil {
		return
	}

	scored := make([]domain.LiteraturePaper, len(evidence.Literature.Papers))
	var group errgroup.Group
	for i, paper := range evidence.Literature.Papers {
		i, paper := i, paper
		group.Go(func() error {
			result, err := a.scorer.ScorePaper(ctx, variant.Gene, variant.VariantNormalized, tumorType, paper)
			if err != nil {
				a.log.WithError(err).Warn("paper scoring failed, dropping paper")
				scored[i] = paper
				scored[i].Signal = domain.SignalIrrelevant
				return nil
			}
			scored[i] = result
			return nil
		})
	}
	_ = group.Wait()

	kept := make([]domain.LiteraturePaper, 0, len(scored))
	for _, p := range scored {
		if p.Score >= a.relevanceFloor && p.Signal != domain.SignalIrrelevant {
			kept = append(kept, p)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	evidence.Literature.Papers = kept

	if a.extractor == nil || len(kept) == 0 {
		return
	}
	knowledge, err := a.extractor.ExtractKnowledge(ctx, variant.Gene, variant.VariantNormalized, kept)
	if err != nil {
		a.log.WithError(err).Warn("knowledge extraction failed")
		return
	}
	evidence.Literature.Knowledge = knowledge
}

// computeDerivedSignals rolls up sensitivity/resistance counts by level,
// per-drug net signal under the 3:1 rule, and the 80%-threshold dominant
// signal across the whole dossier.
func (a *Aggregator) computeDerivedSignals(evidence *domain.Evidence) {
	sensByLevel := map[domain.EvidenceLevel]int{}
	resByLevel := map[domain.EvidenceLevel]int{}
	drugSens := map[string]int{}
	drugRes := map[string]int{}
	drugBestLevel := map[string]domain.EvidenceLevel{}

	record := func(drug string, response domain.DrugResponse, level domain.EvidenceLevel) {
		if drug == "" {
			return
		}
		if response == domain.ResponseSensitive {
			sensByLevel[level]++
			drugSens[drug]++
		} else {
			resByLevel[level]++
			drugRes[drug]++
		}
		if best, ok := drugBestLevel[drug]; !ok || level.Rank() < best.Rank() {
			drugBestLevel[drug] = level
		}
	}

	if evidence.CGI != nil {
		for _, b := range evidence.CGI.Biomarkers {
			level := cgiStatusLevel(b.EvidenceStatus)
			for _, d := range b.Drugs {
				record(d, b.Response, level)
			}
		}
	}
	if evidence.VICC != nil {
		for _, assoc := range evidence.VICC.Associations {
			record(assoc.Drug, assoc.Response, assoc.EvidenceLevel)
		}
	}
	if evidence.CIViC != nil {
		for _, item := range evidence.CIViC.Items {
			for _, drug := range item.Therapies {
				record(drug, item.Response, item.Level)
			}
		}
		for _, a := range evidence.CIViC.Assertions {
			for _, drug := range a.Therapies {
				record(drug, a.Response, a.AMPLevel)
			}
		}
	}
	if evidence.Literature != nil && evidence.Literature.Knowledge != nil {
		for _, d := range evidence.Literature.Knowledge.SensitiveTo {
			record(d, domain.ResponseSensitive, domain.LevelC)
		}
		for _, d := range evidence.Literature.Knowledge.ResistantTo {
			record(d, domain.ResponseResistant, domain.LevelC)
		}
	}

	applyLowQualityMinorityFilter(sensByLevel, resByLevel, drugSens, drugRes)

	evidence.SensitivityCountByLevel = sensByLevel
	evidence.ResistanceCountByLevel = resByLevel

	var conflicts []string
	var aggregated []domain.AggregatedDrug
	names := make([]string, 0, len(drugSens)+len(drugRes))
	seen := map[string]bool{}
	for d := range drugSens {
		if !seen[d] {
			seen[d] = true
			names = append(names, d)
		}
	}
	for d := range drugRes {
		if !seen[d] {
			seen[d] = true
			names = append(names, d)
		}
	}
	sort.Strings(names)
	for _, d := range names {
		s, r := drugSens[d], drugRes[d]
		if s > 0 && r > 0 {
			conflicts = append(conflicts, d)
		}
		aggregated = append(aggregated, domain.AggregatedDrug{
			Name: d, NetSignal: netSignal(s, r), BestLevel: drugBestLevel[d],
		})
	}
	evidence.Conflicts = conflicts
	evidence.Drugs = aggregated
	evidence.DominantSignal = dominantSignal(evidence.SensitivityCount(), evidence.ResistanceCount())
}

// netSignal applies the 3:1 rule: a drug needs at least three times as
// many entries on one side to be called a clean net signal; anything
// closer is reported mixed.
func netSignal(sensitivity, resistance int) domain.DrugNetSignal {
	switch {
	case resistance == 0 && sensitivity > 0:
		return domain.DrugSensitive
	case sensitivity == 0 && resistance > 0:
		return domain.DrugResistant
	case sensitivity >= resistance*3:
		return domain.DrugSensitive
	case resistance >= sensitivity*3:
		return domain.DrugResistant
	default:
		return domain.DrugMixed
	}
}

// dominantSignal classifies the overall sensitivity/resistance balance
// under the 80% threshold rule.
func dominantSignal(sensitivity, resistance int) domain.DominantSignal {
	total := sensitivity + resistance
	if total == 0 {
		return domain.DominantMixed
	}
	switch {
	case resistance == 0:
		return domain.DominantSensitivityOnly
	case sensitivity == 0:
		return domain.DominantResistanceOnly
	case float64(sensitivity)/float64(total) >= 0.8:
		return domain.DominantSensitivityMajority
	case float64(resistance)/float64(total) >= 0.8:
		return domain.DominantResistanceMajority
	default:
		return domain.DominantMixed
	}
}

func cgiStatusLevel(status string) domain.EvidenceLevel {
	switch status {
	case "fda":
		return domain.LevelA
	case "nccn":
		return domain.LevelB
	case "clinical":
		return domain.LevelC
	default:
		return domain.LevelD
	}
}
