// Package validate runs the full assessment pipeline over a labeled batch
// of cases and scores the predictions against their expected tiers.
package validate

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tierdx/tierdx/internal/assess"
	"github.com/tierdx/tierdx/internal/domain"
)

// defaultMaxConcurrent bounds how many cases run at once, matching the
// teacher's batch-tool default concurrency.
const defaultMaxConcurrent = 3

// Validator runs domain.ValidationCase batches through a Pipeline and
// reports aggregate accuracy metrics.
type Validator struct {
	pipeline      *assess.Pipeline
	maxConcurrent int
	log           *logrus.Entry
}

// New builds a Validator over pipeline with the given concurrency cap; a
// cap of 0 uses defaultMaxConcurrent.
func New(pipeline *assess.Pipeline, maxConcurrent int, log *logrus.Logger) *Validator {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	return &Validator{pipeline: pipeline, maxConcurrent: maxConcurrent, log: log.WithField("component", "validator")}
}

type caseOutcome struct {
	caseIdx       int
	predictedTier domain.Tier
	err           error
}

// Run executes every case, bounded by the configured concurrency cap, and
// returns the consolidated ValidationReport. An individual case's pipeline
// error is recorded as a failure; it never aborts the batch.
func (v *Validator) Run(ctx context.Context, cases []domain.ValidationCase) (*domain.ValidationReport, error) {
	outcomes := make([]caseOutcome, len(cases))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(v.maxConcurrent)
	var mu sync.Mutex

	for i, c := range cases {
		i, c := i, c
		group.Go(func() error {
			assessment, err := v.pipeline.Run(gctx, domain.VariantInput{Gene: c.Gene, Variant: c.Variant, TumorType: c.TumorType})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				outcomes[i] = caseOutcome{caseIdx: i, err: err}
				return nil
			}
			outcomes[i] = caseOutcome{caseIdx: i, predictedTier: assessment.Tier}
			return nil
		})
	}
	_ = group.Wait()

	return buildReport(cases, outcomes), nil
}

func buildReport(cases []domain.ValidationCase, outcomes []caseOutcome) *domain.ValidationReport {
	report := &domain.ValidationReport{
		PerTier:         map[domain.Tier]domain.TierMetrics{},
		ConfusionMatrix: map[domain.Tier]map[domain.Tier]int{},
		TotalCases:      len(cases),
	}

	tiers := []domain.Tier{domain.TierI, domain.TierII, domain.TierIII, domain.TierIV}
	counts := map[domain.Tier]*domain.TierMetrics{}
	for _, t := range tiers {
		counts[t] = &domain.TierMetrics{}
		report.ConfusionMatrix[t] = map[domain.Tier]int{}
	}

	correct := 0
	var totalDistance int
	for _, outcome := range outcomes {
		c := cases[outcome.caseIdx]
		if outcome.err != nil {
			report.Failures = append(report.Failures, domain.ValidationFailure{Case: c, Error: outcome.err.Error()})
			continue
		}

		predicted := outcome.predictedTier
		report.ConfusionMatrix[c.ExpectedTier][predicted]++
		totalDistance += abs(c.ExpectedTier.Ordinal() - predicted.Ordinal())

		if predicted == c.ExpectedTier {
			correct++
			counts[c.ExpectedTier].TruePositives++
		} else {
			counts[predicted].FalsePositives++
			counts[c.ExpectedTier].FalseNegatives++
			report.Failures = append(report.Failures, domain.ValidationFailure{Case: c, PredictedTier: predicted})
		}
	}

	for _, t := range tiers {
		m := counts[t]
		if tp, fp := m.TruePositives, m.FalsePositives; tp+fp > 0 {
			m.Precision = float64(tp) / float64(tp+fp)
		}
		if tp, fn := m.TruePositives, m.FalseNegatives; tp+fn > 0 {
			m.Recall = float64(tp) / float64(tp+fn)
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		report.PerTier[t] = *m
	}

	if scored := len(cases) - len(failuresWithoutPrediction(report.Failures)); scored > 0 {
		report.OverallAccuracy = float64(correct) / float64(scored)
		report.AverageTierDistance = float64(totalDistance) / float64(scored)
	}

	return report
}

// failuresWithoutPrediction returns the subset of failures that never
// produced a predicted tier at all (pipeline errors), which are excluded
// from the accuracy/distance denominators.
func failuresWithoutPrediction(failures []domain.ValidationFailure) []domain.ValidationFailure {
	var errored []domain.ValidationFailure
	for _, f := range failures {
		if f.Error != "" {
			errored = append(errored, f)
		}
	}
	return errored
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
