package tier

import "github.com/tierdx/tierdx/internal/domain"

// confidenceIntervals is the fixed mapping from (tier, sublevel) to the
// confidence band, before the per-missing-source penalty.
var confidenceIntervals = map[domain.Tier]map[domain.Sublevel]domain.ConfidenceInterval{
	domain.TierI: {
		domain.SublevelA: {Low: 0.90, High: 1.00},
		domain.SublevelB: {Low: 0.80, High: 0.90},
	},
	domain.TierII: {
		domain.SublevelA: {Low: 0.75, High: 0.85},
		domain.SublevelB: {Low: 0.65, High: 0.80},
		domain.SublevelC: {Low: 0.60, High: 0.75},
		domain.SublevelD: {Low: 0.55, High: 0.70},
	},
	domain.TierIII: {
		domain.SublevelA: {Low: 0.45, High: 0.55},
		domain.SublevelB: {Low: 0.40, High: 0.50},
		domain.SublevelC: {Low: 0.35, High: 0.45},
		domain.SublevelD: {Low: 0.30, High: 0.40},
	},
	domain.TierIV: {
		domain.SublevelNone: {Low: 0.90, High: 1.00},
	},
}

// missingSourcePenalty is subtracted from the interval's high end per
// absent or degraded source, per the confidence-nudging rule; it never
// pushes confidence below the interval's floor.
const missingSourcePenalty = 0.05

// computeConfidence returns the interval's high end nudged down by
// missingSourcePenalty per absent/degraded source, floored at the
// interval's low end.
func computeConfidence(result domain.Tier, sublevel domain.Sublevel, missingSources int) float64 {
	band, ok := confidenceIntervals[result][sublevel]
	if !ok {
		return 0.5
	}
	confidence := band.High - float64(missingSources)*missingSourcePenalty
	if confidence < band.Low {
		confidence = band.Low
	}
	return confidence
}
