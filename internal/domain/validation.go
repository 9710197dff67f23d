package domain

// ValidationCase is one gold-standard labeled example for the validator.
type ValidationCase struct {
	Gene         string `json:"gene"`
	Variant      string `json:"variant"`
	TumorType    string `json:"tumor_type,omitempty"`
	ExpectedTier Tier   `json:"expected_tier"`
	Notes        string `json:"notes,omitempty"`
}

// TierMetrics holds the confusion-matrix-derived metrics for one tier.
type TierMetrics struct {
	TruePositives  int     `json:"tp"`
	FalsePositives int     `json:"fp"`
	FalseNegatives int     `json:"fn"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1             float64 `json:"f1"`
}

// ValidationFailure records one case whose pipeline run either errored or
// disagreed with the expected tier.
type ValidationFailure struct {
	Case          ValidationCase `json:"case"`
	PredictedTier Tier           `json:"predicted_tier,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// ValidationReport summarizes a batch run over a set of ValidationCases.
type ValidationReport struct {
	OverallAccuracy    float64                `json:"overall_accuracy"`
	PerTier            map[Tier]TierMetrics   `json:"per_tier"`
	ConfusionMatrix    map[Tier]map[Tier]int  `json:"confusion_matrix"`
	AverageTierDistance float64               `json:"average_tier_distance"`
	Failures           []ValidationFailure    `json:"failures"`
	TotalCases         int                    `json:"total_cases"`
}
