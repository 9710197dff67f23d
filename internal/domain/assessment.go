package domain

import "time"

// Assessment is the complete, per-request output. It is constructed fresh
// for each request and is never persisted by the core pipeline.
type Assessment struct {
	RequestID            string    `json:"request_id"`
	Variant              NormalizedVariant `json:"variant"`
	Tier                 Tier      `json:"tier"`
	Confidence           float64   `json:"confidence"`
	SublevelInternal     Sublevel  `json:"sublevel_internal"`
	ReasonCode           ReasonCode `json:"reason_code"`
	RecommendedTherapies []string  `json:"recommended_therapies"`
	EvidenceSources      []string  `json:"evidence_sources"`
	Narrative            string    `json:"narrative"`
	Annotations          map[string]string `json:"annotations"`
	References           []string  `json:"references"`
	CreatedAt            time.Time `json:"-"`
}
