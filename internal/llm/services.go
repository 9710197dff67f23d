package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tierdx/tierdx/internal/domain"
)

// Services bundles the three pure LLM-backed services over a single
// ChatClient. Each method accepts a fully serialized context and returns a
// typed structure; callers never pass the client raw request bodies.
type Services struct {
	client      domain.ChatClient
	model       string
	maxTokens   int
	temperature float64
}

// NewServices builds the service bundle over client with the given model
// defaults.
func NewServices(client domain.ChatClient, model string, maxTokens int, temperature float64) *Services {
	return &Services{client: client, model: model, maxTokens: maxTokens, temperature: temperature}
}

// ScorePaper rates one paper's relevance to the queried variant and tags
// its sensitivity/resistance/prognostic/mixed/irrelevant signal. On any
// LLM failure it returns the paper unscored with SignalIrrelevant, which
// the aggregator's relevance floor then drops.
func (s *Services) ScorePaper(ctx context.Context, gene, variant, tumorType string, paper domain.LiteraturePaper) (domain.LiteraturePaper, error) {
	prompt := fmt.Sprintf(`Score this paper's relevance to the variant %s %s in %s tumors on a 0.0-1.0 scale, and classify its signal.

Title: %s
Abstract: %s
TLDR: %s

Respond as JSON: {"score": 0.0, "signal": "sensitivity|resistance|prognostic|mixed|irrelevant", "drugs": ["..."]}`,
		gene, variant, orUnspecified(tumorType), paper.Title, paper.Abstract, paper.TLDR)

	messages := []domain.ChatMessage{
		{Role: "system", Content: "You are a precise oncology literature triage assistant. Respond with JSON only."},
		{Role: "user", Content: prompt},
	}

	text, err := s.client.Chat(ctx, s.model, messages, s.maxTokens, 0.0, true)
	if err != nil {
		paper.Signal = domain.SignalIrrelevant
		return paper, fmt.Errorf("score paper: %w", err)
	}

	var parsed struct {
		Score  float64  `json:"score"`
		Signal string   `json:"signal"`
		Drugs  []string `json:"drugs"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &parsed); err != nil {
		paper.Signal = domain.SignalIrrelevant
		return paper, fmt.Errorf("parse paper score: %w", err)
	}

	paper.Score = parsed.Score
	paper.Signal = domain.LiteratureSignal(parsed.Signal)
	paper.Drugs = parsed.Drugs
	return paper, nil
}

// ExtractKnowledge distills the kept papers into a single structured
// knowledge block. A parse or call failure returns a nil block together
// with the error; the aggregator logs it and continues without knowledge.
func (s *Services) ExtractKnowledge(ctx context.Context, gene, variant string, papers []domain.LiteraturePaper) (*domain.LiteratureKnowledge, error) {
	if len(papers) == 0 {
		return nil, nil
	}

	var summaries strings.Builder
	for _, p := range papers {
		fmt.Fprintf(&summaries, "- %s (%d, %d citations): %s\n", p.Title, p.Year, p.Citations, p.TLDR)
	}

	prompt := fmt.Sprintf(`Extract consolidated actionability knowledge for %s %s from these papers:

%s

Respond as JSON: {"mutation_type": "primary|secondary", "resistant_to": ["..."], "sensitive_to": ["..."], "evidence_level_tag": "FDA-approved|Phase 3|Phase 2|Phase 1|Case Report|Preclinical", "rationale": "...", "confidence": 0.0}`,
		gene, variant, summaries.String())

	messages := []domain.ChatMessage{
		{Role: "system", Content: "You are an oncology knowledge extraction assistant. Respond with JSON only."},
		{Role: "user", Content: prompt},
	}

	text, err := s.client.Chat(ctx, s.model, messages, s.maxTokens, 0.0, true)
	if err != nil {
		return nil, fmt.Errorf("extract knowledge: %w", err)
	}

	var parsed struct {
		MutationType     string   `json:"mutation_type"`
		ResistantTo      []string `json:"resistant_to"`
		SensitiveTo      []string `json:"sensitive_to"`
		EvidenceLevelTag string   `json:"evidence_level_tag"`
		Rationale        string   `json:"rationale"`
		Confidence       float64  `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &parsed); err != nil {
		return nil, fmt.Errorf("parse knowledge extraction: %w", err)
	}

	return &domain.LiteratureKnowledge{
		MutationType:     domain.MutationRole(parsed.MutationType),
		ResistantTo:      parsed.ResistantTo,
		SensitiveTo:      parsed.SensitiveTo,
		EvidenceLevelTag: parsed.EvidenceLevelTag,
		Rationale:        parsed.Rationale,
		Confidence:       parsed.Confidence,
	}, nil
}

// WriteNarrative produces 3-5 sentences of prose plus a drug list from a
// deterministic TierResult. It never changes the tier: if the model's
// output mentions a different tier token than result.Tier, the narrative
// is rejected and a templated fallback is used instead.
func (s *Services) WriteNarrative(ctx context.Context, result domain.TierResult, evidence domain.Evidence, geneNotes string) (string, []string, error) {
	drugs := topDrugNames(evidence.Drugs)

	prompt := fmt.Sprintf(`Write a 3-5 sentence clinical narrative for this variant classification. Do not state a tier other than Tier %s.

Gene: %s
Variant: %s
Tier: %s%s
Reason: %s
Gene context notes: %s
Candidate drugs: %s

Respond as JSON: {"narrative": "...", "drugs": ["..."]}`,
		result.Tier, evidence.Variant.Gene, evidence.Variant.VariantNormalized,
		result.Tier, sublevelSuffix(result.Sublevel), result.HumanReason, orUnspecified(geneNotes), strings.Join(drugs, ", "))

	messages := []domain.ChatMessage{
		{Role: "system", Content: "You are a molecular tumor board assistant. Respond with JSON only."},
		{Role: "user", Content: prompt},
	}

	text, err := s.client.Chat(ctx, s.model, messages, s.maxTokens, s.temperature, true)
	if err != nil {
		return templatedNarrative(result, drugs), drugs, nil
	}

	var parsed struct {
		Narrative string   `json:"narrative"`
		Drugs     []string `json:"drugs"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &parsed); err != nil {
		return templatedNarrative(result, drugs), drugs, nil
	}

	if mentionsOtherTier(parsed.Narrative, result.Tier) {
		return templatedNarrative(result, drugs), drugs, nil
	}

	outDrugs := parsed.Drugs
	if len(outDrugs) == 0 {
		outDrugs = drugs
	}
	return parsed.Narrative, outDrugs, nil
}

var tierTokenPattern = regexp.MustCompile(`\bTier (I|II|III|IV)\b`)

// mentionsOtherTier reports whether text names a tier token different
// from expected, which is grounds to discard an LLM narrative outright.
// Tier codes are string prefixes of one another ("I" prefixes "II" and
// "III"), so matches must be on the whole token, not a substring.
func mentionsOtherTier(text string, expected domain.Tier) bool {
	for _, match := range tierTokenPattern.FindAllStringSubmatch(text, -1) {
		if domain.Tier(match[1]) != expected {
			return true
		}
	}
	return false
}

func templatedNarrative(result domain.TierResult, drugs []string) string {
	base := fmt.Sprintf("This variant is classified as Tier %s. %s", result.Tier, result.HumanReason)
	if len(drugs) > 0 {
		base += fmt.Sprintf(" Candidate therapies include %s.", strings.Join(drugs, ", "))
	}
	return base
}

func topDrugNames(drugs []domain.AggregatedDrug) []string {
	names := make([]string, 0, len(drugs))
	for _, d := range drugs {
		if d.NetSignal == domain.DrugSensitive {
			names = append(names, d.Name)
		}
	}
	return names
}

func sublevelSuffix(sub domain.Sublevel) string {
	if sub == domain.SublevelNone {
		return ""
	}
	return string(sub)
}

func orUnspecified(s string) string {
	if s == "" {
		return "unspecified"
	}
	return s
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
