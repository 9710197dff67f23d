package domain

import "context"

// Normalizer validates and canonicalizes a raw variant input.
type Normalizer interface {
	Normalize(input VariantInput) (*NormalizedVariant, error)
}

// SourceRequest is what every source client receives; TumorType may be
// empty when the caller did not supply one.
type SourceRequest struct {
	Variant   NormalizedVariant
	TumorType string
}

// SourceClient is the uniform contract every one of the eight evidence
// sources implements.
type SourceClient interface {
	Name() SourceName
	Fetch(ctx context.Context, req SourceRequest) (any, FetchState, error)
}

// Aggregator fans out to all source clients and merges the result into a
// single Evidence dossier.
type Aggregator interface {
	Gather(ctx context.Context, variant NormalizedVariant, tumorType string) (*Evidence, error)
}

// TierEngine is the pure decision function over an Evidence dossier.
type TierEngine interface {
	Classify(evidence Evidence, tumorType string) (TierResult, error)
}

// ChatClient is the single abstraction every LLM-backed service goes
// through: chat(model, messages, max_tokens, temperature, json_mode) -> text.
type ChatClient interface {
	Chat(ctx context.Context, model string, messages []ChatMessage, maxTokens int, temperature float64, jsonMode bool) (string, error)
}

// ChatMessage is one turn in a chat-completion request.
type ChatMessage struct {
	Role    string
	Content string
}

// Narrator produces prose from a deterministic tier result; it never
// changes the tier.
type Narrator interface {
	WriteNarrative(ctx context.Context, result TierResult, evidence Evidence, geneNotes string) (string, []string, error)
}

// Validator runs the full pipeline over a batch of labeled cases.
type Validator interface {
	Run(ctx context.Context, cases []ValidationCase) (*ValidationReport, error)
}
