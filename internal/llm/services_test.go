package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tierdx/tierdx/internal/domain"
)

type stubChat struct {
	response string
	err      error
}

func (s stubChat) Chat(_ context.Context, _ string, _ []domain.ChatMessage, _ int, _ float64, _ bool) (string, error) {
	return s.response, s.err
}

func TestScorePaperParsesJSONResponse(t *testing.T) {
	svc := NewServices(stubChat{response: `{"score": 0.85, "signal": "sensitivity", "drugs": ["vemurafenib"]}`}, "gpt-4", 500, 0.0)
	paper, err := svc.ScorePaper(context.Background(), "BRAF", "V600E", "melanoma", domain.LiteraturePaper{Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, 0.85, paper.Score)
	assert.Equal(t, domain.SignalSensitivity, paper.Signal)
	assert.Equal(t, []string{"vemurafenib"}, paper.Drugs)
}

func TestScorePaperHandlesCodeFencedResponse(t *testing.T) {
	svc := NewServices(stubChat{response: "```json\n{\"score\": 0.4, \"signal\": \"irrelevant\"}\n```"}, "gpt-4", 500, 0.0)
	paper, err := svc.ScorePaper(context.Background(), "BRAF", "V600E", "melanoma", domain.LiteraturePaper{})
	require.NoError(t, err)
	assert.Equal(t, domain.SignalIrrelevant, paper.Signal)
}

func TestExtractKnowledgeReturnsNilForNoPapers(t *testing.T) {
	svc := NewServices(stubChat{}, "gpt-4", 500, 0.0)
	knowledge, err := svc.ExtractKnowledge(context.Background(), "BRAF", "V600E", nil)
	require.NoError(t, err)
	assert.Nil(t, knowledge)
}

func TestWriteNarrativeRejectsMismatchedTierToken(t *testing.T) {
	svc := NewServices(stubChat{response: `{"narrative": "This is actually Tier III evidence overall.", "drugs": []}`}, "gpt-4", 500, 0.3)
	result := domain.TierResult{Tier: domain.TierI, Sublevel: domain.SublevelA, HumanReason: "FDA-approved for this variant in this tumor type."}
	narrative, _, err := svc.WriteNarrative(context.Background(), result, domain.Evidence{}, "")
	require.NoError(t, err)
	assert.Contains(t, narrative, "Tier I")
	assert.NotContains(t, narrative, "Tier III")
}

func TestWriteNarrativeKeepsConsistentNarrative(t *testing.T) {
	svc := NewServices(stubChat{response: `{"narrative": "Tier I evidence supports use of vemurafenib.", "drugs": ["vemurafenib"]}`}, "gpt-4", 500, 0.3)
	result := domain.TierResult{Tier: domain.TierI, HumanReason: "strong evidence"}
	narrative, drugs, err := svc.WriteNarrative(context.Background(), result, domain.Evidence{}, "")
	require.NoError(t, err)
	assert.Equal(t, "Tier I evidence supports use of vemurafenib.", narrative)
	assert.Equal(t, []string{"vemurafenib"}, drugs)
}

func TestWriteNarrativeFallsBackOnChatError(t *testing.T) {
	svc := NewServices(stubChat{err: assert.AnError}, "gpt-4", 500, 0.3)
	result := domain.TierResult{Tier: domain.TierIII, HumanReason: "no actionable evidence found"}
	narrative, _, err := svc.WriteNarrative(context.Background(), result, domain.Evidence{}, "")
	require.NoError(t, err)
	assert.Contains(t, narrative, "Tier III")
}

func TestWriteNarrativeAcceptsConsistentTierII(t *testing.T) {
	svc := NewServices(stubChat{response: `{"narrative": "Tier II evidence from clinical trial data supports this use.", "drugs": ["cetuximab"]}`}, "gpt-4", 500, 0.3)
	result := domain.TierResult{Tier: domain.TierII, HumanReason: "clinical trial evidence"}
	narrative, drugs, err := svc.WriteNarrative(context.Background(), result, domain.Evidence{}, "")
	require.NoError(t, err)
	assert.Equal(t, "Tier II evidence from clinical trial data supports this use.", narrative)
	assert.Equal(t, []string{"cetuximab"}, drugs)
}

func TestWriteNarrativeAcceptsConsistentTierIII(t *testing.T) {
	svc := NewServices(stubChat{response: `{"narrative": "Tier III evidence is preclinical only.", "drugs": []}`}, "gpt-4", 500, 0.3)
	result := domain.TierResult{Tier: domain.TierIII, HumanReason: "preclinical evidence only"}
	narrative, _, err := svc.WriteNarrative(context.Background(), result, domain.Evidence{}, "")
	require.NoError(t, err)
	assert.Equal(t, "Tier III evidence is preclinical only.", narrative)
}

func TestMentionsOtherTierDoesNotFalsePositiveOnPrefix(t *testing.T) {
	assert.False(t, mentionsOtherTier("Tier II evidence supports this.", domain.TierII))
	assert.False(t, mentionsOtherTier("Tier III evidence supports this.", domain.TierIII))
	assert.True(t, mentionsOtherTier("Tier I evidence supports this.", domain.TierII))
	assert.True(t, mentionsOtherTier("Tier IV evidence supports this.", domain.TierIII))
}
