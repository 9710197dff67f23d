package sources

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tierdx/tierdx/internal/domain"
)

func TestCanonicalTumorAliases(t *testing.T) {
	assert.Equal(t, "nsclc", CanonicalTumor("Non-Small Cell Lung Cancer"))
	assert.Equal(t, "nsclc", CanonicalTumor("NSCLC"))
	assert.Equal(t, "nsclc", CanonicalTumor("Lung Adenocarcinoma"))
}

func TestTumorTokenMatch(t *testing.T) {
	assert.True(t, tumorTokenMatch([]string{"NSCLC"}, "Non-Small Cell Lung Cancer"))
	assert.False(t, tumorTokenMatch([]string{"Melanoma"}, "NSCLC"))
}

func TestMatchesPatternWildcards(t *testing.T) {
	assert.True(t, matchesPattern(".", "V600E", 600))
	assert.True(t, matchesPattern(".12.", "G12D", 12))
	assert.False(t, matchesPattern(".13.", "G12D", 12))
	assert.True(t, matchesPattern("V600E", "v600e", 600))
}

func TestMatchesPatternPositionWildcardComparesNumerically(t *testing.T) {
	// ".12." must not match "G125D" just because "12" is a substring of "125".
	assert.False(t, matchesPattern(".12.", "G125D", 125))
	assert.True(t, matchesPattern(".125.", "G125D", 125))
}

func TestIsCompoundMutation(t *testing.T) {
	assert.True(t, isCompoundMutation("acquired secondary mutation found"))
	assert.True(t, isCompoundMutation("patient harboring T790M and C797S"))
	assert.False(t, isCompoundMutation("primary driver mutation"))
}

func TestOncoKBIsCancerGene(t *testing.T) {
	c := NewOncoKBClient()
	assert.True(t, c.IsCancerGene("BRAF"))
	assert.False(t, c.IsCancerGene("NOTAGENE"))

	out, state, err := c.Fetch(context.Background(), domain.SourceRequest{
		Variant: domain.NormalizedVariant{Gene: "KRAS"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.FetchPresent, state)
	assert.Equal(t, true, out)
}

func TestAMPLevelParsing(t *testing.T) {
	assert.Equal(t, "I", ampLevelToTier("TIER_I_LEVEL_A"))
	assert.Equal(t, "A", ampLevelToLetter("TIER_I_LEVEL_A"))
	assert.Equal(t, "II", ampLevelToTier("TIER_II_LEVEL_B"))
}

func TestConcurrencyLimiterAcquireRelease(t *testing.T) {
	l := newConcurrencyLimiter(1)
	release, err := l.acquire(context.Background())
	require.NoError(t, err)
	release()

	release2, err := l.acquire(context.Background())
	require.NoError(t, err)
	release2()
}
