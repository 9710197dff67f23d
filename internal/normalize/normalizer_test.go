package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tierdx/tierdx/internal/domain"
)

func TestNormalizeShortMissense(t *testing.T) {
	n := New()
	out, err := n.Normalize(domain.VariantInput{Gene: "braf", Variant: "V600E"})
	require.NoError(t, err)
	assert.Equal(t, "V600E", out.VariantNormalized)
	assert.Equal(t, domain.VariantKindMissense, out.Kind)
	assert.Equal(t, 600, out.Position)
	assert.Equal(t, "p.V600E", out.HGVSProtein)
}

func TestNormalizeRoundTripVariants(t *testing.T) {
	n := New()
	cases := []string{"Val600Glu", "VAL600GLU", "p.V600E", "v600e"}
	for _, c := range cases {
		out, err := n.Normalize(domain.VariantInput{Gene: "BRAF", Variant: c})
		require.NoError(t, err, c)
		assert.Equal(t, "V600E", out.VariantNormalized, c)
		assert.Equal(t, domain.VariantKindMissense, out.Kind, c)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := New()
	first, err := n.Normalize(domain.VariantInput{Gene: "BRAF", Variant: "Val600Glu"})
	require.NoError(t, err)
	second, err := n.Normalize(domain.VariantInput{Gene: "BRAF", Variant: first.VariantNormalized})
	require.NoError(t, err)
	assert.Equal(t, first.VariantNormalized, second.VariantNormalized)
	assert.Equal(t, first.Kind, second.Kind)
}

func TestNormalizeFrameshift(t *testing.T) {
	n := New()
	out, err := n.Normalize(domain.VariantInput{Gene: "TP53", Variant: "R273fs*5"})
	require.NoError(t, err)
	assert.Equal(t, domain.VariantKindFrameshift, out.Kind)
	assert.Equal(t, "R273fs*5", out.VariantNormalized)
}

func TestNormalizeNonsense(t *testing.T) {
	n := New()
	out, err := n.Normalize(domain.VariantInput{Gene: "TP53", Variant: "R213*"})
	require.NoError(t, err)
	assert.Equal(t, domain.VariantKindNonsense, out.Kind)
}

func TestNormalizeIndel(t *testing.T) {
	n := New()
	out, err := n.Normalize(domain.VariantInput{Gene: "EGFR", Variant: "E746_A750del"})
	require.NoError(t, err)
	assert.Equal(t, domain.VariantKindDeletion, out.Kind)
}

func TestNormalizeRejectsUnsupportedClasses(t *testing.T) {
	n := New()
	rejected := []string{
		"BCR-ABL1 fusion", "amplification", "exon 14 skipping",
		"splice site variant", "truncating mutation", "exon 19 deletion",
	}
	for _, v := range rejected {
		_, err := n.Normalize(domain.VariantInput{Gene: "EGFR", Variant: v})
		require.Error(t, err, v)
		rejErr, ok := err.(*domain.RejectedVariantError)
		require.True(t, ok, v)
		assert.Equal(t, domain.ReasonUnsupportedClass, rejErr.Reason, v)
	}
}

func TestNormalizeRejectsUnrecognizedNotation(t *testing.T) {
	n := New()
	_, err := n.Normalize(domain.VariantInput{Gene: "EGFR", Variant: "???"})
	require.Error(t, err)
	rejErr, ok := err.(*domain.RejectedVariantError)
	require.True(t, ok)
	assert.Equal(t, domain.ReasonUnrecognizedNotation, rejErr.Reason)
}

func TestNormalizeRejectsEmptyGene(t *testing.T) {
	n := New()
	_, err := n.Normalize(domain.VariantInput{Gene: "  ", Variant: "V600E"})
	require.Error(t, err)
}
