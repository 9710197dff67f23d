package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVariantKindIsValid(t *testing.T) {
	assert.True(t, VariantKindMissense.IsValid())
	assert.True(t, VariantKindFrameshift.IsValid())
	assert.False(t, VariantKind("fusion").IsValid())
	assert.False(t, VariantKind("").IsValid())
}

func TestTierOrdinal(t *testing.T) {
	assert.Equal(t, 1, TierI.Ordinal())
	assert.Equal(t, 2, TierII.Ordinal())
	assert.Equal(t, 3, TierIII.Ordinal())
	assert.Equal(t, 4, TierIV.Ordinal())
	assert.Equal(t, 0, Tier("bogus").Ordinal())
}

func TestEvidenceLevelRank(t *testing.T) {
	assert.Less(t, LevelA.Rank(), LevelB.Rank())
	assert.Less(t, LevelB.Rank(), LevelC.Rank())
	assert.Less(t, LevelC.Rank(), LevelD.Rank())
}

func TestEvidenceSensitivityResistanceCounts(t *testing.T) {
	e := Evidence{
		SensitivityCountByLevel: map[EvidenceLevel]int{LevelA: 2, LevelB: 1},
		ResistanceCountByLevel:  map[EvidenceLevel]int{LevelC: 1},
	}
	assert.Equal(t, 3, e.SensitivityCount())
	assert.Equal(t, 1, e.ResistanceCount())
}

func TestVariantInputNormalize(t *testing.T) {
	in := VariantInput{Gene: " braf ", Variant: " V600E ", TumorType: " Melanoma "}
	in.Normalize()
	assert.Equal(t, "BRAF", in.Gene)
	assert.Equal(t, "V600E", in.Variant)
	assert.Equal(t, "Melanoma", in.TumorType)
	assert.True(t, in.Valid())
}

func TestNormalizedVariantCacheKey(t *testing.T) {
	n := NormalizedVariant{Gene: "BRAF", VariantNormalized: "V600E"}
	assert.Equal(t, "BRAF:V600E", n.CacheKey())
}
