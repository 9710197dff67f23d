package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tierdx/tierdx/internal/domain"
)

func TestApplyLowQualityMinorityFilterDropsMinorityResistance(t *testing.T) {
	sensByLevel := map[domain.EvidenceLevel]int{domain.LevelB: 3}
	resByLevel := map[domain.EvidenceLevel]int{domain.LevelC: 2}
	drugSens := map[string]int{"drugA": 3}
	drugRes := map[string]int{"drugA": 2}

	applyLowQualityMinorityFilter(sensByLevel, resByLevel, drugSens, drugRes)

	assert.Equal(t, 0, resByLevel[domain.LevelC])
	assert.Empty(t, drugRes)
	assert.Equal(t, 3, sensByLevel[domain.LevelB])
}

func TestApplyLowQualityMinorityFilterKeepsResistanceAboveThreshold(t *testing.T) {
	sensByLevel := map[domain.EvidenceLevel]int{domain.LevelA: 1}
	resByLevel := map[domain.EvidenceLevel]int{domain.LevelD: 3}
	drugSens := map[string]int{"drugA": 1}
	drugRes := map[string]int{"drugA": 3}

	applyLowQualityMinorityFilter(sensByLevel, resByLevel, drugSens, drugRes)

	assert.Equal(t, 3, resByLevel[domain.LevelD])
	assert.Equal(t, 3, drugRes["drugA"])
}

func TestApplyLowQualityMinorityFilterKeepsResistanceWhenAlsoHighQuality(t *testing.T) {
	sensByLevel := map[domain.EvidenceLevel]int{domain.LevelA: 2}
	resByLevel := map[domain.EvidenceLevel]int{domain.LevelB: 1, domain.LevelD: 1}
	drugSens := map[string]int{"drugA": 2}
	drugRes := map[string]int{"drugA": 2}

	applyLowQualityMinorityFilter(sensByLevel, resByLevel, drugSens, drugRes)

	assert.Equal(t, 1, resByLevel[domain.LevelB])
	assert.Equal(t, 1, resByLevel[domain.LevelD])
	assert.Equal(t, 2, drugRes["drugA"])
}

func TestApplyLowQualityMinorityFilterSymmetricOnSensitivity(t *testing.T) {
	sensByLevel := map[domain.EvidenceLevel]int{domain.LevelD: 1}
	resByLevel := map[domain.EvidenceLevel]int{domain.LevelA: 2}
	drugSens := map[string]int{"drugA": 1}
	drugRes := map[string]int{"drugA": 2}

	applyLowQualityMinorityFilter(sensByLevel, resByLevel, drugSens, drugRes)

	assert.Equal(t, 0, sensByLevel[domain.LevelD])
	assert.Empty(t, drugSens)
	assert.Equal(t, 2, resByLevel[domain.LevelA])
}

func TestApplyLowQualityMinorityFilterIsIdempotent(t *testing.T) {
	sensByLevel := map[domain.EvidenceLevel]int{domain.LevelB: 3}
	resByLevel := map[domain.EvidenceLevel]int{domain.LevelC: 2}
	drugSens := map[string]int{"drugA": 3}
	drugRes := map[string]int{"drugA": 2}

	applyLowQualityMinorityFilter(sensByLevel, resByLevel, drugSens, drugRes)
	firstPass := cloneCounts(sensByLevel, resByLevel, drugSens, drugRes)

	applyLowQualityMinorityFilter(sensByLevel, resByLevel, drugSens, drugRes)

	assert.Equal(t, firstPass.sens, sensByLevel)
	assert.Equal(t, firstPass.res, resByLevel)
	assert.Equal(t, firstPass.drugSens, drugSens)
	assert.Equal(t, firstPass.drugRes, drugRes)
}

type countSnapshot struct {
	sens, res           map[domain.EvidenceLevel]int
	drugSens, drugRes   map[string]int
}

func cloneCounts(sens, res map[domain.EvidenceLevel]int, drugSens, drugRes map[string]int) countSnapshot {
	snap := countSnapshot{
		sens:     make(map[domain.EvidenceLevel]int, len(sens)),
		res:      make(map[domain.EvidenceLevel]int, len(res)),
		drugSens: make(map[string]int, len(drugSens)),
		drugRes:  make(map[string]int, len(drugRes)),
	}
	for k, v := range sens {
		snap.sens[k] = v
	}
	for k, v := range res {
		snap.res[k] = v
	}
	for k, v := range drugSens {
		snap.drugSens[k] = v
	}
	for k, v := range drugRes {
		snap.drugRes[k] = v
	}
	return snap
}
