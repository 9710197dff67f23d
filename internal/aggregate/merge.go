package aggregate

import "github.com/tierdx/tierdx/internal/domain"

// lowQualityMinorityThreshold is the maximum number of C/D-level entries
// on the weaker side that gets dropped in favor of a high-quality opposite
// signal; more than this many entries means the minority signal is
// multiply sourced and is kept.
const lowQualityMinorityThreshold = 2

// applyLowQualityMinorityFilter drops resistance entries that are all
// C/D-level and number at most lowQualityMinorityThreshold when A/B-level
// sensitivity evidence exists, and symmetrically drops minority
// sensitivity entries when A/B-level resistance evidence exists. Running
// it twice on the same counts is a no-op: once a side is dropped its
// count is zero, which never again satisfies "minorityCount > 0".
func applyLowQualityMinorityFilter(sensByLevel, resByLevel map[domain.EvidenceLevel]int, drugSens, drugRes map[string]int) {
	if minorityIsLowQuality(sensByLevel[domain.LevelA]+sensByLevel[domain.LevelB], resByLevel) {
		resByLevel[domain.LevelC] = 0
		resByLevel[domain.LevelD] = 0
		for d := range drugRes {
			delete(drugRes, d)
		}
	}
	if minorityIsLowQuality(resByLevel[domain.LevelA]+resByLevel[domain.LevelB], sensByLevel) {
		sensByLevel[domain.LevelC] = 0
		sensByLevel[domain.LevelD] = 0
		for d := range drugSens {
			delete(drugSens, d)
		}
	}
}

// minorityIsLowQuality reports whether the opposite response's A/B count
// (oppositeHighQuality) is nonzero while levelCounts has no A/B entries of
// its own and at most lowQualityMinorityThreshold C/D entries.
func minorityIsLowQuality(oppositeHighQuality int, levelCounts map[domain.EvidenceLevel]int) bool {
	if oppositeHighQuality == 0 {
		return false
	}
	if levelCounts[domain.LevelA] > 0 || levelCounts[domain.LevelB] > 0 {
		return false
	}
	minorityCount := levelCounts[domain.LevelC] + levelCounts[domain.LevelD]
	return minorityCount > 0 && minorityCount <= lowQualityMinorityThreshold
}
