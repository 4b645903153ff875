package battlepass

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sptlb/internal/leaderboard"
)

func TestPlayerLevel(t *testing.T) {
	t.Parallel()
	p := leaderboard.Player{
		PMCRaids:        100, // 6000
		PMCKills:        40,  // 1000
		ScavRaids:       10,  // 300
		ScavKills:       4,   // 60
		Survived:        10,  // 10*120*1.5 = 1800
		SurvivalRate:    50,
		AverageLifeTime: 619,  // 10*5 = 50
		Damage:          4499, // 2
	}
	got := PlayerLevel(p)
	assert.Equal(t, 9212, got.TotalExp)
	assert.Equal(t, 4, got.Level)
	assert.Equal(t, 412, got.Current)
	assert.Equal(t, 1788, got.Next)
	assert.Equal(t, 1788, got.Remaining)
	assert.False(t, got.Max)
	assert.Equal(t, 5, got.RankTier)
	assert.Equal(t, "Level 4 • 412 / 1,788 EXP", got.Summary())
}

func TestPlayerLevelBounds(t *testing.T) {
	t.Parallel()
	low := PlayerLevel(leaderboard.Player{PMCRaids: 1})
	assert.Equal(t, MinLevel, low.Level)
	assert.Equal(t, 0, low.Current)
	assert.Equal(t, ExpPerLevel, low.Next)

	high := PlayerLevel(leaderboard.Player{PMCRaids: 5000})
	assert.Equal(t, MaxLevel, high.Level)
	assert.True(t, high.Max)
	assert.InDelta(t, 100, high.Percent, 1e-9)
	assert.Equal(t, 0, high.Remaining)
	assert.Equal(t, "Level 30 • MAX", high.Summary())
}

func TestMastery(t *testing.T) {
	t.Parallel()
	m := Mastery(&WeaponStats{TotalShots: 1235, Kills: 20, Headshots: 5})
	// round(123.5)=124 + 600 + 350 = 1074
	assert.Equal(t, 1074, m.TotalExp)
	assert.Equal(t, 1, m.Level)
	assert.Equal(t, 274, m.Current)
	assert.Equal(t, 526, m.Remaining)

	none := Mastery(nil)
	assert.Equal(t, 0, none.Level)
	assert.Equal(t, 1000, none.Next)
}

func TestRankTier(t *testing.T) {
	t.Parallel()
	for level, want := range map[int]int{0: 5, 1: 5, 4: 5, 5: 5, 9: 5, 10: 10, 29: 25, 30: 30, 99: 80} {
		assert.Equal(t, want, RankTier(level), "level %d", level)
	}
}
