// Package battlepass computes the profile battle-pass level and weapon
// mastery shown next to a player's stats.
package battlepass

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"

	"sptlb/internal/leaderboard"
)

const (
	ExpPerLevel        = 2200
	MinLevel           = 1
	MaxLevel           = 30
	MasteryExpPerLevel = 800

	// masteryUnavailable is the bar size shown when a player has no weapon stats.
	masteryUnavailable = 1000
)

// Progress is a level with the experience inside it.
type Progress struct {
	Level     int     `json:"level"`
	TotalExp  int     `json:"total_exp"`
	Current   int     `json:"current_exp"`
	Next      int     `json:"next_level_exp"`
	Remaining int     `json:"remaining_exp"`
	Percent   float64 `json:"percent"`
	Max       bool    `json:"max"`
	RankTier  int     `json:"rank_tier,omitempty"`
}

// Summary renders Progress the way the profile card does.
func (p Progress) Summary() string {
	if p.Max {
		return fmt.Sprintf("Level %d • MAX", p.Level)
	}
	return fmt.Sprintf("Level %d • %s / %s EXP", p.Level, humanize.Comma(int64(p.Current)), humanize.Comma(int64(p.Next)))
}

// PlayerLevel converts profile totals into a battle-pass level.
func PlayerLevel(p leaderboard.Player) Progress {
	exp := float64(p.PMCRaids)*60 +
		float64(p.PMCKills)*25 +
		float64(p.ScavRaids)*30 +
		float64(p.ScavKills)*15 +
		float64(p.Survived)*120*(1+float64(p.SurvivalRate)/100) +
		math.Floor(float64(p.AverageLifeTime)/60)*5 +
		math.Floor(float64(p.Damage)/1500)
	total := int(math.Floor(exp))
	if total < 0 {
		total = 0
	}

	level := clamp(total/ExpPerLevel, MinLevel, MaxLevel)
	current := max(0, total-level*ExpPerLevel)
	next := max(0, ExpPerLevel-current)

	pr := Progress{
		Level:     level,
		TotalExp:  total,
		Current:   current,
		Next:      next,
		Remaining: next,
		Max:       level >= MaxLevel,
		RankTier:  RankTier(level),
	}
	if pr.Max {
		pr.Percent = 100
		pr.Remaining = 0
	} else {
		pr.Percent = math.Min(100, float64(current)/ExpPerLevel*100)
	}
	return pr
}

// WeaponStats are the tracked totals of a player's best weapon.
type WeaponStats struct {
	TotalShots int `json:"totalShots"`
	Kills      int `json:"kills"`
	Headshots  int `json:"headshots"`
}

// Mastery computes weapon mastery. A nil weapon means the player does not
// track weapon stats.
func Mastery(w *WeaponStats) Progress {
	if w == nil {
		return Progress{Next: masteryUnavailable, Remaining: masteryUnavailable}
	}
	total := int(math.Round(float64(w.TotalShots)*0.1)) + w.Kills*30 + w.Headshots*70
	if total < 0 {
		total = 0
	}
	current := total % MasteryExpPerLevel
	return Progress{
		Level:     total / MasteryExpPerLevel,
		TotalExp:  total,
		Current:   current,
		Next:      MasteryExpPerLevel,
		Remaining: MasteryExpPerLevel - current,
		Percent:   float64(current) / MasteryExpPerLevel * 100,
	}
}

// RankTier is the rank badge for a level: multiples of five from 5 to 80.
func RankTier(level int) int {
	tier := clamp(level, MinLevel, 80) / 5 * 5
	if tier < 5 {
		return 5
	}
	return tier
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
