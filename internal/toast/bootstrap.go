package toast

import (
	"sort"
	"time"

	"sptlb/internal/leaderboard"
)

// Planned is one toast the bootstrap pass will request, Delay after start.
type Planned struct {
	Player leaderboard.Player
	Delay  time.Duration
}

// PlanBootstrap picks the startup burst: players whose last raid finished
// within raidWindow or who were banned within banWindow, newest raid first,
// at most limit of them, staggered by pacing.
func PlanBootstrap(players []leaderboard.Player, now time.Time, cfg Config) []Planned {
	cfg = cfg.withDefaults()
	sorted := make([]leaderboard.Player, len(players))
	copy(sorted, players)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AbsoluteLastTime > sorted[j].AbsoluteLastTime
	})

	raidCutoff := now.Add(-cfg.BootstrapRaidWindow).Unix()
	banCutoff := now.Add(-cfg.BootstrapBanWindow).Unix()

	var out []Planned
	for _, p := range sorted {
		if len(out) >= cfg.BootstrapLimit {
			break
		}
		if p.AbsoluteLastTime <= 0 {
			continue
		}
		recentRaid := int64(p.AbsoluteLastTime) > raidCutoff
		recentBan := bool(p.Banned) && int64(p.BanTime) > banCutoff
		if !recentRaid && !recentBan {
			continue
		}
		out = append(out, Planned{Player: p, Delay: time.Duration(len(out)) * cfg.Pacing})
	}
	return out
}
