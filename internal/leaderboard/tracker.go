package leaderboard

import "sync"

// Tracker remembers the previous snapshot so each poll only forwards players
// whose raid or ban state moved.
type Tracker struct {
	mu   sync.Mutex
	prev map[ID]Player
	seen bool
}

func NewTracker() *Tracker { return &Tracker{prev: map[ID]Player{}} }

// Diff records players as the latest snapshot. On the first call it reports
// first=true and returns nothing changed; the caller runs the bootstrap pass
// over the full snapshot instead.
func (t *Tracker) Diff(players []Player) (changed []Player, first bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := make(map[ID]Player, len(players))
	for _, p := range players {
		next[p.ID] = p
	}
	defer func() { t.prev = next }()

	if !t.seen {
		t.seen = true
		return nil, true
	}
	for _, p := range players {
		old, ok := t.prev[p.ID]
		switch {
		case !ok:
			changed = append(changed, p)
		case p.AbsoluteLastTime != old.AbsoluteLastTime:
			changed = append(changed, p)
		case bool(p.Banned) && (!bool(old.Banned) || p.BanTime != old.BanTime):
			changed = append(changed, p)
		}
	}
	return changed, false
}
