package toast

import (
	"sync"

	"sptlb/internal/leaderboard"
)

// Record is the last-shown state of one player.
type Record struct {
	LastRaidTime int64
	BanTime      int64
	IsNewShown   bool
}

// Dedup remembers what was already shown during the engine's lifetime.
// Records are never persisted and never deleted.
type Dedup struct {
	mu      sync.Mutex
	records map[leaderboard.ID]Record
}

func NewDedup() *Dedup { return &Dedup{records: map[leaderboard.ID]Record{}} }

// Seen reports whether p's current raid (and ban) state was already shown.
// A first-appearance player stays unseen until a toast was shown while new.
func (d *Dedup) Seen(p leaderboard.Player) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seenLocked(p)
}

func (d *Dedup) seenLocked(p leaderboard.Player) bool {
	rec, ok := d.records[p.ID]
	if !ok {
		return false
	}
	if rec.LastRaidTime != int64(p.AbsoluteLastTime) || rec.BanTime != int64(p.BanTime) {
		return false
	}
	return !bool(p.IsNew) || rec.IsNewShown
}

// RecordShown upserts p's record.
func (d *Dedup) RecordShown(p leaderboard.Player) {
	d.mu.Lock()
	d.recordLocked(p)
	d.mu.Unlock()
}

func (d *Dedup) recordLocked(p leaderboard.Player) {
	prev := d.records[p.ID]
	d.records[p.ID] = Record{
		LastRaidTime: int64(p.AbsoluteLastTime),
		BanTime:      int64(p.BanTime),
		IsNewShown:   prev.IsNewShown || Classify(p) == CategoryWelcome,
	}
}

// Claim records p and returns true, unless p was already seen.
func (d *Dedup) Claim(p leaderboard.Player) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seenLocked(p) {
		return false
	}
	d.recordLocked(p)
	return true
}

// Lookup returns the stored record for id.
func (d *Dedup) Lookup(id leaderboard.ID) (Record, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.records[id]
	return r, ok
}

func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.records)
}
