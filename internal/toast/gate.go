package toast

import (
	"context"
	"sync"
	"time"

	"sptlb/internal/leaderboard"
	"sptlb/internal/storage"
	logx "sptlb/pkg/logx"
)

// Gate keeps category suppression marks in a Store so a ban or welcome toast
// is not repeated across restarts. Raid toasts have no mark.
type Gate struct {
	store storage.Store
	log   logx.Logger
	now   func() time.Time

	mu         sync.Mutex
	banTTL     time.Duration
	welcomeTTL time.Duration
}

func NewGate(store storage.Store, banTTL, welcomeTTL time.Duration, now func() time.Time, log logx.Logger) *Gate {
	if now == nil {
		now = time.Now
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Gate{store: store, log: log, now: now, banTTL: banTTL, welcomeTTL: welcomeTTL}
}

// Key returns the persisted mark for a category, or "" if it has none.
func Key(cat Category, id leaderboard.ID) string {
	switch cat {
	case CategoryBan:
		return "banNotify_" + string(id)
	case CategoryWelcome:
		return "newPlayer_" + string(id)
	default:
		return ""
	}
}

func (g *Gate) ttl(cat Category) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch cat {
	case CategoryBan:
		return g.banTTL
	case CategoryWelcome:
		return g.welcomeTTL
	default:
		return 0
	}
}

// IsSuppressed checks the mark for cat. Store failures count as not suppressed.
func (g *Gate) IsSuppressed(ctx context.Context, cat Category, id leaderboard.ID) bool {
	key := Key(cat, id)
	if key == "" || g.store == nil {
		return false
	}
	_, ok, err := g.store.GetSuppression(ctx, key)
	if err != nil {
		g.log.Warn("suppression lookup failed", logx.String("key", key), logx.Err(err))
		return false
	}
	return ok
}

// Suppress writes the mark for cat, expiring after the category's TTL.
func (g *Gate) Suppress(ctx context.Context, cat Category, id leaderboard.ID) error {
	key := Key(cat, id)
	if key == "" || g.store == nil {
		return nil
	}
	return g.store.PutSuppression(ctx, key, g.now().Add(g.ttl(cat)))
}

// Blocked reports whether any mark applies to p: the ban mark when p is
// banned, the welcome mark when p is new.
func (g *Gate) Blocked(ctx context.Context, p leaderboard.Player) bool {
	if bool(p.Banned) && g.IsSuppressed(ctx, CategoryBan, p.ID) {
		return true
	}
	return bool(p.IsNew) && g.IsSuppressed(ctx, CategoryWelcome, p.ID)
}

func (g *Gate) setTTLs(ban, welcome time.Duration) {
	g.mu.Lock()
	g.banTTL, g.welcomeTTL = ban, welcome
	g.mu.Unlock()
}
