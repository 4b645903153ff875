package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	logx "sptlb/pkg/logx"
)

// Store is the minimal persistence API used by the toast engine.
type Store interface {
	PutSuppression(ctx context.Context, key string, until time.Time) error
	GetSuppression(ctx context.Context, key string) (until time.Time, ok bool, err error)
	AppendHistory(ctx context.Context, e HistoryEntry) error
	// RecentHistory returns up to n entries, newest first.
	RecentHistory(ctx context.Context, n int) ([]HistoryEntry, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "none":
		return nil, nil
	case "", "memory", "mem":
		return NewMemory(), nil
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(ctx, cfg, log)
	case "redis":
		return openRedis(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}

func pushHistory(h []HistoryEntry, e HistoryEntry) []HistoryEntry {
	h = append(h, e)
	if len(h) > historyCap {
		h = h[len(h)-historyCap:]
	}
	return h
}

// newestFirst copies up to n entries from an oldest-first slice.
func newestFirst(h []HistoryEntry, n int) []HistoryEntry {
	if n <= 0 || n > len(h) {
		n = len(h)
	}
	out := make([]HistoryEntry, 0, n)
	for i := len(h) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, h[i])
	}
	return out
}
