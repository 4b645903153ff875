package app

import (
	"context"
	"strings"
	"time"

	"sptlb/internal/eventbus"
	"sptlb/internal/storage"
	"sptlb/internal/toast"
	logx "sptlb/pkg/logx"
)

// recordHistory appends displayed and terminal toast events to the store
// until ctx is done.
func recordHistory(ctx context.Context, bus eventbus.Bus, store storage.Store, log logx.Logger) error {
	events, unsub := bus.Subscribe(128, toast.EventDisplayed, toast.EventEvicted, toast.EventRemoved, toast.EventFailed)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			le, ok := ev.Data.(toast.LifecycleEvent)
			if !ok {
				continue
			}
			entry := storage.HistoryEntry{
				At:       ev.Time,
				ToastID:  le.Toast.ID,
				PlayerID: le.Toast.PlayerID,
				Name:     le.Toast.Name,
				Category: string(le.Toast.Category),
				Kind:     strings.TrimPrefix(ev.Type, "toast."),
			}
			wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := store.AppendHistory(wctx, entry)
			cancel()
			if err != nil {
				log.Warn("history append failed", logx.String("kind", entry.Kind), logx.Err(err))
			}
		}
	}
}
