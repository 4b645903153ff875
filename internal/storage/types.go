package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled      = errors.New("storage disabled")
	ErrClosed        = errors.New("storage closed")
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// Config configures storage.
//
// If Driver is "none", storage is disabled; empty means "memory".
type Config struct {
	Driver      string
	Path        string        // file, sqlite
	URL         string        // redis
	BusyTimeout time.Duration // sqlite only; 0 means default
	KeyPrefix   string        // redis only; default "sptlb:"
}

// HistoryEntry records one toast lifecycle milestone. Keep it compact and schema-stable.
type HistoryEntry struct {
	At       time.Time `json:"at"`
	ToastID  string    `json:"toast_id"`
	PlayerID string    `json:"player_id"`
	Name     string    `json:"name"`
	Category string    `json:"category"`
	Kind     string    `json:"kind"` // displayed, evicted, removed, failed
}

const historyCap = 300
