package config

// Config is the on-disk configuration of toastd.
//
// All durations are Go duration strings (e.g. "1600ms", "12s", "61m").
// Omitted or zero values fall back to the defaults documented per section.
type Config struct {
	Logging     LoggingConfig     `json:"logging"`
	Leaderboard LeaderboardConfig `json:"leaderboard"`
	Toast       ToastConfig       `json:"toast"`
	Storage     *StorageConfig    `json:"storage,omitempty"`
	HTTP        HTTPConfig        `json:"http"`
	Telegram    *TelegramConfig   `json:"telegram,omitempty"`
	Systemd     SystemdConfig     `json:"systemd,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LeaderboardConfig points at the backend JSON feed.
//
// Schedule accepts cron specs ("*/30 * * * * *") and descriptors ("@every 30s").
// Defaults: schedule "@every 30s", timeout "8s".
type LeaderboardConfig struct {
	URL      string `json:"url"`
	Schedule string `json:"schedule,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
}

// ToastConfig controls the notification engine.
//
// Defaults (when fields are omitted/zero):
//   - max_visible: 5
//   - pacing: "1600ms"
//   - raid_dismiss: "12s"
//   - notice_dismiss: "27s" (ban + welcome)
//   - fade: "3s"
//   - ban_suppress: "61m"
//   - welcome_suppress: "24h"
//   - bootstrap_raid_window: "5m"
//   - bootstrap_ban_window: "2h"
//   - bootstrap_limit: 3
//   - layout_top: 100, layout_gap: 10, layout_right: 10
type ToastConfig struct {
	MaxVisible          int    `json:"max_visible,omitempty"`
	Pacing              string `json:"pacing,omitempty"`
	RaidDismiss         string `json:"raid_dismiss,omitempty"`
	NoticeDismiss       string `json:"notice_dismiss,omitempty"`
	Fade                string `json:"fade,omitempty"`
	BanSuppress         string `json:"ban_suppress,omitempty"`
	WelcomeSuppress     string `json:"welcome_suppress,omitempty"`
	BootstrapRaidWindow string `json:"bootstrap_raid_window,omitempty"`
	BootstrapBanWindow  string `json:"bootstrap_ban_window,omitempty"`
	BootstrapLimit      int    `json:"bootstrap_limit,omitempty"`
	LayoutTop           int    `json:"layout_top,omitempty"`
	LayoutGap           int    `json:"layout_gap,omitempty"`
	LayoutRight         int    `json:"layout_right,omitempty"`
}

// StorageConfig controls where suppression marks live.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/toastd.db" }
//
// Drivers: "memory" (default), "file", "sqlite", "redis", "none".
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	URL         string `json:"url,omitempty"`          // redis only
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// HTTPConfig controls the websocket/API server. Default addr: "127.0.0.1:8089".
type HTTPConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	// AllowedOrigins restricts websocket upgrades; empty allows any origin.
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
}

// TelegramConfig mirrors displayed toasts into a chat (optionally a topic thread).
type TelegramConfig struct {
	Enabled    bool   `json:"enabled"`
	Token      string `json:"token"`
	ChatID     int64  `json:"chat_id"`
	ThreadID   int    `json:"thread_id,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

type SystemdConfig struct {
	Notify bool `json:"notify"`
}
