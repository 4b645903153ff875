package app

import (
	"fmt"
	"strings"
	"time"

	"sptlb/internal/config"
	"sptlb/internal/leaderboard"
	"sptlb/internal/render"
	"sptlb/internal/storage"
	"sptlb/internal/toast"
	logx "sptlb/pkg/logx"
)

const defaultHTTPAddr = "127.0.0.1:8089"

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func toastConfig(cfg *config.Config) (toast.Config, error) {
	def := toast.DefaultConfig()
	tc := cfg.Toast
	if tc.MaxVisible < 0 {
		return toast.Config{}, fmt.Errorf("toast.max_visible must be >= 0")
	}
	if tc.BootstrapLimit < 0 {
		return toast.Config{}, fmt.Errorf("toast.bootstrap_limit must be >= 0")
	}
	var d config.Durations
	out := toast.Config{
		MaxVisible:          tc.MaxVisible,
		Pacing:              d.Or("toast.pacing", tc.Pacing, def.Pacing),
		RaidDismiss:         d.Or("toast.raid_dismiss", tc.RaidDismiss, def.RaidDismiss),
		NoticeDismiss:       d.Or("toast.notice_dismiss", tc.NoticeDismiss, def.NoticeDismiss),
		Fade:                d.Or("toast.fade", tc.Fade, def.Fade),
		BanSuppress:         d.Or("toast.ban_suppress", tc.BanSuppress, def.BanSuppress),
		WelcomeSuppress:     d.Or("toast.welcome_suppress", tc.WelcomeSuppress, def.WelcomeSuppress),
		BootstrapRaidWindow: d.Or("toast.bootstrap_raid_window", tc.BootstrapRaidWindow, def.BootstrapRaidWindow),
		BootstrapBanWindow:  d.Or("toast.bootstrap_ban_window", tc.BootstrapBanWindow, def.BootstrapBanWindow),
		BootstrapLimit:      tc.BootstrapLimit,
		Layout: toast.Layout{
			Top:   tc.LayoutTop,
			Gap:   tc.LayoutGap,
			Right: tc.LayoutRight,
		},
		Location: time.Local,
	}
	if err := d.Err(); err != nil {
		return toast.Config{}, err
	}
	return out, nil
}

func leaderboardTimeout(cfg *config.Config) (time.Duration, error) {
	return config.ParseDurationOrDefault("leaderboard.timeout", cfg.Leaderboard.Timeout, 8*time.Second)
}

func pollSchedule(cfg *config.Config) string {
	if s := strings.TrimSpace(cfg.Leaderboard.Schedule); s != "" {
		return s
	}
	return leaderboard.DefaultSchedule
}

// storageConfig maps the storage section. A missing section means the
// in-memory store.
func storageConfig(cfg *config.Config) (storage.Config, error) {
	if cfg.Storage == nil {
		return storage.Config{Driver: "memory"}, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)
	url := strings.TrimSpace(sc.URL)
	switch driver {
	case "", "memory", "mem", "none":
		return storage.Config{Driver: driver}, nil
	case "file":
		if path == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required when storage.driver=file")
		}
		return storage.Config{Driver: driver, Path: path}, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, nil
	case "redis":
		if url == "" {
			return storage.Config{}, fmt.Errorf("storage.url is required when storage.driver=redis")
		}
		return storage.Config{Driver: driver, URL: url}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

// telegramConfig reports whether the Telegram mirror is enabled and how.
func telegramConfig(cfg *config.Config) (render.TelegramConfig, string, bool, error) {
	tg := cfg.Telegram
	if tg == nil || !tg.Enabled {
		return render.TelegramConfig{}, "", false, nil
	}
	if strings.TrimSpace(tg.Token) == "" {
		return render.TelegramConfig{}, "", false, fmt.Errorf("telegram.token is required when telegram.enabled=true")
	}
	if tg.ChatID == 0 {
		return render.TelegramConfig{}, "", false, fmt.Errorf("telegram.chat_id is required when telegram.enabled=true")
	}
	if tg.RatePerSec < 0 {
		return render.TelegramConfig{}, "", false, fmt.Errorf("telegram.rate_per_sec must be >= 0")
	}
	return render.TelegramConfig{ChatID: tg.ChatID, ThreadID: tg.ThreadID, RatePerSec: tg.RatePerSec}, tg.Token, true, nil
}

func httpAddr(cfg *config.Config) string {
	if a := strings.TrimSpace(cfg.HTTP.Addr); a != "" {
		return a
	}
	return defaultHTTPAddr
}

// validate rejects a config that could not be applied. It runs on every
// hot reload before the new config is committed.
func validate(cfg *config.Config, schedule func(string) error) error {
	if strings.TrimSpace(cfg.Leaderboard.URL) == "" {
		return fmt.Errorf("leaderboard.url is required")
	}
	if _, err := leaderboardTimeout(cfg); err != nil {
		return err
	}
	if schedule != nil {
		if err := schedule(pollSchedule(cfg)); err != nil {
			return fmt.Errorf("leaderboard.schedule: %w", err)
		}
	}
	if _, err := toastConfig(cfg); err != nil {
		return err
	}
	if _, err := storageConfig(cfg); err != nil {
		return err
	}
	if _, _, _, err := telegramConfig(cfg); err != nil {
		return err
	}
	return nil
}

// restartSections names changed sections that only take effect on restart.
func restartSections(prev, next *config.Config) []string {
	if prev == nil || next == nil {
		return nil
	}
	var out []string
	if !sameStorage(prev.Storage, next.Storage) {
		out = append(out, "storage")
	}
	if prev.HTTP.Enabled != next.HTTP.Enabled || prev.HTTP.Addr != next.HTTP.Addr ||
		strings.Join(prev.HTTP.AllowedOrigins, ",") != strings.Join(next.HTTP.AllowedOrigins, ",") {
		out = append(out, "http")
	}
	if !sameTelegram(prev.Telegram, next.Telegram) {
		out = append(out, "telegram")
	}
	if prev.Leaderboard.URL != next.Leaderboard.URL || prev.Leaderboard.Timeout != next.Leaderboard.Timeout {
		out = append(out, "leaderboard")
	}
	return out
}

func sameStorage(a, b *config.StorageConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameTelegram(a, b *config.TelegramConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
