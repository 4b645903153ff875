package config

import (
	"errors"
	"strings"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var ErrEnvOverlay = errors.New("config: env overlay failed")

var dotenvOnce sync.Once

// envOverlay lists the settings deployments commonly inject via the environment
// (secrets, endpoints). Empty values leave the file config untouched.
type envOverlay struct {
	LeaderboardURL string `env:"LEADERBOARD_URL"`
	TelegramToken  string `env:"TELEGRAM_TOKEN"`
	RedisURL       string `env:"REDIS_URL"`
	LogLevel       string `env:"LOG_LEVEL"`
	HTTPAddr       string `env:"HTTP_ADDR"`
}

// ApplyEnv overlays SPTLB_* environment variables onto cfg.
// A .env file in the working directory is loaded once, if present.
func ApplyEnv(cfg *Config) error {
	dotenvOnce.Do(func() {
		// The .env file is optional.
		_ = godotenv.Load()
	})
	return applyEnvWith(cfg, nil)
}

func applyEnvWith(cfg *Config, environment map[string]string) error {
	if cfg == nil {
		return nil
	}
	var ov envOverlay
	opts := env.Options{Prefix: "SPTLB_"}
	if environment != nil {
		opts.Environment = environment
	}
	if err := env.ParseWithOptions(&ov, opts); err != nil {
		return errors.Join(ErrEnvOverlay, err)
	}

	if v := strings.TrimSpace(ov.LeaderboardURL); v != "" {
		cfg.Leaderboard.URL = v
	}
	if v := strings.TrimSpace(ov.LogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := strings.TrimSpace(ov.HTTPAddr); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := strings.TrimSpace(ov.TelegramToken); v != "" {
		if cfg.Telegram == nil {
			cfg.Telegram = &TelegramConfig{}
		}
		cfg.Telegram.Token = v
	}
	if v := strings.TrimSpace(ov.RedisURL); v != "" {
		if cfg.Storage == nil {
			cfg.Storage = &StorageConfig{Driver: "redis"}
		}
		cfg.Storage.URL = v
	}
	return nil
}
