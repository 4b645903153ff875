package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestDecodeJSONAndYAMLAgree(t *testing.T) {
	t.Parallel()
	j, err := Decode("c.json", []byte(`{"leaderboard":{"url":"http://x/lb.json"},"toast":{"max_visible":4,"pacing":"2s"}}`))
	require.NoError(t, err)

	y, err := Decode("c.yaml", []byte("leaderboard:\n  url: http://x/lb.json\ntoast:\n  max_visible: 4\n  pacing: 2s\n"))
	require.NoError(t, err)

	assert.Equal(t, j, y)
	assert.Equal(t, 4, y.Toast.MaxVisible)
}

func TestDecodeRejectsUnknownAndTrailing(t *testing.T) {
	t.Parallel()
	_, err := Decode("c.json", []byte(`{"bogus":1}`))
	require.Error(t, err)

	_, err = Decode("c.json", []byte(`{} {}`))
	require.Error(t, err)
}

func TestDecodeEmptyYAML(t *testing.T) {
	t.Parallel()
	cfg, err := Decode("c.yml", []byte(""))
	require.NoError(t, err)
	assert.Equal(t, &Config{}, cfg)
}

func TestEnvOverlay(t *testing.T) {
	t.Parallel()
	cfg := &Config{Leaderboard: LeaderboardConfig{URL: "http://file"}}
	err := applyEnvWith(cfg, map[string]string{
		"SPTLB_LEADERBOARD_URL": "http://env",
		"SPTLB_TELEGRAM_TOKEN":  "secret",
		"SPTLB_REDIS_URL":       "redis://localhost:6379/0",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://env", cfg.Leaderboard.URL)
	require.NotNil(t, cfg.Telegram)
	assert.Equal(t, "secret", cfg.Telegram.Token)
	require.NotNil(t, cfg.Storage)
	assert.Equal(t, "redis", cfg.Storage.Driver)
}

func TestEnvOverlayKeepsFileValues(t *testing.T) {
	t.Parallel()
	cfg := &Config{Logging: LoggingConfig{Level: "debug"}}
	require.NoError(t, applyEnvWith(cfg, map[string]string{}))
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Nil(t, cfg.Telegram)
}

func TestDurations(t *testing.T) {
	t.Parallel()
	var d Durations
	assert.Equal(t, 1600*time.Millisecond, d.Or("toast.pacing", "", 1600*time.Millisecond))
	assert.Equal(t, 2*time.Second, d.Or("toast.fade", "2s", time.Second))
	require.NoError(t, d.Err())

	assert.Equal(t, time.Second, d.Or("toast.fade", "soon", time.Second))
	assert.Equal(t, time.Second, d.Or("toast.raid_dismiss", "-1s", time.Second))
	require.Error(t, d.Err())
}

func TestManagerLoadAndReload(t *testing.T) {
	path := writeFile(t, "toastd.json", `{"logging":{"level":"info"}}`)
	m := NewConfigManager(path)
	m.SetEnvOverlay(nil)

	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Logging.Level)

	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	// Same content: not republished.
	assert.False(t, m.reload(context.Background()))

	require.NoError(t, os.WriteFile(path, []byte(`{"logging":{"level":"debug"}}`), 0o600))
	assert.True(t, m.reload(context.Background()))
	select {
	case got := <-sub:
		assert.Equal(t, "debug", got.Logging.Level)
	default:
		t.Fatal("expected published config")
	}
	assert.Equal(t, "debug", m.Get().Logging.Level)
}

func TestManagerValidatorRejects(t *testing.T) {
	path := writeFile(t, "toastd.json", `{"logging":{"level":"info"}}`)
	m := NewConfigManager(path)
	m.SetEnvOverlay(nil)
	_, err := m.Load()
	require.NoError(t, err)

	m.SetValidator(func(ctx context.Context, cfg *Config) error { return errors.New("nope") })
	require.NoError(t, os.WriteFile(path, []byte(`{"logging":{"level":"warn"}}`), 0o600))
	assert.False(t, m.reload(context.Background()))
	assert.Equal(t, "info", m.Get().Logging.Level)
}
