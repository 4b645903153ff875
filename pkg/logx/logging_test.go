package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").With(String("comp", "toast"))
	log.Debug("skipped", Int("kills", 2), Err(errors.New("boom")))

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	require.Equal(t, "toast", m["comp"])
	require.Equal(t, "skipped", m["message"])
	require.EqualValues(t, 2, m["kills"])
	require.Contains(t, m, "caller")
}

func TestWriterLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "warn")
	log.Info("hidden")
	require.Zero(t, buf.Len())
	require.False(t, log.Enabled(LevelInfo))
	require.True(t, log.Enabled(LevelError))
}

func TestZeroLoggerIsNop(t *testing.T) {
	var l Logger
	require.True(t, l.IsZero())
	l.Error("nothing happens")
	require.False(t, Nop().IsZero())
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, LevelDebug, parseLevel(" debug ", LevelInfo))
	require.Equal(t, LevelWarn, parseLevel("WARNING", LevelInfo))
	require.Equal(t, LevelInfo, parseLevel("bogus", LevelInfo))
}

func TestNewConsoleLevel(t *testing.T) {
	l := NewConsole("error")
	require.False(t, l.IsZero())
	require.True(t, l.Enabled(LevelError))
	require.False(t, l.Enabled(LevelWarn))
}
