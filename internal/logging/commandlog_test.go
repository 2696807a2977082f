package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCommandLogger(level zerolog.Level, session string) (*CommandLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewCommandLogger(zerolog.New(&buf).Level(level), session), &buf
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestCommandLogger_TagsSession(t *testing.T) {
	cl, buf := newTestCommandLogger(zerolog.DebugLevel, "sess-1")

	cl.Debug("handling command", "command", ":START:", "args", 0)

	entry := decode(t, buf)
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "handling command", entry["message"])
	assert.Equal(t, "sess-1", entry["session"])
	assert.Equal(t, ":START:", entry["command"])
	assert.Equal(t, float64(0), entry["args"])
}

func TestCommandLogger_NoSession(t *testing.T) {
	cl, buf := newTestCommandLogger(zerolog.InfoLevel, "")

	cl.Info("ready")

	entry := decode(t, buf)
	assert.NotContains(t, entry, "session")
}

func TestCommandLogger_TypedValues(t *testing.T) {
	cl, buf := newTestCommandLogger(zerolog.InfoLevel, "s")

	cl.Error("command failed",
		"command", ":SET:VELOCITY:",
		"duration", 1500*time.Millisecond,
		"error", errors.New("bad vx"),
		"tick", uint64(12),
		"ok", false,
		"speed", 1.5,
		"args", []string{"a"},
	)

	entry := decode(t, buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, float64(1500), entry["duration"], "durations are milliseconds")
	assert.Equal(t, "bad vx", entry["error"])
	assert.Equal(t, float64(12), entry["tick"])
	assert.Equal(t, false, entry["ok"])
	assert.Equal(t, 1.5, entry["speed"])
	assert.Equal(t, []any{"a"}, entry["args"])
}

func TestCommandLogger_SkipsMalformedPairs(t *testing.T) {
	cl, buf := newTestCommandLogger(zerolog.InfoLevel, "")

	cl.Info("pairs", 3, "x", "k", "v", "dangling")

	entry := decode(t, buf)
	assert.Equal(t, "v", entry["k"])
	assert.NotContains(t, entry, "dangling")
	assert.NotContains(t, entry, "3")
}

func TestCommandLogger_LevelFiltering(t *testing.T) {
	cl, buf := newTestCommandLogger(zerolog.InfoLevel, "s")

	cl.Debug("filtered", "command", ":STOP:")

	assert.Empty(t, buf.String())
}
