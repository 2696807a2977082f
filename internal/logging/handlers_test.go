package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedSession(f SessionFields, ok bool) SessionSource {
	return func() (SessionFields, bool) { return f, ok }
}

func TestSessionHandler_StampsFields(t *testing.T) {
	var buf bytes.Buffer
	h := newSessionHandler(slog.NewTextHandler(&buf, nil),
		fixedSession(SessionFields{SessionID: "s-1", Running: true, Tick: 42}, true))

	slog.New(h).Info("tick done")

	out := buf.String()
	assert.Contains(t, out, "session=s-1")
	assert.Contains(t, out, "running=true")
	assert.Contains(t, out, "tick=42")
}

func TestSessionHandler_NoSessionYet(t *testing.T) {
	var buf bytes.Buffer
	h := newSessionHandler(slog.NewTextHandler(&buf, nil), fixedSession(SessionFields{}, false))

	slog.New(h).Info("bootstrap")

	assert.Contains(t, buf.String(), "bootstrap")
	assert.NotContains(t, buf.String(), "tick=")
}

func TestSessionHandler_KeepsCallerKeys(t *testing.T) {
	var buf bytes.Buffer
	h := newSessionHandler(slog.NewTextHandler(&buf, nil),
		fixedSession(SessionFields{SessionID: "live", Tick: 9}, true))

	slog.New(h).Info("explicit", "session", "given")
	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "session="))
	assert.Contains(t, out, "session=given")
	assert.Contains(t, out, "tick=9")

	buf.Reset()
	slog.New(h.WithAttrs([]slog.Attr{slog.Uint64("tick", 3)})).Info("preset")
	out = buf.String()
	assert.Equal(t, 1, strings.Count(out, "tick="))
	assert.Contains(t, out, "tick=3")
	assert.Contains(t, out, "session=live")
}

func TestSessionHandler_Groups(t *testing.T) {
	var buf bytes.Buffer
	h := newSessionHandler(slog.NewTextHandler(&buf, nil),
		fixedSession(SessionFields{SessionID: "abc"}, true))

	assert.Equal(t, h, h.WithGroup(""))

	slog.New(h.WithGroup("g")).Info("grouped", "k", "v")
	out := buf.String()
	assert.Contains(t, out, "g.k=v")
	assert.NotContains(t, out, "g.session")
}

func TestFanout_DeliversToEverySink(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	f := newFanout(
		nil,
		slog.NewTextHandler(&buf1, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&buf2, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	require.Len(t, f, 2)

	logger := slog.New(f.WithAttrs([]slog.Attr{slog.String("component", "engine")}).WithGroup("grp"))
	logger.Info("fanned out", "key", "val")
	logger.Debug("debug only")

	assert.Contains(t, buf1.String(), "component=engine")
	assert.Contains(t, buf1.String(), "grp.key=val")
	assert.NotContains(t, buf1.String(), "debug only")
	assert.Contains(t, buf2.String(), "debug only")
}

func TestFanout_Enabled(t *testing.T) {
	info := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelInfo})
	debug := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelDebug})
	ctx := context.Background()

	assert.False(t, newFanout().Enabled(ctx, slog.LevelInfo))
	assert.False(t, newFanout(info).Enabled(ctx, slog.LevelDebug))
	assert.True(t, newFanout(info, debug).Enabled(ctx, slog.LevelDebug))

	f := newFanout(info)
	assert.Equal(t, f, f.WithGroup(""))
}

type failingHandler struct {
	slog.Handler
}

func (failingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (failingHandler) Handle(context.Context, slog.Record) error {
	return errors.New("sink down")
}

func TestFanout_FailingSinkDoesNotStarveOthers(t *testing.T) {
	var buf bytes.Buffer
	f := newFanout(failingHandler{}, slog.NewTextHandler(&buf, nil))

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "still delivered", 0)
	err := f.Handle(context.Background(), r)

	assert.EqualError(t, err, "sink down")
	assert.Contains(t, buf.String(), "still delivered")
}
