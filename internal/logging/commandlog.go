package logging

import (
	"time"

	"github.com/rs/zerolog"
)

// CommandLogger writes dispatcher events through zerolog. Every entry is
// tagged with the session, and common values keep their JSON types.
type CommandLogger struct {
	logger zerolog.Logger
}

// NewCommandLogger tags logger with sessionID. An empty id is omitted.
func NewCommandLogger(logger zerolog.Logger, sessionID string) *CommandLogger {
	if sessionID != "" {
		logger = logger.With().Str(SessionKey, sessionID).Logger()
	}
	return &CommandLogger{logger: logger}
}

func (l *CommandLogger) Debug(msg string, keysAndValues ...any) {
	write(l.logger.Debug(), msg, keysAndValues)
}

func (l *CommandLogger) Info(msg string, keysAndValues ...any) {
	write(l.logger.Info(), msg, keysAndValues)
}

func (l *CommandLogger) Error(msg string, keysAndValues ...any) {
	write(l.logger.Error(), msg, keysAndValues)
}

// write appends key/value pairs to ev. Non-string keys and a trailing
// unpaired key are skipped.
func write(ev *zerolog.Event, msg string, kv []any) {
	if ev == nil {
		return
	}
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		switch v := kv[i+1].(type) {
		case string:
			ev = ev.Str(key, v)
		case int:
			ev = ev.Int(key, v)
		case uint64:
			ev = ev.Uint64(key, v)
		case float64:
			ev = ev.Float64(key, v)
		case bool:
			ev = ev.Bool(key, v)
		case time.Duration:
			ev = ev.Dur(key, v)
		case error:
			ev = ev.AnErr(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	ev.Msg(msg)
}
