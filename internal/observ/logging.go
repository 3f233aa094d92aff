package observ

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
}

// SetLogger replaces the package logger (used by tests and by the CLI to
// redirect output or change the level).
func SetLogger(l zerolog.Logger) {
	logger = l
}

// Log emits a structured info event with arbitrary fields.
func Log(event string, kv map[string]any) {
	e := logger.Info()
	for k, v := range kv {
		e = e.Interface(k, v)
	}
	e.Str("event", event).Send()
}

// Warn emits a warning-level event. Data-quality flags and signal
// rejections land here; they are reportable conditions, not failures.
func Warn(event string, kv map[string]any) {
	e := logger.Warn()
	for k, v := range kv {
		e = e.Interface(k, v)
	}
	e.Str("event", event).Send()
}

// Error emits an error-level event. Reserved for invariant violations and
// configuration failures that abort the run.
func Error(event string, err error, kv map[string]any) {
	e := logger.Error().Err(err)
	for k, v := range kv {
		e = e.Interface(k, v)
	}
	e.Str("event", event).Send()
}
