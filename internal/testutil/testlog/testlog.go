package testlog

import (
	"testing"

	"github.com/danmuck/dashlink/internal/logging"
	"github.com/rs/zerolog"
)

func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	l := logging.Logger()
	l.Info().Str("test", t.Name()).Msg("start")
}

// Logger returns a logger that writes through t.Log so output is grouped
// with the test that produced it.
func Logger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel).With().Str("test", t.Name()).Logger()
}
