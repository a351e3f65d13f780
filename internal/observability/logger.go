package observability

import (
	"github.com/danmuck/dashlink/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the runtime profile and returns the process logger
// tagged with app.
func InitLogger(app string) zerolog.Logger {
	logging.ConfigureRuntime()
	logger := logging.Logger().With().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
