package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/watchsec/commnode/internal/config"
)

// NewLogger creates a structured zerolog.Logger writing JSON to stdout, tagged
// with the service name and filtered at the configured level.
func NewLogger(cfg *config.Config) zerolog.Logger {
	return newLogger(os.Stdout, cfg)
}

func newLogger(w io.Writer, cfg *config.Config) zerolog.Logger {
	ctx := zerolog.New(w).With().Timestamp()

	if cfg.ServiceName != "" {
		ctx = ctx.Str("service", cfg.ServiceName)
	}

	logger := ctx.Logger()

	if cfg.DisableLogging {
		return logger.Level(zerolog.Disabled)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return logger.Level(level)
}
