package logging

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/opennode/waldur-core-sub000/internal/config"
)

// NewLogger creates the process logger. The service, role and queue fields
// are added when set; queue is empty outside the worker.
func NewLogger(cfg *config.Config, queue string) zerolog.Logger {
	ctx := zerolog.New(os.Stdout).With().Timestamp()

	if cfg.ServiceName != "" {
		ctx = ctx.Str("service", cfg.ServiceName)
	}
	if cfg.Role != "" {
		ctx = ctx.Str("role", cfg.Role)
	}
	if queue != "" {
		ctx = ctx.Str("worker_queue", queue)
	}

	logger := ctx.Logger()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	return logger.Level(level)
}
