package recordlog

import (
	"context"
	"fmt"

	"github.com/leeforge/xrcore/logging"
)

// Backend names a Logger implementation.
type Backend string

const (
	BackendNoop    Backend = "noop"
	BackendConsole Backend = "console"
	BackendRedis   Backend = "redis"
)

// Config selects and configures the record logger.
type Config struct {
	Backend Backend     `mapstructure:"backend" json:"backend" yaml:"backend" default:"noop" validate:"oneof=noop console redis"`
	Redis   RedisConfig `mapstructure:"redis" json:"redis" yaml:"redis"`
}

// Open builds the Logger named by cfg.Backend.
func Open(ctx context.Context, cfg Config, logger logging.Logger) (Logger, error) {
	switch cfg.Backend {
	case BackendNoop, "":
		return Noop{}, nil
	case BackendConsole:
		return NewConsole(logger), nil
	case BackendRedis:
		return DialRedis(ctx, cfg.Redis, logger)
	default:
		return nil, fmt.Errorf("unknown record logger backend %q", cfg.Backend)
	}
}
