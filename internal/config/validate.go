package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/randalmurphal/taskq/internal/db/driver"
	tqerrors "github.com/randalmurphal/taskq/internal/errors"
)

var validSSLModes = map[string]bool{
	"disable": true, "allow": true, "prefer": true,
	"require": true, "verify-ca": true, "verify-full": true,
}

// Validate checks the configuration and returns the first problem found as
// a CONFIG_INVALID error.
func (c *Config) Validate() error {
	dialect, err := c.Database.Dialect()
	if err != nil {
		return tqerrors.ErrConfigInvalid("database.driver", fmt.Sprintf("unknown driver '%s' (want sqlite or postgres)", c.Database.Driver))
	}

	switch dialect {
	case driver.DialectSQLite:
		if c.Database.Path == "" {
			return tqerrors.ErrConfigInvalid("database.path", "must not be empty for sqlite")
		}
	case driver.DialectPostgres:
		pg := c.Database.Postgres
		if pg.Host == "" {
			return tqerrors.ErrConfigInvalid("database.postgres.host", "must not be empty")
		}
		if pg.Port < 1 || pg.Port > 65535 {
			return tqerrors.ErrConfigInvalid("database.postgres.port", fmt.Sprintf("%d is not a valid port", pg.Port))
		}
		if pg.Database == "" {
			return tqerrors.ErrConfigInvalid("database.postgres.database", "must not be empty")
		}
		if pg.SSLMode != "" && !validSSLModes[pg.SSLMode] {
			return tqerrors.ErrConfigInvalid("database.postgres.ssl_mode", fmt.Sprintf("unknown mode '%s'", pg.SSLMode))
		}
	}

	if c.Retry.MaxAttempts < 1 {
		return tqerrors.ErrConfigInvalid("retry.max_attempts", "must be at least 1")
	}
	if c.Retry.InitialDelay < 0 {
		return tqerrors.ErrConfigInvalid("retry.initial_delay", "must not be negative")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return tqerrors.ErrConfigInvalid("server.port", fmt.Sprintf("%d is not a valid port", c.Server.Port))
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return tqerrors.ErrConfigInvalid("log.level", err.Error())
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return tqerrors.ErrConfigInvalid("log.format", fmt.Sprintf("unknown format '%s' (want text or json)", c.Log.Format))
	}
	return nil
}

// ParseLevel converts a level name to an slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown level '%s'", s)
	}
}
