package config

import (
	"os"
	"strconv"
	"time"
)

// setting is one scalar config key, the TASKQ_* variable that overrides
// it, and how to parse a string into it.
type setting struct {
	key string
	env string
	set func(c *Config, value string) bool
}

func stringField(field func(*Config) *string) func(*Config, string) bool {
	return func(c *Config, v string) bool {
		*field(c) = v
		return true
	}
}

func intField(field func(*Config) *int) func(*Config, string) bool {
	return func(c *Config, v string) bool {
		n, err := strconv.Atoi(v)
		if err != nil {
			return false
		}
		*field(c) = n
		return true
	}
}

func durationField(field func(*Config) *time.Duration) func(*Config, string) bool {
	return func(c *Config, v string) bool {
		d, err := time.ParseDuration(v)
		if err != nil {
			return false
		}
		*field(c) = d
		return true
	}
}

var settings = []setting{
	{"database.driver", "TASKQ_DB_DRIVER", stringField(func(c *Config) *string { return &c.Database.Driver })},
	{"database.path", "TASKQ_DB_PATH", stringField(func(c *Config) *string { return &c.Database.Path })},
	{"database.postgres.host", "TASKQ_DB_HOST", stringField(func(c *Config) *string { return &c.Database.Postgres.Host })},
	{"database.postgres.port", "TASKQ_DB_PORT", intField(func(c *Config) *int { return &c.Database.Postgres.Port })},
	{"database.postgres.user", "TASKQ_DB_USER", stringField(func(c *Config) *string { return &c.Database.Postgres.User })},
	{"database.postgres.password", "TASKQ_DB_PASSWORD", stringField(func(c *Config) *string { return &c.Database.Postgres.Password })},
	{"database.postgres.database", "TASKQ_DB_NAME", stringField(func(c *Config) *string { return &c.Database.Postgres.Database })},
	{"database.postgres.ssl_mode", "TASKQ_DB_SSL_MODE", stringField(func(c *Config) *string { return &c.Database.Postgres.SSLMode })},
	{"retry.max_attempts", "TASKQ_RETRY_MAX_ATTEMPTS", intField(func(c *Config) *int { return &c.Retry.MaxAttempts })},
	{"retry.initial_delay", "TASKQ_RETRY_INITIAL_DELAY", durationField(func(c *Config) *time.Duration { return &c.Retry.InitialDelay })},
	{"server.host", "TASKQ_HOST", stringField(func(c *Config) *string { return &c.Server.Host })},
	{"server.port", "TASKQ_PORT", intField(func(c *Config) *int { return &c.Server.Port })},
	{"log.level", "TASKQ_LOG_LEVEL", stringField(func(c *Config) *string { return &c.Log.Level })},
	{"log.format", "TASKQ_LOG_FORMAT", stringField(func(c *Config) *string { return &c.Log.Format })},
}

// setValue parses value into the field behind key. Unknown keys and
// unparsable values leave cfg unchanged and report false.
func setValue(cfg *Config, key, value string) bool {
	for _, s := range settings {
		if s.key == key {
			return s.set(cfg, value)
		}
	}
	return false
}

// ApplyEnvVars overrides tc with every non-empty TASKQ_* variable and
// returns the keys it changed. Unparsable numbers are skipped.
func ApplyEnvVars(tc *TrackedConfig) []string {
	var changed []string
	for _, s := range settings {
		v := os.Getenv(s.env)
		if v == "" || !s.set(tc.Config, v) {
			continue
		}
		tc.record(s.key, SourceEnv, "")
		changed = append(changed, s.key)
	}
	return changed
}
