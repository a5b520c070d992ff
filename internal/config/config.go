// Package config provides configuration management for taskq.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/taskq/internal/db"
	"github.com/randalmurphal/taskq/internal/db/driver"
)

const (
	// Dir is the per-directory taskq directory.
	Dir = ".taskq"
	// ConfigFileName is the config file name inside Dir.
	ConfigFileName = "config.yaml"
	// DBFileName is the default SQLite database file inside Dir.
	DBFileName = "taskq.db"
)

// Config represents the taskq configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Retry    RetryConfig    `yaml:"retry"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig selects and locates the store.
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver   string         `yaml:"driver"`
	Path     string         `yaml:"path"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// RetryConfig controls replay of transactions that hit lock contention.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`
	// Format is text or json. Empty picks text on a terminal, json otherwise.
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: string(driver.DialectSQLite),
			Path:   filepath.Join(Dir, DBFileName),
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "taskq",
				Database: "taskq",
				SSLMode:  "disable",
			},
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 10 * time.Millisecond,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8088,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Dialect returns the parsed database driver.
func (d DatabaseConfig) Dialect() (driver.Dialect, error) {
	return driver.ParseDialect(d.Driver)
}

// DSN returns what the store should open: the SQLite file path, or a
// PostgreSQL connection URL.
func (d DatabaseConfig) DSN() (string, error) {
	dialect, err := d.Dialect()
	if err != nil {
		return "", err
	}
	if dialect == driver.DialectSQLite {
		return d.Path, nil
	}

	pg := d.Postgres
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(pg.Host, strconv.Itoa(pg.Port)),
		Path:   "/" + pg.Database,
	}
	if pg.Password != "" {
		u.User = url.UserPassword(pg.User, pg.Password)
	} else if pg.User != "" {
		u.User = url.User(pg.User)
	}
	if pg.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": []string{pg.SSLMode}}.Encode()
	}
	return u.String(), nil
}

// Store converts the retry settings for db.WithRetry.
func (r RetryConfig) Store() db.RetryConfig {
	return db.RetryConfig{
		MaxAttempts:  r.MaxAttempts,
		InitialDelay: r.InitialDelay,
	}
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// LoadFrom loads the config from a specific path on top of the defaults.
// A missing file yields the defaults.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SaveTo saves the config to a specific path.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := writeFileAtomic(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// writeFileAtomic writes to a temp file in the same directory and renames it
// over path, so readers never see a partial config.
func writeFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmp.Name(), perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// Init creates the taskq directory under root with a default config file.
func Init(root string, force bool) error {
	dir := filepath.Join(root, Dir)
	if !force {
		if _, err := os.Stat(dir); err == nil {
			return fmt.Errorf("taskq already initialized in %s (use --force to overwrite)", root)
		}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	if err := Default().SaveTo(filepath.Join(dir, ConfigFileName)); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
