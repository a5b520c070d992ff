package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/randalmurphal/taskq/internal/agent"
	"github.com/randalmurphal/taskq/internal/config"
	"github.com/randalmurphal/taskq/internal/db"
	"github.com/randalmurphal/taskq/internal/db/driver"
	"github.com/randalmurphal/taskq/internal/events"
	"github.com/randalmurphal/taskq/internal/queue"
)

// env is what a command needs after config has been resolved.
type env struct {
	cfg       *config.Config
	tc        *config.TrackedConfig
	store     *db.Store
	logger    *slog.Logger
	publisher events.Publisher
}

// Close releases the store.
func (e *env) Close() {
	if e.store != nil {
		_ = e.store.Close()
	}
}

// Queue returns a queue service publishing to the env publisher.
func (e *env) Queue() *queue.Service {
	return queue.NewService(e.store, queue.WithPublisher(e.publisher), queue.WithLogger(e.logger))
}

// loadConfig resolves config from defaults, files, env and changed flags.
func loadConfig(cmd *cobra.Command) (*config.TrackedConfig, error) {
	tc, err := config.LoadWithSources(config.LoadOptions{Root: ".", ConfigFile: cfgFile})
	if err != nil {
		return nil, err
	}

	applied := false
	cmd.Flags().Visit(func(f *pflag.Flag) {
		key, ok := flagBindings[f.Name]
		if !ok {
			return
		}
		if tc.Override(key, vp.GetString(key), config.SourceFlag) {
			applied = true
		}
	})
	if applied {
		if err := tc.Config.Validate(); err != nil {
			return nil, err
		}
	}
	return tc, nil
}

// newLogger builds the process logger. Text on a terminal, JSON otherwise,
// unless the config picks a format.
func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}

	format := cfg.Format
	if format == "" {
		format = "json"
		if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			format = "text"
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// openEnv loads config, sets up logging and opens the store.
func openEnv(cmd *cobra.Command) (*env, error) {
	tc, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	cfg := tc.Config

	logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	dialect, err := cfg.Database.Dialect()
	if err != nil {
		return nil, err
	}
	dsn, err := cfg.Database.DSN()
	if err != nil {
		return nil, err
	}
	if dialect == driver.DialectSQLite {
		if _, err := os.Stat(dsn); os.IsNotExist(err) {
			return nil, fmt.Errorf("no database at %s: run 'taskq init' first", dsn)
		}
	}

	store, err := db.OpenStoreWithDialect(dsn, dialect, db.WithRetry(cfg.Retry.Store()))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	logger.Debug("store opened", "driver", dialect, "source", tc.GetTrackedSource("database.driver").String())

	return &env{
		cfg:       cfg,
		tc:        tc,
		store:     store,
		logger:    logger,
		publisher: events.NewLogPublisher(logger, events.WithLogLevel(slog.LevelDebug)),
	}, nil
}

// createStore creates the SQLite database file for init.
func createStore(cfg *config.Config) error {
	dialect, err := cfg.Database.Dialect()
	if err != nil {
		return err
	}
	dsn, err := cfg.Database.DSN()
	if err != nil {
		return err
	}
	if dialect == driver.DialectSQLite {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}
	store, err := db.OpenStoreWithDialect(dsn, dialect)
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	return store.Close()
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func stateIcon(state string, paused bool) string {
	if paused {
		return "⏸️"
	}
	switch state {
	case agent.StateApproved:
		return "📋"
	case agent.StateRequested:
		return "⏳"
	case agent.StateFinished:
		return "✅"
	default:
		return "📝"
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
