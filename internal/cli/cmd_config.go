package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/taskq/internal/config"
)

const secretMask = "****"

// configEntry is one resolved key as printed by config get and show.
type configEntry struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

func lookupEntry(tc *config.TrackedConfig, key string) (configEntry, error) {
	value, err := tc.Config.GetValue(key)
	if err != nil {
		return configEntry{}, err
	}
	if value != "" && strings.HasSuffix(key, "password") {
		value = secretMask
	}
	return configEntry{Key: key, Value: value, Source: tc.GetTrackedSource(key).String()}, nil
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the resolved configuration",
		Long: `Inspect the configuration taskq runs with.

Values are layered, highest priority first:
  flags        --db, --log-level, serve --host/--port
  environment  TASKQ_*
  project      .taskq/config.yaml (or --config)
  user         ~/.taskq/config.yaml
  defaults

Examples:
  taskq config show
  taskq config show --source
  taskq config get server.port --source`,
	}
	cmd.AddCommand(newConfigShowCmd(), newConfigGetCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var withSource bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()

			if !withSource && !jsonOut {
				return writeConfigYAML(out, tc.Config)
			}

			var entries []configEntry
			for _, key := range config.AllConfigPaths() {
				if e, err := lookupEntry(tc, key); err == nil {
					entries = append(entries, e)
				}
			}
			if jsonOut {
				return printJSON(out, entries)
			}
			for _, e := range entries {
				fmt.Fprintf(out, "%s = %s (%s)\n", e.Key, e.Value, e.Source)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&withSource, "source", false, "annotate every key with where its value came from")
	return cmd
}

func newConfigGetCmd() *cobra.Command {
	var withSource bool
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print one configuration value",
		Long:  `Print one configuration value. Nested keys use dots, e.g. database.postgres.host.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			e, err := lookupEntry(tc, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case jsonOut:
				return printJSON(out, e)
			case withSource:
				fmt.Fprintf(out, "%s (%s)\n", e.Value, e.Source)
			default:
				fmt.Fprintln(out, e.Value)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&withSource, "source", false, "also print where the value came from")
	return cmd
}

func writeConfigYAML(w io.Writer, cfg *config.Config) error {
	shown := *cfg
	if shown.Database.Postgres.Password != "" {
		shown.Database.Postgres.Password = secretMask
	}
	data, err := yaml.Marshal(&shown)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, err = w.Write(data)
	return err
}
