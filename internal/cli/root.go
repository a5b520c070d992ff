// Package cli implements the taskq command-line interface.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	jsonOut bool

	// vp carries flag values bound to config paths.
	vp = viper.New()
	// flagBindings maps a flag name to the config path it overrides.
	flagBindings = map[string]string{}
)

func init() {
	cobra.OnInitialize(initConfig)
}

// newRootCmd builds a fresh command tree.
func newRootCmd() *cobra.Command {
	vp = viper.New()
	flagBindings = map[string]string{}

	rootCmd := &cobra.Command{
		Use:   "taskq",
		Short: "Curated task queue for AI coding agents",
		Long: `taskq keeps an ordered queue of approved tasks per project and hands
them to an AI agent one at a time.

Humans decide which tasks are approved and in what order they run. The agent
only ever pulls: each call to next_task finishes the task it was working on
and hands out the one after it.

Quick start:
  taskq init                                 Initialize taskq in current directory
  taskq project add "My app"                 Create a project
  taskq story add <project-id> "Login"       Create a user story
  taskq task add <story-id> "Fix redirect"   Create a task
  taskq approve <task-id>                    Append the task to its queue
  taskq serve                                Start the API and MCP servers`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is .taskq/config.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	pf.BoolVar(&jsonOut, "json", false, "output as JSON")
	pf.String("db", "", "SQLite database path")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	bindFlag(pf.Lookup("db"), "database.path")
	bindFlag(pf.Lookup("log-level"), "log.level")

	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newProjectCmd())
	rootCmd.AddCommand(newStoryCmd())
	rootCmd.AddCommand(newTaskCmd())
	rootCmd.AddCommand(newApproveCmd())
	rootCmd.AddCommand(newUnapproveCmd())
	rootCmd.AddCommand(newMoveCmd())
	rootCmd.AddCommand(newQueueCmd())
	rootCmd.AddCommand(newNextCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMCPCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	err := newRootCmd().Execute()
	if err != nil {
		PrintError(err)
	}
	return err
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		vp.SetConfigFile(cfgFile)
	} else {
		vp.AddConfigPath(".taskq")
		vp.AddConfigPath("$HOME/.taskq")
		vp.SetConfigType("yaml")
		vp.SetConfigName("config")
	}

	vp.SetEnvPrefix("TASKQ")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	if err := vp.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", vp.ConfigFileUsed())
		}
	}
}

// bindFlag ties a flag to a config path so an explicit value overrides the
// file and environment layers.
func bindFlag(f *pflag.Flag, key string) {
	_ = vp.BindPFlag(key, f)
	flagBindings[f.Name] = key
}
