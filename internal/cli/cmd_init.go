package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/taskq/internal/config"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize taskq in the current directory",
		Long: `Create .taskq/config.yaml with the defaults and the database it points at.

Example:
  taskq init
  taskq init --force   # overwrite an existing config`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Init(".", force); err != nil {
				return err
			}
			tc, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := createStore(tc.Config); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			success(out, "Initialized taskq in %s", config.Dir)
			fmt.Fprintf(out, "  config:   %s/%s\n", config.Dir, config.ConfigFileName)
			fmt.Fprintf(out, "  database: %s (%s)\n", tc.Config.Database.Path, tc.Config.Database.Driver)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing config")
	return cmd
}
