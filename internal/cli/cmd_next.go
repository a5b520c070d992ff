package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/taskq/internal/agent"
)

func newNextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Pull the next task as an agent would",
		Long: `Run one next_task poll against the active project and print the result.

The task currently handed out is marked finished and the next approved task
is handed out, exactly as the MCP tool does.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			sel := agent.NewSelector(e.store, agent.WithPublisher(e.publisher), agent.WithLogger(e.logger))
			fmt.Fprintln(cmd.OutOrStdout(), sel.PollNextTask(cmdContext(cmd)))
			return nil
		},
	}
}
