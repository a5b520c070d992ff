package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	tqerrors "github.com/randalmurphal/taskq/internal/errors"
)

func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and maintain project queues",
	}
	cmd.AddCommand(newQueueShowCmd())
	cmd.AddCommand(newQueueRenumberCmd())
	return cmd
}

func newQueueShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project queue in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()
			ctx := cmdContext(cmd)

			project, err := e.store.GetProject(ctx, args[0])
			if err != nil {
				return err
			}
			if project == nil {
				return tqerrors.ErrProjectNotFound(args[0])
			}
			items, err := e.Queue().List(ctx, project.ID)
			if err != nil {
				return err
			}

			if jsonOut {
				if items == nil {
					return printJSON(cmd.OutOrStdout(), []any{})
				}
				return printJSON(cmd.OutOrStdout(), items)
			}
			printQueue(cmd.OutOrStdout(), project, items)
			return nil
		},
	}
}

func newQueueRenumberCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "renumber <project-id>",
		Short: "Respace queue positions evenly, keeping the order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			entries, err := e.Queue().Renumber(cmdContext(cmd), args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), entries)
			}
			success(cmd.OutOrStdout(), "Renumbered %d entries.", len(entries))
			for _, entry := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "  %6d  %s\n", entry.Position, entry.TaskID)
			}
			return nil
		},
	}
}
