package cli

import (
	"github.com/spf13/cobra"

	tqerrors "github.com/randalmurphal/taskq/internal/errors"
	"github.com/randalmurphal/taskq/internal/queue"
)

func newMoveCmd() *cobra.Command {
	var (
		top, bottom   bool
		before, after string
		position      int64
	)

	cmd := &cobra.Command{
		Use:   "move <project-id> <task-id>",
		Short: "Reorder a queued task",
		Long: `Move a task within its project queue. Pass exactly one placement.

Example:
  taskq move <project> <task> --top
  taskq move <project> <task> --after <other-task>
  taskq move <project> <task> --position 250`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var placements []queue.Placement
			if top {
				placements = append(placements, queue.Top())
			}
			if bottom {
				placements = append(placements, queue.Bottom())
			}
			if cmd.Flags().Changed("before") {
				placements = append(placements, queue.Before(before))
			}
			if cmd.Flags().Changed("after") {
				placements = append(placements, queue.After(after))
			}
			if cmd.Flags().Changed("position") {
				placements = append(placements, queue.AtPosition(position))
			}
			if len(placements) != 1 {
				return tqerrors.ErrInvalidOperation("pass exactly one of --top, --bottom, --before, --after or --position")
			}

			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			projectID, taskID := args[0], args[1]
			entry, err := e.Queue().Move(cmdContext(cmd), projectID, taskID, placements[0])
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), entry)
			}
			success(cmd.OutOrStdout(), "Task %s moved to %s (position %d).", taskID, placements[0], entry.Position)
			return nil
		},
	}

	cmd.Flags().BoolVar(&top, "top", false, "move to the front of the queue")
	cmd.Flags().BoolVar(&bottom, "bottom", false, "move to the end of the queue")
	cmd.Flags().StringVar(&before, "before", "", "move directly before this task")
	cmd.Flags().StringVar(&after, "after", "", "move directly after this task")
	cmd.Flags().Int64Var(&position, "position", 0, "move to this absolute position")
	return cmd
}
