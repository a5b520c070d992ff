package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newApproveCmd() *cobra.Command {
	return newApprovalCmd(true)
}

func newUnapproveCmd() *cobra.Command {
	return newApprovalCmd(false)
}

// newApprovalCmd builds "approve" or "unapprove". Approving appends the task
// to the end of its project queue; unapproving removes it.
func newApprovalCmd(approve bool) *cobra.Command {
	var projectID string

	use, short, verb := "approve <task-id>", "Approve a task and append it to the queue", "approved"
	if !approve {
		use, short, verb = "unapprove <task-id>", "Unapprove a task and remove it from the queue", "unapproved"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			taskID := args[0]
			changed, err := e.Queue().SetApproval(cmdContext(cmd), taskID, approve, projectID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, map[string]any{"task_id": taskID, "approved": approve, "changed": changed})
			}
			if !changed {
				fmt.Fprintf(out, "Task %s was already %s. Nothing changed.\n", taskID, verb)
				return nil
			}
			success(out, "Task %s %s.", taskID, verb)
			return nil
		},
	}
	cmd.Flags().StringVarP(&projectID, "project", "p", "", "project whose queue to change (default: the task's project)")
	return cmd
}
