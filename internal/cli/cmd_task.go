package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/taskq/internal/agent"
	"github.com/randalmurphal/taskq/internal/db"
	tqerrors "github.com/randalmurphal/taskq/internal/errors"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "task",
		Aliases: []string{"tasks"},
		Short:   "Manage tasks",
	}
	cmd.AddCommand(newTaskAddCmd())
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskShowCmd())
	cmd.AddCommand(newTaskPauseCmd(true))
	cmd.AddCommand(newTaskPauseCmd(false))
	cmd.AddCommand(newTaskDeleteCmd())
	return cmd
}

func newTaskAddCmd() *cobra.Command {
	var description, prompt string

	cmd := &cobra.Command{
		Use:   "add <story-id> <title>",
		Short: "Create a task in a user story",
		Long: `Create a task in a user story. New tasks are unapproved and stay out of
the queue until approved.

Example:
  taskq task add <story-id> "Fix login redirect" -d "Users land on /404"
  taskq task add <story-id> "Refactor auth" --prompt "$(cat prompt.md)"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			t, err := e.store.CreateTask(cmdContext(cmd), db.NewTask{
				UserStoryID: args[0],
				Title:       args[1],
				Description: description,
				PromptBody:  prompt,
			})
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), t)
			}
			success(cmd.OutOrStdout(), "Created task %s (%s)", t.Title, t.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "task description")
	cmd.Flags().StringVar(&prompt, "prompt", "", "prompt handed to the agent instead of title and description")
	return cmd
}

func newTaskListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list <story-id>",
		Aliases: []string{"ls"},
		Short:   "List the tasks of a user story",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			tasks, err := e.store.GetTasksByUserStory(cmdContext(cmd), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, tasks)
			}
			for i := range tasks {
				t := &tasks[i]
				fmt.Fprintf(out, "%s %s  %-10s  %s\n", stateIcon(agent.StateOf(t), t.Paused), t.ID, agent.StateOf(t), t.Title)
			}
			return nil
		},
	}
}

func newTaskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task and its queue position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()
			ctx := cmdContext(cmd)

			t, err := e.store.GetTask(ctx, args[0])
			if err != nil {
				return err
			}
			if t == nil {
				return tqerrors.ErrTaskNotFound(args[0])
			}

			var position *int64
			if story, err := e.store.GetUserStory(ctx, t.UserStoryID); err == nil && story != nil {
				entries, err := e.store.ListOrderedEntries(ctx, story.ProjectID)
				if err != nil {
					return err
				}
				for _, entry := range entries {
					if entry.TaskID == t.ID {
						pos := entry.Position
						position = &pos
						break
					}
				}
			}

			if jsonOut {
				return printJSON(cmd.OutOrStdout(), struct {
					*db.Task
					State    string `json:"state"`
					Position *int64 `json:"position,omitempty"`
				}{t, agent.StateOf(t), position})
			}
			printTask(cmd.OutOrStdout(), t, position)
			return nil
		},
	}
}

// newTaskPauseCmd builds "pause" or "resume". A paused task keeps its queue
// entry but the agent skips it.
func newTaskPauseCmd(pause bool) *cobra.Command {
	use, short, verb := "pause <task-id>", "Pause a task so the agent skips it", "paused"
	if !pause {
		use, short, verb = "resume <task-id>", "Resume a paused task", "resumed"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			changed, err := e.store.SetTaskPaused(cmdContext(cmd), args[0], pause)
			if err != nil {
				return err
			}
			if !changed {
				fmt.Fprintf(cmd.OutOrStdout(), "Task %s already %s.\n", args[0], verb)
				return nil
			}
			success(cmd.OutOrStdout(), "Task %s %s.", args[0], verb)
			return nil
		},
	}
}

func newTaskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <task-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a task and its queue entries",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			deleted, err := e.store.DeleteTask(cmdContext(cmd), args[0])
			if err != nil {
				return err
			}
			if !deleted {
				return tqerrors.ErrTaskNotFound(args[0])
			}
			success(cmd.OutOrStdout(), "Deleted task %s.", args[0])
			return nil
		},
	}
}
