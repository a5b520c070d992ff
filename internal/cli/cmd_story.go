package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "story",
		Aliases: []string{"stories"},
		Short:   "Manage user stories",
	}
	cmd.AddCommand(newStoryAddCmd())
	cmd.AddCommand(newStoryListCmd())
	return cmd
}

func newStoryAddCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "add <project-id> <title>",
		Short: "Create a user story in a project",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			s, err := e.store.CreateUserStory(cmdContext(cmd), args[0], args[1], description)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), s)
			}
			success(cmd.OutOrStdout(), "Created story %s (%s)", s.Title, s.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "story description")
	return cmd
}

func newStoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list <project-id>",
		Aliases: []string{"ls"},
		Short:   "List the user stories of a project",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			stories, err := e.store.ListUserStories(cmdContext(cmd), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, stories)
			}
			for _, s := range stories {
				fmt.Fprintf(out, "%s  %s\n", s.ID, s.Title)
			}
			return nil
		},
	}
}
