package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "project",
		Aliases: []string{"projects"},
		Short:   "Manage projects",
	}
	cmd.AddCommand(newProjectAddCmd())
	cmd.AddCommand(newProjectListCmd())
	return cmd
}

func newProjectAddCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			p, err := e.store.CreateProject(cmdContext(cmd), args[0], description)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), p)
			}
			success(cmd.OutOrStdout(), "Created project %s (%s)", p.Name, p.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "project description")
	return cmd
}

func newProjectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List projects",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			projects, err := e.store.ListProjects(cmdContext(cmd))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, projects)
			}
			if len(projects) == 0 {
				fmt.Fprintln(out, "No projects. Create one with: taskq project add <name>")
				return nil
			}
			for _, p := range projects {
				fmt.Fprintf(out, "%s  %s\n", p.ID, p.Name)
			}
			return nil
		},
	}
}
