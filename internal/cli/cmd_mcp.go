package cli

import (
	"github.com/spf13/cobra"

	"github.com/randalmurphal/taskq/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the agent tools over MCP",
		Long: `Serve next_task, approve_task, move_task and list_queue over MCP.

Stdio is the default, for agents that launch taskq as a subprocess. Logs go to
stderr so they never mix with the protocol stream.

Example:
  taskq mcp                 # stdio
  taskq mcp --http :8089    # streamable HTTP`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, cancel := SetupSignalHandler(cmdContext(cmd))
			defer cancel()

			server := mcp.NewServer(e.store, mcp.WithPublisher(e.publisher), mcp.WithLogger(e.logger))
			if httpAddr != "" {
				e.logger.Info("serving MCP over HTTP", "addr", httpAddr)
				return server.ServeHTTP(ctx, httpAddr)
			}
			return server.ServeStdio(ctx)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "serve over HTTP on this address instead of stdio")
	return cmd
}
