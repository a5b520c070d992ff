package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/taskq/internal/api"
	"github.com/randalmurphal/taskq/internal/db/driver"
	"github.com/randalmurphal/taskq/internal/events"
	"github.com/randalmurphal/taskq/internal/lock"
	"github.com/randalmurphal/taskq/internal/mcp"
)

// newServeCmd creates the serve command for the API server
func newServeCmd() *cobra.Command {
	var mcpAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the taskq HTTP API, and optionally the MCP server over HTTP.

The API provides REST endpoints for projects, queues and approvals plus a
websocket stream of queue events at /api/ws. Both servers share one event
stream, so a move made by an agent shows up on the websocket.

Example:
  taskq serve                          # API on the configured address
  taskq serve --port 9000              # custom port
  taskq serve --mcp-addr :8089         # also serve MCP over HTTP`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			if e.cfg.Database.Driver == string(driver.DialectSQLite) {
				guard := lock.NewPIDGuard(filepath.Dir(e.cfg.Database.Path))
				if err := guard.Acquire(); err != nil {
					return err
				}
				defer guard.Release()
			}

			pub := events.NewLogPublisher(e.logger, events.WithInnerPublisher(events.NewMemoryPublisher()))
			defer pub.Close()

			addr := e.cfg.Server.Addr()
			server := api.New(&api.Config{Addr: addr, Logger: e.logger, Publisher: pub}, e.store)

			ctx, cancel := SetupSignalHandler(cmdContext(cmd))
			defer cancel()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return server.StartContext(ctx)
			})

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "API server listening on http://%s\n", addr)
			if mcpAddr != "" {
				mcpServer := mcp.NewServer(e.store, mcp.WithPublisher(pub), mcp.WithLogger(e.logger))
				g.Go(func() error {
					return mcpServer.ServeHTTP(ctx, mcpAddr)
				})
				fmt.Fprintf(out, "MCP server listening on http://%s\n", mcpAddr)
			}
			fmt.Fprintln(out, "Press Ctrl+C to stop")

			return g.Wait()
		},
	}

	cmd.Flags().String("host", "", "address to bind")
	cmd.Flags().Int("port", 0, "port to listen on")
	cmd.Flags().StringVar(&mcpAddr, "mcp-addr", "", "also serve MCP over HTTP on this address")
	bindFlag(cmd.Flags().Lookup("host"), "server.host")
	bindFlag(cmd.Flags().Lookup("port"), "server.port")
	return cmd
}
