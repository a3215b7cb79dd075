package cmd

import (
	"context"
	"errors"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/flowrun/flowrun/internal/logging"
	"github.com/flowrun/flowrun/internal/server"
	"github.com/flowrun/flowrun/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve flows over HTTP, server-sent events and MCP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		stdio, _ := cmd.Flags().GetBool("mcp-stdio")
		watch, _ := cmd.Flags().GetBool("watch")

		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Shutdown()

		if addr == "" {
			addr = a.Config.Server.Addr
		}

		g, ctx := errgroup.WithContext(cmd.Context())
		if watch {
			if err := a.WatchFlows(ctx); err != nil {
				return err
			}
		}

		mcp := server.NewMCPServer(a.Flows, version.Version)
		opts := []server.Option{server.WithMCP(mcp)}
		if a.History != nil {
			opts = append(opts, server.WithHistory(a.History))
		}
		srv := server.New(a.Flows, opts...)

		g.Go(func() error {
			return srv.ListenAndServe(ctx, addr)
		})
		if stdio {
			g.Go(func() error {
				defer logging.RecoverPanic("mcp-stdio", nil)
				logging.Info("MCP server listening on stdio")
				err := mcpserver.NewStdioServer(mcp).Listen(ctx, os.Stdin, os.Stdout)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		}
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "HTTP listen address (defaults to server.addr)")
	serveCmd.Flags().Bool("mcp-stdio", false, "Also serve MCP over stdin/stdout")
	serveCmd.Flags().Bool("watch", false, "Reload flow files when they change")
}
