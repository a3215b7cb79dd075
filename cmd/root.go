package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowrun/flowrun/internal/app"
	"github.com/flowrun/flowrun/internal/config"
	"github.com/flowrun/flowrun/internal/db"
	"github.com/flowrun/flowrun/internal/logging"
	"github.com/flowrun/flowrun/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "flowrun",
	Short: "Run declarative multi-step flows over named workers",
	Long: `flowrun executes flows: YAML definitions of steps such as search, analyze,
synthesize, compare and recommend. Each step is routed to a named worker (an LLM,
a web search or a static responder), and the final step's output is rendered in
the format the flow asks for.`,
	Example: `
  # List the available flows
  flowrun flows

  # Run a flow
  flowrun run market-research "electric cargo bikes"

  # Run a flow with caller context and JSON output
  flowrun run market-research "electric cargo bikes" --ctx region=EU -f json

  # Stream run events as JSON lines
  flowrun run market-research "electric cargo bikes" --stream

  # Serve the HTTP API with hot reload of flow files
  flowrun serve --watch

  # Show recorded runs
  flowrun runs

  # Print version
  flowrun -v
  `,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flag("version").Changed {
			fmt.Println(version.Version)
			return nil
		}
		return cmd.Help()
	},
}

// setup loads configuration from the -c directory and wires the engine.
// Run history is disabled, not fatal, when the store is configured as none.
func setup(cmd *cobra.Command) (*app.App, error) {
	debug, _ := cmd.Flags().GetBool("debug")
	cwd, _ := cmd.Flags().GetString("cwd")

	if cwd != "" {
		if err := os.Chdir(cwd); err != nil {
			return nil, fmt.Errorf("failed to change directory: %v", err)
		}
	} else {
		c, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current working directory: %v", err)
		}
		cwd = c
	}

	cfg, err := config.Load(cwd, debug)
	if err != nil {
		return nil, err
	}

	conn, err := db.Connect(cfg)
	if err != nil {
		if !errors.Is(err, db.ErrStoreDisabled) {
			return nil, err
		}
		conn = nil
	}

	a, err := app.New(cmd.Context(), cfg, conn)
	if err != nil {
		logging.Error("Failed to create app", "error", err)
		if conn != nil {
			conn.Close()
		}
		return nil, err
	}
	return a, nil
}

func Execute() {
	ctx, cancel := signalContext(context.Background())
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Version")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Debug")
	rootCmd.PersistentFlags().StringP("cwd", "c", "", "Current working directory")

	rootCmd.AddCommand(runCmd, flowsCmd, runsCmd, serveCmd)
}
