package cmd

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/flowrun/flowrun/internal/app"
	"github.com/flowrun/flowrun/internal/flow"
	"github.com/flowrun/flowrun/internal/format"
	"github.com/flowrun/flowrun/internal/logging"
)

var runCmd = &cobra.Command{
	Use:   "run <flow> <query...>",
	Short: "Run a flow for a query and print its output",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		flowID := args[0]
		query := strings.Join(args[1:], " ")

		ctxPairs, _ := cmd.Flags().GetStringArray("ctx")
		ctxFile, _ := cmd.Flags().GetString("ctx-file")
		outputFormat, _ := cmd.Flags().GetString("output-format")
		stream, _ := cmd.Flags().GetBool("stream")
		quiet, _ := cmd.Flags().GetBool("quiet")
		render, _ := cmd.Flags().GetBool("render")

		var override format.OutputFormat
		if outputFormat != "" {
			f, err := format.Parse(outputFormat)
			if err != nil {
				return fmt.Errorf("invalid format option: %s\n%s", outputFormat, format.GetHelpText())
			}
			override = f
		}

		callerCtx, err := parseCallerContext(ctxPairs, ctxFile)
		if err != nil {
			return err
		}

		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Shutdown()

		if stream {
			return streamFlow(cmd, a, flowID, query, callerCtx, override)
		}
		return runFlow(cmd, a, flowID, query, callerCtx, override, quiet, render)
	},
}

func runFlow(cmd *cobra.Command, a *app.App, flowID, query string, callerCtx map[string]any, override format.OutputFormat, quiet, render bool) error {
	ctx := cmd.Context()
	logging.Info("Running flow", "flow", flowID)

	var spinner *format.Spinner
	if !quiet {
		spinner = format.NewSpinner("Running flow...")
		spinner.Start()
		defer spinner.Stop()
		unsubscribe := a.Flows.On(flow.EventStepStart, func(e flow.Event) {
			spinner.SetMessage(fmt.Sprintf("Running %s on %s...", e.StepID, e.WorkerName))
		})
		defer unsubscribe()
	}

	ectx, err := a.Flows.Run(ctx, query, flowID, callerCtx)
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		if ectx != nil {
			fmt.Fprintf(os.Stderr, "Run %s stopped after %d steps: %s\n", ectx.SessionID, len(ectx.Trail), strings.Join(ectx.Trail, " -> "))
		}
		return fmt.Errorf("flow execution failed: %w", err)
	}

	f, err := a.Flows.GetFlow(flowID)
	if err != nil {
		return err
	}
	spec := f.Output
	if override != "" {
		spec.Format = override
	}

	last, ok := ectx.LastResult()
	if !ok {
		logging.Info("Flow produced no steps", "flow", flowID)
		return nil
	}
	out, err := printable(format.Format(last.Output, spec))
	if err != nil {
		return err
	}
	if render && (spec.Format == format.Prose || spec.Format == format.Report) {
		width := 100
		if w, _, werr := term.GetSize(int(os.Stdout.Fd())); werr == nil && w > 0 {
			width = w
		}
		if rendered, rerr := format.RenderMarkdown(out, width); rerr == nil {
			out = rendered
		} else {
			logging.Warn("Failed to render markdown", "error", rerr)
		}
	}
	fmt.Println(out)

	logging.Info("Flow run completed", "flow", flowID, "session", ectx.SessionID, "steps", len(ectx.Trail))
	return nil
}

// streamFlow prints one JSON object per stream event.
func streamFlow(cmd *cobra.Command, a *app.App, flowID, query string, callerCtx map[string]any, override format.OutputFormat) error {
	var opts []flow.StreamOption
	if override != "" {
		opts = append(opts, flow.WithFormat(override))
	}
	enc := json.NewEncoder(os.Stdout)
	var runErr error
	for ev := range a.Flows.Stream(cmd.Context(), query, flowID, callerCtx, opts...) {
		if err := enc.Encode(ev); err != nil {
			return err
		}
		if ev.Kind == flow.StreamError {
			runErr = fmt.Errorf("flow execution failed: %s", ev.Error)
		}
	}
	return runErr
}

func printable(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling result: %w", err)
	}
	return string(data), nil
}

// parseCallerContext merges key=value pairs over the JSON object in file.
func parseCallerContext(pairs []string, file string) (map[string]any, error) {
	callerCtx := map[string]any{}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading context file: %w", err)
		}
		var fileCtx map[string]any
		if err := json.Unmarshal(data, &fileCtx); err != nil {
			return nil, fmt.Errorf("parsing context file: %w", err)
		}
		maps.Copy(callerCtx, fileCtx)
	}
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --ctx format %q, expected key=value", pair)
		}
		callerCtx[k] = v
	}
	if len(callerCtx) == 0 {
		return nil, nil
	}
	return callerCtx, nil
}

func init() {
	runCmd.Flags().StringArray("ctx", nil, "Caller context entry as key=value (repeatable)")
	runCmd.Flags().String("ctx-file", "", "JSON file with caller context")
	runCmd.Flags().StringP("output-format", "f", "", "Output format overriding the flow's ("+strings.Join(format.SupportedFormats, ", ")+")")
	runCmd.Flags().Bool("stream", false, "Print stream events as JSON lines")
	runCmd.Flags().BoolP("quiet", "q", false, "Hide spinner")
	runCmd.Flags().Bool("render", false, "Render prose and report output as styled markdown")

	runCmd.RegisterFlagCompletionFunc("output-format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return format.SupportedFormats, cobra.ShellCompDirectiveNoFileComp
	})
}
