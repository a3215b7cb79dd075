package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	udiff "github.com/aymanbagabas/go-udiff"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/reflow/truncate"
	"github.com/spf13/cobra"

	"github.com/flowrun/flowrun/internal/app"
	"github.com/flowrun/flowrun/internal/history"
)

const maxSummaryWidth = 50

var errHistoryDisabled = errors.New("run history is disabled (store type is none)")

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flowID, _ := cmd.Flags().GetString("flow")
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := setupHistory(cmd)
		if err != nil {
			return err
		}
		defer a.Shutdown()

		runs, err := a.History.List(cmd.Context(), flowID, limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}
		fmt.Println(runTable(runs))
		return nil
	},
}

var runShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print a recorded run with its steps as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setupHistory(cmd)
		if err != nil {
			return err
		}
		defer a.Shutdown()

		run, err := a.History.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(run, "", "  ")
		if err != nil {
			return err
		}
		return highlight(os.Stdout, string(data)+"\n", "json")
	},
}

var runDiffCmd = &cobra.Command{
	Use:   "diff <run-id> <run-id>",
	Short: "Show a unified diff of the final outputs of two runs",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setupHistory(cmd)
		if err != nil {
			return err
		}
		defer a.Shutdown()

		var outputs [2]string
		for i, id := range args {
			run, err := a.History.Get(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("%s: %w", id, err)
			}
			outputs[i] = prettyOutput(run)
		}
		diff := udiff.Unified(args[0], args[1], outputs[0], outputs[1])
		if diff == "" {
			fmt.Println("Outputs are identical.")
			return nil
		}
		return highlight(os.Stdout, diff, "diff")
	},
}

// prettyOutput renders the final output of run as indented JSON, or its
// error when the run failed.
func prettyOutput(run history.Run) string {
	if len(run.Output) == 0 {
		return run.Error + "\n"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, run.Output, "", "  "); err != nil {
		return string(run.Output) + "\n"
	}
	buf.WriteByte('\n')
	return buf.String()
}

var runDeleteCmd = &cobra.Command{
	Use:   "rm <run-id>",
	Short: "Delete a recorded run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setupHistory(cmd)
		if err != nil {
			return err
		}
		defer a.Shutdown()
		return a.History.Delete(cmd.Context(), args[0])
	},
}

func setupHistory(cmd *cobra.Command) (*app.App, error) {
	a, err := setup(cmd)
	if err != nil {
		return nil, err
	}
	if a.History == nil {
		a.Shutdown()
		return nil, errHistoryDisabled
	}
	return a, nil
}

func runTable(runs []history.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		duration := "-"
		if !r.EndedAt.IsZero() {
			duration = r.EndedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		rows = append(rows, []string{
			r.ID,
			r.FlowID,
			r.Status,
			strconv.Itoa(r.StepCount),
			r.StartedAt.Local().Format(time.DateTime),
			duration,
			truncate.StringWithTail(r.Summary(), maxSummaryWidth, "…"),
		})
	}
	colorEnabled()
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("RUN", "FLOW", "STATUS", "STEPS", "STARTED", "DURATION", "SUMMARY").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 2 {
				if st, ok := statusStyles[runs[row].Status]; ok {
					return st
				}
			}
			return cellStyle
		}).
		String()
}

func init() {
	runsCmd.Flags().String("flow", "", "Only show runs of this flow")
	runsCmd.Flags().Int("limit", history.DefaultListLimit, "Maximum number of runs")
	runsCmd.AddCommand(runShowCmd, runDiffCmd, runDeleteCmd)
}
