package cmd

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/reflow/truncate"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flowrun/flowrun/internal/flow"
)

const maxDescriptionWidth = 60

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "List the available flows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, _ := cmd.Flags().GetString("filter")

		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Shutdown()

		flows, err := a.Flows.Flows().Filter(filter)
		if err != nil {
			return err
		}
		if len(flows) == 0 {
			fmt.Println("No flows found.")
			return nil
		}
		fmt.Println(flowTable(flows))
		return nil
	},
}

var flowShowCmd = &cobra.Command{
	Use:   "show <flow>",
	Short: "Print a flow definition as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.Shutdown()

		f, err := a.Flows.GetFlow(args[0])
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(f); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
		return highlight(os.Stdout, buf.String(), "yaml")
	},
}

func flowTable(flows []flow.Flow) string {
	colorEnabled()
	disabled := make(map[int]bool)
	rows := make([][]string, 0, len(flows))
	for i, f := range flows {
		disabled[i] = f.Disabled
		rows = append(rows, []string{
			f.ID,
			f.Name,
			strconv.Itoa(len(f.Steps)),
			truncate.StringWithTail(f.Description, maxDescriptionWidth, "…"),
		})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("ID", "NAME", "STEPS", "DESCRIPTION").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case disabled[row]:
				return disabledStyle
			}
			return cellStyle
		})
	return t.String()
}

func init() {
	flowsCmd.Flags().String("filter", "", "Fuzzy filter on flow ID and name")
	flowsCmd.AddCommand(flowShowCmd)
}
