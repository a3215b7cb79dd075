package cmd

import (
	"io"
	"os"

	"github.com/alecthomas/chroma/v2/quick"
	catppuccin "github.com/catppuccin/go"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/flowrun/flowrun/internal/flow"
)

func adaptive(pick func(catppuccin.Flavor) catppuccin.Color) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{
		Light: pick(catppuccin.Latte).Hex,
		Dark:  pick(catppuccin.Mocha).Hex,
	}
}

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(adaptive(catppuccin.Flavor.Mauve))
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	disabledStyle = cellStyle.Foreground(adaptive(catppuccin.Flavor.Overlay0))
	borderStyle   = lipgloss.NewStyle().Foreground(adaptive(catppuccin.Flavor.Surface2))

	statusStyles = map[string]lipgloss.Style{
		string(flow.RunCompleted): cellStyle.Foreground(adaptive(catppuccin.Flavor.Green)),
		string(flow.RunFailed):    cellStyle.Foreground(adaptive(catppuccin.Flavor.Red)),
		string(flow.RunRunning):   cellStyle.Foreground(adaptive(catppuccin.Flavor.Yellow)),
	}
)

// colorEnabled reports whether stdout is a terminal and NO_COLOR is unset.
func colorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// highlight writes src to w, syntax highlighted with lexer when color is enabled.
func highlight(w io.Writer, src, lexer string) error {
	if !colorEnabled() {
		_, err := io.WriteString(w, src)
		return err
	}
	style := "catppuccin-mocha"
	if !lipgloss.HasDarkBackground() {
		style = "catppuccin-latte"
	}
	return quick.Highlight(w, src, lexer, "terminal256", style)
}
