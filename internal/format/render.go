package format

import (
	"fmt"

	"github.com/charmbracelet/glamour"
)

const defaultRenderWidth = 100

// RenderMarkdown renders markdown for a terminal.
func RenderMarkdown(content string, width int) (string, error) {
	if width <= 0 {
		width = defaultRenderWidth
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("creating markdown renderer: %w", err)
	}
	return r.Render(content)
}
