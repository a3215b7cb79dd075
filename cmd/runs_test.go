package cmd

import (
	"encoding/json"
	"strings"
	"testing"

	udiff "github.com/aymanbagabas/go-udiff"
	"github.com/stretchr/testify/assert"

	"github.com/flowrun/flowrun/internal/history"
)

func TestPrettyOutput(t *testing.T) {
	tests := []struct {
		name string
		run  history.Run
		want string
	}{
		{"indents output", history.Run{Output: json.RawMessage(`{"content":"hi"}`)}, "{\n  \"content\": \"hi\"\n}\n"},
		{"failed run", history.Run{Error: "step limit exceeded"}, "step limit exceeded\n"},
		{"invalid json kept", history.Run{Output: json.RawMessage(`{oops`)}, "{oops\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, prettyOutput(tt.run))
		})
	}
}

func TestRunOutputDiff(t *testing.T) {
	a := prettyOutput(history.Run{Output: json.RawMessage(`{"content":"one","confidence":0.5}`)})
	b := prettyOutput(history.Run{Output: json.RawMessage(`{"content":"two","confidence":0.5}`)})

	diff := udiff.Unified("run-a", "run-b", a, b)
	assert.True(t, strings.HasPrefix(diff, "--- run-a\n+++ run-b\n"))
	assert.Contains(t, diff, `-  "content": "one",`)
	assert.Contains(t, diff, `+  "content": "two",`)
	assert.Empty(t, udiff.Unified("run-a", "run-a", a, a))
}

func TestHighlightWithoutColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var sb strings.Builder
	assert.NoError(t, highlight(&sb, "{}\n", "json"))
	assert.Equal(t, "{}\n", sb.String())
}
