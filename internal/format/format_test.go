package format

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected OutputFormat
		wantErr  bool
	}{
		{"structured", Structured, false},
		{"json", Structured, false},
		{"prose", Prose, false},
		{"Markdown", Prose, false},
		{"report", Report, false},
		{"markup", Markup, false},
		{"html", Markup, false},
		{" REPORT ", Report, false},
		{"invalid", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("Parse(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func sampleOutput() map[string]any {
	return map[string]any{
		"content":    "Widgets are small.\n\nThey are cheap.",
		"confidence": 0.75,
		"sources": []any{
			map[string]any{"title": "Widget Facts", "url": "https://example.com/w"},
		},
		"keyFindings": []any{"small", "cheap"},
	}
}

func TestFormatUnknownReturnsOutput(t *testing.T) {
	out := sampleOutput()
	got := Format(out, Spec{Format: "pdf"})
	assert.Equal(t, out, got)

	got = Format(out, Spec{})
	assert.Equal(t, out, got)
}

func TestFormatStructured(t *testing.T) {
	got := Format(map[string]any{"b": 1, "a": "x"}, Spec{Format: "json"})
	assert.Equal(t, "{\n  \"a\": \"x\",\n  \"b\": 1\n}", got)
}

func TestFormatProse(t *testing.T) {
	got, ok := Format(sampleOutput(), Spec{Format: Prose, Flags: map[string]bool{FlagSources: true, FlagConfidence: true}}).(string)
	require.True(t, ok)

	assert.True(t, strings.HasPrefix(got, "Widgets are small."))
	assert.Contains(t, got, "## Key findings\n\n- small\n- cheap")
	assert.Contains(t, got, "## Sources\n\n- [Widget Facts](https://example.com/w)")
	assert.Contains(t, got, "Confidence: 75%")

	plain := Format(sampleOutput(), Spec{Format: Prose}).(string)
	assert.NotContains(t, plain, "Sources")
	assert.NotContains(t, plain, "Confidence")
}

func TestFormatReport(t *testing.T) {
	got := Format(sampleOutput(), Spec{Format: Report, Flags: map[string]bool{FlagSources: true}}).(string)
	assert.Equal(t, `# Report

1. Summary

Widgets are small.

They are cheap.

2. Key findings

- small
- cheap

3. Sources

- [Widget Facts](https://example.com/w)`, got)
}

func TestFormatMarkup(t *testing.T) {
	got := Format(map[string]any{
		"content": "a <b> & c",
		"sources": []any{"https://example.com/?q=1&r=2"},
	}, Spec{Format: "html", Flags: map[string]bool{FlagSources: true}}).(string)

	assert.Equal(t, `<div class="flow-output"><p>a &lt;b&gt; &amp; c</p><ul class="sources"><li><a href="https://example.com/?q=1&amp;r=2">https://example.com/?q=1&amp;r=2</a></li></ul></div>`, got)
}

func TestFormatMarkupLinksOnlyWebURLs(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"https", "https://example.com/a", `<li><a href="https://example.com/a">https://example.com/a</a></li>`},
		{"http upper case scheme", "HTTP://example.com", `<li><a href="http://example.com">HTTP://example.com</a></li>`},
		{"javascript", "javascript:alert(1)", `<li>javascript:alert(1)</li>`},
		{"data", "data:text/html,<script>x</script>", `<li>data:text/html,&lt;script&gt;x&lt;/script&gt;</li>`},
		{"relative", "/local/path", `<li>/local/path</li>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Format(map[string]any{"sources": []any{tt.source}}, Spec{Format: Markup, Flags: map[string]bool{FlagSources: true}}).(string)
			assert.Contains(t, got, tt.want)
			assert.NotContains(t, got, `href="javascript`)
		})
	}
}

func TestFormatStringOutput(t *testing.T) {
	assert.Equal(t, "plain answer", Format("plain answer", Spec{Format: Prose}))
}

func TestTitle(t *testing.T) {
	tests := map[string]string{
		"keyFindings": "Key findings",
		"next_steps":  "Next steps",
		"results":     "Results",
	}
	for in, want := range tests {
		if got := title(in); got != want {
			t.Errorf("title(%q) = %q, want %q", in, got, want)
		}
	}
}
