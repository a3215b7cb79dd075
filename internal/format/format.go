// Package format renders the output of a flow's last step into the
// presentation shape named by the flow's output spec.
package format

import (
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"sort"
	"strings"

	"github.com/flowrun/flowrun/internal/action"
)

// OutputFormat names a presentation shape for a flow result.
type OutputFormat string

const (
	// Structured renders the output as indented JSON.
	Structured OutputFormat = "structured"

	// Prose renders the output as markdown.
	Prose OutputFormat = "prose"

	// Report renders the output as a numbered report.
	Report OutputFormat = "report"

	// Markup renders the output as an escaped HTML fragment.
	Markup OutputFormat = "markup"
)

// Flags understood by the renderers.
const (
	FlagSources    = "sources"
	FlagConfidence = "confidence"
)

var aliases = map[string]OutputFormat{
	"json":     Structured,
	"markdown": Prose,
	"html":     Markup,
}

// String returns the string representation of the OutputFormat
func (f OutputFormat) String() string {
	return string(f)
}

// SupportedFormats is a list of all supported output formats as strings
var SupportedFormats = []string{
	string(Structured),
	string(Prose),
	string(Report),
	string(Markup),
}

// Spec is the presentation configuration of a flow.
type Spec struct {
	Format OutputFormat    `yaml:"format,omitempty" json:"format,omitempty"`
	Flags  map[string]bool `yaml:"flags,omitempty" json:"flags,omitempty"`
}

func (s Spec) flag(name string) bool {
	return s.Flags[name]
}

// Parse converts a string to an OutputFormat, accepting the json, markdown
// and html aliases.
func Parse(s string) (OutputFormat, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if f, ok := aliases[s]; ok {
		return f, nil
	}
	switch OutputFormat(s) {
	case Structured, Prose, Report, Markup:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("invalid format: %s", s)
	}
}

// IsValid checks if the provided format string is supported
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// GetHelpText returns a formatted string describing all supported formats
func GetHelpText() string {
	return fmt.Sprintf(`Supported output formats:
- %s (json): indented JSON of the last step output
- %s (markdown): markdown prose
- %s: numbered report
- %s (html): escaped HTML fragment`,
		Structured, Prose, Report, Markup)
}

// Format renders output according to spec. Unknown formats return output
// unchanged.
func Format(output any, spec Spec) any {
	f, err := Parse(string(spec.Format))
	if err != nil {
		return output
	}
	switch f {
	case Structured:
		return formatAsJSON(output)
	case Prose:
		return formatAsProse(output, spec)
	case Report:
		return formatAsReport(output, spec)
	case Markup:
		return formatAsMarkup(output, spec)
	}
	return output
}

func formatAsJSON(output any) string {
	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", output)
	}
	return string(data)
}

func formatAsProse(output any, spec Spec) string {
	var sb strings.Builder
	body, rest := split(output)
	if body != "" {
		sb.WriteString(body)
		sb.WriteString("\n")
	}
	for _, key := range sortedKeys(rest) {
		fmt.Fprintf(&sb, "\n## %s\n\n", title(key))
		writeValue(&sb, rest[key])
	}
	writeFooter(&sb, output, spec, "## Sources")
	return strings.TrimSpace(sb.String())
}

func formatAsReport(output any, spec Spec) string {
	var sb strings.Builder
	sb.WriteString("# Report\n")
	body, rest := split(output)
	n := 0
	if body != "" {
		n++
		fmt.Fprintf(&sb, "\n%d. Summary\n\n%s\n", n, body)
	}
	for _, key := range sortedKeys(rest) {
		n++
		fmt.Fprintf(&sb, "\n%d. %s\n\n", n, title(key))
		writeValue(&sb, rest[key])
	}
	writeFooter(&sb, output, spec, fmt.Sprintf("%d. Sources", n+1))
	return strings.TrimSpace(sb.String())
}

func formatAsMarkup(output any, spec Spec) string {
	var sb strings.Builder
	sb.WriteString(`<div class="flow-output">`)
	body, rest := split(output)
	for _, para := range strings.Split(body, "\n\n") {
		if para = strings.TrimSpace(para); para != "" {
			fmt.Fprintf(&sb, "<p>%s</p>", html.EscapeString(para))
		}
	}
	for _, key := range sortedKeys(rest) {
		fmt.Fprintf(&sb, "<h2>%s</h2><pre>%s</pre>", html.EscapeString(title(key)), html.EscapeString(formatAsJSON(rest[key])))
	}
	if spec.flag(FlagSources) {
		if sources, _ := action.Lift(output); len(sources) > 0 {
			sb.WriteString(`<ul class="sources">`)
			for _, s := range sources {
				if href, ok := linkable(s.URL); ok {
					fmt.Fprintf(&sb, `<li><a href="%s">%s</a></li>`, html.EscapeString(href), html.EscapeString(sourceLabel(s)))
				} else {
					fmt.Fprintf(&sb, "<li>%s</li>", html.EscapeString(sourceLabel(s)))
				}
			}
			sb.WriteString("</ul>")
		}
	}
	sb.WriteString("</div>")
	return sb.String()
}

// linkable accepts only absolute http and https URLs as link targets.
func linkable(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u.String(), true
	}
	return "", false
}

// split separates the content body from the remaining displayable keys.
func split(output any) (string, map[string]any) {
	switch v := output.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case map[string]any:
		body, _ := v[action.OutputContent].(string)
		rest := make(map[string]any, len(v))
		for k, val := range v {
			switch k {
			case action.OutputContent, action.OutputSources, action.OutputConfidence:
				continue
			}
			rest[k] = val
		}
		return body, rest
	default:
		return formatAsJSON(v), nil
	}
}

func writeValue(sb *strings.Builder, v any) {
	switch val := v.(type) {
	case string:
		sb.WriteString(val)
		sb.WriteString("\n")
	case []any:
		for _, item := range val {
			fmt.Fprintf(sb, "- %s\n", itemText(item))
		}
	default:
		fmt.Fprintf(sb, "```json\n%s\n```\n", formatAsJSON(val))
	}
}

func itemText(item any) string {
	m, ok := item.(map[string]any)
	if !ok {
		if s, ok := item.(string); ok {
			return s
		}
		return formatAsJSON(item)
	}
	t, _ := m["title"].(string)
	u, _ := m["url"].(string)
	snippet, _ := m["snippet"].(string)
	switch {
	case t != "" && u != "":
		t = fmt.Sprintf("[%s](%s)", t, u)
	case t == "":
		t = u
	}
	if snippet != "" {
		if t != "" {
			return t + ": " + snippet
		}
		return snippet
	}
	if t != "" {
		return t
	}
	data, _ := json.Marshal(m)
	return string(data)
}

func writeFooter(sb *strings.Builder, output any, spec Spec, heading string) {
	sources, confidence := action.Lift(output)
	if spec.flag(FlagSources) && len(sources) > 0 {
		fmt.Fprintf(sb, "\n%s\n\n", heading)
		for _, s := range sources {
			if s.URL != "" {
				fmt.Fprintf(sb, "- [%s](%s)\n", sourceLabel(s), s.URL)
			} else {
				fmt.Fprintf(sb, "- %s\n", sourceLabel(s))
			}
		}
	}
	if spec.flag(FlagConfidence) && confidence != nil {
		fmt.Fprintf(sb, "\nConfidence: %.0f%%\n", *confidence*100)
	}
}

func sourceLabel(s action.Source) string {
	if s.Title != "" {
		return s.Title
	}
	return s.URL
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// title turns camelCase and snake_case keys into a heading.
func title(key string) string {
	var sb strings.Builder
	for i, r := range key {
		switch {
		case r == '_' || r == '-':
			sb.WriteRune(' ')
		case i > 0 && r >= 'A' && r <= 'Z':
			sb.WriteRune(' ')
			sb.WriteRune(r + ('a' - 'A'))
		case i == 0 && r >= 'a' && r <= 'z':
			sb.WriteRune(r - ('a' - 'A'))
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
