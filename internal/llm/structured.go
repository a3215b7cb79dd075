package llm

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ParseObject extracts a JSON object from a model answer. Models often wrap
// JSON in markdown fences or surround it with prose; both are tolerated.
// It returns false when no object can be found.
func ParseObject(content string) (map[string]any, bool) {
	candidate := strings.TrimSpace(content)
	if strings.HasPrefix(candidate, "```") {
		candidate = strings.TrimPrefix(candidate, "```json")
		candidate = strings.TrimPrefix(candidate, "```")
		if idx := strings.LastIndex(candidate, "```"); idx >= 0 {
			candidate = candidate[:idx]
		}
		candidate = strings.TrimSpace(candidate)
	}
	if !gjson.Valid(candidate) {
		start := strings.Index(candidate, "{")
		end := strings.LastIndex(candidate, "}")
		if start < 0 || end <= start {
			return nil, false
		}
		candidate = candidate[start : end+1]
		if !gjson.Valid(candidate) {
			return nil, false
		}
	}
	parsed := gjson.Parse(candidate)
	if !parsed.IsObject() {
		return nil, false
	}
	obj, ok := parsed.Value().(map[string]any)
	return obj, ok
}
