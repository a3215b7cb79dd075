package flow

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/flowrun/flowrun/internal/action"
)

var tokenRegex = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Interpolate replaces {name} tokens with the same-named top-level input
// values. Tokens without a value are left as they are.
func Interpolate(prompt string, in action.Input) string {
	return tokenRegex.ReplaceAllStringFunc(prompt, func(tok string) string {
		v, ok := in[tok[1:len(tok)-1]]
		if !ok {
			return tok
		}
		return stringify(v)
	})
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	case fmt.Stringer:
		return val.String()
	case bool, int, int64, float64:
		return fmt.Sprint(val)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
