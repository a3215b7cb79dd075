package action

import (
	"fmt"
	"reflect"
)

// Output keys the engine inspects by convention.
const (
	OutputResults    = "results"
	OutputSources    = "sources"
	OutputConfidence = "confidence"
	OutputContent    = "content"
)

// Source is a reference backing a step output.
type Source struct {
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// Envelope is implemented by outputs that expose sources or confidence.
// Either accessor may report absence with ok=false.
type Envelope interface {
	Sources() ([]Source, bool)
	Confidence() (float64, bool)
}

// ResultCounter is implemented by outputs that expose a results collection.
type ResultCounter interface {
	ResultCount() (int, bool)
}

// MapOutput adapts a map payload to Envelope and ResultCounter.
type MapOutput map[string]any

func (m MapOutput) Sources() ([]Source, bool) {
	raw, ok := m[OutputSources]
	if !ok || raw == nil {
		return nil, false
	}
	return toSources(raw)
}

func (m MapOutput) Confidence() (float64, bool) {
	raw, ok := m[OutputConfidence]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func (m MapOutput) ResultCount() (int, bool) {
	raw, ok := m[OutputResults]
	if !ok || raw == nil {
		return 0, ok
	}
	v := reflect.ValueOf(raw)
	switch v.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return v.Len(), true
	}
	return 0, false
}

// AsEnvelope returns output as an Envelope when it can provide one.
func AsEnvelope(output any) (Envelope, bool) {
	switch v := output.(type) {
	case Envelope:
		return v, true
	case map[string]any:
		return MapOutput(v), true
	}
	return nil, false
}

// Lift extracts the optional sources and confidence from output.
func Lift(output any) ([]Source, *float64) {
	env, ok := AsEnvelope(output)
	if !ok {
		return nil, nil
	}
	var confidence *float64
	if c, ok := env.Confidence(); ok {
		confidence = &c
	}
	sources, _ := env.Sources()
	return sources, confidence
}

// HasEmptyResults reports whether output exposes a results collection that is empty.
func HasEmptyResults(output any) bool {
	var counter ResultCounter
	switch v := output.(type) {
	case ResultCounter:
		counter = v
	case map[string]any:
		counter = MapOutput(v)
	default:
		return false
	}
	n, ok := counter.ResultCount()
	return ok && n == 0
}

func toSources(raw any) ([]Source, bool) {
	switch v := raw.(type) {
	case []Source:
		return v, true
	case []string:
		out := make([]Source, 0, len(v))
		for _, u := range v {
			out = append(out, Source{URL: u})
		}
		return out, true
	case []any:
		out := make([]Source, 0, len(v))
		for _, item := range v {
			switch s := item.(type) {
			case Source:
				out = append(out, s)
			case string:
				out = append(out, Source{URL: s})
			case map[string]any:
				out = append(out, Source{
					Title:   stringField(s, "title"),
					URL:     stringField(s, "url"),
					Snippet: stringField(s, "snippet"),
				})
			default:
				out = append(out, Source{Title: fmt.Sprintf("%v", s)})
			}
		}
		return out, true
	}
	return nil, false
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
