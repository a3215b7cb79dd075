package action

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInvoker struct {
	got Request
	out any
	err error
}

func (r *recordingInvoker) Invoke(_ context.Context, req Request) (any, error) {
	r.got = req
	return r.out, r.err
}

func TestSearchCapabilityDefaults(t *testing.T) {
	w := &recordingInvoker{out: map[string]any{"results": []any{"a"}}}
	var thoughts []Thought
	ctx := WithThinker(context.Background(), func(th Thought) { thoughts = append(thoughts, th) })

	out, err := SearchCapability().Invoke(ctx, w, "find widgets", Input{InputQuery: "widgets"}, nil)
	require.NoError(t, err)

	params, ok := w.got.Params.(SearchParams)
	require.True(t, ok, "expected SearchParams, got %T", w.got.Params)
	assert.Equal(t, SearchParams{Query: "widgets", Depth: DepthStandard, MaxResults: 10}, params)
	assert.Equal(t, Search, w.got.Action)
	assert.Equal(t, "find widgets", w.got.Prompt)
	assert.Equal(t, map[string]any{"results": []any{"a"}}, out)

	require.Len(t, thoughts, 1)
	assert.Equal(t, "search", thoughts[0].Kind)
}

func TestSearchCapabilityConfig(t *testing.T) {
	w := &recordingInvoker{}
	cfg := Config{"depth": "deep", "maxResults": float64(25), "timeFilter": "week"}

	out, err := SearchCapability().Invoke(context.Background(), w, "", Input{InputQuery: "q"}, cfg)
	require.NoError(t, err)

	assert.Equal(t, SearchParams{Query: "q", Depth: "deep", MaxResults: 25, TimeFilter: "week"}, w.got.Params)
	// A nil worker answer is normalized into an empty results collection.
	assert.True(t, HasEmptyResults(out))
}

func TestSearchCapabilityOutputShapes(t *testing.T) {
	tests := []struct {
		name      string
		out       any
		want      any
		noResults bool
	}{
		{"bare list wrapped", []any{"a"}, map[string]any{"results": []any{"a"}}, false},
		{"nil becomes empty results", nil, map[string]any{"results": []any{}}, true},
		{"map without results untouched", map[string]any{"content": "three widgets found"}, map[string]any{"content": "three widgets found"}, false},
		{"empty results kept", map[string]any{"results": []any{}}, map[string]any{"results": []any{}}, true},
		{"prose untouched", "just text", "just text", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &recordingInvoker{out: tt.out}
			out, err := SearchCapability().Invoke(context.Background(), w, "", Input{InputQuery: "q"}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
			assert.Equal(t, tt.noResults, HasEmptyResults(out))
		})
	}

	t.Run("worker map is not mutated", func(t *testing.T) {
		answer := map[string]any{"content": "x"}
		w := &recordingInvoker{out: answer}
		_, err := SearchCapability().Invoke(context.Background(), w, "", Input{InputQuery: "q"}, nil)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"content": "x"}, answer)
	})
}

func TestCapabilityParamsVariants(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		cfg    Config
		in     Input
		want   Params
	}{
		{"analyze", Analyze, nil, Input{}, AnalyzeParams{Temperature: DefaultAnalyzeTemperature}},
		{"analyze focus", Analyze, Config{"focus": "risks", "temperature": 0.1}, Input{}, AnalyzeParams{Focus: "risks", Temperature: 0.1}},
		{"synthesize", Synthesize, nil, Input{}, SynthesizeParams{Style: "summary", Temperature: DefaultCreativeTemp}},
		{"compare from context", Compare, nil, Input{InputStepContext: map[string]any{"b": 1, "a": 2}}, CompareParams{Items: []string{"a", "b"}, Temperature: DefaultAnalyzeTemperature}},
		{"compare explicit", Compare, Config{"criteria": "price, speed", "items": []any{"x", "y"}}, Input{}, CompareParams{Criteria: []string{"price", "speed"}, Items: []string{"x", "y"}, Temperature: DefaultAnalyzeTemperature}},
		{"recommend", Recommend, Config{"count": "5"}, Input{}, RecommendParams{Count: 5, Temperature: DefaultCreativeTemp}},
		{"custom", Custom, Config{"mode": "raw"}, Input{}, CustomParams{Config: Config{"mode": "raw"}}},
	}

	reg := DefaultRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := reg.Get(tt.action)
			require.True(t, ok)

			w := &recordingInvoker{out: "ok"}
			_, err := c.Invoke(context.Background(), w, "p", tt.in, tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, w.got.Params)
			assert.Equal(t, tt.action, w.got.Params.Action())
		})
	}
}

func TestCapabilityPropagatesWorkerError(t *testing.T) {
	w := &recordingInvoker{err: errors.New("rate limited")}
	_, err := AnalyzeCapability().Invoke(context.Background(), w, "", Input{}, nil)
	assert.EqualError(t, err, "rate limited")

	_, err = AnalyzeCapability().Invoke(context.Background(), nil, "", Input{}, nil)
	assert.ErrorIs(t, err, ErrNoWorker)
}

func TestRegistryActions(t *testing.T) {
	assert.Equal(t, All, DefaultRegistry().Actions())

	r := NewRegistry()
	_, ok := r.Get(Search)
	assert.False(t, ok)
}

func TestParse(t *testing.T) {
	a, err := Parse(" Search ")
	require.NoError(t, err)
	assert.Equal(t, Search, a)

	_, err = Parse("dance")
	assert.Error(t, err)
}

func TestLift(t *testing.T) {
	out := map[string]any{
		"sources": []any{
			"https://a.example",
			map[string]any{"title": "B", "url": "https://b.example"},
		},
		"confidence": 0.8,
	}
	sources, confidence := Lift(out)
	require.NotNil(t, confidence)
	assert.Equal(t, 0.8, *confidence)
	assert.Equal(t, []Source{{URL: "https://a.example"}, {Title: "B", URL: "https://b.example"}}, sources)

	sources, confidence = Lift("plain text")
	assert.Nil(t, sources)
	assert.Nil(t, confidence)
}

type typedOutput struct{ n int }

func (o typedOutput) Sources() ([]Source, bool)   { return []Source{{Title: "t"}}, true }
func (o typedOutput) Confidence() (float64, bool) { return 0, false }
func (o typedOutput) ResultCount() (int, bool)    { return o.n, true }

func TestEnvelopeInterfaces(t *testing.T) {
	sources, confidence := Lift(typedOutput{})
	assert.Equal(t, []Source{{Title: "t"}}, sources)
	assert.Nil(t, confidence)

	assert.True(t, HasEmptyResults(typedOutput{n: 0}))
	assert.False(t, HasEmptyResults(typedOutput{n: 2}))
}

func TestHasEmptyResults(t *testing.T) {
	tests := []struct {
		name string
		out  any
		want bool
	}{
		{"empty slice", map[string]any{"results": []any{}}, true},
		{"empty typed slice", map[string]any{"results": []string{}}, true},
		{"nil results", map[string]any{"results": nil}, true},
		{"non-empty", map[string]any{"results": []any{1}}, false},
		{"no results key", map[string]any{"content": "x"}, false},
		{"not a map", "text", false},
		{"nil output", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasEmptyResults(tt.out))
		})
	}
}
