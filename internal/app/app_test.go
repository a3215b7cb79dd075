package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowrun/flowrun/internal/config"
	"github.com/flowrun/flowrun/internal/flow"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	wd := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	dir := filepath.Join(wd, ".flowrun", "flows")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "greet.yaml"), []byte(`name: Greet
steps:
  - id: hello
    action: custom
    prompt: "Say {query}"
`), 0o644))

	return &config.Config{
		WorkingDir: wd,
		Engine: config.Engine{
			MaxSteps:      config.DefaultMaxSteps,
			StepTimeout:   config.DefaultStepTimeout,
			DefaultWorker: config.DefaultWorkerName,
			EventBuffer:   config.DefaultEventBuffer,
		},
		Store: config.StoreConfig{Type: config.StoreNone},
	}
}

func TestNewRunsFlowsWithEchoFallback(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), nil)
	require.NoError(t, err)
	defer a.Shutdown()

	assert.Nil(t, a.History)
	assert.True(t, a.Workers.Has(config.DefaultWorkerName))

	ectx, err := a.Flows.Run(ctx, "hello", "greet", nil)
	require.NoError(t, err)
	assert.Equal(t, flow.RunCompleted, ectx.Status)

	last, ok := ectx.LastResult()
	require.True(t, ok)
	out, ok := last.Output.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Say hello", out["content"])
}

func TestWatchFlowsStopsOnShutdown(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), nil)
	require.NoError(t, err)

	require.NoError(t, a.WatchFlows(ctx))
	a.Shutdown()

	a.cancelFuncsMutex.Lock()
	defer a.cancelFuncsMutex.Unlock()
	assert.Empty(t, a.watcherCancelFuncs)
}
