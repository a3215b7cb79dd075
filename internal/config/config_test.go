package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStore(t *testing.T) {
	tests := []struct {
		name        string
		config      StoreConfig
		expectError bool
		errorMsg    string
	}{
		{
			name:        "Valid SQLite configuration",
			config:      StoreConfig{Type: StoreSQLite},
			expectError: false,
		},
		{
			name:        "Store disabled",
			config:      StoreConfig{Type: StoreNone},
			expectError: false,
		},
		{
			name: "Valid MySQL configuration with DSN",
			config: StoreConfig{
				Type:  StoreMySQL,
				MySQL: MySQLConfig{DSN: "user:pass@tcp(localhost:3306)/dbname"},
			},
			expectError: false,
		},
		{
			name: "Valid MySQL configuration with individual fields",
			config: StoreConfig{
				Type: StoreMySQL,
				MySQL: MySQLConfig{
					Host:     "localhost",
					Port:     3306,
					Database: "flowrun",
					Username: "user",
					Password: "pass",
				},
			},
			expectError: false,
		},
		{
			name: "MySQL without DSN or host",
			config: StoreConfig{
				Type: StoreMySQL,
				MySQL: MySQLConfig{
					Database: "flowrun",
					Username: "user",
					Password: "pass",
				},
			},
			expectError: true,
			errorMsg:    "MySQL host is required",
		},
		{
			name: "MySQL without database",
			config: StoreConfig{
				Type: StoreMySQL,
				MySQL: MySQLConfig{
					Host:     "localhost",
					Username: "user",
					Password: "pass",
				},
			},
			expectError: true,
			errorMsg:    "MySQL database is required",
		},
		{
			name:        "Invalid store type",
			config:      StoreConfig{Type: "postgres"},
			expectError: true,
			errorMsg:    "invalid store type",
		},
		{
			name:        "Empty type defaults to SQLite",
			config:      StoreConfig{},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg = &Config{Store: tt.config}
			defer func() { cfg = nil }()

			err := validateStore()

			if tt.expectError && err == nil {
				t.Error("Expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if tt.expectError && err != nil && tt.errorMsg != "" {
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Error message %q does not contain %q", err.Error(), tt.errorMsg)
				}
			}
		})
	}
}

func TestValidateWorker(t *testing.T) {
	tests := []struct {
		name    string
		worker  Worker
		wantErr string
	}{
		{"llm ok", Worker{Kind: WorkerLLM, Provider: ProviderAnthropic, Model: "claude-3-5-haiku-latest"}, ""},
		{"llm missing model", Worker{Kind: WorkerLLM, Provider: ProviderOpenAI}, "model is required"},
		{"llm bad provider", Worker{Kind: WorkerLLM, Provider: "bedrock", Model: "x"}, "unsupported provider"},
		{"search ok", Worker{Kind: WorkerSearch, Endpoint: "https://html.duckduckgo.com/html/"}, ""},
		{"search without endpoint", Worker{Kind: WorkerSearch}, "endpoint is required"},
		{"static ok", Worker{Kind: WorkerStatic}, ""},
		{"unknown kind", Worker{Kind: "grpc"}, "unknown kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg = &Config{Workers: map[string]Worker{"w": tt.worker}, Providers: map[ProviderName]Provider{}}
			defer func() { cfg = nil }()

			err := validateWorker("w", tt.worker)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadLocalConfig(t *testing.T) {
	Reset()
	defer Reset()

	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("VERTEXAI_PROJECT", "")

	dir := t.TempDir()
	local := `{
  "engine": {"maxSteps": 5, "sequentialFallback": true},
  "store": {"type": "none"},
  "workers": {
    "echo": {"kind": "static", "output": {"results": []}}
  }
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".flowrun.json"), []byte(local), 0o644))

	c, err := Load(dir, false)
	require.NoError(t, err)

	assert.Equal(t, 5, c.Engine.MaxSteps)
	assert.True(t, c.Engine.SequentialFallback)
	assert.Equal(t, DefaultStepTimeout, c.Engine.StepTimeout)
	assert.Equal(t, DefaultWorkerName, c.Engine.DefaultWorker)
	assert.Equal(t, StoreNone, c.Store.Type)
	assert.Equal(t, WorkerStatic, c.Workers["echo"].Kind)
	assert.Equal(t, filepath.Join(dir, defaultDataDirectory), c.Data.Directory)
}
