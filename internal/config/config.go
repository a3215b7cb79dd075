// Package config manages application configuration from various sources.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/flowrun/flowrun/internal/logging"
	"github.com/spf13/viper"
)

// ProviderName identifies an LLM vendor backing a worker.
type ProviderName string

const (
	ProviderAnthropic ProviderName = "anthropic"
	ProviderOpenAI    ProviderName = "openai"
	ProviderGemini    ProviderName = "gemini"
	ProviderVertexAI  ProviderName = "vertexai"
)

// Provider holds credentials for an LLM vendor.
type Provider struct {
	APIKey   string `json:"apiKey"`
	BaseURL  string `json:"baseURL,omitempty"`
	Disabled bool   `json:"disabled"`
	// Vertex AI only.
	Project  string `json:"project,omitempty"`
	Location string `json:"location,omitempty"`
}

// WorkerKind selects the implementation behind a named worker.
type WorkerKind string

const (
	WorkerLLM    WorkerKind = "llm"
	WorkerSearch WorkerKind = "search"
	WorkerStatic WorkerKind = "static"
)

// Worker defines a named capability provider.
type Worker struct {
	Kind         WorkerKind     `json:"kind"`
	Provider     ProviderName   `json:"provider,omitempty"`
	Model        string         `json:"model,omitempty"`
	MaxTokens    int64          `json:"maxTokens,omitempty"`
	Temperature  *float64       `json:"temperature,omitempty"`
	SystemPrompt string         `json:"systemPrompt,omitempty"`
	Endpoint     string         `json:"endpoint,omitempty"`   // search endpoint
	FetchPages   int            `json:"fetchPages,omitempty"` // search: pages to fetch and convert
	Output       map[string]any `json:"output,omitempty"`     // static worker payload
	Disabled     bool           `json:"disabled,omitempty"`
}

// Engine tunes the flow runner.
type Engine struct {
	MaxSteps           int    `json:"maxSteps"`
	StepTimeout        int    `json:"stepTimeout"` // seconds
	DefaultWorker      string `json:"defaultWorker"`
	EventBuffer        int    `json:"eventBuffer"`
	SequentialFallback bool   `json:"sequentialFallback,omitempty"`
}

type Data struct {
	Directory string `json:"directory,omitempty"`
}

// StoreType defines the type of run history storage.
type StoreType string

// Supported store types
const (
	StoreSQLite StoreType = "sqlite"
	StoreMySQL  StoreType = "mysql"
	StoreNone   StoreType = "none"
)

// MySQLConfig defines MySQL-specific configuration.
type MySQLConfig struct {
	DSN                string `json:"dsn,omitempty"`
	Host               string `json:"host,omitempty"`
	Port               int    `json:"port,omitempty"`
	Database           string `json:"database,omitempty"`
	Username           string `json:"username,omitempty"`
	Password           string `json:"password,omitempty"`
	MaxConnections     int    `json:"maxConnections,omitempty"`
	MaxIdleConnections int    `json:"maxIdleConnections,omitempty"`
	ConnectionTimeout  int    `json:"connectionTimeout,omitempty"`
}

// StoreConfig defines configuration for run history storage.
type StoreConfig struct {
	Type  StoreType   `json:"type,omitempty"`
	MySQL MySQLConfig `json:"mysql,omitempty"`
}

type ServerConfig struct {
	Addr string `json:"addr,omitempty"`
}

// Config is the main configuration structure for the application.
type Config struct {
	Data       Data                      `json:"data"`
	WorkingDir string                    `json:"wd,omitempty"`
	Debug      bool                      `json:"debug,omitempty"`
	FlowPaths  []string                  `json:"flowPaths,omitempty"`
	Engine     Engine                    `json:"engine"`
	Providers  map[ProviderName]Provider `json:"providers,omitempty"`
	Workers    map[string]Worker         `json:"workers,omitempty"`
	Store      StoreConfig               `json:"store,omitempty"`
	Server     ServerConfig              `json:"server,omitempty"`
}

// Application constants
const (
	defaultDataDirectory = ".flowrun"
	appName              = "flowrun"

	DefaultMaxSteps    = 20
	DefaultStepTimeout = 60
	DefaultEventBuffer = 64
	DefaultWorkerName  = "default"
	DefaultServerAddr  = ":8080"
)

// Global configuration instance
var cfg *Config

// Reset clears the global configuration, allowing Load to be called again.
// This is intended for use in tests only.
func Reset() {
	cfg = nil
	viper.Reset()
}

// Load initializes the configuration from environment variables and config files.
// If debug is true, debug mode is enabled and log level is set to debug.
// It returns an error if configuration loading fails.
func Load(workingDir string, debug bool) (*Config, error) {
	if cfg != nil {
		return cfg, nil
	}

	cfg = &Config{
		WorkingDir: workingDir,
		Providers:  make(map[ProviderName]Provider),
		Workers:    make(map[string]Worker),
	}

	configureViper()
	setDefaults(debug)

	// Read global config
	if err := readConfig(viper.ReadInConfig()); err != nil {
		return cfg, err
	}

	// Load and merge local config
	mergeLocalConfig(workingDir)

	setProviderDefaults()

	// Apply configuration to the struct
	if err := viper.Unmarshal(cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaultValues()

	defaultLevel := slog.LevelInfo
	if cfg.Debug {
		defaultLevel = slog.LevelDebug
	}
	if os.Getenv("FLOWRUN_DEV_DEBUG") == "true" {
		loggingFile := filepath.Join(cfg.Data.Directory, "debug.log")
		if err := os.MkdirAll(cfg.Data.Directory, 0o755); err != nil {
			return cfg, fmt.Errorf("failed to create directory: %w", err)
		}
		sloggingFileWriter, err := os.OpenFile(loggingFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return cfg, fmt.Errorf("failed to open log file: %w", err)
		}
		logger := slog.New(slog.NewTextHandler(logging.NewTeeWriter(sloggingFileWriter), &slog.HandlerOptions{
			Level: defaultLevel,
		}))
		slog.SetDefault(logger)
	} else {
		logger := slog.New(slog.NewTextHandler(logging.NewWriter(), &slog.HandlerOptions{
			Level: defaultLevel,
		}))
		slog.SetDefault(logger)
	}

	// Validate configuration
	if err := Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// configureViper sets up viper's configuration paths and environment variables.
func configureViper() {
	viper.SetConfigName(fmt.Sprintf(".%s", appName))
	viper.SetConfigType("json")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(fmt.Sprintf("$XDG_CONFIG_HOME/%s", appName))
	viper.AddConfigPath(fmt.Sprintf("$HOME/.config/%s", appName))
	viper.SetEnvPrefix(strings.ToUpper(appName))
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// setDefaults configures default values for configuration options.
func setDefaults(debug bool) {
	viper.SetDefault("data.directory", defaultDataDirectory)
	viper.SetDefault("engine.maxSteps", DefaultMaxSteps)
	viper.SetDefault("engine.stepTimeout", DefaultStepTimeout)
	viper.SetDefault("engine.defaultWorker", DefaultWorkerName)
	viper.SetDefault("engine.eventBuffer", DefaultEventBuffer)
	viper.SetDefault("engine.sequentialFallback", false)
	viper.SetDefault("store.type", string(StoreSQLite))
	viper.SetDefault("server.addr", DefaultServerAddr)

	if debug {
		viper.SetDefault("debug", true)
		viper.Set("debug", true)
	} else {
		viper.SetDefault("debug", false)
	}
}

// setProviderDefaults picks up provider credentials from well-known
// environment variables when the config file does not set them.
func setProviderDefaults() {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		viper.SetDefault("providers.anthropic.apiKey", key)
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		viper.SetDefault("providers.openai.apiKey", key)
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		viper.SetDefault("providers.gemini.apiKey", key)
	}
	if project := os.Getenv("VERTEXAI_PROJECT"); project != "" {
		viper.SetDefault("providers.vertexai.project", project)
		viper.SetDefault("providers.vertexai.location", os.Getenv("VERTEXAI_LOCATION"))
	}

	// Without any configured worker, register a default LLM worker on the
	// first provider that has credentials.
	if viper.IsSet("workers") {
		return
	}
	switch {
	case viper.GetString("providers.anthropic.apiKey") != "":
		viper.SetDefault("workers.default", map[string]any{"kind": WorkerLLM, "provider": ProviderAnthropic, "model": "claude-3-5-haiku-latest"})
	case viper.GetString("providers.openai.apiKey") != "":
		viper.SetDefault("workers.default", map[string]any{"kind": WorkerLLM, "provider": ProviderOpenAI, "model": "gpt-4o-mini"})
	case viper.GetString("providers.gemini.apiKey") != "":
		viper.SetDefault("workers.default", map[string]any{"kind": WorkerLLM, "provider": ProviderGemini, "model": "gemini-2.0-flash"})
	case viper.GetString("providers.vertexai.project") != "":
		viper.SetDefault("workers.default", map[string]any{"kind": WorkerLLM, "provider": ProviderVertexAI, "model": "gemini-2.0-flash"})
	}
}

// readConfig handles the result of reading a configuration file.
func readConfig(err error) error {
	if err == nil {
		return nil
	}

	// It's okay if the config file doesn't exist
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return nil
	}

	return fmt.Errorf("failed to read config: %w", err)
}

// mergeLocalConfig loads and merges configuration from the local directory.
func mergeLocalConfig(workingDir string) {
	local := viper.New()
	local.SetConfigName(fmt.Sprintf(".%s", appName))
	local.SetConfigType("json")
	local.AddConfigPath(workingDir)

	// Merge local config if it exists
	if err := local.ReadInConfig(); err == nil {
		viper.MergeConfigMap(local.AllSettings())
	}
}

// applyDefaultValues sets default values for configuration fields that need processing.
func applyDefaultValues() {
	if cfg.Providers == nil {
		cfg.Providers = make(map[ProviderName]Provider)
	}
	if cfg.Workers == nil {
		cfg.Workers = make(map[string]Worker)
	}
	for name, w := range cfg.Workers {
		if w.Kind == "" {
			w.Kind = WorkerLLM
			cfg.Workers[name] = w
		}
	}
	if cfg.Engine.MaxSteps <= 0 {
		cfg.Engine.MaxSteps = DefaultMaxSteps
	}
	if cfg.Engine.StepTimeout <= 0 {
		cfg.Engine.StepTimeout = DefaultStepTimeout
	}
	if cfg.Engine.EventBuffer <= 0 {
		cfg.Engine.EventBuffer = DefaultEventBuffer
	}
	if cfg.Engine.DefaultWorker == "" {
		cfg.Engine.DefaultWorker = DefaultWorkerName
	}
	if !filepath.IsAbs(cfg.Data.Directory) && cfg.WorkingDir != "" {
		cfg.Data.Directory = filepath.Join(cfg.WorkingDir, cfg.Data.Directory)
	}
}

// Validate checks if the configuration is valid and applies defaults where needed.
func Validate() error {
	if cfg == nil {
		return fmt.Errorf("config not loaded")
	}

	if err := validateStore(); err != nil {
		return fmt.Errorf("store validation failed: %w", err)
	}

	for provider, providerCfg := range cfg.Providers {
		if providerCfg.APIKey == "" && provider != ProviderVertexAI && !providerCfg.Disabled {
			logging.Warn("provider has no API key, marking as disabled", "provider", provider)
			providerCfg.Disabled = true
			cfg.Providers[provider] = providerCfg
		}
	}

	for name, w := range cfg.Workers {
		if err := validateWorker(name, w); err != nil {
			return err
		}
	}

	return nil
}

func validateWorker(name string, w Worker) error {
	switch w.Kind {
	case WorkerLLM:
		switch w.Provider {
		case ProviderAnthropic, ProviderOpenAI, ProviderGemini, ProviderVertexAI:
		default:
			return fmt.Errorf("worker %q: unsupported provider %q", name, w.Provider)
		}
		if w.Model == "" {
			return fmt.Errorf("worker %q: model is required", name)
		}
		if p, ok := cfg.Providers[w.Provider]; ok && p.Disabled && !w.Disabled {
			logging.Warn("worker provider is disabled, marking worker as disabled", "worker", name, "provider", w.Provider)
			w.Disabled = true
			cfg.Workers[name] = w
		}
	case WorkerSearch:
		if w.Endpoint == "" {
			return fmt.Errorf("worker %q: search endpoint is required", name)
		}
	case WorkerStatic:
	default:
		return fmt.Errorf("worker %q: unknown kind %q", name, w.Kind)
	}
	return nil
}

// validateStore validates the run history store configuration.
func validateStore() error {
	storeType := cfg.Store.Type
	if storeType == "" {
		storeType = StoreSQLite
	}

	if storeType != StoreSQLite && storeType != StoreMySQL && storeType != StoreNone {
		return fmt.Errorf("invalid store type: %s (must be 'sqlite', 'mysql' or 'none')", storeType)
	}

	if storeType == StoreMySQL {
		mysql := cfg.Store.MySQL

		// If DSN is provided, it takes precedence over individual fields
		if mysql.DSN == "" {
			if mysql.Host == "" {
				return fmt.Errorf("MySQL host is required when using MySQL store (or provide DSN)")
			}
			if mysql.Database == "" {
				return fmt.Errorf("MySQL database is required when using MySQL store (or provide DSN)")
			}
			if mysql.Username == "" {
				return fmt.Errorf("MySQL username is required when using MySQL store (or provide DSN)")
			}
			if mysql.Password == "" {
				return fmt.Errorf("MySQL password is required when using MySQL store (or provide DSN)")
			}
		}
	}

	return nil
}
