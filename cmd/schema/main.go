// Command schema prints JSON schemas for the flowrun configuration file and
// for flow definition files.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/flowrun/flowrun/internal/action"
	"github.com/flowrun/flowrun/internal/config"
	"github.com/flowrun/flowrun/internal/format"
)

func main() {
	flowSchema := flag.Bool("flow", false, "print the schema of flow definition files instead of the config file")
	flag.Parse()

	schema := generateConfigSchema()
	if *flowSchema {
		schema = generateFlowSchema()
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(schema); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding schema: %v\n", err)
		os.Exit(1)
	}
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func integer(desc string, def int) map[string]any {
	return map[string]any{"type": "integer", "description": desc, "default": def, "minimum": 1}
}

func enum[T ~string](desc string, values ...T) map[string]any {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return map[string]any{"type": "string", "description": desc, "enum": out}
}

func generateConfigSchema() map[string]any {
	providers := []config.ProviderName{config.ProviderAnthropic, config.ProviderOpenAI, config.ProviderGemini, config.ProviderVertexAI}

	providerProps := map[string]any{}
	for _, p := range providers {
		providerProps[string(p)] = map[string]any{
			"type": "object",
			"properties": map[string]any{
				"apiKey":   str("API key"),
				"baseURL":  str("Override of the API base URL"),
				"disabled": map[string]any{"type": "boolean", "default": false},
				"project":  str("Google Cloud project (vertexai only)"),
				"location": str("Google Cloud location (vertexai only)"),
			},
		}
	}

	return map[string]any{
		"$schema":     "http://json-schema.org/draft-07/schema#",
		"title":       "flowrun configuration",
		"description": "Configuration schema for .flowrun.json",
		"type":        "object",
		"properties": map[string]any{
			"data": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"directory": map[string]any{"type": "string", "description": "Directory for run history and logs", "default": ".flowrun"},
				},
			},
			"debug":     map[string]any{"type": "boolean", "default": false},
			"flowPaths": map[string]any{"type": "array", "description": "Extra directories searched for flow files", "items": map[string]any{"type": "string"}},
			"engine": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"maxSteps":           integer("Maximum step executions per run", config.DefaultMaxSteps),
					"stepTimeout":        integer("Per-step timeout in seconds", config.DefaultStepTimeout),
					"defaultWorker":      map[string]any{"type": "string", "default": config.DefaultWorkerName},
					"eventBuffer":        integer("Per-listener event buffer", config.DefaultEventBuffer),
					"sequentialFallback": map[string]any{"type": "boolean", "description": "Advance to the next step when no condition matches", "default": false},
				},
			},
			"providers": map[string]any{"type": "object", "properties": providerProps},
			"workers": map[string]any{
				"type": "object",
				"additionalProperties": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"kind":         enum("Worker implementation", config.WorkerLLM, config.WorkerSearch, config.WorkerStatic),
						"provider":     enum("LLM provider", providers...),
						"model":        str("Model ID"),
						"maxTokens":    map[string]any{"type": "integer"},
						"temperature":  map[string]any{"type": "number", "minimum": 0, "maximum": 2},
						"systemPrompt": str("Prepended to every system prompt"),
						"endpoint":     str("Search endpoint (search workers)"),
						"fetchPages":   map[string]any{"type": "integer", "description": "Result pages fetched and converted to markdown"},
						"output":       map[string]any{"type": "object", "description": "Fixed payload (static workers)"},
						"disabled":     map[string]any{"type": "boolean", "default": false},
					},
				},
			},
			"store": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"type": enum("Run history store", config.StoreSQLite, config.StoreMySQL, config.StoreNone),
					"mysql": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"dsn":                str("Full DSN, overrides the other fields"),
							"host":               str("Host"),
							"port":               map[string]any{"type": "integer", "default": 3306},
							"database":           str("Database"),
							"username":           str("User"),
							"password":           str("Password"),
							"maxConnections":     map[string]any{"type": "integer"},
							"maxIdleConnections": map[string]any{"type": "integer"},
							"connectionTimeout":  map[string]any{"type": "integer", "description": "Seconds"},
						},
					},
				},
			},
			"server": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"addr": map[string]any{"type": "string", "default": config.DefaultServerAddr},
				},
			},
		},
	}
}

func generateFlowSchema() map[string]any {
	target := str("Step ID or \"end\"")
	return map[string]any{
		"$schema":  "http://json-schema.org/draft-07/schema#",
		"title":    "flowrun flow",
		"type":     "object",
		"required": []string{"steps"},
		"properties": map[string]any{
			"id":               str("Flow ID, defaults to the file name"),
			"name":             str("Display name"),
			"description":      str("Description"),
			"disabled":         map[string]any{"type": "boolean"},
			"defaultStartStep": str("Step the run starts with, defaults to the first step"),
			"workerPreferences": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"search":   str("Worker for search steps"),
					"analysis": str("Worker for analyze and compare steps"),
					"primary":  str("Worker for every other step"),
				},
			},
			"workerOverrides": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"actions": map[string]any{"type": "array", "items": enum("Action", action.All...)},
						"worker":  str("Worker"),
					},
				},
			},
			"output": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"format": map[string]any{"type": "string", "enum": format.SupportedFormats},
					"flags": map[string]any{
						"type": "object",
						"properties": map[string]any{
							format.FlagSources:    map[string]any{"type": "boolean"},
							format.FlagConfidence: map[string]any{"type": "boolean"},
						},
					},
				},
			},
			"steps": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type":     "object",
					"required": []string{"id", "action"},
					"properties": map[string]any{
						"id":             str("Step ID"),
						"action":         enum("Action", action.All...),
						"prompt":         str("Prompt; {name} placeholders are filled from the resolved input"),
						"config":         map[string]any{"type": "object"},
						"workerOverride": str("Worker for this step only"),
						"inputs": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"fromStep":    str("Step whose output is passed as previousStepData"),
								"fromContext": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
							},
						},
						"conditions": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"onSuccess":   target,
								"onFailure":   target,
								"onNoResults": target,
							},
						},
					},
				},
			},
		},
	}
}
