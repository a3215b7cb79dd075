package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/flowrun/flowrun/internal/flow"
	"github.com/flowrun/flowrun/internal/format"
	"github.com/flowrun/flowrun/internal/logging"
)

const mcpServerName = "flowrun"

// NewMCPServer exposes flows as MCP tools.
func NewMCPServer(flows *flow.Service, version string) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer(mcpServerName, version, mcpserver.WithToolCapabilities(false))
	t := &mcpTools{flows: flows}

	s.AddTool(mcp.NewTool("list_flows",
		mcp.WithDescription("List the available flows. Optionally filter them with a fuzzy search term."),
		mcp.WithString("filter", mcp.Description("Fuzzy filter applied to flow IDs and names")),
	), t.listFlows)

	s.AddTool(mcp.NewTool("get_flow",
		mcp.WithDescription("Show the definition of a flow, including its steps and transitions."),
		mcp.WithString("flow", mcp.Required(), mcp.Description("Flow ID")),
	), t.getFlow)

	s.AddTool(mcp.NewTool("run_flow",
		mcp.WithDescription("Run a flow for a query and return its formatted final output."),
		mcp.WithString("flow", mcp.Required(), mcp.Description("Flow ID")),
		mcp.WithString("query", mcp.Required(), mcp.Description("Query the flow should answer")),
		mcp.WithObject("context", mcp.Description("Caller context made available to every step")),
		mcp.WithString("format", mcp.Description("Output format: structured, prose, report or markup")),
	), t.runFlow)

	return s
}

type mcpTools struct {
	flows *flow.Service
}

func (t *mcpTools) listFlows(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	flows, err := t.flows.Flows().Filter(req.GetString("filter", ""))
	if err != nil {
		return mcp.NewToolResultErrorFromErr("listing flows", err), nil
	}
	out := make([]FlowSummary, 0, len(flows))
	for _, f := range flows {
		out = append(out, summarize(f))
	}
	return jsonResult(out)
}

func (t *mcpTools) getFlow(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("flow")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f, err := t.flows.GetFlow(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(f)
}

func (t *mcpTools) runFlow(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("flow")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	callerCtx, _ := req.GetArguments()["context"].(map[string]any)

	f, err := t.flows.GetFlow(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	spec := f.Output
	if v := req.GetString("format", ""); v != "" {
		if spec.Format, err = format.Parse(v); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	ectx, err := t.flows.Run(ctx, query, id, callerCtx)
	if err != nil {
		logging.Warn("MCP flow run failed", "flow", id, "error", err)
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	last, ok := ectx.LastResult()
	if !ok {
		return mcp.NewToolResultText(""), nil
	}
	switch out := format.Format(last.Output, spec).(type) {
	case string:
		return mcp.NewToolResultText(out), nil
	default:
		return jsonResult(out)
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
