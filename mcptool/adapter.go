package mcptool

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hupe1980/agenthost/tool"
)

// adapter exposes a single MCP tool through the tool.Tool interface. It holds
// only the immutable descriptor; invocations go through the owning Provider
// so the shared child process connection is reused.
type adapter struct {
	provider *Provider
	mcpTool  mcp.Tool
}

func newAdapter(p *Provider, t mcp.Tool) *adapter {
	return &adapter{provider: p, mcpTool: t}
}

// Name implements tool.Tool.
func (a *adapter) Name() string { return a.mcpTool.Name }

// Description implements tool.Tool.
func (a *adapter) Description() string {
	if a.mcpTool.Description != "" {
		return a.mcpTool.Description
	}
	return "Tool " + a.mcpTool.Name + " provided by " + a.provider.opts.Name
}

// Parameters implements tool.Tool. The MCP input schema is converted to a
// plain map through a JSON round trip.
func (a *adapter) Parameters() map[string]interface{} {
	data, err := json.Marshal(a.mcpTool.InputSchema)
	if err != nil {
		return map[string]interface{}{"type": "object"}
	}
	var schema map[string]interface{}
	if err := json.Unmarshal(data, &schema); err != nil || schema == nil {
		return map[string]interface{}{"type": "object"}
	}
	if _, ok := schema["type"]; !ok {
		schema["type"] = "object"
	}
	return schema
}

// Call implements tool.Tool by invoking the tool on the provider's child
// process and flattening the result content to text.
func (a *adapter) Call(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	start := time.Now()

	result, err := a.provider.call(ctx, a.mcpTool.Name, args)
	if err != nil {
		a.provider.opts.Logger.Warn("tool call failed",
			"tool", a.mcpTool.Name,
			"duration", time.Since(start),
			"error", err,
		)
		return nil, err
	}

	content := extractContent(result)
	if result.IsError {
		return nil, tool.NewError(a.mcpTool.Name, content, "PROVIDER_ERROR")
	}

	a.provider.opts.Logger.Debug("tool call completed",
		"tool", a.mcpTool.Name,
		"duration", time.Since(start),
	)

	return content, nil
}

// extractContent converts an MCP CallToolResult content list to a string.
// Non-text content is marshaled to JSON.
func extractContent(result *mcp.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		switch v := c.(type) {
		case mcp.TextContent:
			parts = append(parts, v.Text)
		case *mcp.TextContent:
			parts = append(parts, v.Text)
		default:
			if data, err := json.Marshal(v); err == nil {
				parts = append(parts, string(data))
			}
		}
	}
	return strings.Join(parts, "\n")
}
