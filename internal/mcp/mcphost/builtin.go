package mcphost

import (
	"context"
	"fmt"

	"github.com/MrWong99/huddle/internal/mcp"
	"github.com/MrWong99/huddle/pkg/types"
)

// builtinServerName is the pseudo server name used for in-process tools.
const builtinServerName = "__builtin__"

// BuiltinTool is a tool implemented as a Go function running in-process.
// ExecuteTool calls Handler directly, without any protocol round-trip.
type BuiltinTool struct {
	Definition types.ToolDefinition

	// Handler receives a JSON object string ("{}" when the model passed no
	// arguments). A returned error marks the result as IsError.
	Handler func(ctx context.Context, args string) (string, error)
}

// RegisterBuiltin registers an in-process tool, replacing any tool with the
// same name.
func (h *Host) RegisterBuiltin(tool BuiltinTool) error {
	if tool.Definition.Name == "" {
		return fmt.Errorf("mcp host: builtin tool must have a non-empty name")
	}
	if tool.Handler == nil {
		return fmt.Errorf("mcp host: builtin tool %q must have a non-nil handler", tool.Definition.Name)
	}
	if tool.Definition.Parameters == nil {
		tool.Definition.Parameters = emptySchema()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.tools[tool.Definition.Name] = toolEntry{
		def:        tool.Definition,
		serverName: builtinServerName,
		builtinFn:  tool.Handler,
	}
	return nil
}

// SummarySource provides the text returned by the conversation summary tool.
type SummarySource interface {
	Summary() string
}

// SummaryTool returns the get_conversation_summary built-in backed by src.
func SummaryTool(src SummarySource) BuiltinTool {
	return BuiltinTool{
		Definition: types.ToolDefinition{
			Name:        mcp.SummaryToolName,
			Description: "Get a summary of the conversation so far: the total number of turns and the most recent messages with their speakers.",
			Parameters:  emptySchema(),
		},
		Handler: func(context.Context, string) (string, error) {
			return src.Summary(), nil
		},
	}
}

func emptySchema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}
