// Package mock provides an in-memory test double for [mcp.Host].
//
//	h := &mock.Host{}
//	h.AvailableToolsResult = []types.ToolDefinition{{Name: "lookup"}}
//	h.ExecuteToolResult = &mcp.ToolResult{Content: `{"ok":true}`}
//
//	if got := h.CallCount("ExecuteTool"); got != 1 {
//	    t.Errorf("ExecuteTool calls = %d, want 1", got)
//	}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/huddle/internal/mcp"
	"github.com/MrWong99/huddle/pkg/types"
)

// Call records one method invocation.
type Call struct {
	Method string

	// Args holds the non-context arguments in order.
	Args []any
}

// Host is a configurable [mcp.Host]. Zero value: every call succeeds with
// empty results.
type Host struct {
	mu    sync.Mutex
	calls []Call

	RegisterServerErr error

	// AvailableToolsResult is returned (copied) by AvailableTools.
	AvailableToolsResult []types.ToolDefinition

	// ExecuteToolResult is returned (copied) when ExecuteToolErr is nil.
	ExecuteToolResult *mcp.ToolResult
	ExecuteToolErr    error

	CloseErr error
}

var _ mcp.Host = (*Host)(nil)

// Calls returns a copy of all recorded invocations.
func (h *Host) Calls() []Call {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Call, len(h.calls))
	copy(out, h.calls)
	return out
}

// CallCount returns how many times method was invoked.
func (h *Host) CallCount(method string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, c := range h.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (h *Host) record(method string, args ...any) {
	h.calls = append(h.calls, Call{Method: method, Args: args})
}

// RegisterServer implements [mcp.Host].
func (h *Host) RegisterServer(_ context.Context, cfg mcp.ServerConfig) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("RegisterServer", cfg)
	return h.RegisterServerErr
}

// AvailableTools implements [mcp.Host].
func (h *Host) AvailableTools() []types.ToolDefinition {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("AvailableTools")
	out := make([]types.ToolDefinition, len(h.AvailableToolsResult))
	copy(out, h.AvailableToolsResult)
	return out
}

// ExecuteTool implements [mcp.Host].
func (h *Host) ExecuteTool(_ context.Context, name string, args string) (*mcp.ToolResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("ExecuteTool", name, args)
	if h.ExecuteToolErr != nil {
		return nil, h.ExecuteToolErr
	}
	if h.ExecuteToolResult == nil {
		return &mcp.ToolResult{}, nil
	}
	cp := *h.ExecuteToolResult
	return &cp, nil
}

// Close implements [mcp.Host].
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record("Close")
	return h.CloseErr
}
