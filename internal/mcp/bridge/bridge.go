// Package bridge wires the MCP tool host into a voice engine.
//
// A [Bridge] merges the host's catalogue with engine-local tools (such as the
// handoff delegate tools, which differ per role) and exposes the result as an
// [engine.ToolHandler]:
//
//	b := bridge.New(host, bridge.WithLocalTool(delegate))
//	b.Attach(eng)
package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/MrWong99/huddle/internal/engine"
	"github.com/MrWong99/huddle/internal/mcp"
	"github.com/MrWong99/huddle/pkg/types"
)

const defaultToolTimeout = 30 * time.Second

// LocalTool is a tool served by the bridge itself instead of the host.
// Local tools shadow host tools of the same name.
type LocalTool struct {
	Definition types.ToolDefinition
	Handler    engine.ToolHandler
}

// Option configures a [Bridge].
type Option func(*Bridge)

// WithToolTimeout bounds every tool execution. The default is 30 seconds.
func WithToolTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.toolTimeout = d
		}
	}
}

// WithLocalTool adds an engine-local tool.
func WithLocalTool(t LocalTool) Option {
	return func(b *Bridge) {
		if _, ok := b.local[t.Definition.Name]; !ok {
			b.order = append(b.order, t.Definition.Name)
		}
		b.local[t.Definition.Name] = t
	}
}

// Bridge routes engine tool calls to local handlers or the MCP host.
// It holds no mutable state after construction and is safe for concurrent use.
type Bridge struct {
	host        mcp.Host
	local       map[string]LocalTool
	order       []string
	toolTimeout time.Duration
}

// New creates a Bridge. host may be nil when only local tools are needed.
func New(host mcp.Host, opts ...Option) *Bridge {
	b := &Bridge{
		host:        host,
		local:       make(map[string]LocalTool),
		toolTimeout: defaultToolTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Tools returns the local tools in registration order followed by the host's
// tools.
func (b *Bridge) Tools() []types.ToolDefinition {
	defs := make([]types.ToolDefinition, 0, len(b.order))
	for _, name := range b.order {
		defs = append(defs, b.local[name].Definition)
	}
	if b.host == nil {
		return defs
	}
	for _, d := range b.host.AvailableTools() {
		if _, shadowed := b.local[d.Name]; shadowed {
			continue
		}
		defs = append(defs, d)
	}
	return defs
}

// Attach declares the bridge's tools on e and routes e's tool calls through
// the bridge.
func (b *Bridge) Attach(e engine.VoiceEngine) {
	e.SetTools(b.Tools())
	e.OnToolCall(b.Handle)
}

// Handle is an [engine.ToolHandler]. Errors from local handlers, including
// engine.ErrEndTurn, are returned unchanged; a host result flagged IsError
// becomes an error.
func (b *Bridge) Handle(ctx context.Context, name, args string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.toolTimeout)
	defer cancel()

	if t, ok := b.local[name]; ok {
		return t.Handler(ctx, name, args)
	}
	if b.host == nil {
		return "", fmt.Errorf("bridge: unknown tool %q", name)
	}

	result, err := b.host.ExecuteTool(ctx, name, args)
	if err != nil {
		return "", fmt.Errorf("bridge: tool %q: %w", name, err)
	}
	if result.IsError {
		return "", fmt.Errorf("bridge: tool %q: %s", name, result.Content)
	}
	return result.Content, nil
}
