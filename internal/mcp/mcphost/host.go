// Package mcphost implements [mcp.Host] on top of the official MCP Go SDK
// (github.com/modelcontextprotocol/go-sdk).
//
// External servers are reached over stdio or streamable HTTP; in-process
// tools are registered with [Host.RegisterBuiltin]. Both end up in a single
// name-keyed registry.
//
//	h := mcphost.New()
//	defer h.Close()
//
//	_ = h.RegisterServer(ctx, mcp.ServerConfig{
//	    Name:      "calendar",
//	    Transport: mcp.TransportStdio,
//	    Command:   "/usr/local/bin/mcp-calendar",
//	})
//	_ = h.RegisterBuiltin(mcphost.SummaryTool(g))
//
//	result, err := h.ExecuteTool(ctx, "get_conversation_summary", "{}")
package mcphost

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/huddle/internal/mcp"
	"github.com/MrWong99/huddle/pkg/types"
)

// toolEntry is one registered tool.
type toolEntry struct {
	def        types.ToolDefinition
	serverName string

	// builtinFn is non-nil for in-process tools.
	builtinFn func(ctx context.Context, args string) (string, error)
}

// Host is the SDK-backed [mcp.Host]. Create it with [New].
type Host struct {
	mu      sync.RWMutex
	tools   map[string]toolEntry
	servers map[string]*mcpsdk.ClientSession

	// client is shared by all server sessions.
	client *mcpsdk.Client
}

var _ mcp.Host = (*Host)(nil)

// New returns an empty Host.
func New() *Host {
	client := mcpsdk.NewClient(
		&mcpsdk.Implementation{Name: "huddle", Version: "1.0.0"},
		nil,
	)
	return &Host{
		tools:   make(map[string]toolEntry),
		servers: make(map[string]*mcpsdk.ClientSession),
		client:  client,
	}
}

// RegisterServer connects to the server described by cfg and imports its
// tool catalogue. For stdio servers cfg.Command is split on whitespace and
// cfg.Env is appended to the current environment.
func (h *Host) RegisterServer(ctx context.Context, cfg mcp.ServerConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("mcp host: server config must have a non-empty name")
	}
	if !cfg.Transport.IsValid() {
		return fmt.Errorf("mcp host: unknown transport %q for server %q", cfg.Transport, cfg.Name)
	}

	var transport mcpsdk.Transport
	switch cfg.Transport {
	case mcp.TransportStdio:
		executable, args := splitCommand(cfg.Command)
		if executable == "" {
			return fmt.Errorf("mcp host: stdio server %q requires a non-empty command", cfg.Name)
		}
		// The subprocess outlives ctx; it is stopped by Close.
		cmd := exec.Command(executable, args...)
		if len(cfg.Env) > 0 {
			cmd.Env = os.Environ()
			for k, v := range cfg.Env {
				cmd.Env = append(cmd.Env, k+"="+v)
			}
		}
		transport = &mcpsdk.CommandTransport{Command: cmd}

	case mcp.TransportStreamableHTTP:
		if cfg.URL == "" {
			return fmt.Errorf("mcp host: streamable-http server %q requires a non-empty url", cfg.Name)
		}
		transport = &mcpsdk.StreamableClientTransport{Endpoint: cfg.URL}
	}

	return h.connect(ctx, cfg.Name, transport)
}

// connect opens a session over transport and imports the server's tools.
func (h *Host) connect(ctx context.Context, name string, transport mcpsdk.Transport) error {
	session, err := h.client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("mcp host: connect to server %q: %w", name, err)
	}

	var discovered []*mcpsdk.Tool
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			_ = session.Close()
			return fmt.Errorf("mcp host: list tools for server %q: %w", name, err)
		}
		discovered = append(discovered, tool)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.servers[name]; ok {
		_ = old.Close()
		for toolName, t := range h.tools {
			if t.serverName == name {
				delete(h.tools, toolName)
			}
		}
	}
	h.servers[name] = session

	for _, t := range discovered {
		if existing, ok := h.tools[t.Name]; ok && existing.serverName != name {
			slog.Warn("mcp host: tool name collision, keeping first", "tool", t.Name, "server", name, "owner", existing.serverName)
			continue
		}
		h.tools[t.Name] = toolEntry{
			def: types.ToolDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schemaToMap(t.InputSchema),
			},
			serverName: name,
		}
	}
	slog.Info("mcp host: server registered", "server", name, "tools", len(discovered))
	return nil
}

// schemaToMap converts an SDK schema value into a plain JSON Schema map.
func schemaToMap(schema any) map[string]any {
	if schema == nil {
		return emptySchema()
	}
	if m, ok := schema.(map[string]any); ok {
		return m
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return emptySchema()
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return emptySchema()
	}
	return m
}

// AvailableTools returns every registered tool sorted by name.
func (h *Host) AvailableTools() []types.ToolDefinition {
	h.mu.RLock()
	defs := make([]types.ToolDefinition, 0, len(h.tools))
	for _, e := range h.tools {
		defs = append(defs, e.def)
	}
	h.mu.RUnlock()

	slices.SortFunc(defs, func(a, b types.ToolDefinition) int { return cmp.Compare(a.Name, b.Name) })
	return defs
}

// ExecuteTool calls the named tool. A non-nil result is returned even when
// the tool reported an application error; a Go error means the tool could not
// be reached at all.
func (h *Host) ExecuteTool(ctx context.Context, name string, args string) (*mcp.ToolResult, error) {
	h.mu.RLock()
	entry, ok := h.tools[name]
	h.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("mcp host: tool %q not found", name)
	}

	start := time.Now()
	var (
		result *mcp.ToolResult
		err    error
	)
	if entry.builtinFn != nil {
		result = executeBuiltin(ctx, entry, args)
	} else {
		result, err = h.executeRemote(ctx, entry, args)
	}
	if err != nil {
		return nil, err
	}
	result.DurationMs = time.Since(start).Milliseconds()
	return result, nil
}

func executeBuiltin(ctx context.Context, entry toolEntry, args string) *mcp.ToolResult {
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	out, err := entry.builtinFn(ctx, args)
	if err != nil {
		return &mcp.ToolResult{Content: err.Error(), IsError: true}
	}
	return &mcp.ToolResult{Content: out}
}

func (h *Host) executeRemote(ctx context.Context, entry toolEntry, args string) (*mcp.ToolResult, error) {
	h.mu.RLock()
	session, ok := h.servers[entry.serverName]
	h.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("mcp host: server %q not found for tool %q", entry.serverName, entry.def.Name)
	}

	var argsMap map[string]any
	if s := strings.TrimSpace(args); s != "" && s != "{}" {
		if err := json.Unmarshal([]byte(s), &argsMap); err != nil {
			return nil, fmt.Errorf("mcp host: invalid args for tool %q: %w", entry.def.Name, err)
		}
	}

	res, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      entry.def.Name,
		Arguments: argsMap,
	})
	if err != nil {
		return nil, fmt.Errorf("mcp host: call tool %q: %w", entry.def.Name, err)
	}

	var sb strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return &mcp.ToolResult{Content: sb.String(), IsError: res.IsError}, nil
}

// Close shuts down all server sessions and clears the registry.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var firstErr error
	for name, session := range h.servers {
		if err := session.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("mcp host: close server %q: %w", name, err)
		}
		delete(h.servers, name)
	}
	h.tools = make(map[string]toolEntry)
	return firstErr
}

// splitCommand splits "/bin/foo --bar baz" into ("/bin/foo", ["--bar", "baz"]).
func splitCommand(command string) (executable string, args []string) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return "", nil
	}
	return parts[0], parts[1:]
}
