// Package mcp defines the tool host used by the voice engines.
//
// A Host owns the tool catalogue for one call: tools imported from external
// Model Context Protocol servers plus in-process built-ins such as
// get_conversation_summary. Engines never talk to the host directly; the
// bridge package adapts it to engine.ToolHandler.
//
// All methods must be safe for concurrent use.
package mcp

import (
	"context"

	"github.com/MrWong99/huddle/pkg/types"
)

// ServerConfig describes how to connect to a single MCP server.
type ServerConfig struct {
	// Name identifies the server in logs and errors. Unique per Host.
	Name string `yaml:"name"`

	// Transport is TransportStdio or TransportStreamableHTTP.
	Transport Transport `yaml:"transport"`

	// Command is the executable and its arguments for stdio servers.
	Command string `yaml:"command"`

	// URL is the endpoint for streamable-http servers.
	URL string `yaml:"url"`

	// Env holds extra environment variables for stdio servers.
	Env map[string]string `yaml:"env"`
}

// ToolResult holds the outcome of a single tool execution.
type ToolResult struct {
	// Content is the tool's textual output.
	Content string

	// IsError reports an application-level failure; Content then holds the
	// message. Transport failures are returned as Go errors instead.
	IsError bool

	// DurationMs is the wall-clock execution time.
	DurationMs int64
}

// Host manages MCP server connections and routes tool calls.
type Host interface {
	// RegisterServer connects to the server described by cfg and imports its
	// tools. A server registered twice under the same name is replaced.
	RegisterServer(ctx context.Context, cfg ServerConfig) error

	// AvailableTools returns every registered tool sorted by name.
	AvailableTools() []types.ToolDefinition

	// ExecuteTool runs the named tool with JSON-encoded args.
	ExecuteTool(ctx context.Context, name string, args string) (*ToolResult, error)

	// Close shuts down all server connections. The Host must not be used
	// afterwards.
	Close() error
}
