// Package tools exposes Datasette operations as MCP tools.
package tools

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/mcp-datasette/pkg/datasette"
)

const (
	// defaultMaxSize caps the page size accepted from callers.
	defaultMaxSize = 1000

	// defaultQueryTimeout bounds one upstream request.
	defaultQueryTimeout = 30 * time.Second
)

// Config holds toolkit configuration.
type Config struct {
	// MaxSize is the largest page size forwarded upstream; bigger requests
	// are clamped.
	MaxSize int

	// Timeout bounds each upstream request. execute_sql calls with a larger
	// timelimit extend it for that call.
	Timeout time.Duration
}

// Toolkit registers the Datasette tools on an MCP server. Each tool call is
// a single-shot resolve/throttle/request/normalize cycle; the only state
// carried across calls is the opaque cursor the caller re-submits.
type Toolkit struct {
	client *datasette.Client
	cfg    Config
	logger *slog.Logger
}

// ToolkitOption customizes a Toolkit.
type ToolkitOption func(*Toolkit)

// WithLogger sets the logger used by tool handlers.
func WithLogger(l *slog.Logger) ToolkitOption {
	return func(t *Toolkit) { t.logger = l }
}

// NewToolkit creates a toolkit over the given client.
func NewToolkit(client *datasette.Client, cfg Config, opts ...ToolkitOption) *Toolkit {
	if cfg.MaxSize == 0 {
		cfg.MaxSize = defaultMaxSize
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultQueryTimeout
	}
	t := &Toolkit{
		client: client,
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RegisterAll registers every tool with the MCP server.
func (t *Toolkit) RegisterAll(s *mcp.Server) {
	t.registerListInstances(s)
	t.registerListDatabases(s)
	t.registerDescribeDatabase(s)
	t.registerListTables(s)
	t.registerDescribeTable(s)
	t.registerExecuteSQL(s)
	t.registerSearchTable(s)
}

// Tools returns the names of the tools this toolkit provides.
func (*Toolkit) Tools() []string {
	return []string{
		"list_instances",
		"list_databases",
		"describe_database",
		"list_tables",
		"describe_table",
		"execute_sql",
		"search_table",
	}
}

func (t *Toolkit) limits() datasette.Limits {
	return datasette.Limits{MaxSize: t.cfg.MaxSize}
}

// errorResult renders a classified error as a tool failure. Errors are
// always returned inside the result so a bad call never tears down the
// serving session.
func (t *Toolkit) errorResult(tool string, err error) *mcp.CallToolResult {
	msg := err.Error()
	if kind := datasette.KindOf(err); kind != "" {
		msg = fmt.Sprintf("%s: %s", kind, msg)
	}
	t.logger.Warn("tool call failed", "tool", tool, "error", err)
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}
}

// jsonResult marshals v as the single text content block of a successful
// result.
func (t *Toolkit) jsonResult(tool string, v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return t.errorResult(tool, fmt.Errorf("encoding result: %w", err))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}
}

// rawResult pretty-prints an upstream JSON payload as a successful result.
func (t *Toolkit) rawResult(tool string, raw []byte) *mcp.CallToolResult {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return t.errorResult(tool, fmt.Errorf("decoding upstream payload: %w", err))
	}
	return t.jsonResult(tool, v)
}
