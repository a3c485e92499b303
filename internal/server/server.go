// Package server provides a factory for creating the MCP server.
package server

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/mcp-datasette/pkg/config"
	"github.com/txn2/mcp-datasette/pkg/datasette"
	"github.com/txn2/mcp-datasette/pkg/middleware"
	"github.com/txn2/mcp-datasette/pkg/tools"
)

// Version is set at build time.
var Version = "dev"

// New creates an MCP server serving the configured Datasette instances. The
// configuration must already be validated.
func New(cfg *config.Config, logger *slog.Logger) (*mcp.Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	registry, err := datasette.NewRegistry(cfg.Build())
	if err != nil {
		return nil, fmt.Errorf("building instance registry: %w", err)
	}

	client := datasette.NewClient(registry, datasette.WithLogger(logger))
	toolkit := tools.NewToolkit(client, tools.Config{}, tools.WithLogger(logger))

	s := mcp.NewServer(&mcp.Implementation{
		Name:    "mcp-datasette",
		Version: Version,
	}, &mcp.ServerOptions{
		Instructions: buildInstructions(cfg),
	})

	toolkit.RegisterAll(s)
	s.AddReceivingMiddleware(middleware.MCPToolLoggingMiddleware(logger))

	logger.Info("server configured",
		"instances", registry.Len(),
		"tools", len(toolkit.Tools()),
	)
	return s, nil
}

// buildInstructions renders the server instructions shown to connecting
// clients, including the configured instances so assistants can route
// without a discovery call.
func buildInstructions(cfg *config.Config) string {
	var b strings.Builder

	b.WriteString("This server provides read-only access to Datasette instances.\n\n")
	if cfg.Description != "" {
		b.WriteString(cfg.Description)
		b.WriteString("\n\n")
	}

	b.WriteString("Configured instances:\n")
	for _, inst := range cfg.Instances {
		if inst.Description != "" {
			fmt.Fprintf(&b, "- %s: %s (%s)\n", inst.ID, inst.Description, inst.URL)
		} else {
			fmt.Fprintf(&b, "- %s (%s)\n", inst.ID, inst.URL)
		}
	}

	b.WriteString(`
Recommended workflow:
1. list_databases to see what an instance serves.
2. describe_database for the full schema of a database in one call.
3. execute_sql to query. The SQL dialect is SQLite; queries are read-only.
4. search_table for full-text search on tables that have it enabled.

Query results are paginated. When a response includes next_token, pass it
back unchanged in the next call to continue; absence of next_token means
the result is complete.
`)
	return b.String()
}
