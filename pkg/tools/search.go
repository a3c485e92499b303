package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/mcp-datasette/pkg/datasette"
)

type searchTableInput struct {
	Instance     string   `json:"instance" jsonschema:"name of the configured Datasette instance"`
	Database     string   `json:"database" jsonschema:"database name"`
	Table        string   `json:"table" jsonschema:"table name (must have full-text search enabled)"`
	SearchTerm   string   `json:"search_term" jsonschema:"text to search for"`
	SearchColumn string   `json:"search_column,omitempty" jsonschema:"restrict the search to this column"`
	Columns      []string `json:"columns,omitempty" jsonschema:"columns to return; omit for all"`
	RawMode      bool     `json:"raw_mode,omitempty" jsonschema:"treat search_term as a boolean FTS expression (AND, OR, NOT, NEAR); default treats it as a literal phrase"`
	Shape        string   `json:"shape,omitempty" jsonschema:"upstream row encoding: objects, arrays or array; omit for the upstream default"`
	Size         *int     `json:"size,omitempty" jsonschema:"max rows per page; values above the server cap are clamped"`
	JSONColumns  []string `json:"json_columns,omitempty" jsonschema:"columns whose values should be parsed as nested JSON"`
	NextToken    string   `json:"next_token,omitempty" jsonschema:"opaque pagination token from a previous response, forwarded verbatim"`
}

func (t *Toolkit) registerSearchTable(s *mcp.Server) {
	mcp.AddTool(s, &mcp.Tool{
		Name: "search_table",
		Description: "Full-text search within a table. By default the term is matched as a " +
			"literal phrase; set raw_mode for boolean operators. Paginated like execute_sql.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, in searchTableInput) (*mcp.CallToolResult, any, error) {
		return t.handleSearchTable(ctx, in)
	})
}

func (t *Toolkit) handleSearchTable(ctx context.Context, in searchTableInput) (*mcp.CallToolResult, any, error) {
	spec := datasette.SearchSpec{
		Database:    in.Database,
		Table:       in.Table,
		Term:        in.SearchTerm,
		Column:      in.SearchColumn,
		Columns:     in.Columns,
		RawMode:     in.RawMode,
		Shape:       datasette.Shape(in.Shape),
		Size:        in.Size,
		JSONColumns: in.JSONColumns,
		NextToken:   in.NextToken,
	}
	path, params, err := spec.Request(t.limits())
	if err != nil {
		return t.errorResult("search_table", err), nil, nil
	}

	raw, err := t.client.Fetch(ctx, in.Instance, path, params, t.cfg.Timeout)
	if err != nil {
		return t.errorResult("search_table", err), nil, nil
	}

	result, err := datasette.Normalize(raw)
	if err != nil {
		return t.errorResult("search_table", err), nil, nil
	}
	return t.jsonResult("search_table", result), nil, nil
}
