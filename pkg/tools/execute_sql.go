package tools

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/mcp-datasette/pkg/datasette"
)

type executeSQLInput struct {
	Instance    string   `json:"instance" jsonschema:"name of the configured Datasette instance"`
	Database    string   `json:"database" jsonschema:"database name"`
	SQL         string   `json:"sql" jsonschema:"SQL to execute (SQLite dialect); the upstream service enforces read-only"`
	Shape       string   `json:"shape,omitempty" jsonschema:"upstream row encoding: objects, arrays or array; omit for the upstream default"`
	JSONColumns []string `json:"json_columns,omitempty" jsonschema:"columns whose values should be parsed as nested JSON"`
	Trace       bool     `json:"trace,omitempty" jsonschema:"include the upstream query performance trace"`
	TimeLimit   int      `json:"timelimit,omitempty" jsonschema:"upstream query time limit in milliseconds"`
	Size        *int     `json:"size,omitempty" jsonschema:"max rows per page; values above the server cap are clamped"`
	NextToken   string   `json:"next_token,omitempty" jsonschema:"opaque pagination token from a previous response, forwarded verbatim"`
}

func (t *Toolkit) registerExecuteSQL(s *mcp.Server) {
	mcp.AddTool(s, &mcp.Tool{
		Name: "execute_sql",
		Description: "Execute a read-only SQL query against a Datasette database. Results " +
			"are normalized to rows keyed by column name; when more pages exist the " +
			"response carries a next_token to pass into the next call.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, in executeSQLInput) (*mcp.CallToolResult, any, error) {
		return t.handleExecuteSQL(ctx, in)
	})
}

func (t *Toolkit) handleExecuteSQL(ctx context.Context, in executeSQLInput) (*mcp.CallToolResult, any, error) {
	spec := datasette.SQLSpec{
		Database:    in.Database,
		SQL:         in.SQL,
		Shape:       datasette.Shape(in.Shape),
		JSONColumns: in.JSONColumns,
		Trace:       in.Trace,
		TimeLimitMS: in.TimeLimit,
		Size:        in.Size,
		NextToken:   in.NextToken,
	}
	path, params, err := spec.Request(t.limits())
	if err != nil {
		return t.errorResult("execute_sql", err), nil, nil
	}

	raw, err := t.client.Fetch(ctx, in.Instance, path, params, t.sqlTimeout(in.TimeLimit))
	if err != nil {
		return t.errorResult("execute_sql", err), nil, nil
	}

	result, err := datasette.Normalize(raw)
	if err != nil {
		return t.errorResult("execute_sql", err), nil, nil
	}
	return t.jsonResult("execute_sql", result), nil, nil
}

// sqlTimeout extends the HTTP deadline when the caller asked for a larger
// upstream time limit, leaving slack for transfer and rendering.
func (t *Toolkit) sqlTimeout(timeLimitMS int) time.Duration {
	timeout := t.cfg.Timeout
	if tl := time.Duration(timeLimitMS) * time.Millisecond; tl > timeout {
		timeout = tl + 5*time.Second
	}
	return timeout
}
