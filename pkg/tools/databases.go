package tools

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/mcp-datasette/pkg/datasette"
)

type listDatabasesInput struct {
	Instance string `json:"instance" jsonschema:"name of the configured Datasette instance"`
}

// databaseEntry is one database from the instance index.
type databaseEntry struct {
	Name              string `json:"name"`
	Path              string `json:"path"`
	TablesCount       int    `json:"tables_count"`
	HiddenTablesCount int    `json:"hidden_tables_count"`
}

type listDatabasesOutput struct {
	Databases []databaseEntry `json:"databases"`
	Instance  string          `json:"instance"`
}

func (t *Toolkit) registerListDatabases(s *mcp.Server) {
	mcp.AddTool(s, &mcp.Tool{
		Name:        "list_databases",
		Description: "List the databases available on a Datasette instance, with table counts.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, in listDatabasesInput) (*mcp.CallToolResult, any, error) {
		return t.handleListDatabases(ctx, in)
	})
}

func (t *Toolkit) handleListDatabases(ctx context.Context, in listDatabasesInput) (*mcp.CallToolResult, any, error) {
	path, params := datasette.InstanceIndexRequest()
	raw, err := t.client.Fetch(ctx, in.Instance, path, params, t.cfg.Timeout)
	if err != nil {
		return t.errorResult("list_databases", err), nil, nil
	}

	databases, err := parseInstanceIndex(raw)
	if err != nil {
		return t.errorResult("list_databases", err), nil, nil
	}

	out := listDatabasesOutput{Databases: databases, Instance: in.Instance}
	return t.jsonResult("list_databases", out), nil, nil
}

// parseInstanceIndex extracts database entries from the instance index
// payload, preserving the upstream's ordering. Index keys whose values are
// not database descriptors are skipped.
func parseInstanceIndex(raw []byte) ([]databaseEntry, error) {
	var index map[string]json.RawMessage
	if err := json.Unmarshal(raw, &index); err != nil {
		return nil, &datasette.Error{
			Kind:    datasette.KindUpstreamUnavailable,
			Message: "unexpected instance index structure",
			Err:     err,
		}
	}
	names, err := datasette.ObjectKeys(raw)
	if err != nil {
		return nil, &datasette.Error{
			Kind:    datasette.KindUpstreamUnavailable,
			Message: "unexpected instance index structure",
			Err:     err,
		}
	}

	databases := make([]databaseEntry, 0, len(names))
	for _, name := range names {
		var info struct {
			Path              *string `json:"path"`
			TablesCount       int     `json:"tables_count"`
			HiddenTablesCount int     `json:"hidden_tables_count"`
		}
		if err := json.Unmarshal(index[name], &info); err != nil || info.Path == nil {
			continue
		}
		databases = append(databases, databaseEntry{
			Name:              name,
			Path:              *info.Path,
			TablesCount:       info.TablesCount,
			HiddenTablesCount: info.HiddenTablesCount,
		})
	}
	return databases, nil
}

type describeDatabaseInput struct {
	Instance string `json:"instance" jsonschema:"name of the configured Datasette instance"`
	Database string `json:"database" jsonschema:"database name"`
}

func (t *Toolkit) registerDescribeDatabase(s *mcp.Server) {
	mcp.AddTool(s, &mcp.Tool{
		Name: "describe_database",
		Description: "Get the complete database metadata in one round trip: every table " +
			"with its columns, types, primary keys and foreign keys. The most efficient " +
			"way to learn a database's structure before writing SQL.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, in describeDatabaseInput) (*mcp.CallToolResult, any, error) {
		return t.handleDatabaseMetadata(ctx, "describe_database", in.Instance, in.Database)
	})
}

type listTablesInput struct {
	Instance string `json:"instance" jsonschema:"name of the configured Datasette instance"`
	Database string `json:"database" jsonschema:"database name"`
}

func (t *Toolkit) registerListTables(s *mcp.Server) {
	mcp.AddTool(s, &mcp.Tool{
		Name: "list_tables",
		Description: "List the tables in a database with row counts. For full schemas " +
			"prefer describe_database, which answers in the same single round trip.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, in listTablesInput) (*mcp.CallToolResult, any, error) {
		return t.handleDatabaseMetadata(ctx, "list_tables", in.Instance, in.Database)
	})
}

// handleDatabaseMetadata serves both describe_database and list_tables: the
// upstream database page already carries the full table metadata in one
// response.
func (t *Toolkit) handleDatabaseMetadata(ctx context.Context, tool, instance, database string) (*mcp.CallToolResult, any, error) {
	spec := datasette.SchemaSpec{Database: database}
	path, params, err := spec.Request(t.limits())
	if err != nil {
		return t.errorResult(tool, err), nil, nil
	}
	raw, err := t.client.Fetch(ctx, instance, path, params, t.cfg.Timeout)
	if err != nil {
		return t.errorResult(tool, err), nil, nil
	}
	return t.rawResult(tool, raw), nil, nil
}

type describeTableInput struct {
	Instance string `json:"instance" jsonschema:"name of the configured Datasette instance"`
	Database string `json:"database" jsonschema:"database name"`
	Table    string `json:"table" jsonschema:"table name"`
}

func (t *Toolkit) registerDescribeTable(s *mcp.Server) {
	mcp.AddTool(s, &mcp.Tool{
		Name:        "describe_table",
		Description: "Get one table's schema, column information and metadata, without data rows.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, in describeTableInput) (*mcp.CallToolResult, any, error) {
		return t.handleDescribeTable(ctx, in)
	})
}

func (t *Toolkit) handleDescribeTable(ctx context.Context, in describeTableInput) (*mcp.CallToolResult, any, error) {
	spec := datasette.TableSpec{Database: in.Database, Table: in.Table}
	path, params, err := spec.Request()
	if err != nil {
		return t.errorResult("describe_table", err), nil, nil
	}
	raw, err := t.client.Fetch(ctx, in.Instance, path, params, t.cfg.Timeout)
	if err != nil {
		return t.errorResult("describe_table", err), nil, nil
	}
	return t.rawResult("describe_table", raw), nil, nil
}
