package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type listInstancesInput struct{}

// instanceEntry is one configured instance as shown to callers. Auth tokens
// are never echoed back, only whether one is set.
type instanceEntry struct {
	ID          string `json:"id" jsonschema:"stable instance identifier"`
	URL         string `json:"url" jsonschema:"base URL of the Datasette instance"`
	Description string `json:"description,omitempty" jsonschema:"operator-provided description of the dataset"`
	HasAuth     bool   `json:"has_auth" jsonschema:"whether requests to this instance carry credentials"`
}

type listInstancesOutput struct {
	Instances []instanceEntry `json:"instances"`
	Count     int             `json:"count"`
}

func (t *Toolkit) registerListInstances(s *mcp.Server) {
	mcp.AddTool(s, &mcp.Tool{
		Name: "list_instances",
		Description: "List the configured Datasette instances. Call this first to learn " +
			"which instance ids the other tools accept. No network round trip.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, _ listInstancesInput) (*mcp.CallToolResult, any, error) {
		return t.handleListInstances(ctx)
	})
}

func (t *Toolkit) handleListInstances(_ context.Context) (*mcp.CallToolResult, any, error) {
	instances := t.client.Registry().List()

	entries := make([]instanceEntry, 0, len(instances))
	for _, inst := range instances {
		entries = append(entries, instanceEntry{
			ID:          inst.ID,
			URL:         inst.BaseURL,
			Description: inst.Description,
			HasAuth:     inst.HasAuth(),
		})
	}

	out := listInstancesOutput{Instances: entries, Count: len(entries)}
	return t.jsonResult("list_instances", out), nil, nil
}
