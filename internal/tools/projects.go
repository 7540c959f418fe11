package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/LITAT-AGC/hypnos/internal/models"
	"github.com/LITAT-AGC/hypnos/internal/session"
)

// ProjectTools holds references needed by the registry tool handlers.
type ProjectTools struct {
	Manager     *session.Manager
	DefaultRoot string
}

// --- Input types ---

type MemoryStatusInput struct {
	ProjectRoot string `json:"project_root,omitempty" jsonschema:"Project root directory; defaults to the server's root"`
}

type PurgeProjectInput struct {
	ProjectRoot string `json:"project_root,omitempty" jsonschema:"Root of the project to purge"`
	Namespace   string `json:"namespace,omitempty" jsonschema:"Namespace to purge when the root no longer exists on disk"`
}

// --- Handlers ---

func (t *ProjectTools) ListProjects(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	registry, err := t.Manager.Registry()
	if err != nil {
		return toolError("Failed to open registry: %v", err), nil, nil
	}
	defer registry.Close()

	projects, err := registry.ListProjects()
	if err != nil {
		return toolError("Failed to list projects: %v", err), nil, nil
	}
	if projects == nil {
		projects = []models.Project{}
	}
	return toolJSON(projects)
}

func (t *ProjectTools) MemoryStatus(ctx context.Context, _ *mcp.CallToolRequest, input MemoryStatusInput) (*mcp.CallToolResult, any, error) {
	root := input.ProjectRoot
	if root == "" {
		root = t.DefaultRoot
	}
	if root == "" {
		return toolError("No project root. Pass project_root or start the server with one."), nil, nil
	}

	o, err := t.Manager.Acquire(ctx, root)
	if err != nil {
		return toolError("Failed to open project %q: %v", root, err), nil, nil
	}
	proj, err := o.Project()
	if err != nil {
		return toolError("Failed to load project status: %v", err), nil, nil
	}
	lastID, err := o.LastEventID()
	if err != nil {
		return toolError("Failed to inspect event log: %v", err), nil, nil
	}

	// Events above the watermark have not been through a consolidation
	// pass yet.
	return toolJSON(struct {
		Project     *models.Project `json:"project"`
		LastEventID int64           `json:"last_event_id"`
		Unprocessed int64           `json:"unprocessed_events"`
	}{proj, lastID, lastID - proj.Watermark})
}

// PurgeProject deletes a project's memory outright. It never falls back
// to the server's default root; the target must be named explicitly.
func (t *ProjectTools) PurgeProject(_ context.Context, _ *mcp.CallToolRequest, input PurgeProjectInput) (*mcp.CallToolResult, any, error) {
	switch {
	case input.Namespace != "":
		if err := t.Manager.PurgeNamespace(input.Namespace); err != nil {
			return toolError("Failed to purge namespace: %v", err), nil, nil
		}
		return toolText(fmt.Sprintf("Project %s permanently deleted.", input.Namespace)), nil, nil
	case input.ProjectRoot != "":
		if err := t.Manager.Purge(input.ProjectRoot); err != nil {
			return toolError("Failed to purge project: %v", err), nil, nil
		}
		return toolText(fmt.Sprintf("Project %q permanently deleted.", input.ProjectRoot)), nil, nil
	default:
		return toolError("Pass project_root or namespace to purge."), nil, nil
	}
}

// --- Helpers ---

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
