package server

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/LITAT-AGC/hypnos/internal/assemble"
	"github.com/LITAT-AGC/hypnos/internal/session"
	"github.com/LITAT-AGC/hypnos/internal/tools"
)

// New creates a fully configured MCP server with all tools registered.
// defaultRoot scopes tools that are called without a project_root.
func New(mgr *session.Manager, defaultRoot string) *mcp.Server {
	mt := &tools.MemoryTools{Manager: mgr, DefaultRoot: defaultRoot}
	pt := &tools.ProjectTools{Manager: mgr, DefaultRoot: defaultRoot}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "hypnos",
		Version: "0.1.0",
	}, nil)

	// Interaction log tools
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "record_event",
		Description: "Record an interaction event (code-fix, preference, pattern, error, suggestion) with optional feedback",
	}, mt.RecordEvent)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_events",
		Description: "List recorded events, newest first, with optional kind/feedback/time filters",
	}, mt.ListEvents)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "search_events",
		Description: "Search event content using FTS5 full-text search",
	}, mt.SearchEvents)

	// Consolidation
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "run_consolidation",
		Description: "Consolidate new events into the knowledge graph and vector index; returns a pass report",
	}, mt.RunConsolidation)

	// Knowledge graph tools
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "query_entity",
		Description: "Look up an entity and every relation touching it",
	}, mt.QueryEntity)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "traverse",
		Description: "Find a shortest path between two entities in the knowledge graph",
	}, mt.Traverse)

	// Retrieval tools
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "semantic_search",
		Description: "Find consolidated memories semantically similar to a query text",
	}, mt.SemanticSearch)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_context",
		Description: "Assemble a token-budgeted markdown context block from recent activity, known patterns and relevant memories",
	}, mt.GetContext)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_file_context",
		Description: "Assemble a context block focused on one file path",
	}, mt.GetFileContext)

	// Registry tools
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_projects",
		Description: "List every project known to this memory server, most recently used first",
	}, pt.ListProjects)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "memory_status",
		Description: "Show a project's registry entry, last event id and how many events await consolidation",
	}, pt.MemoryStatus)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "purge_project",
		Description: "Permanently delete a project's entire memory (irreversible)",
	}, pt.PurgeProject)

	// The default project's assembled context, for clients that prefer
	// resources over tool calls.
	if defaultRoot != "" {
		srv.AddResource(&mcp.Resource{
			URI:         "memory://context",
			Name:        "project-context",
			Description: "Assembled memory context for the server's default project",
			MIMEType:    "text/markdown",
		}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			o, err := mgr.Acquire(ctx, defaultRoot)
			if err != nil {
				return nil, err
			}
			block, err := o.Context(ctx, assemble.Options{})
			if err != nil {
				return nil, err
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{{
					URI:      req.Params.URI,
					MIMEType: "text/markdown",
					Text:     block.Text,
				}},
			}, nil
		})
	}

	return srv
}
