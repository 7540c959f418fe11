package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/LITAT-AGC/hypnos/internal/assemble"
	"github.com/LITAT-AGC/hypnos/internal/memory"
	"github.com/LITAT-AGC/hypnos/internal/models"
	"github.com/LITAT-AGC/hypnos/internal/session"
	"github.com/LITAT-AGC/hypnos/internal/storage"
)

// MemoryTools holds references needed by the memory tool handlers.
type MemoryTools struct {
	Manager     *session.Manager
	DefaultRoot string
}

// --- Input types ---

type RecordEventInput struct {
	ProjectRoot string            `json:"project_root,omitempty" jsonschema:"Project root directory; defaults to the server's root"`
	Kind        string            `json:"kind" jsonschema:"Event kind: code-fix, preference, pattern, error, or suggestion"`
	Content     string            `json:"content" jsonschema:"What happened, in plain text"`
	Feedback    int               `json:"feedback,omitempty" jsonschema:"Agent feedback: 1 validated, -1 rejected, 0 none"`
	Metadata    map[string]string `json:"metadata,omitempty" jsonschema:"Optional free-form tags"`
}

type ListEventsInput struct {
	ProjectRoot string `json:"project_root,omitempty" jsonschema:"Project root directory; defaults to the server's root"`
	Kind        string `json:"kind,omitempty" jsonschema:"Filter by event kind"`
	Feedback    *int   `json:"feedback,omitempty" jsonschema:"Filter by feedback value: -1, 0 or 1"`
	AfterID     int64  `json:"after_id,omitempty" jsonschema:"Only events with an id above this"`
	Since       string `json:"since,omitempty" jsonschema:"Only events created at or after this UTC timestamp"`
	Until       string `json:"until,omitempty" jsonschema:"Only events created at or before this UTC timestamp"`
	Limit       int    `json:"limit,omitempty" jsonschema:"Maximum number of events (default 50)"`
}

type SearchEventsInput struct {
	ProjectRoot string `json:"project_root,omitempty" jsonschema:"Project root directory; defaults to the server's root"`
	Query       string `json:"query" jsonschema:"Full-text query (supports FTS5 syntax: AND, OR, NOT, prefix*)"`
	Limit       int    `json:"limit,omitempty" jsonschema:"Maximum number of events (default 20)"`
}

type RunConsolidationInput struct {
	ProjectRoot string `json:"project_root,omitempty" jsonschema:"Project root directory; defaults to the server's root"`
}

type QueryEntityInput struct {
	ProjectRoot string `json:"project_root,omitempty" jsonschema:"Project root directory; defaults to the server's root"`
	Name        string `json:"name" jsonschema:"Exact entity name"`
}

type TraverseInput struct {
	ProjectRoot string `json:"project_root,omitempty" jsonschema:"Project root directory; defaults to the server's root"`
	From        string `json:"from" jsonschema:"Entity name to start from"`
	To          string `json:"to" jsonschema:"Entity name to reach"`
	MaxDepth    int    `json:"max_depth,omitempty" jsonschema:"Maximum path length in hops (default 5)"`
}

type SemanticSearchInput struct {
	ProjectRoot string `json:"project_root,omitempty" jsonschema:"Project root directory; defaults to the server's root"`
	Query       string `json:"query" jsonschema:"Text to find semantically similar memories for"`
	Limit       int    `json:"limit,omitempty" jsonschema:"Maximum number of hits (default 5)"`
}

type GetContextInput struct {
	ProjectRoot string `json:"project_root,omitempty" jsonschema:"Project root directory; defaults to the server's root"`
	MaxTokens   int    `json:"max_tokens,omitempty" jsonschema:"Token budget for the context block (default 2000)"`
	Current     string `json:"current,omitempty" jsonschema:"Current focus text; enables the Relevant Context section"`
}

type GetFileContextInput struct {
	ProjectRoot string `json:"project_root,omitempty" jsonschema:"Project root directory; defaults to the server's root"`
	Path        string `json:"path" jsonschema:"File path the agent is working on"`
	MaxTokens   int    `json:"max_tokens,omitempty" jsonschema:"Token budget for the context block (default 2000)"`
}

// --- Handlers ---

// resolve picks the project for a call. An explicit project_root argument
// wins, otherwise the server's default root is used.
func (t *MemoryTools) resolve(ctx context.Context, projectRoot string) (*memory.Orchestrator, *mcp.CallToolResult) {
	root := projectRoot
	if root == "" {
		root = t.DefaultRoot
	}
	if root == "" {
		return nil, toolError("No project root. Pass project_root or start the server with one.")
	}
	o, err := t.Manager.Acquire(ctx, root)
	if err != nil {
		return nil, toolError("Failed to open project %q: %v", root, err)
	}
	return o, nil
}

func (t *MemoryTools) RecordEvent(ctx context.Context, _ *mcp.CallToolRequest, input RecordEventInput) (*mcp.CallToolResult, any, error) {
	o, errResult := t.resolve(ctx, input.ProjectRoot)
	if errResult != nil {
		return errResult, nil, nil
	}

	ev, err := o.Record(input.Kind, input.Content, input.Feedback, input.Metadata)
	if err != nil {
		return toolError("Failed to record event: %v", err), nil, nil
	}
	return toolJSON(ev)
}

func (t *MemoryTools) ListEvents(ctx context.Context, _ *mcp.CallToolRequest, input ListEventsInput) (*mcp.CallToolResult, any, error) {
	o, errResult := t.resolve(ctx, input.ProjectRoot)
	if errResult != nil {
		return errResult, nil, nil
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 50
	}
	events, err := o.Events(models.EventFilter{
		Kind:     input.Kind,
		Feedback: input.Feedback,
		AfterID:  input.AfterID,
		Since:    input.Since,
		Until:    input.Until,
		Limit:    limit,
	})
	if err != nil {
		return toolError("Failed to list events: %v", err), nil, nil
	}
	if events == nil {
		events = []models.InteractionEvent{}
	}
	return toolJSON(events)
}

func (t *MemoryTools) SearchEvents(ctx context.Context, _ *mcp.CallToolRequest, input SearchEventsInput) (*mcp.CallToolResult, any, error) {
	o, errResult := t.resolve(ctx, input.ProjectRoot)
	if errResult != nil {
		return errResult, nil, nil
	}
	if input.Query == "" {
		return toolError("Search query is required"), nil, nil
	}

	events, err := o.SearchEvents(input.Query, input.Limit)
	if err != nil {
		return toolError("Search failed: %v", err), nil, nil
	}
	if events == nil {
		events = []models.InteractionEvent{}
	}
	return toolJSON(events)
}

func (t *MemoryTools) RunConsolidation(ctx context.Context, _ *mcp.CallToolRequest, input RunConsolidationInput) (*mcp.CallToolResult, any, error) {
	o, errResult := t.resolve(ctx, input.ProjectRoot)
	if errResult != nil {
		return errResult, nil, nil
	}

	report, err := o.Consolidate(ctx)
	if err != nil {
		return toolError("Failed to run consolidation: %v", err), nil, nil
	}
	return toolJSON(report)
}

func (t *MemoryTools) QueryEntity(ctx context.Context, _ *mcp.CallToolRequest, input QueryEntityInput) (*mcp.CallToolResult, any, error) {
	o, errResult := t.resolve(ctx, input.ProjectRoot)
	if errResult != nil {
		return errResult, nil, nil
	}
	if input.Name == "" {
		return toolError("Entity name is required"), nil, nil
	}

	entity, relations, err := o.EntityRelations(input.Name)
	if err != nil {
		return toolError("Failed to query entity: %v", err), nil, nil
	}
	if entity == nil {
		return toolText(fmt.Sprintf("No entity named %q.", input.Name)), nil, nil
	}
	if relations == nil {
		relations = []models.Relation{}
	}
	return toolJSON(struct {
		Entity    *models.Entity    `json:"entity"`
		Relations []models.Relation `json:"relations"`
	}{entity, relations})
}

func (t *MemoryTools) Traverse(ctx context.Context, _ *mcp.CallToolRequest, input TraverseInput) (*mcp.CallToolResult, any, error) {
	o, errResult := t.resolve(ctx, input.ProjectRoot)
	if errResult != nil {
		return errResult, nil, nil
	}
	if input.From == "" || input.To == "" {
		return toolError("Both from and to entity names are required"), nil, nil
	}

	depth := input.MaxDepth
	if depth <= 0 {
		depth = storage.DefaultMaxDepth
	}
	path, err := o.Traverse(input.From, input.To, depth)
	if err != nil {
		return toolError("Traversal failed: %v", err), nil, nil
	}
	if len(path) == 0 {
		return toolText(fmt.Sprintf("No path from %q to %q within %d hops.", input.From, input.To, depth)), nil, nil
	}
	return toolJSON(path)
}

func (t *MemoryTools) SemanticSearch(ctx context.Context, _ *mcp.CallToolRequest, input SemanticSearchInput) (*mcp.CallToolResult, any, error) {
	o, errResult := t.resolve(ctx, input.ProjectRoot)
	if errResult != nil {
		return errResult, nil, nil
	}
	if input.Query == "" {
		return toolError("Search query is required"), nil, nil
	}

	limit := input.Limit
	if limit <= 0 {
		limit = assemble.DefaultSemanticLimit
	}
	hits, err := o.SemanticSearchText(ctx, input.Query, limit)
	if err != nil {
		return toolError("Semantic search failed: %v", err), nil, nil
	}
	if hits == nil {
		hits = []models.SearchHit{}
	}
	return toolJSON(hits)
}

func (t *MemoryTools) GetContext(ctx context.Context, _ *mcp.CallToolRequest, input GetContextInput) (*mcp.CallToolResult, any, error) {
	o, errResult := t.resolve(ctx, input.ProjectRoot)
	if errResult != nil {
		return errResult, nil, nil
	}

	block, err := o.Context(ctx, assemble.Options{MaxTokens: input.MaxTokens, Current: input.Current})
	if err != nil {
		return toolError("Failed to assemble context: %v", err), nil, nil
	}
	return toolJSON(block)
}

func (t *MemoryTools) GetFileContext(ctx context.Context, _ *mcp.CallToolRequest, input GetFileContextInput) (*mcp.CallToolResult, any, error) {
	o, errResult := t.resolve(ctx, input.ProjectRoot)
	if errResult != nil {
		return errResult, nil, nil
	}
	if input.Path == "" {
		return toolError("File path is required"), nil, nil
	}

	block, err := o.FileContext(ctx, input.Path, assemble.Options{MaxTokens: input.MaxTokens})
	if err != nil {
		return toolError("Failed to assemble file context: %v", err), nil, nil
	}
	return toolJSON(block)
}
