package models

// Event kinds accepted by the interaction log.
const (
	KindCodeFix    = "code-fix"
	KindPreference = "preference"
	KindPattern    = "pattern"
	KindError      = "error"
	KindSuggestion = "suggestion"
)

// Feedback values attached to interaction events.
const (
	FeedbackRejected  = -1
	FeedbackNone      = 0
	FeedbackValidated = 1
)

// ValidKind reports whether kind is one of the accepted event kinds.
func ValidKind(kind string) bool {
	switch kind {
	case KindCodeFix, KindPreference, KindPattern, KindError, KindSuggestion:
		return true
	}
	return false
}

// InteractionEvent is one recorded exchange between an agent and a developer.
// Events are append-only; ids are assigned by the log and strictly increase.
type InteractionEvent struct {
	ID        int64             `json:"id"`
	Kind      string            `json:"kind"`
	Content   string            `json:"content"`
	Feedback  int               `json:"feedback"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt string            `json:"created_at"`
}

// EventFilter narrows List queries on the interaction log. Zero values mean
// no constraint. Since and Until compare against the stored created_at text
// ("YYYY-MM-DD HH:MM:SS", UTC).
type EventFilter struct {
	Kind      string
	Feedback  *int
	AfterID   int64
	Since     string
	Until     string
	Limit     int
	Ascending bool
}

// Entity is a node in the per-project knowledge graph, unique by name.
type Entity struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	EntityType string `json:"entity_type"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// Relation is a directed, weighted edge between two entities. Strength grows
// by 1.0 for every distinct event that contributed the relation; EventIDs
// holds those contributors.
type Relation struct {
	ID           string  `json:"id"`
	SourceID     string  `json:"source_id"`
	TargetID     string  `json:"target_id"`
	SourceName   string  `json:"source_name,omitempty"`
	TargetName   string  `json:"target_name,omitempty"`
	Label        string  `json:"label"`
	Strength     float64 `json:"strength"`
	EventIDs     []int64 `json:"event_ids"`
	CreatedAt    string  `json:"created_at"`
	ReinforcedAt string  `json:"reinforced_at"`
}

// PathHop is one edge along a graph traversal path, reported in the
// direction it is stored.
type PathHop struct {
	From     string  `json:"from"`
	Label    string  `json:"label"`
	To       string  `json:"to"`
	Strength float64 `json:"strength"`
}

// Project is one registered namespace in the shared registry.
type Project struct {
	Namespace        string `json:"namespace"`
	Root             string `json:"root"`
	Watermark        int64  `json:"watermark"`
	LastConsolidated string `json:"last_consolidated,omitempty"`
	CreatedAt        string `json:"created_at"`
	LastAccessed     string `json:"last_accessed"`
}

// Consolidation pass outcomes.
const (
	ConsolidationSuccess = "success"
	ConsolidationPartial = "partial"
)

// ConsolidationReport summarizes one consolidation pass.
type ConsolidationReport struct {
	PassID       string               `json:"pass_id"`
	Status       string               `json:"status"`
	Processed    int                  `json:"processed"`
	GraphWrites  int                  `json:"graph_writes"`
	VectorWrites int                  `json:"vector_writes"`
	Failures     []ConsolidationError `json:"failures,omitempty"`
	Watermark    int64                `json:"watermark"`
	StartedAt    string               `json:"started_at"`
	FinishedAt   string               `json:"finished_at"`
}

// ConsolidationError records a single event that failed during a pass and at
// which stage. Failed events are skipped, never retried.
type ConsolidationError struct {
	EventID int64  `json:"event_id"`
	Stage   string `json:"stage"`
	Reason  string `json:"reason"`
}

// SearchHit is one vector search result, best match first.
type SearchHit struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Similarity float32           `json:"similarity"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ContextBlock is an assembled, token-budgeted context summary.
type ContextBlock struct {
	Text       string `json:"text"`
	TokenCount int    `json:"token_count"`
	Truncated  bool   `json:"truncated"`
}
