// Package extract pulls subject-relation-object triples out of free-form
// interaction content so they can be written into the knowledge graph.
package extract

import "context"

// Triple is a single extracted fact.
type Triple struct {
	Source   string `json:"source"`
	Relation string `json:"relation"`
	Target   string `json:"target"`
}

// Extractor turns interaction content into zero or more triples. An empty
// result is not an error; it means the content carried no graph-worthy
// structure.
type Extractor interface {
	Extract(ctx context.Context, content string) ([]Triple, error)
}
