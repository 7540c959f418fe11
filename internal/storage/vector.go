package storage

import (
	"context"
	"fmt"

	"github.com/philippgille/chromem-go"

	"github.com/LITAT-AGC/hypnos/internal/models"
)

// VectorIndex manages a single project's persistent vector collection.
// Embeddings are always supplied by the caller, never computed here.
type VectorIndex struct {
	db  *chromem.DB
	col *chromem.Collection
}

// OpenVectorIndex opens (or creates) one project's vector store directory.
func OpenVectorIndex(dir string) (*VectorIndex, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open vector db: %w", err)
	}
	col, err := db.GetOrCreateCollection("memory", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("open vector collection: %w", err)
	}
	return &VectorIndex{db: db, col: col}, nil
}

// Insert stores one embedded text chunk. Re-inserting an id replaces the
// stored chunk, so writes are idempotent per id.
func (v *VectorIndex) Insert(ctx context.Context, id, content string, embedding []float32, metadata map[string]string) error {
	if id == "" {
		return fmt.Errorf("chunk id must not be empty")
	}
	err := v.col.AddDocument(ctx, chromem.Document{
		ID:        id,
		Content:   content,
		Embedding: embedding,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// Search returns up to k stored chunks nearest to the query embedding, best
// match first. An empty index yields an empty result.
func (v *VectorIndex) Search(ctx context.Context, embedding []float32, k int) ([]models.SearchHit, error) {
	count := v.col.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := v.col.QueryEmbedding(ctx, embedding, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	hits := make([]models.SearchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, models.SearchHit{
			ID:         r.ID,
			Content:    r.Content,
			Similarity: r.Similarity,
			Metadata:   r.Metadata,
		})
	}
	return hits, nil
}

// Count returns the number of stored chunks.
func (v *VectorIndex) Count() int {
	return v.col.Count()
}

// Close releases the in-process handle. Chromem persists on every write, so
// there is nothing to flush.
func (v *VectorIndex) Close() error {
	return nil
}
