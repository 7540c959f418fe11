package storage

import (
	"context"
	"testing"
)

// setupVectorIndex creates a fresh persistent vector store in a temp directory.
func setupVectorIndex(t *testing.T) (*VectorIndex, string) {
	t.Helper()
	dir := tempDir(t)
	v, err := OpenVectorIndex(dir)
	if err != nil {
		t.Fatalf("OpenVectorIndex: %v", err)
	}
	t.Cleanup(func() { v.Close() })
	return v, dir
}

func TestVectorInsertAndSearch(t *testing.T) {
	v, _ := setupVectorIndex(t)
	ctx := context.Background()

	err := v.Insert(ctx, "event-1", "use context for cancellation", []float32{1, 0, 0},
		map[string]string{"kind": "pattern"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := v.Insert(ctx, "event-2", "retry with backoff", []float32{0, 1, 0}, nil); err != nil {
		t.Fatal(err)
	}

	if v.Count() != 2 {
		t.Errorf("Count = %d, want 2", v.Count())
	}

	hits, err := v.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("Expected 2 hits, got %d", len(hits))
	}
	if hits[0].ID != "event-1" {
		t.Errorf("Best hit = %q, want event-1", hits[0].ID)
	}
	if hits[0].Similarity < 0.99 {
		t.Errorf("Exact match similarity = %v, want ~1.0", hits[0].Similarity)
	}
	if hits[0].Metadata["kind"] != "pattern" {
		t.Errorf("Metadata[kind] = %q, want %q", hits[0].Metadata["kind"], "pattern")
	}
}

func TestVectorSearchEmptyIndex(t *testing.T) {
	v, _ := setupVectorIndex(t)

	hits, err := v.Search(context.Background(), []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Search on empty index: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("Expected no hits, got %d", len(hits))
	}
}

func TestVectorSearchClampsK(t *testing.T) {
	v, _ := setupVectorIndex(t)
	ctx := context.Background()

	if err := v.Insert(ctx, "only", "single entry", []float32{0, 0, 1}, nil); err != nil {
		t.Fatal(err)
	}

	// Asking for more results than stored must not error
	hits, err := v.Search(ctx, []float32{0, 0, 1}, 10)
	if err != nil {
		t.Fatalf("Search with k > count: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("Expected 1 hit, got %d", len(hits))
	}
}

func TestVectorInsertReplacesID(t *testing.T) {
	v, _ := setupVectorIndex(t)
	ctx := context.Background()

	if err := v.Insert(ctx, "event-1", "first version", []float32{1, 0, 0}, nil); err != nil {
		t.Fatal(err)
	}
	if err := v.Insert(ctx, "event-1", "second version", []float32{1, 0, 0}, nil); err != nil {
		t.Fatal(err)
	}

	if v.Count() != 1 {
		t.Errorf("Count = %d after re-insert, want 1", v.Count())
	}
}

func TestVectorPersistence(t *testing.T) {
	v, dir := setupVectorIndex(t)
	ctx := context.Background()

	if err := v.Insert(ctx, "event-1", "durable entry", []float32{1, 0, 0}, nil); err != nil {
		t.Fatal(err)
	}
	if err := v.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenVectorIndex(dir)
	if err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	defer reopened.Close()

	if reopened.Count() != 1 {
		t.Errorf("Count after reopen = %d, want 1", reopened.Count())
	}
	hits, err := reopened.Search(ctx, []float32{1, 0, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Content != "durable entry" {
		t.Errorf("Reopened search = %+v, want the stored entry", hits)
	}
}
