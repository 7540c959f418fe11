package storage

import (
	"path/filepath"
	"testing"
)

// setupGraph creates a fresh graph DB in a temp directory.
func setupGraph(t *testing.T) *Graph {
	t.Helper()
	dir := tempDir(t)
	g, err := OpenGraph(filepath.Join(dir, "graph.db"))
	if err != nil {
		t.Fatalf("OpenGraph: %v", err)
	}
	t.Cleanup(func() { g.Close() })
	return g
}

func TestUpsertEntityIdempotent(t *testing.T) {
	g := setupGraph(t)

	first, err := g.UpsertEntity("async/await", "pattern")
	if err != nil {
		t.Fatalf("UpsertEntity: %v", err)
	}
	if first.ID == "" {
		t.Error("Entity ID should not be empty")
	}
	if first.EntityType != "pattern" {
		t.Errorf("EntityType = %q, want %q", first.EntityType, "pattern")
	}

	second, err := g.UpsertEntity("async/await", "technology")
	if err != nil {
		t.Fatalf("UpsertEntity again: %v", err)
	}
	if second.ID != first.ID {
		t.Error("Upsert created a duplicate entity")
	}
	if second.EntityType != "pattern" {
		t.Errorf("Existing entity should keep its type, got %q", second.EntityType)
	}
}

func TestUpsertEntityDefaultsType(t *testing.T) {
	g := setupGraph(t)

	e, err := g.UpsertEntity("callbacks", "")
	if err != nil {
		t.Fatal(err)
	}
	if e.EntityType != "concept" {
		t.Errorf("EntityType = %q, want %q", e.EntityType, "concept")
	}

	if _, err := g.UpsertEntity("", "thing"); err == nil {
		t.Error("Expected error for empty entity name")
	}
}

func TestUpsertRelationReinforcement(t *testing.T) {
	g := setupGraph(t)

	rel, err := g.UpsertRelation("async/await", "preferred_over", "callbacks", 1)
	if err != nil {
		t.Fatalf("UpsertRelation: %v", err)
	}
	if rel.Strength != 1.0 {
		t.Errorf("Initial strength = %v, want 1.0", rel.Strength)
	}
	if len(rel.EventIDs) != 1 || rel.EventIDs[0] != 1 {
		t.Errorf("EventIDs = %v, want [1]", rel.EventIDs)
	}

	// A new contributing event reinforces by exactly 1.0
	rel, err = g.UpsertRelation("async/await", "preferred_over", "callbacks", 2)
	if err != nil {
		t.Fatal(err)
	}
	if rel.Strength != 2.0 {
		t.Errorf("Strength after second event = %v, want 2.0", rel.Strength)
	}
	if len(rel.EventIDs) != 2 {
		t.Errorf("EventIDs = %v, want two contributors", rel.EventIDs)
	}

	// Replaying an already-counted event changes nothing
	rel, err = g.UpsertRelation("async/await", "preferred_over", "callbacks", 2)
	if err != nil {
		t.Fatal(err)
	}
	if rel.Strength != 2.0 {
		t.Errorf("Strength after replay = %v, want 2.0", rel.Strength)
	}
	if len(rel.EventIDs) != 2 {
		t.Errorf("EventIDs after replay = %v, want unchanged", rel.EventIDs)
	}

	// Still a single relation row
	rels, err := g.RelationsOf("async/await")
	if err != nil {
		t.Fatal(err)
	}
	if len(rels) != 1 {
		t.Fatalf("Expected exactly 1 relation record, got %d", len(rels))
	}
}

func TestUpsertRelationWithoutEvents(t *testing.T) {
	g := setupGraph(t)

	rel, err := g.UpsertRelation("service", "depends_on", "queue")
	if err != nil {
		t.Fatalf("UpsertRelation: %v", err)
	}
	if rel.Strength != 1.0 {
		t.Errorf("Strength = %v, want 1.0", rel.Strength)
	}
	if len(rel.EventIDs) != 0 {
		t.Errorf("EventIDs = %v, want empty", rel.EventIDs)
	}

	// Endpoints were created on the fly
	e, err := g.GetEntity("queue")
	if err != nil {
		t.Fatal(err)
	}
	if e == nil {
		t.Error("Target entity should have been created")
	}
}

func TestRelationsOfBothDirections(t *testing.T) {
	g := setupGraph(t)

	g.UpsertRelation("handlers.js", "uses", "async/await", 1)
	g.UpsertRelation("async/await", "preferred_over", "callbacks", 2)
	g.UpsertRelation("async/await", "preferred_over", "callbacks", 3)

	rels, err := g.RelationsOf("async/await")
	if err != nil {
		t.Fatalf("RelationsOf: %v", err)
	}
	if len(rels) != 2 {
		t.Fatalf("Expected 2 relations (incoming and outgoing), got %d", len(rels))
	}
	// Strongest first
	if rels[0].Label != "preferred_over" || rels[0].Strength != 2.0 {
		t.Errorf("First relation should be the reinforced one, got %q at %v", rels[0].Label, rels[0].Strength)
	}
	if rels[1].SourceName != "handlers.js" {
		t.Errorf("Second relation source = %q, want handlers.js", rels[1].SourceName)
	}
}

func TestRelationsOfUnknownEntity(t *testing.T) {
	g := setupGraph(t)

	rels, err := g.RelationsOf("ghost")
	if err != nil {
		t.Fatalf("RelationsOf unknown entity: %v", err)
	}
	if len(rels) != 0 {
		t.Errorf("Expected empty result, got %d relations", len(rels))
	}
}

func TestTopRelations(t *testing.T) {
	g := setupGraph(t)

	g.UpsertRelation("a", "uses", "b", 1)
	g.UpsertRelation("c", "uses", "d", 2)
	g.UpsertRelation("c", "uses", "d", 3)
	g.UpsertRelation("c", "uses", "d", 4)
	g.UpsertRelation("e", "uses", "f", 5)
	g.UpsertRelation("e", "uses", "f", 6)

	rels, err := g.TopRelations(2)
	if err != nil {
		t.Fatalf("TopRelations: %v", err)
	}
	if len(rels) != 2 {
		t.Fatalf("Expected 2 relations, got %d", len(rels))
	}
	if rels[0].SourceName != "c" || rels[0].Strength != 3.0 {
		t.Errorf("Strongest relation should be c->d at 3.0, got %s->%s at %v", rels[0].SourceName, rels[0].TargetName, rels[0].Strength)
	}
	if rels[1].SourceName != "e" {
		t.Errorf("Second relation should be e->f, got %s->%s", rels[1].SourceName, rels[1].TargetName)
	}
}

func TestPathDirect(t *testing.T) {
	g := setupGraph(t)

	g.UpsertRelation("api", "uses", "auth", 1)

	hops, err := g.Path("api", "auth", 0)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if len(hops) != 1 {
		t.Fatalf("Expected 1 hop, got %d", len(hops))
	}
	if hops[0].From != "api" || hops[0].Label != "uses" || hops[0].To != "auth" {
		t.Errorf("Hop = %+v, want api -uses-> auth", hops[0])
	}
}

func TestPathMultiHopShortest(t *testing.T) {
	g := setupGraph(t)

	// Two routes from a to d: a->b->c->d and a->x->d
	g.UpsertRelation("a", "uses", "b", 1)
	g.UpsertRelation("b", "uses", "c", 2)
	g.UpsertRelation("c", "uses", "d", 3)
	g.UpsertRelation("a", "uses", "x", 4)
	g.UpsertRelation("x", "uses", "d", 5)

	hops, err := g.Path("a", "d", 5)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if len(hops) != 2 {
		t.Fatalf("Expected shortest path of 2 hops, got %d", len(hops))
	}
	if hops[0].To != "x" || hops[1].To != "d" {
		t.Errorf("Path = %+v, want a->x->d", hops)
	}
}

func TestPathFollowsReverseEdges(t *testing.T) {
	g := setupGraph(t)

	// Only edge points d->a; traversal from a must still reach d
	g.UpsertRelation("d", "uses", "a", 1)

	hops, err := g.Path("a", "d", 3)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if len(hops) != 1 {
		t.Fatalf("Expected 1 hop via reverse edge, got %d", len(hops))
	}
	if hops[0].From != "d" || hops[0].To != "a" {
		t.Errorf("Hop should report stored direction d->a, got %+v", hops[0])
	}
}

func TestPathRespectsMaxDepth(t *testing.T) {
	g := setupGraph(t)

	g.UpsertRelation("a", "uses", "b", 1)
	g.UpsertRelation("b", "uses", "c", 2)
	g.UpsertRelation("c", "uses", "d", 3)

	hops, err := g.Path("a", "d", 2)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if len(hops) != 0 {
		t.Errorf("Path beyond maxDepth should be empty, got %d hops", len(hops))
	}

	hops, err = g.Path("a", "d", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(hops) != 3 {
		t.Errorf("Expected 3 hops at sufficient depth, got %d", len(hops))
	}
}

func TestPathTerminatesOnCycle(t *testing.T) {
	g := setupGraph(t)

	g.UpsertRelation("a", "uses", "b", 1)
	g.UpsertRelation("b", "uses", "a", 2)

	// No route to the disconnected node; the cycle must not loop forever
	g.UpsertEntity("island", "")
	hops, err := g.Path("a", "island", 5)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if len(hops) != 0 {
		t.Errorf("Expected empty result for unreachable target, got %+v", hops)
	}

	// The cycle itself is traversable
	hops, err = g.Path("a", "b", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hops) != 1 {
		t.Errorf("Expected 1 hop a->b inside the cycle, got %d", len(hops))
	}
}

func TestPathUnknownEntities(t *testing.T) {
	g := setupGraph(t)

	g.UpsertRelation("a", "uses", "b", 1)

	hops, err := g.Path("a", "ghost", 5)
	if err != nil {
		t.Fatalf("Path to unknown entity: %v", err)
	}
	if len(hops) != 0 {
		t.Errorf("Expected empty result, got %+v", hops)
	}

	hops, err = g.Path("ghost", "a", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hops) != 0 {
		t.Errorf("Expected empty result, got %+v", hops)
	}
}
