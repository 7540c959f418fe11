package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/LITAT-AGC/hypnos/internal/models"
)

// DefaultMaxDepth bounds Path searches when the caller gives no depth.
const DefaultMaxDepth = 5

// Graph manages a single project's knowledge graph database. Entities are
// unique by name; relations are unique per (source, label, target) and carry
// a strength backed by the set of event ids that contributed them.
type Graph struct {
	db *sql.DB
	// Reinforcement is a read-modify-write of the contributor list;
	// serialize it so concurrent upserts never lose an increment.
	mu sync.Mutex
}

// OpenGraph opens (or creates) one project's graph database.
func OpenGraph(dbPath string) (*Graph, error) {
	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open graph db: %w", err)
	}
	// Verify the connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping graph db: %w", err)
	}
	if _, err := db.Exec(GraphSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate graph db: %w", err)
	}
	return &Graph{db: db}, nil
}

// Close closes the graph database connection.
func (g *Graph) Close() error {
	return g.db.Close()
}

// UpsertEntity returns the entity with the given name, creating it first if
// needed. Repeated calls never produce duplicates; an existing entity keeps
// its original type.
func (g *Graph) UpsertEntity(name, entityType string) (*models.Entity, error) {
	if name == "" {
		return nil, fmt.Errorf("entity name must not be empty")
	}
	if entityType == "" {
		entityType = "concept"
	}

	_, err := g.db.Exec(
		`INSERT INTO entities (id, name, entity_type) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO NOTHING`,
		uuid.New().String(), name, entityType,
	)
	if err != nil {
		return nil, fmt.Errorf("insert entity %q: %w", name, err)
	}
	return g.GetEntity(name)
}

// GetEntity returns the entity with the given name, or nil when no such
// entity exists.
func (g *Graph) GetEntity(name string) (*models.Entity, error) {
	var e models.Entity
	err := g.db.QueryRow(
		`SELECT id, name, entity_type, created_at, updated_at FROM entities WHERE name = ?`,
		name,
	).Scan(&e.ID, &e.Name, &e.EntityType, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup entity %q: %w", name, err)
	}
	return &e, nil
}

// UpsertRelation creates the (source, label, target) relation or reinforces
// the existing one. Strength starts at 1.0 and grows by 1.0 per event id not
// already in the contributor set; ids already present change nothing, so
// replaying an event never inflates strength. Missing endpoint entities are
// created on the fly.
func (g *Graph) UpsertRelation(sourceName, label, targetName string, eventIDs ...int64) (*models.Relation, error) {
	if sourceName == "" || targetName == "" {
		return nil, fmt.Errorf("relation endpoints must not be empty")
	}
	if label == "" {
		return nil, fmt.Errorf("relation label must not be empty")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	tx, err := g.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	sourceID, err := upsertEntityTx(tx, sourceName)
	if err != nil {
		return nil, err
	}
	targetID, err := upsertEntityTx(tx, targetName)
	if err != nil {
		return nil, err
	}

	var relID, rawIDs string
	err = tx.QueryRow(
		`SELECT id, event_ids FROM relations WHERE source_id = ? AND label = ? AND target_id = ?`,
		sourceID, label, targetID,
	).Scan(&relID, &rawIDs)

	switch {
	case err == sql.ErrNoRows:
		relID = uuid.New().String()
		contributors := dedupeEventIDs(nil, eventIDs)
		encoded, err := json.Marshal(contributors)
		if err != nil {
			return nil, fmt.Errorf("encode event ids: %w", err)
		}
		// One strength unit per contributor, 1.0 floor for manual edges.
		strength := float64(len(contributors))
		if strength < 1 {
			strength = 1
		}
		_, err = tx.Exec(
			`INSERT INTO relations (id, source_id, target_id, label, strength, event_ids) VALUES (?, ?, ?, ?, ?, ?)`,
			relID, sourceID, targetID, label, strength, string(encoded),
		)
		if err != nil {
			return nil, fmt.Errorf("insert relation: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("lookup relation: %w", err)
	default:
		var contributors []int64
		if err := json.Unmarshal([]byte(rawIDs), &contributors); err != nil {
			return nil, fmt.Errorf("decode event ids: %w", err)
		}
		merged := dedupeEventIDs(contributors, eventIDs)
		added := len(merged) - len(contributors)
		if added > 0 {
			encoded, err := json.Marshal(merged)
			if err != nil {
				return nil, fmt.Errorf("encode event ids: %w", err)
			}
			_, err = tx.Exec(
				`UPDATE relations SET strength = strength + ?, event_ids = ?, reinforced_at = datetime('now') WHERE id = ?`,
				float64(added), string(encoded), relID,
			)
			if err != nil {
				return nil, fmt.Errorf("reinforce relation: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return g.getRelation(relID)
}

// RelationsOf returns every relation touching the named entity in either
// direction, strongest first. An unknown entity yields an empty result, not
// an error.
func (g *Graph) RelationsOf(name string) ([]models.Relation, error) {
	entity, err := g.GetEntity(name)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, nil
	}

	rows, err := g.db.Query(
		relationSelect+` WHERE r.source_id = ? OR r.target_id = ?`+relationOrder,
		entity.ID, entity.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("query relations: %w", err)
	}
	defer rows.Close()
	return collectRelations(rows)
}

// TopRelations returns the strongest relations in the whole graph.
func (g *Graph) TopRelations(limit int) ([]models.Relation, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := g.db.Query(relationSelect+relationOrder+` LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top relations: %w", err)
	}
	defer rows.Close()
	return collectRelations(rows)
}

// Path runs a breadth-first search from one entity to another, following
// relations in either direction, and returns the hop chain of a shortest
// path. The search keeps a visited set so cyclic graphs terminate, and it
// stops at maxDepth hops (DefaultMaxDepth when zero). No path within the
// bound, or an unknown endpoint, yields an empty result rather than an error.
func (g *Graph) Path(fromName, toName string, maxDepth int) ([]models.PathHop, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	from, err := g.GetEntity(fromName)
	if err != nil {
		return nil, err
	}
	to, err := g.GetEntity(toName)
	if err != nil {
		return nil, err
	}
	if from == nil || to == nil || from.ID == to.ID {
		return nil, nil
	}

	type node struct {
		id   string
		hops []models.PathHop
	}

	visited := map[string]bool{from.ID: true}
	frontier := []node{{id: from.ID}}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []node
		for _, n := range frontier {
			edges, err := g.neighbors(n.id)
			if err != nil {
				return nil, err
			}
			for _, e := range edges {
				if visited[e.neighborID] {
					continue
				}
				visited[e.neighborID] = true

				hops := make([]models.PathHop, len(n.hops)+1)
				copy(hops, n.hops)
				hops[len(n.hops)] = e.hop

				if e.neighborID == to.ID {
					return hops, nil
				}
				next = append(next, node{id: e.neighborID, hops: hops})
			}
		}
		frontier = next
	}
	return nil, nil
}

type edge struct {
	neighborID string
	hop        models.PathHop
}

// neighbors loads the edges touching one entity, in both directions.
func (g *Graph) neighbors(entityID string) ([]edge, error) {
	rows, err := g.db.Query(
		`SELECT r.source_id, r.target_id, s.name, t.name, r.label, r.strength
		 FROM relations r
		 JOIN entities s ON s.id = r.source_id
		 JOIN entities t ON t.id = r.target_id
		 WHERE r.source_id = ? OR r.target_id = ?`,
		entityID, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("query neighbors: %w", err)
	}
	defer rows.Close()

	var edges []edge
	for rows.Next() {
		var sourceID, targetID, sourceName, targetName, label string
		var strength float64
		if err := rows.Scan(&sourceID, &targetID, &sourceName, &targetName, &label, &strength); err != nil {
			return nil, fmt.Errorf("scan neighbor: %w", err)
		}
		neighbor := targetID
		if neighbor == entityID {
			neighbor = sourceID
		}
		edges = append(edges, edge{
			neighborID: neighbor,
			hop: models.PathHop{
				From:     sourceName,
				Label:    label,
				To:       targetName,
				Strength: strength,
			},
		})
	}
	return edges, rows.Err()
}

const relationSelect = `SELECT r.id, r.source_id, r.target_id, s.name, t.name, r.label, r.strength, r.event_ids, r.created_at, r.reinforced_at
	 FROM relations r
	 JOIN entities s ON s.id = r.source_id
	 JOIN entities t ON t.id = r.target_id`

const relationOrder = ` ORDER BY r.strength DESC, r.reinforced_at DESC, r.id`

// getRelation loads one relation with endpoint names by its row id.
func (g *Graph) getRelation(id string) (*models.Relation, error) {
	rows, err := g.db.Query(relationSelect+` WHERE r.id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query relation: %w", err)
	}
	defer rows.Close()

	rels, err := collectRelations(rows)
	if err != nil {
		return nil, err
	}
	if len(rels) == 0 {
		return nil, fmt.Errorf("relation %s not found", id)
	}
	return &rels[0], nil
}

// collectRelations scans all rows of a relation query.
func collectRelations(rows *sql.Rows) ([]models.Relation, error) {
	var rels []models.Relation
	for rows.Next() {
		var r models.Relation
		var rawIDs string
		if err := rows.Scan(&r.ID, &r.SourceID, &r.TargetID, &r.SourceName, &r.TargetName,
			&r.Label, &r.Strength, &rawIDs, &r.CreatedAt, &r.ReinforcedAt); err != nil {
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		if err := json.Unmarshal([]byte(rawIDs), &r.EventIDs); err != nil {
			return nil, fmt.Errorf("decode event ids: %w", err)
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}

// upsertEntityTx ensures an entity exists inside a transaction and returns
// its id.
func upsertEntityTx(tx *sql.Tx, name string) (string, error) {
	_, err := tx.Exec(
		`INSERT INTO entities (id, name, entity_type) VALUES (?, ?, 'concept')
		 ON CONFLICT(name) DO NOTHING`,
		uuid.New().String(), name,
	)
	if err != nil {
		return "", fmt.Errorf("insert entity %q: %w", name, err)
	}
	var id string
	if err := tx.QueryRow(`SELECT id FROM entities WHERE name = ?`, name).Scan(&id); err != nil {
		return "", fmt.Errorf("lookup entity %q: %w", name, err)
	}
	return id, nil
}

// dedupeEventIDs merges new ids into an existing contributor list, keeping
// order and dropping duplicates and non-positive ids.
func dedupeEventIDs(existing []int64, incoming []int64) []int64 {
	seen := make(map[int64]bool, len(existing)+len(incoming))
	merged := make([]int64, 0, len(existing)+len(incoming))
	for _, id := range existing {
		if !seen[id] {
			seen[id] = true
			merged = append(merged, id)
		}
	}
	for _, id := range incoming {
		if id > 0 && !seen[id] {
			seen[id] = true
			merged = append(merged, id)
		}
	}
	return merged
}
