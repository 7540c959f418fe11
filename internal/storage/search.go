package storage

import (
	"fmt"

	"github.com/LITAT-AGC/hypnos/internal/models"
)

// SearchEvents performs FTS5 full-text search over event content, best match
// first. The query supports FTS5 syntax (AND, OR, NOT, prefix*).
func (l *EventLog) SearchEvents(query string, limit int) ([]models.InteractionEvent, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := l.db.Query(
		`SELECT e.id, e.kind, e.content, e.feedback, e.metadata, e.created_at
		 FROM events e
		 JOIN events_fts ON events_fts.rowid = e.id
		 WHERE events_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`,
		query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search events fts: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}
