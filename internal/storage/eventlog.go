package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/LITAT-AGC/hypnos/internal/models"
)

// EventLog manages a single project's append-only interaction log. Events
// can be recorded and read, never updated or deleted.
type EventLog struct {
	db *sql.DB
}

// OpenEventLog opens (or creates) one project's events database.
func OpenEventLog(dbPath string) (*EventLog, error) {
	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open events db: %w", err)
	}
	// Verify the connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping events db: %w", err)
	}
	if _, err := db.Exec(EventSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate events db: %w", err)
	}
	if _, err := db.Exec(EventTriggers); err != nil {
		db.Close()
		return nil, fmt.Errorf("create event triggers: %w", err)
	}
	return &EventLog{db: db}, nil
}

// Close closes the events database connection.
func (l *EventLog) Close() error {
	return l.db.Close()
}

// Record appends one event and returns it with its assigned id.
func (l *EventLog) Record(kind, content string, feedback int, metadata map[string]string) (*models.InteractionEvent, error) {
	if !models.ValidKind(kind) {
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
	if feedback < models.FeedbackRejected || feedback > models.FeedbackValidated {
		return nil, fmt.Errorf("feedback must be -1, 0, or 1, got %d", feedback)
	}

	meta := "{}"
	if len(metadata) > 0 {
		data, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
		meta = string(data)
	}

	result, err := l.db.Exec(
		`INSERT INTO events (kind, content, feedback, metadata) VALUES (?, ?, ?, ?)`,
		kind, content, feedback, meta,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("event id: %w", err)
	}
	return l.Get(id)
}

// Get returns a single event by id.
func (l *EventLog) Get(id int64) (*models.InteractionEvent, error) {
	row := l.db.QueryRow(
		`SELECT id, kind, content, feedback, metadata, created_at FROM events WHERE id = ?`,
		id,
	)
	ev, err := scanEvent(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("event %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}
	return ev, nil
}

// List returns events matching the filter, most recent first unless
// filter.Ascending is set. An empty log yields an empty result, not an error.
func (l *EventLog) List(filter models.EventFilter) ([]models.InteractionEvent, error) {
	query := `SELECT id, kind, content, feedback, metadata, created_at FROM events`
	var clauses []string
	var args []any

	if filter.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.Feedback != nil {
		clauses = append(clauses, "feedback = ?")
		args = append(args, *filter.Feedback)
	}
	if filter.AfterID > 0 {
		clauses = append(clauses, "id > ?")
		args = append(args, filter.AfterID)
	}
	if filter.Since != "" {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, filter.Since)
	}
	if filter.Until != "" {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, filter.Until)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	if filter.Ascending {
		query += " ORDER BY id"
	} else {
		query += " ORDER BY id DESC"
	}
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// ListForConsolidation returns events carrying explicit feedback recorded
// after the watermark, oldest first.
func (l *EventLog) ListForConsolidation(watermark int64) ([]models.InteractionEvent, error) {
	rows, err := l.db.Query(
		`SELECT id, kind, content, feedback, metadata, created_at FROM events
		 WHERE feedback != 0 AND id > ? ORDER BY id`,
		watermark,
	)
	if err != nil {
		return nil, fmt.Errorf("list events for consolidation: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

// LastID returns the highest assigned event id, 0 when the log is empty.
func (l *EventLog) LastID() (int64, error) {
	var id int64
	if err := l.db.QueryRow(`SELECT COALESCE(MAX(id), 0) FROM events`).Scan(&id); err != nil {
		return 0, fmt.Errorf("last event id: %w", err)
	}
	return id, nil
}

// collectEvents scans all rows of an event query.
func collectEvents(rows *sql.Rows) ([]models.InteractionEvent, error) {
	var events []models.InteractionEvent
	for rows.Next() {
		ev, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

// scanEvent scans one event row and decodes its metadata.
func scanEvent(scan func(...any) error) (*models.InteractionEvent, error) {
	var ev models.InteractionEvent
	var meta string
	if err := scan(&ev.ID, &ev.Kind, &ev.Content, &ev.Feedback, &meta, &ev.CreatedAt); err != nil {
		return nil, err
	}
	if meta != "" && meta != "{}" {
		if err := json.Unmarshal([]byte(meta), &ev.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &ev, nil
}
