package storage

// MetaSchema is the SQL schema for the shared _meta.db registry.
const MetaSchema = `
CREATE TABLE IF NOT EXISTS projects (
    namespace         TEXT PRIMARY KEY,
    root              TEXT NOT NULL,
    watermark         INTEGER NOT NULL DEFAULT 0,
    last_consolidated TEXT,
    created_at        TEXT NOT NULL DEFAULT (datetime('now')),
    last_accessed     TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_projects_root ON projects(root);
`

// EventSchema is the SQL schema for each per-project events database. The
// table is append-only: ids come from AUTOINCREMENT so they strictly increase
// and are never reused.
const EventSchema = `
CREATE TABLE IF NOT EXISTS events (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    kind       TEXT NOT NULL
               CHECK(kind IN ('code-fix', 'preference', 'pattern', 'error', 'suggestion')),
    content    TEXT NOT NULL,
    feedback   INTEGER NOT NULL DEFAULT 0
               CHECK(feedback IN (-1, 0, 1)),
    metadata   TEXT NOT NULL DEFAULT '{}',
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
CREATE INDEX IF NOT EXISTS idx_events_feedback ON events(feedback, id);

CREATE VIRTUAL TABLE IF NOT EXISTS events_fts USING fts5(
    content,
    content='events',
    content_rowid='id'
);
`

// EventTriggers keep the FTS index in sync. Events are never updated or
// deleted, so the insert trigger is the only one needed.
const EventTriggers = `
CREATE TRIGGER IF NOT EXISTS events_ai AFTER INSERT ON events BEGIN
    INSERT INTO events_fts(rowid, content) VALUES (new.id, new.content);
END;
`

// GraphSchema is the SQL schema for each per-project graph database.
// Relations are unique per (source, label, target); event_ids is the JSON
// list of contributing event ids backing the strength value.
const GraphSchema = `
CREATE TABLE IF NOT EXISTS entities (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL UNIQUE,
    entity_type TEXT NOT NULL DEFAULT 'concept',
    created_at  TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS relations (
    id            TEXT PRIMARY KEY,
    source_id     TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
    target_id     TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
    label         TEXT NOT NULL,
    strength      REAL NOT NULL DEFAULT 1.0,
    event_ids     TEXT NOT NULL DEFAULT '[]',
    created_at    TEXT NOT NULL DEFAULT (datetime('now')),
    reinforced_at TEXT NOT NULL DEFAULT (datetime('now')),
    UNIQUE(source_id, label, target_id)
);

CREATE INDEX IF NOT EXISTS idx_relations_source ON relations(source_id);
CREATE INDEX IF NOT EXISTS idx_relations_target ON relations(target_id);
CREATE INDEX IF NOT EXISTS idx_relations_strength ON relations(strength DESC, reinforced_at DESC);
`
