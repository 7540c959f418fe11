package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/LITAT-AGC/hypnos/internal/models"
)

// MetaStore manages the shared _meta.db registry that tracks every project
// namespace, its consolidation watermark, and where its store files live.
type MetaStore struct {
	db      *sql.DB
	dataDir string
}

// OpenMeta opens (or creates) the _meta.db registry and runs migrations.
func OpenMeta(dataDir string) (*MetaStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dataDir, "projects"), 0o755); err != nil {
		return nil, fmt.Errorf("create projects dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "_meta.db")
	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open meta db: %w", err)
	}

	if _, err := db.Exec(MetaSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate meta db: %w", err)
	}

	return &MetaStore{db: db, dataDir: dataDir}, nil
}

// Close closes the database connection.
func (m *MetaStore) Close() error {
	return m.db.Close()
}

// DataDir returns the base data directory.
func (m *MetaStore) DataDir() string {
	return m.dataDir
}

// ProjectDir returns the directory holding a namespace's store files.
func (m *MetaStore) ProjectDir(namespace string) string {
	return filepath.Join(m.dataDir, "projects", namespace)
}

// RegisterProject inserts the namespace row if missing and bumps
// last_accessed either way. Safe to call on every startup.
func (m *MetaStore) RegisterProject(namespace, root string) (*models.Project, error) {
	_, err := m.db.Exec(
		`INSERT INTO projects (namespace, root) VALUES (?, ?)
		 ON CONFLICT(namespace) DO UPDATE SET last_accessed = datetime('now')`,
		namespace, root,
	)
	if err != nil {
		return nil, fmt.Errorf("register project: %w", err)
	}
	return m.GetProject(namespace)
}

// GetProject looks up a registry row by namespace key.
func (m *MetaStore) GetProject(namespace string) (*models.Project, error) {
	row := m.db.QueryRow(
		`SELECT namespace, root, watermark, last_consolidated, created_at, last_accessed
		 FROM projects WHERE namespace = ?`,
		namespace,
	)
	return scanProject(row)
}

// ListProjects returns every registered project, most recently accessed first.
func (m *MetaStore) ListProjects() ([]models.Project, error) {
	rows, err := m.db.Query(
		`SELECT namespace, root, watermark, last_consolidated, created_at, last_accessed
		 FROM projects ORDER BY last_accessed DESC, namespace`,
	)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var p models.Project
		var consolidated sql.NullString
		if err := rows.Scan(&p.Namespace, &p.Root, &p.Watermark, &consolidated, &p.CreatedAt, &p.LastAccessed); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p.LastConsolidated = consolidated.String
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Watermark returns the consolidation watermark for a namespace. Every event
// with an id at or below it has already been through a pass.
func (m *MetaStore) Watermark(namespace string) (int64, error) {
	var w int64
	err := m.db.QueryRow(`SELECT watermark FROM projects WHERE namespace = ?`, namespace).Scan(&w)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("namespace %q not registered", namespace)
	}
	if err != nil {
		return 0, fmt.Errorf("load watermark: %w", err)
	}
	return w, nil
}

// AdvanceWatermark records the new watermark and stamps the last
// consolidation time for a namespace. The watermark never moves backwards.
func (m *MetaStore) AdvanceWatermark(namespace string, watermark int64) error {
	result, err := m.db.Exec(
		`UPDATE projects SET watermark = MAX(watermark, ?), last_consolidated = datetime('now')
		 WHERE namespace = ?`,
		watermark, namespace,
	)
	if err != nil {
		return fmt.Errorf("advance watermark: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("namespace %q not registered", namespace)
	}
	return nil
}

// DeleteProject removes a namespace's registry row and every store file
// under its directory.
func (m *MetaStore) DeleteProject(namespace string) error {
	if namespace == "" {
		return fmt.Errorf("empty namespace")
	}
	if err := os.RemoveAll(m.ProjectDir(namespace)); err != nil {
		return fmt.Errorf("remove project stores: %w", err)
	}
	if _, err := m.db.Exec(`DELETE FROM projects WHERE namespace = ?`, namespace); err != nil {
		return fmt.Errorf("delete project record: %w", err)
	}
	return nil
}

// scanProject scans a single registry row.
func scanProject(row *sql.Row) (*models.Project, error) {
	var p models.Project
	var consolidated sql.NullString
	err := row.Scan(&p.Namespace, &p.Root, &p.Watermark, &consolidated, &p.CreatedAt, &p.LastAccessed)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}
	p.LastConsolidated = consolidated.String
	return &p, nil
}
