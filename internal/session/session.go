// Package session caches open orchestrators so every project root maps
// to one live instance per process.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/LITAT-AGC/hypnos/internal/config"
	"github.com/LITAT-AGC/hypnos/internal/embedder"
	"github.com/LITAT-AGC/hypnos/internal/extract"
	"github.com/LITAT-AGC/hypnos/internal/memory"
	"github.com/LITAT-AGC/hypnos/internal/project"
	"github.com/LITAT-AGC/hypnos/internal/storage"
)

// Manager hands out one initialized orchestrator per project namespace.
type Manager struct {
	cfg    config.Config
	embed  embedder.Embedder
	ext    extract.Extractor
	logger *slog.Logger

	mu     sync.Mutex
	open   map[string]*memory.Orchestrator
	flight singleflight.Group
}

// NewManager creates a manager that opens projects with the given
// strategies. Nil embed, ext or logger select the memory package's
// defaults.
func NewManager(cfg config.Config, embed embedder.Embedder, ext extract.Extractor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:    cfg,
		embed:  embed,
		ext:    ext,
		logger: logger,
		open:   map[string]*memory.Orchestrator{},
	}
}

// Acquire returns the orchestrator for root, opening and initializing it
// on first use. Concurrent calls for the same project share a single
// initialization.
func (m *Manager) Acquire(ctx context.Context, root string) (*memory.Orchestrator, error) {
	info, err := project.Resolve(root)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if o, ok := m.open[info.Namespace]; ok {
		m.mu.Unlock()
		return o, nil
	}
	m.mu.Unlock()

	v, err, _ := m.flight.Do(info.Namespace, func() (any, error) {
		// A concurrent caller may have finished opening while this one
		// waited on the flight group.
		m.mu.Lock()
		if o, ok := m.open[info.Namespace]; ok {
			m.mu.Unlock()
			return o, nil
		}
		m.mu.Unlock()

		o, err := memory.Open(m.cfg, root, m.embed, m.ext, m.logger)
		if err != nil {
			return nil, err
		}
		if err := o.Init(ctx); err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.open[info.Namespace] = o
		m.mu.Unlock()
		return o, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*memory.Orchestrator), nil
}

// Registry opens the shared project registry. The caller closes it.
func (m *Manager) Registry() (*storage.MetaStore, error) {
	return storage.OpenMeta(m.cfg.DataDir)
}

// Purge closes the project's orchestrator if it is open and deletes all
// of its stored memory.
func (m *Manager) Purge(root string) error {
	info, err := project.Resolve(root)
	if err != nil {
		return err
	}
	return m.PurgeNamespace(info.Namespace)
}

// PurgeNamespace purges a project addressed by namespace, which also
// works when the project root no longer exists on disk.
func (m *Manager) PurgeNamespace(namespace string) error {
	m.mu.Lock()
	o := m.open[namespace]
	delete(m.open, namespace)
	m.mu.Unlock()

	if o != nil {
		if err := o.Close(); err != nil {
			return fmt.Errorf("close project before purge: %w", err)
		}
	}

	meta, err := storage.OpenMeta(m.cfg.DataDir)
	if err != nil {
		return err
	}
	defer meta.Close()
	return meta.DeleteProject(namespace)
}

// CloseAll shuts down every open orchestrator, used during server
// shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	open := m.open
	m.open = map[string]*memory.Orchestrator{}
	m.mu.Unlock()

	for ns, o := range open {
		if err := o.Close(); err != nil {
			m.logger.Warn("close project failed", "namespace", ns, "error", err)
		}
	}
}
