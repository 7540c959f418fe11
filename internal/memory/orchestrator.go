// Package memory is the project-scoped facade over the event log, the
// knowledge graph and the vector index. One orchestrator serves exactly
// one project namespace.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/LITAT-AGC/hypnos/internal/assemble"
	"github.com/LITAT-AGC/hypnos/internal/config"
	"github.com/LITAT-AGC/hypnos/internal/consolidate"
	"github.com/LITAT-AGC/hypnos/internal/embedder"
	"github.com/LITAT-AGC/hypnos/internal/extract"
	"github.com/LITAT-AGC/hypnos/internal/models"
	"github.com/LITAT-AGC/hypnos/internal/project"
	"github.com/LITAT-AGC/hypnos/internal/storage"
)

const (
	stateNew = iota
	stateReady
	stateClosed
)

// Orchestrator owns every memory store of a single project. Operations
// are safe for concurrent use once Init has succeeded.
type Orchestrator struct {
	info   project.Info
	cfg    config.Config
	embed  embedder.Embedder
	ext    extract.Extractor
	logger *slog.Logger

	mu    sync.Mutex
	state int
	wg    sync.WaitGroup

	meta    *storage.MetaStore
	log     *storage.EventLog
	graph   *storage.Graph
	vectors *storage.VectorIndex

	pipeline  *consolidate.Pipeline
	assembler *assemble.Assembler

	// consolidating enforces a single pass at a time.
	consolidating sync.Mutex
}

// Open resolves root into its namespace and prepares an orchestrator for
// it. The root must exist as a directory; nothing is written until Init.
// Nil embed, ext or logger pick the default strategy.
func Open(cfg config.Config, root string, embed embedder.Embedder, ext extract.Extractor, logger *slog.Logger) (*Orchestrator, error) {
	info, err := project.Resolve(root)
	if err != nil {
		return nil, err
	}
	if embed == nil {
		embed = embedder.NewHash(cfg.Embedding.Dimensions)
	}
	if ext == nil {
		ext = extract.NewHeuristic()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		info:   info,
		cfg:    cfg,
		embed:  embed,
		ext:    ext,
		logger: logger,
	}, nil
}

// Namespace returns the project's derived namespace.
func (o *Orchestrator) Namespace() string { return o.info.Namespace }

// Root returns the normalized project root.
func (o *Orchestrator) Root() string { return o.info.Root }

// Init opens every backend. It either succeeds completely or leaves
// nothing open, and a failure names the backend that caused it. Init on
// a ready orchestrator is a no-op; after Close it fails with ErrClosed.
func (o *Orchestrator) Init(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.state {
	case stateClosed:
		return ErrClosed
	case stateReady:
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	meta, err := storage.OpenMeta(o.cfg.DataDir)
	if err != nil {
		return &BackendError{Backend: "meta", Err: err}
	}
	if _, err := meta.RegisterProject(o.info.Namespace, o.info.Root); err != nil {
		meta.Close()
		return &BackendError{Backend: "meta", Err: err}
	}
	dir := meta.ProjectDir(o.info.Namespace)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		meta.Close()
		return &BackendError{Backend: "meta", Err: err}
	}

	var (
		log     *storage.EventLog
		graph   *storage.Graph
		vectors *storage.VectorIndex
	)
	var g errgroup.Group
	g.Go(func() error {
		l, err := storage.OpenEventLog(filepath.Join(dir, "events.db"))
		if err != nil {
			return &BackendError{Backend: "events", Err: err}
		}
		log = l
		return nil
	})
	g.Go(func() error {
		gr, err := storage.OpenGraph(filepath.Join(dir, "graph.db"))
		if err != nil {
			return &BackendError{Backend: "graph", Err: err}
		}
		graph = gr
		return nil
	})
	g.Go(func() error {
		v, err := storage.OpenVectorIndex(filepath.Join(dir, "vectors"))
		if err != nil {
			return &BackendError{Backend: "vectors", Err: err}
		}
		vectors = v
		return nil
	})
	if err := g.Wait(); err != nil {
		if log != nil {
			log.Close()
		}
		if graph != nil {
			graph.Close()
		}
		if vectors != nil {
			vectors.Close()
		}
		meta.Close()
		return err
	}

	o.meta, o.log, o.graph, o.vectors = meta, log, graph, vectors
	o.pipeline = &consolidate.Pipeline{
		Log:     log,
		Graph:   graph,
		Vectors: vectors,
		Extract: o.ext,
		Embed:   o.embed,
		Logger:  o.logger,
	}
	o.assembler = &assemble.Assembler{Log: log, Graph: graph, Vectors: vectors, Embed: o.embed}
	o.state = stateReady
	o.logger.Info("memory initialized", "namespace", shortNamespace(o.info.Namespace), "root", o.info.Root)
	return nil
}

// begin gates an operation on the ready state and tracks it so Close can
// wait for it.
func (o *Orchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.state {
	case stateClosed:
		return ErrClosed
	case stateNew:
		return ErrNotInitialized
	}
	o.wg.Add(1)
	return nil
}

func (o *Orchestrator) end() { o.wg.Done() }

// Record appends an interaction event to the project's log.
func (o *Orchestrator) Record(kind, content string, feedback int, metadata map[string]string) (*models.InteractionEvent, error) {
	if err := o.begin(); err != nil {
		return nil, err
	}
	defer o.end()
	return o.log.Record(kind, content, feedback, metadata)
}

// Events lists log entries matching the filter.
func (o *Orchestrator) Events(filter models.EventFilter) ([]models.InteractionEvent, error) {
	if err := o.begin(); err != nil {
		return nil, err
	}
	defer o.end()
	return o.log.List(filter)
}

// SearchEvents runs a full-text query over event content.
func (o *Orchestrator) SearchEvents(query string, limit int) ([]models.InteractionEvent, error) {
	if err := o.begin(); err != nil {
		return nil, err
	}
	defer o.end()
	return o.log.SearchEvents(query, limit)
}

// EntityRelations looks up an entity and every relation touching it. A
// missing entity yields a nil entity with no relations and no error.
func (o *Orchestrator) EntityRelations(name string) (*models.Entity, []models.Relation, error) {
	if err := o.begin(); err != nil {
		return nil, nil, err
	}
	defer o.end()

	entity, err := o.graph.GetEntity(name)
	if err != nil {
		return nil, nil, err
	}
	if entity == nil {
		return nil, nil, nil
	}
	rels, err := o.graph.RelationsOf(name)
	if err != nil {
		return nil, nil, err
	}
	return entity, rels, nil
}

// Traverse finds a shortest path between two entities. An absent path is
// an empty result, not an error.
func (o *Orchestrator) Traverse(from, to string, maxDepth int) ([]models.PathHop, error) {
	if err := o.begin(); err != nil {
		return nil, err
	}
	defer o.end()
	return o.graph.Path(from, to, maxDepth)
}

// Consolidate runs one pipeline pass from the stored watermark and
// advances it afterwards, also when the pass was partial. Only one pass
// runs at a time; a concurrent call fails with ErrConsolidationRunning.
func (o *Orchestrator) Consolidate(ctx context.Context) (*models.ConsolidationReport, error) {
	if err := o.begin(); err != nil {
		return nil, err
	}
	defer o.end()

	if !o.consolidating.TryLock() {
		return nil, ErrConsolidationRunning
	}
	defer o.consolidating.Unlock()

	watermark, err := o.meta.Watermark(o.info.Namespace)
	if err != nil {
		return nil, fmt.Errorf("read watermark: %w", err)
	}
	report, err := o.pipeline.Run(ctx, watermark)
	if err != nil {
		return nil, err
	}
	if err := o.meta.AdvanceWatermark(o.info.Namespace, report.Watermark); err != nil {
		return nil, fmt.Errorf("advance watermark: %w", err)
	}
	return report, nil
}

// SemanticSearch queries the vector index with a caller-supplied
// embedding.
func (o *Orchestrator) SemanticSearch(ctx context.Context, embedding []float32, k int) ([]models.SearchHit, error) {
	if err := o.begin(); err != nil {
		return nil, err
	}
	defer o.end()
	return o.vectors.Search(ctx, embedding, k)
}

// SemanticSearchText embeds the query text and searches with the result.
func (o *Orchestrator) SemanticSearchText(ctx context.Context, text string, k int) ([]models.SearchHit, error) {
	if err := o.begin(); err != nil {
		return nil, err
	}
	defer o.end()

	vec, err := o.embed.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return o.vectors.Search(ctx, vec, k)
}

// Context assembles the project's memory context block.
func (o *Orchestrator) Context(ctx context.Context, opts assemble.Options) (*models.ContextBlock, error) {
	if err := o.begin(); err != nil {
		return nil, err
	}
	defer o.end()
	return o.assembler.Build(ctx, opts)
}

// FileContext assembles a context block focused on one file path.
func (o *Orchestrator) FileContext(ctx context.Context, path string, opts assemble.Options) (*models.ContextBlock, error) {
	if err := o.begin(); err != nil {
		return nil, err
	}
	defer o.end()
	return o.assembler.BuildForFile(ctx, path, opts)
}

// Project returns the registry row for this namespace.
func (o *Orchestrator) Project() (*models.Project, error) {
	if err := o.begin(); err != nil {
		return nil, err
	}
	defer o.end()
	return o.meta.GetProject(o.info.Namespace)
}

// LastEventID returns the id of the newest event in the log, 0 when the
// log is empty.
func (o *Orchestrator) LastEventID() (int64, error) {
	if err := o.begin(); err != nil {
		return 0, err
	}
	defer o.end()
	return o.log.LastID()
}

// Close waits for in-flight operations and releases every backend. It is
// idempotent, and operations started afterwards fail with ErrClosed.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	wasReady := o.state == stateReady
	o.state = stateClosed
	o.mu.Unlock()

	if !wasReady {
		return nil
	}
	o.wg.Wait()

	var firstErr error
	for _, closeFn := range []func() error{o.log.Close, o.graph.Close, o.vectors.Close, o.meta.Close} {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func shortNamespace(ns string) string {
	if len(ns) > 12 {
		return ns[:12]
	}
	return ns
}
