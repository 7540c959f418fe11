// Package consolidate moves raw interaction events into the knowledge
// graph and the vector index.
package consolidate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/LITAT-AGC/hypnos/internal/embedder"
	"github.com/LITAT-AGC/hypnos/internal/extract"
	"github.com/LITAT-AGC/hypnos/internal/models"
	"github.com/LITAT-AGC/hypnos/internal/storage"
)

// Pipeline wires the stores and strategies a consolidation pass needs.
type Pipeline struct {
	Log     *storage.EventLog
	Graph   *storage.Graph
	Vectors *storage.VectorIndex
	Extract extract.Extractor
	Embed   embedder.Embedder
	Logger  *slog.Logger
}

// Run consolidates every event with non-neutral feedback recorded after
// watermark. Validated events additionally feed the knowledge graph; all
// selected events are embedded into the vector index. A failing event is
// reported and skipped, it never aborts the pass. The returned report
// carries the highest event id seen, which becomes the caller's new
// watermark even when the pass is partial.
func (p *Pipeline) Run(ctx context.Context, watermark int64) (*models.ConsolidationReport, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	report := &models.ConsolidationReport{
		PassID:    ulid.Make().String(),
		Status:    models.ConsolidationSuccess,
		Watermark: watermark,
		StartedAt: time.Now().UTC().Format(time.RFC3339),
	}

	events, err := p.Log.ListForConsolidation(watermark)
	if err != nil {
		return nil, fmt.Errorf("select events for consolidation: %w", err)
	}

	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("consolidation interrupted: %w", err)
		}

		if ev.Feedback == models.FeedbackValidated {
			p.consolidateGraph(ctx, report, ev, logger)
		}
		p.consolidateVector(ctx, report, ev, logger)

		report.Processed++
		if ev.ID > report.Watermark {
			report.Watermark = ev.ID
		}
	}

	if len(report.Failures) > 0 {
		report.Status = models.ConsolidationPartial
	}
	report.FinishedAt = time.Now().UTC().Format(time.RFC3339)

	logger.Info("consolidation pass finished",
		"pass_id", report.PassID,
		"status", report.Status,
		"processed", report.Processed,
		"graph_writes", report.GraphWrites,
		"vector_writes", report.VectorWrites,
		"failures", len(report.Failures),
		"watermark", report.Watermark)
	return report, nil
}

// consolidateGraph extracts triples from a validated event and reinforces
// the corresponding relations.
func (p *Pipeline) consolidateGraph(ctx context.Context, report *models.ConsolidationReport, ev models.InteractionEvent, logger *slog.Logger) {
	triples, err := p.Extract.Extract(ctx, ev.Content)
	if err != nil {
		addFailure(report, ev.ID, "extract", err)
		logger.Warn("extraction failed", "event_id", ev.ID, "error", err)
		return
	}
	for _, t := range triples {
		if _, err := p.Graph.UpsertRelation(t.Source, t.Relation, t.Target, ev.ID); err != nil {
			addFailure(report, ev.ID, "graph", err)
			logger.Warn("graph write failed", "event_id", ev.ID, "error", err)
			continue
		}
		report.GraphWrites++
	}
}

// consolidateVector embeds an event's content and stores it for semantic
// search. The document id is derived from the event id, so replaying an
// event overwrites its previous vector instead of duplicating it.
func (p *Pipeline) consolidateVector(ctx context.Context, report *models.ConsolidationReport, ev models.InteractionEvent, logger *slog.Logger) {
	vec, err := p.Embed.Embed(ctx, ev.Content)
	if err != nil {
		addFailure(report, ev.ID, "embed", err)
		logger.Warn("embedding failed", "event_id", ev.ID, "error", err)
		return
	}
	meta := map[string]string{
		"kind":     ev.Kind,
		"event_id": fmt.Sprintf("%d", ev.ID),
		"feedback": fmt.Sprintf("%d", ev.Feedback),
	}
	if err := p.Vectors.Insert(ctx, fmt.Sprintf("event-%d", ev.ID), ev.Content, vec, meta); err != nil {
		addFailure(report, ev.ID, "vector", err)
		logger.Warn("vector write failed", "event_id", ev.ID, "error", err)
		return
	}
	report.VectorWrites++
}

func addFailure(report *models.ConsolidationReport, eventID int64, stage string, err error) {
	report.Failures = append(report.Failures, models.ConsolidationError{
		EventID: eventID,
		Stage:   stage,
		Reason:  err.Error(),
	})
}
