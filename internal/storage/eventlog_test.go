package storage

import (
	"path/filepath"
	"testing"

	"github.com/LITAT-AGC/hypnos/internal/models"
)

// setupEventLog creates a fresh events DB in a temp directory.
func setupEventLog(t *testing.T) *EventLog {
	t.Helper()
	dir := tempDir(t)
	log, err := OpenEventLog(filepath.Join(dir, "events.db"))
	if err != nil {
		t.Fatalf("OpenEventLog: %v", err)
	}
	t.Cleanup(func() { log.Close() })
	return log
}

func TestRecordAndGet(t *testing.T) {
	log := setupEventLog(t)

	ev, err := log.Record(models.KindPreference, "prefer async/await over callbacks", models.FeedbackValidated,
		map[string]string{"file": "api/handlers.js"})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	if ev.ID != 1 {
		t.Errorf("ID = %d, want 1", ev.ID)
	}
	if ev.Kind != models.KindPreference {
		t.Errorf("Kind = %q, want %q", ev.Kind, models.KindPreference)
	}
	if ev.Feedback != models.FeedbackValidated {
		t.Errorf("Feedback = %d, want %d", ev.Feedback, models.FeedbackValidated)
	}
	if ev.Metadata["file"] != "api/handlers.js" {
		t.Errorf("Metadata[file] = %q, want %q", ev.Metadata["file"], "api/handlers.js")
	}
	if ev.CreatedAt == "" {
		t.Error("CreatedAt should be set")
	}

	got, err := log.Get(ev.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Content != ev.Content {
		t.Errorf("Get content = %q, want %q", got.Content, ev.Content)
	}
}

func TestRecordRejectsBadInput(t *testing.T) {
	log := setupEventLog(t)

	if _, err := log.Record("opinion", "x", 0, nil); err == nil {
		t.Error("Expected error for unknown kind")
	}
	if _, err := log.Record(models.KindError, "x", 2, nil); err == nil {
		t.Error("Expected error for out-of-range feedback")
	}
	if _, err := log.Record(models.KindError, "x", -2, nil); err == nil {
		t.Error("Expected error for out-of-range feedback")
	}
}

func TestMonotonicIDs(t *testing.T) {
	log := setupEventLog(t)

	var last int64
	for i := 0; i < 5; i++ {
		ev, err := log.Record(models.KindPattern, "observed a pattern", models.FeedbackNone, nil)
		if err != nil {
			t.Fatal(err)
		}
		if ev.ID <= last {
			t.Errorf("IDs must strictly increase: got %d after %d", ev.ID, last)
		}
		last = ev.ID
	}

	lastID, err := log.LastID()
	if err != nil {
		t.Fatalf("LastID: %v", err)
	}
	if lastID != last {
		t.Errorf("LastID = %d, want %d", lastID, last)
	}
}

func TestListFilters(t *testing.T) {
	log := setupEventLog(t)

	log.Record(models.KindCodeFix, "fixed the nil check", models.FeedbackValidated, nil)
	log.Record(models.KindPreference, "tabs over spaces", models.FeedbackRejected, nil)
	log.Record(models.KindCodeFix, "fixed the retry loop", models.FeedbackNone, nil)
	log.Record(models.KindSuggestion, "extract a helper", models.FeedbackNone, nil)

	// Default order is most recent first
	events, err := log.List(models.EventFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("List all = %d events, want 4", len(events))
	}
	if events[0].ID != 4 || events[3].ID != 1 {
		t.Errorf("Expected descending ids, got %d..%d", events[0].ID, events[3].ID)
	}

	// Kind filter
	events, err = log.List(models.EventFilter{Kind: models.KindCodeFix})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Errorf("Kind filter = %d events, want 2", len(events))
	}

	// Feedback filter
	rejected := models.FeedbackRejected
	events, err = log.List(models.EventFilter{Feedback: &rejected})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Kind != models.KindPreference {
		t.Errorf("Feedback filter should return the rejected preference, got %+v", events)
	}

	// AfterID with ascending order
	events, err = log.List(models.EventFilter{AfterID: 2, Ascending: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0].ID != 3 {
		t.Errorf("AfterID filter = %+v, want events 3 and 4 ascending", events)
	}

	// Limit
	events, err = log.List(models.EventFilter{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0].ID != 4 {
		t.Errorf("Limit filter = %+v, want newest 2", events)
	}
}

func TestListEmpty(t *testing.T) {
	log := setupEventLog(t)

	events, err := log.List(models.EventFilter{Kind: models.KindError})
	if err != nil {
		t.Fatalf("List on empty log: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("Expected empty result, got %d events", len(events))
	}
}

func TestListForConsolidation(t *testing.T) {
	log := setupEventLog(t)

	log.Record(models.KindCodeFix, "fix one", models.FeedbackValidated, nil)   // id 1
	log.Record(models.KindPattern, "neutral note", models.FeedbackNone, nil)   // id 2
	log.Record(models.KindSuggestion, "bad idea", models.FeedbackRejected, nil) // id 3
	log.Record(models.KindCodeFix, "fix two", models.FeedbackValidated, nil)   // id 4

	events, err := log.ListForConsolidation(0)
	if err != nil {
		t.Fatalf("ListForConsolidation: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("Expected 3 events with explicit feedback, got %d", len(events))
	}
	if events[0].ID != 1 || events[2].ID != 4 {
		t.Errorf("Expected ascending order 1,3,4, got %d,%d,%d", events[0].ID, events[1].ID, events[2].ID)
	}

	// Watermark cuts off already-consolidated events
	events, err = log.ListForConsolidation(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].ID != 4 {
		t.Errorf("Expected only event 4 above watermark 3, got %+v", events)
	}
}

func TestSearchEvents(t *testing.T) {
	log := setupEventLog(t)

	log.Record(models.KindCodeFix, "fixed the race in the file watcher", models.FeedbackValidated, nil)
	log.Record(models.KindPreference, "prefer table driven tests", models.FeedbackValidated, nil)
	log.Record(models.KindError, "panic in the scheduler", models.FeedbackNone, nil)

	results, err := log.SearchEvents("watcher", 10)
	if err != nil {
		t.Fatalf("SearchEvents: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result for 'watcher', got %d", len(results))
	}
	if results[0].Kind != models.KindCodeFix {
		t.Errorf("Expected the code-fix event, got %q", results[0].Kind)
	}

	results, err = log.SearchEvents("the", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("Expected 2 results for 'the', got %d", len(results))
	}

	results, err = log.SearchEvents("nonexistent", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("Expected no results, got %d", len(results))
	}
}
