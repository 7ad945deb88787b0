package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/nhle/feed2imap/internal/store"
	"github.com/nhle/feed2imap/internal/sync"
)

// NewTestStore creates an in-memory history store with all migrations
// applied. It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// SummaryAt builds a run summary that started at start and took three
// seconds.
func SummaryAt(start time.Time, outcomes ...sync.Outcome) sync.Summary {
	return sync.Summary{
		StartedAt:  start,
		FinishedAt: start.Add(3 * time.Second),
		Outcomes:   outcomes,
	}
}

// RecordRun stores a run started at start and returns its id.
func RecordRun(t *testing.T, s store.Store, start time.Time, outcomes ...sync.Outcome) string {
	t.Helper()

	id, err := s.RecordRun(context.Background(), SummaryAt(start, outcomes...))
	if err != nil {
		t.Fatalf("recording run: %v", err)
	}
	return id
}
