package store

import (
	"context"

	"github.com/nhle/feed2imap/internal/model"
	"github.com/nhle/feed2imap/internal/sync"
)

// Store is the run history. It is a diagnostic log only: which entries
// were delivered is always decided from the mailbox itself.
type Store interface {
	// RecordRun stores a finished run and one result per feed, returning
	// the new run ID.
	RecordRun(ctx context.Context, summary sync.Summary) (string, error)

	// LatestResults returns the most recent result of every feed ever
	// synced, ordered by feed URL.
	LatestResults(ctx context.Context) ([]model.FeedResult, error)

	// Runs returns the most recent runs, newest first. A limit of zero or
	// less returns every run.
	Runs(ctx context.Context, limit int) ([]model.Run, error)

	// RunResults returns the per-feed results of one run.
	RunResults(ctx context.Context, runID string) ([]model.FeedResult, error)

	Close() error
}
