package model

import "time"

// Run is one recorded sync run.
type Run struct {
	ID          string    `db:"id"`
	StartedAt   time.Time `db:"started_at"`
	FinishedAt  time.Time `db:"finished_at"`
	FeedCount   int       `db:"feed_count"`
	FailedCount int       `db:"failed_count"`
	Appended    int       `db:"appended"`
}

// FeedResult is the recorded outcome of one feed within a run.
type FeedResult struct {
	ID       string `db:"id"`
	RunID    string `db:"run_id"`
	FeedURL  string `db:"feed_url"`
	Title    string `db:"title"`
	Entries  int    `db:"entries"`
	Skipped  int    `db:"skipped"`
	New      int    `db:"new_entries"`
	Appended int    `db:"appended"`

	// Error is empty when the feed synced successfully.
	Error string `db:"error"`

	DurationMS int64     `db:"duration_ms"`
	FinishedAt time.Time `db:"finished_at"`
}

// OK reports whether the feed synced without error.
func (r FeedResult) OK() bool {
	return r.Error == ""
}
