package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nhle/feed2imap/internal/model"
	"github.com/nhle/feed2imap/internal/sync"
)

// RecordRun stores summary and its per-feed outcomes in one transaction.
func (s *SQLiteStore) RecordRun(ctx context.Context, summary sync.Summary) (string, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	runID := uuid.New().String()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, feed_count, failed_count, appended)
		VALUES (?, ?, ?, ?, ?, ?)`,
		runID,
		summary.StartedAt.UTC(), summary.FinishedAt.UTC(),
		len(summary.Outcomes), len(summary.Failed()), summary.Appended(),
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO feed_results (
			id, run_id, feed_url, title,
			entries, skipped, new_entries, appended,
			error, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("preparing result statement: %w", err)
	}
	defer stmt.Close()

	for _, o := range summary.Outcomes {
		var errText string
		if o.Err != nil {
			errText = o.Err.Error()
		}
		_, err := stmt.ExecContext(ctx,
			uuid.New().String(), runID, o.URL, o.Title,
			o.Entries, o.Skipped, o.New, o.Appended,
			errText, o.Duration.Milliseconds(),
		)
		if err != nil {
			return "", fmt.Errorf("inserting result for %s: %w", o.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return runID, nil
}

const feedResultColumns = `
	fr.id, fr.run_id, fr.feed_url, fr.title,
	fr.entries, fr.skipped, fr.new_entries, fr.appended,
	fr.error, fr.duration_ms, r.finished_at`

// LatestResults returns the newest result for each feed URL.
func (s *SQLiteStore) LatestResults(ctx context.Context) ([]model.FeedResult, error) {
	var results []model.FeedResult
	err := s.db.SelectContext(ctx, &results, `
		SELECT `+feedResultColumns+`
		FROM feed_results fr
		JOIN runs r ON r.id = fr.run_id
		WHERE fr.rowid IN (SELECT MAX(rowid) FROM feed_results GROUP BY feed_url)
		ORDER BY fr.feed_url`)
	if err != nil {
		return nil, fmt.Errorf("querying latest results: %w", err)
	}
	return results, nil
}

// Runs returns up to limit runs, newest first.
func (s *SQLiteStore) Runs(ctx context.Context, limit int) ([]model.Run, error) {
	query := `
		SELECT id, started_at, finished_at, feed_count, failed_count, appended
		FROM runs
		ORDER BY finished_at DESC, rowid DESC`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var runs []model.Run
	if err := s.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	return runs, nil
}

// RunResults returns the results recorded for runID in insertion order.
func (s *SQLiteStore) RunResults(ctx context.Context, runID string) ([]model.FeedResult, error) {
	var results []model.FeedResult
	err := s.db.SelectContext(ctx, &results, `
		SELECT `+feedResultColumns+`
		FROM feed_results fr
		JOIN runs r ON r.id = fr.run_id
		WHERE fr.run_id = ?
		ORDER BY fr.rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying results of run %s: %w", runID, err)
	}
	return results, nil
}
