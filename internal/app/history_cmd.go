package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/nhle/feed2imap/internal/model"
	"github.com/nhle/feed2imap/internal/store"
	"github.com/nhle/feed2imap/internal/theme"
)

// errNoHistory is returned when history is disabled or nothing was recorded.
var errNoHistory = errors.New("no run history")

func openHistory(path string) (*store.SQLiteStore, error) {
	if path == "" {
		return nil, errNoHistory
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}
	return store.NewSQLiteStore(path)
}

// openExistingHistory opens the history database only if a run has been
// recorded before, so read-only commands never create it.
func openExistingHistory(path string) (*store.SQLiteStore, error) {
	if path == "" {
		return nil, errNoHistory
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errNoHistory
		}
		return nil, fmt.Errorf("checking history %s: %w", path, err)
	}
	return store.NewSQLiteStore(path)
}

func (a *App) newHistoryCommand() *cobra.Command {
	var limit int
	var runID string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent sync runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runHistory(cmd.Context(), limit, runID)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs to show (0 for all)")
	cmd.Flags().StringVar(&runID, "run", "", "show per-feed results of one run")
	return cmd
}

func (a *App) runHistory(ctx context.Context, limit int, runID string) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	s, err := openExistingHistory(cfg.HistoryDB)
	if errors.Is(err, errNoHistory) {
		fmt.Fprintln(a.stdout, "No runs recorded yet.")
		return nil
	}
	if err != nil {
		return err
	}
	defer s.Close()

	if runID != "" {
		results, err := s.RunResults(ctx, runID)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			return fmt.Errorf("run %s not found", runID)
		}
		fmt.Fprintln(a.stdout, renderResults(results))
		return nil
	}

	runs, err := s.Runs(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(a.stdout, "No runs recorded yet.")
		return nil
	}
	fmt.Fprintln(a.stdout, renderRuns(runs))
	return nil
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(theme.BorderStyle).
		Headers(headers...)
}

func renderRuns(runs []model.Run) string {
	t := newTable("RUN", "STARTED", "DURATION", "FEEDS", "FAILED", "APPENDED")
	for _, r := range runs {
		t.Row(
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
			strconv.Itoa(r.FeedCount),
			strconv.Itoa(r.FailedCount),
			strconv.Itoa(r.Appended),
		)
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return theme.HeaderStyle
		case col == 4 && runs[row].FailedCount > 0:
			return theme.ErrorStyle.Padding(0, 1)
		default:
			return lipgloss.NewStyle().Padding(0, 1)
		}
	})
	return t.String()
}

func renderResults(results []model.FeedResult) string {
	t := newTable("FEED", "TITLE", "ENTRIES", "NEW", "APPENDED", "RESULT")
	for _, r := range results {
		t.Row(
			r.FeedURL,
			r.Title,
			strconv.Itoa(r.Entries),
			strconv.Itoa(r.New),
			strconv.Itoa(r.Appended),
			resultText(r),
		)
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return theme.HeaderStyle
		case col == 5:
			return theme.OutcomeStyle(results[row].OK()).Padding(0, 1)
		default:
			return lipgloss.NewStyle().Padding(0, 1)
		}
	})
	return t.String()
}

func resultText(r model.FeedResult) string {
	if r.OK() {
		return "ok"
	}
	return r.Error
}
