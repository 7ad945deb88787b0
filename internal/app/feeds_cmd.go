package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/nhle/feed2imap/internal/fetch"
	"github.com/nhle/feed2imap/internal/model"
	"github.com/nhle/feed2imap/internal/theme"
	"github.com/nhle/feed2imap/internal/transform"
)

func (a *App) newAddCommand() *cobra.Command {
	var noCheck bool
	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Subscribe to a feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAdd(cmd.Context(), args[0], noCheck)
		},
	}
	cmd.Flags().BoolVar(&noCheck, "no-check", false, "subscribe without fetching the feed first")
	return cmd
}

func (a *App) runAdd(ctx context.Context, url string, noCheck bool) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if cfg.HasFeed(url) {
		return fmt.Errorf("feed %s is already subscribed", url)
	}

	if !noCheck {
		f := fetch.NewFetcher(fetch.Options{
			Timeout:     cfg.Sync.FetchTimeout,
			UserAgent:   cfg.Sync.UserAgent,
			MaxBodySize: cfg.Sync.MaxBodySize,
		}, a.logger)
		feed, err := f.Fetch(ctx, url)
		if err != nil {
			return err
		}
		for _, e := range feed.Entries {
			a.logger.Debug("feed entry",
				slog.String("feed_url", url),
				slog.String("entry_id", e.ID),
				slog.String("title", transform.Title(&e)),
			)
		}
		fmt.Fprintf(a.stdout, "fetched: %s (%s) has %d entries\n",
			url, transform.FeedTitle(feed), len(feed.Entries))
	}

	if err := cfg.AddFeed(url); err != nil {
		return err
	}
	if err := model.SaveConfig(a.configPath, cfg); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "added: %s\n", url)
	return nil
}

func (a *App) newRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <url>",
		Aliases: []string{"rm"},
		Short:   "Unsubscribe from a feed",
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.runRemove(args[0])
		},
	}
}

func (a *App) runRemove(url string) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if !cfg.RemoveFeed(url) {
		return fmt.Errorf("feed %s is not subscribed", url)
	}
	if err := model.SaveConfig(a.configPath, cfg); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "removed: %s\n", url)
	return nil
}

func (a *App) newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List subscribed feeds with their last result",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runList(cmd.Context())
		},
	}
}

func (a *App) runList(ctx context.Context) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Feeds) == 0 {
		fmt.Fprintf(a.stdout, "No feeds configured. Add one with: feed2imap add <url>\n")
		return nil
	}

	latest := make(map[string]model.FeedResult)
	s, err := openExistingHistory(cfg.HistoryDB)
	switch {
	case errors.Is(err, errNoHistory):
	case err != nil:
		a.logger.Warn("reading history failed", slog.String("error", err.Error()))
	default:
		results, err := s.LatestResults(ctx)
		s.Close()
		if err != nil {
			a.logger.Warn("reading history failed", slog.String("error", err.Error()))
		}
		for _, r := range results {
			latest[r.FeedURL] = r
		}
	}

	fmt.Fprintln(a.stdout, renderFeeds(cfg.Feeds, latest))
	return nil
}

func renderFeeds(feeds []model.FeedConfig, latest map[string]model.FeedResult) string {
	t := newTable("FEED", "TITLE", "LAST SYNC", "RESULT")
	status := make([]*model.FeedResult, len(feeds))
	for i, f := range feeds {
		r, ok := latest[f.URL]
		if !ok {
			t.Row(f.URL, "", "never", "")
			continue
		}
		status[i] = &r
		t.Row(f.URL, r.Title, r.FinishedAt.Local().Format("2006-01-02 15:04"), resultText(r))
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return theme.HeaderStyle
		case col == 3 && status[row] != nil:
			return theme.OutcomeStyle(status[row].OK()).Padding(0, 1)
		case col == 2 && status[row] == nil:
			return theme.DimmedStyle.Padding(0, 1)
		default:
			return lipgloss.NewStyle().Padding(0, 1)
		}
	})
	return t.String()
}
