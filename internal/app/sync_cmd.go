package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/feed2imap/internal/credential"
	"github.com/nhle/feed2imap/internal/fetch"
	"github.com/nhle/feed2imap/internal/mailbox"
	"github.com/nhle/feed2imap/internal/metrics"
	"github.com/nhle/feed2imap/internal/model"
	"github.com/nhle/feed2imap/internal/report"
	gosync "github.com/nhle/feed2imap/internal/sync"
	"github.com/nhle/feed2imap/internal/transform"
)

// ErrFeedsFailed is returned by sync with --fail-on-feed-error when at
// least one feed failed.
var ErrFeedsFailed = errors.New("feeds failed")

type syncOptions struct {
	dryRun          bool
	summary         string
	failOnFeedError bool
	plain           bool
	every           time.Duration
}

func (a *App) newSyncCommand() *cobra.Command {
	var opts syncOptions
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Append new feed entries to the mailbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSync(cmd.Context(), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "compose messages without appending them")
	cmd.Flags().StringVar(&opts.summary, "summary", report.FormatText, "run summary format (text, json)")
	cmd.Flags().BoolVar(&opts.failOnFeedError, "fail-on-feed-error", false, "exit non-zero when any feed fails")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "line-oriented progress even on a terminal")
	cmd.Flags().DurationVar(&opts.every, "every", 0, "keep running and sync again after this interval (SIGHUP syncs immediately)")
	return cmd
}

func (a *App) runSync(ctx context.Context, opts syncOptions) error {
	if opts.summary != report.FormatText && opts.summary != report.FormatJSON {
		return fmt.Errorf("unknown summary format %q", opts.summary)
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if len(cfg.Feeds) == 0 {
		a.logger.Warn("no feeds configured", slog.String("config", a.configPath))
		return nil
	}

	if opts.every <= 0 {
		return a.syncOnce(ctx, cfg, opts)
	}

	poller := gosync.NewPoller(opts.every, func(ctx context.Context) error {
		return a.syncOnce(ctx, cfg, opts)
	}, a.logger)

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				a.logger.Info("sync requested by signal")
				poller.Trigger()
			}
		}
	}()

	a.logger.Info("watching feeds",
		slog.Int("feeds", len(cfg.Feeds)),
		slog.Duration("every", poller.Interval()),
	)
	if err := poller.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// syncOnce performs one complete run: connect, sync every feed, record and
// report the result.
func (a *App) syncOnce(ctx context.Context, cfg *model.AppConfig, opts syncOptions) error {
	password, err := credential.ResolvePassword(cfg.IMAP.Password, cfg.IMAP.PasswordRef)
	if err != nil {
		return fmt.Errorf("resolving imap password: %w", err)
	}

	client, err := mailbox.Connect(ctx, mailbox.Options{
		Host:     cfg.IMAP.Host,
		Port:     cfg.IMAP.Port,
		Username: cfg.IMAP.Username,
		Password: password,
		TLS:      cfg.IMAP.TLS,
		Timeout:  cfg.Sync.MailboxTimeout,
	}, a.logger)
	if err != nil {
		return err
	}
	defer client.Logout()

	if !opts.dryRun {
		if err := client.EnsureFolder(ctx, cfg.IMAP.Folder); err != nil {
			return err
		}
	}

	out, err := mailbox.NewOutput(ctx, client, cfg.IMAP.Folder)
	if err != nil {
		return err
	}
	a.logger.Info("mailbox ready",
		slog.String("folder", out.Folder()),
		slog.Int("existing", out.Len()),
	)

	syncer := gosync.NewSyncer(
		fetch.NewFetcher(fetch.Options{
			Timeout:           cfg.Sync.FetchTimeout,
			RequestsPerSecond: cfg.Sync.FetchRPS,
			UserAgent:         cfg.Sync.UserAgent,
			MaxBodySize:       cfg.Sync.MaxBodySize,
		}, a.logger),
		transform.NewComposer(transform.ComposerOptions{
			Name:     cfg.IMAP.Name,
			Email:    cfg.IMAP.Email,
			Sanitize: cfg.Sync.SanitizeHTML,
		}, a.logger),
		gosync.Options{
			MaxConcurrency: cfg.Sync.MaxConcurrency,
			DryRun:         opts.dryRun,
		},
		a.logger,
	)

	// Progress goes to stderr when stdout carries the JSON summary.
	progressOut := a.stdout
	if opts.summary == report.FormatJSON {
		progressOut = a.stderr
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	var reporters report.Multi
	var progress *report.Progress
	if !opts.plain && isTerminal(progressOut) {
		var cancel func()
		if isTerminal(os.Stdin) {
			cancel = cancelRun
		}
		progress = report.NewProgress(progressOut, cancel)
		reporters = append(reporters, progress)
	} else {
		reporters = append(reporters, report.NewPlain(progressOut))
	}

	var collector *metrics.Collector
	if cfg.MetricsFile != "" {
		collector = metrics.NewCollector()
		reporters = append(reporters, collector)
	}

	summary := syncer.Run(runCtx, feedInputs(cfg.Feeds), out, reporters)

	if progress != nil {
		if err := progress.Close(); err != nil {
			a.logger.Warn("progress display failed", slog.String("error", err.Error()))
		}
	}

	// The run may have been interrupted; bookkeeping still happens.
	bg := context.WithoutCancel(ctx)
	if !opts.dryRun {
		a.recordHistory(bg, cfg, summary)
	}
	if collector != nil {
		collector.Finish(summary)
		if err := collector.WriteTextfile(cfg.MetricsFile); err != nil {
			a.logger.Warn("writing metrics failed", slog.String("error", err.Error()))
		}
	}

	if err := report.WriteSummary(a.stdout, summary, opts.summary); err != nil {
		return err
	}

	if err := runCtx.Err(); err != nil {
		return fmt.Errorf("sync interrupted: %w", err)
	}
	if failed := summary.Failed(); opts.failOnFeedError && len(failed) > 0 {
		return fmt.Errorf("%w: %d of %d", ErrFeedsFailed, len(failed), len(summary.Outcomes))
	}
	return nil
}

func feedInputs(feeds []model.FeedConfig) []gosync.Input {
	inputs := make([]gosync.Input, len(feeds))
	for i, f := range feeds {
		inputs[i] = f
	}
	return inputs
}

func (a *App) recordHistory(ctx context.Context, cfg *model.AppConfig, summary gosync.Summary) {
	if cfg.HistoryDB == "" {
		return
	}
	s, err := openHistory(cfg.HistoryDB)
	if err != nil {
		a.logger.Warn("opening history failed",
			slog.String("path", cfg.HistoryDB),
			slog.String("error", err.Error()),
		)
		return
	}
	defer s.Close()

	runID, err := s.RecordRun(ctx, summary)
	if err != nil {
		a.logger.Warn("recording run failed", slog.String("error", err.Error()))
		return
	}
	a.logger.Debug("recorded run", slog.String("run_id", runID))
}
