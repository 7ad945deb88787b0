// Package sync drives a sync run: every subscribed feed is fetched in its
// own goroutine and each entry missing from the mailbox is composed and
// appended.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nhle/feed2imap/internal/model"
	"github.com/nhle/feed2imap/internal/transform"
)

// displayTitleLength is the number of runes of the feed title handed to
// reporters.
const displayTitleLength = 20

// Input is one subscription.
type Input interface {
	FeedURL() string
}

// Fetcher downloads and parses a feed.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*model.Feed, error)
}

// Composer turns an entry into a serialized message.
type Composer interface {
	Compose(feed *model.Feed, entry *model.Entry) ([]byte, error)
}

// Output is the destination mailbox. Contains is called concurrently and
// must not block. Append must be safe for concurrent use.
type Output interface {
	Contains(id string) bool
	Append(ctx context.Context, raw []byte) error
}

// Reporter observes a run. Methods are called concurrently from every
// feed goroutine.
type Reporter interface {
	OnBegin(url string)
	OnEntriesCount(url, title string, count int)
	OnEntry(url string)
	OnEnd(url string, outcome Outcome)
}

// Outcome is the result of syncing one feed.
type Outcome struct {
	URL   string
	Title string

	// Entries is the number of entries the feed returned.
	Entries int

	// Skipped counts entries already present in the mailbox.
	Skipped int

	// New counts entries composed for delivery; Appended counts those the
	// mailbox accepted. They differ in dry-run mode or after a failure.
	New      int
	Appended int

	Err      error
	Duration time.Duration
}

// OK reports whether the feed synced without error.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Summary aggregates a run.
type Summary struct {
	StartedAt  time.Time
	FinishedAt time.Time
	DryRun     bool
	Outcomes   []Outcome
}

// Failed returns the outcomes that carry an error.
func (s Summary) Failed() []Outcome {
	var failed []Outcome
	for _, o := range s.Outcomes {
		if !o.OK() {
			failed = append(failed, o)
		}
	}
	return failed
}

// Appended returns the total number of messages stored by the run.
func (s Summary) Appended() int {
	n := 0
	for _, o := range s.Outcomes {
		n += o.Appended
	}
	return n
}

// Err joins every per-feed error, or returns nil when all feeds synced.
func (s Summary) Err() error {
	var errs []error
	for _, o := range s.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", o.URL, o.Err))
	}
	return errors.Join(errs...)
}

// Options tunes a Syncer.
type Options struct {
	// MaxConcurrency caps the number of feeds in flight. Zero or less runs
	// every feed at once.
	MaxConcurrency int

	// DryRun composes messages without appending them.
	DryRun bool
}

// Syncer runs feeds against an Output.
type Syncer struct {
	fetcher  Fetcher
	composer Composer
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

// NewSyncer creates a Syncer.
func NewSyncer(fetcher Fetcher, composer Composer, opts Options, logger *slog.Logger) *Syncer {
	return &Syncer{
		fetcher:  fetcher,
		composer: composer,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// Run syncs every input and waits for all of them. A failing feed is
// recorded in its Outcome and never affects the others. Outcomes are in
// input order.
func (s *Syncer) Run(ctx context.Context, inputs []Input, out Output, rep Reporter) Summary {
	summary := Summary{
		StartedAt: s.now(),
		DryRun:    s.opts.DryRun,
		Outcomes:  make([]Outcome, len(inputs)),
	}

	var g errgroup.Group
	if s.opts.MaxConcurrency > 0 {
		g.SetLimit(s.opts.MaxConcurrency)
	}
	for i, in := range inputs {
		g.Go(func() error {
			summary.Outcomes[i] = s.syncFeed(ctx, in.FeedURL(), out, rep)
			return nil
		})
	}
	_ = g.Wait()

	summary.FinishedAt = s.now()
	s.logger.Info("sync finished",
		slog.Int("feeds", len(inputs)),
		slog.Int("failed", len(summary.Failed())),
		slog.Int("appended", summary.Appended()),
		slog.Bool("dry_run", s.opts.DryRun),
		slog.Duration("duration", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	return summary
}

func (s *Syncer) syncFeed(ctx context.Context, url string, out Output, rep Reporter) (outcome Outcome) {
	start := s.now()
	outcome.URL = url
	rep.OnBegin(url)
	defer func() {
		outcome.Duration = s.now().Sub(start)
		if outcome.Err != nil {
			s.logger.Warn("feed failed",
				slog.String("feed_url", url),
				slog.String("error", outcome.Err.Error()),
			)
		}
		rep.OnEnd(url, outcome)
	}()

	feed, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		outcome.Err = err
		return outcome
	}

	outcome.Title = transform.FeedTitle(feed)
	outcome.Entries = len(feed.Entries)
	rep.OnEntriesCount(url, transform.DisplayTitle(feed, displayTitleLength), len(feed.Entries))

	// A feed may repeat an id; only the first occurrence is delivered.
	delivered := make(map[string]struct{})

	for i := range feed.Entries {
		if err := ctx.Err(); err != nil {
			outcome.Err = err
			return outcome
		}

		entry := &feed.Entries[i]
		id := transform.MessageID(feed, entry)

		if _, ok := delivered[id]; ok || out.Contains(id) {
			outcome.Skipped++
			rep.OnEntry(url)
			continue
		}

		raw, err := s.composer.Compose(feed, entry)
		if err != nil {
			rep.OnEntry(url)
			outcome.Err = fmt.Errorf("composing entry %q: %w", entry.ID, err)
			return outcome
		}
		delivered[id] = struct{}{}
		outcome.New++

		if s.opts.DryRun {
			s.logger.Info("would append entry",
				slog.String("feed_url", url),
				slog.String("message_id", id),
				slog.String("title", transform.Title(entry)),
			)
			rep.OnEntry(url)
			continue
		}

		if err := out.Append(ctx, raw); err != nil {
			rep.OnEntry(url)
			outcome.Err = err
			return outcome
		}
		outcome.Appended++
		s.logger.Debug("appended entry",
			slog.String("feed_url", url),
			slog.String("message_id", id),
		)
		rep.OnEntry(url)
	}

	return outcome
}
