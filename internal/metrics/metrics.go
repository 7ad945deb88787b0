// Package metrics records sync results as Prometheus metrics and writes them
// in the node_exporter textfile format.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nhle/feed2imap/internal/sync"
)

// Collector is a sync.Reporter that turns run events into metrics.
type Collector struct {
	registry *prometheus.Registry

	feedsSynced      *prometheus.CounterVec
	entriesSeen      prometheus.Counter
	entriesSkipped   prometheus.Counter
	messagesAppended prometheus.Counter
	feedDuration     prometheus.Histogram
	lastRun          prometheus.Gauge
}

// NewCollector creates a Collector with its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		feedsSynced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feed2imap_feeds_synced_total",
			Help: "Feeds processed, by result.",
		}, []string{"result"}),
		entriesSeen: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feed2imap_entries_seen_total",
			Help: "Entries returned by fetched feeds.",
		}),
		entriesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feed2imap_entries_skipped_total",
			Help: "Entries already present in the mailbox.",
		}),
		messagesAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feed2imap_messages_appended_total",
			Help: "Messages appended to the mailbox.",
		}),
		feedDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "feed2imap_feed_duration_seconds",
			Help:    "Time spent syncing a single feed.",
			Buckets: prometheus.DefBuckets,
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "feed2imap_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
	}

	c.registry.MustRegister(
		c.feedsSynced,
		c.entriesSeen,
		c.entriesSkipped,
		c.messagesAppended,
		c.feedDuration,
		c.lastRun,
	)

	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// OnBegin is a no-op; feeds are counted when they end.
func (c *Collector) OnBegin(string) {}

// OnEntriesCount adds count to the entries seen.
func (c *Collector) OnEntriesCount(_, _ string, count int) {
	c.entriesSeen.Add(float64(count))
}

// OnEntry is a no-op; entries are counted in bulk.
func (c *Collector) OnEntry(string) {}

// OnEnd records the result, skips, appends and duration of a feed.
func (c *Collector) OnEnd(_ string, outcome sync.Outcome) {
	result := "success"
	if outcome.Err != nil {
		result = "failure"
	}
	c.feedsSynced.WithLabelValues(result).Inc()
	c.entriesSkipped.Add(float64(outcome.Skipped))
	c.messagesAppended.Add(float64(outcome.Appended))
	c.feedDuration.Observe(outcome.Duration.Seconds())
}

// Finish records the end of a run.
func (c *Collector) Finish(summary sync.Summary) {
	c.lastRun.Set(float64(summary.FinishedAt.Unix()))
}

// WriteTextfile writes every metric to path atomically.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
