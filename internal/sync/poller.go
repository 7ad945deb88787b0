package sync

import (
	"context"
	"log/slog"
	"time"
)

// defaultInterval is used when a Poller is created with a non-positive interval.
const defaultInterval = 30 * time.Minute

// Round performs one complete sync pass.
type Round func(ctx context.Context) error

// Poller repeats a Round on a fixed interval until its context is done.
// Rounds never overlap: a round that outlasts the interval delays the next
// one instead of stacking up.
type Poller struct {
	interval time.Duration
	round    Round
	logger   *slog.Logger

	// triggerCh starts a round immediately, outside the schedule.
	triggerCh chan struct{}
}

// NewPoller creates a Poller running round every interval.
func NewPoller(interval time.Duration, round Round, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Poller{
		interval:  interval,
		round:     round,
		logger:    logger,
		triggerCh: make(chan struct{}, 1),
	}
}

// Interval returns the time between the end of one round and the start of
// the next.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Trigger requests an immediate round. Requests made while one is already
// pending are dropped.
func (p *Poller) Trigger() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
		// a round is already pending
	}
}

// Run performs a first round immediately and then one per interval. Round
// errors are logged and do not stop the loop. Run returns the context error
// once ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	rounds := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		case <-p.triggerCh:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		rounds++
		started := time.Now()
		if err := p.round(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("sync round failed",
				slog.Int("round", rounds),
				slog.String("error", err.Error()),
			)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		p.logger.Info("next sync scheduled",
			slog.Int("round", rounds),
			slog.Duration("took", time.Since(started).Round(time.Millisecond)),
			slog.Time("at", time.Now().Add(p.interval)),
		)
		timer.Reset(p.interval)
	}
}
