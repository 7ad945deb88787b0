// Package report renders sync progress for humans and scripts.
package report

import (
	"fmt"
	"io"
	gosync "sync"

	"github.com/nhle/feed2imap/internal/sync"
)

// Plain writes one line per event. It is meant for non-interactive output
// such as cron logs.
type Plain struct {
	mu gosync.Mutex
	w  io.Writer
}

// NewPlain creates a Plain reporter writing to w.
func NewPlain(w io.Writer) *Plain {
	return &Plain{w: w}
}

func (p *Plain) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.w, format, args...)
}

// OnBegin prints a "fetching" line.
func (p *Plain) OnBegin(url string) {
	p.printf("fetching: %s\n", url)
}

// OnEntriesCount prints the feed title and its number of entries.
func (p *Plain) OnEntriesCount(url, title string, count int) {
	p.printf("fetched: %s (%s) has %d entries\n", url, title, count)
}

// OnEntry prints a "processed" line.
func (p *Plain) OnEntry(url string) {
	p.printf("processed: %s\n", url)
}

// OnEnd prints "synced" or the feed error.
func (p *Plain) OnEnd(url string, outcome sync.Outcome) {
	if outcome.Err != nil {
		p.printf("ERROR: %s: %v\n", url, outcome.Err)
		return
	}
	p.printf("synced: %s\n", url)
}
