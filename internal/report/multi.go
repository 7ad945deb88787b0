package report

import "github.com/nhle/feed2imap/internal/sync"

// Multi forwards every event to each reporter in order.
type Multi []sync.Reporter

// OnBegin forwards to every reporter.
func (m Multi) OnBegin(url string) {
	for _, r := range m {
		r.OnBegin(url)
	}
}

// OnEntriesCount forwards to every reporter.
func (m Multi) OnEntriesCount(url, title string, count int) {
	for _, r := range m {
		r.OnEntriesCount(url, title, count)
	}
}

// OnEntry forwards to every reporter.
func (m Multi) OnEntry(url string) {
	for _, r := range m {
		r.OnEntry(url)
	}
}

// OnEnd forwards to every reporter.
func (m Multi) OnEnd(url string, outcome sync.Outcome) {
	for _, r := range m {
		r.OnEnd(url, outcome)
	}
}
