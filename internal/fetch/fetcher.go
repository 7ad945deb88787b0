// Package fetch downloads subscriptions and converts them into model feeds.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	"github.com/nhle/feed2imap/internal/model"
)

const (
	defaultUserAgent   = "feed2imap/1.0"
	defaultMaxBodySize = 5 << 20
	acceptHeader       = "application/atom+xml, application/rss+xml, application/xml, text/xml, */*"
)

// Options configures a Fetcher.
type Options struct {
	// Timeout bounds a whole request including the body read.
	Timeout time.Duration

	// RequestsPerSecond limits requests across every caller of the Fetcher.
	// Zero disables the limit.
	RequestsPerSecond float64

	UserAgent   string
	MaxBodySize int64
}

// Fetcher downloads and parses feeds. It is safe for concurrent use; the
// rate limit, when set, is shared by all goroutines.
type Fetcher struct {
	client      *http.Client
	limiter     *rate.Limiter
	logger      *slog.Logger
	userAgent   string
	maxBodySize int64
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts Options, logger *slog.Logger) *Fetcher {
	f := &Fetcher{
		client:      &http.Client{Timeout: opts.Timeout},
		logger:      logger,
		userAgent:   opts.UserAgent,
		maxBodySize: opts.MaxBodySize,
	}
	if f.userAgent == "" {
		f.userAgent = defaultUserAgent
	}
	if f.maxBodySize <= 0 {
		f.maxBodySize = defaultMaxBodySize
	}
	if opts.RequestsPerSecond > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return f
}

// Fetch downloads the feed at url and parses it.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*model.Feed, error) {
	start := time.Now()

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, &FetchError{URL: url, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	// One byte past the limit tells a truncated body from one that fits.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("reading body: %w", err)}
	}
	if int64(len(body)) > f.maxBodySize {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("%w (%d bytes)", ErrBodyTooLarge, f.maxBodySize)}
	}

	feed, err := Parse(url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	f.logger.Debug("fetched feed",
		slog.String("feed_url", url),
		slog.Int("http_status", resp.StatusCode),
		slog.Int("entries", len(feed.Entries)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return feed, nil
}

// newParser returns a gofeed parser whose Atom translator keeps the feed
// level <id>. gofeed.Parser is not safe for concurrent use.
func newParser() *gofeed.Parser {
	p := gofeed.NewParser()
	p.AtomTranslator = &atomTranslator{}
	return p
}

// Parse converts a feed document read from r. url is the subscription URL
// used as the fallback identifier and base.
func Parse(url string, r io.Reader) (*model.Feed, error) {
	parsed, err := newParser().Parse(r)
	if err != nil {
		return nil, &ParseError{URL: url, Err: err}
	}
	return convertFeed(url, parsed), nil
}
