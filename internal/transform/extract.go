package transform

import (
	"errors"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nhle/feed2imap/internal/model"
)

// ErrNoContent is returned when an entry has neither content nor summary.
var ErrNoContent = errors.New("no content")

const (
	unknownText        = "Unknown"
	placeholderAddress = "placeholder@example.com"
	noLinkHref         = "none"
)

// Title returns the entry title or a placeholder.
func Title(entry *model.Entry) string {
	if t := strings.TrimSpace(entry.Title); t != "" {
		return t
	}
	return unknownText
}

// FeedTitle returns the feed title or a placeholder.
func FeedTitle(feed *model.Feed) string {
	if t := strings.TrimSpace(feed.Title); t != "" {
		return t
	}
	return unknownText
}

// DisplayTitle is FeedTitle cut to at most n runes, for progress output.
func DisplayTitle(feed *model.Feed, n int) string {
	t := FeedTitle(feed)
	if utf8.RuneCountInString(t) <= n {
		return t
	}
	return string([]rune(t)[:n])
}

// SenderEmail picks the From address: the first entry author with an email,
// then the first feed author with one, then rss@<host of the feed's first
// link>, then a fixed placeholder.
func SenderEmail(feed *model.Feed, entry *model.Entry) string {
	if email := firstEmail(entry.Authors); email != "" {
		return email
	}
	if email := firstEmail(feed.Authors); email != "" {
		return email
	}
	if len(feed.Links) > 0 {
		if u, err := url.Parse(feed.Links[0].Href); err == nil && u.Hostname() != "" {
			return "rss@" + u.Hostname()
		}
	}
	return placeholderAddress
}

func firstEmail(people []model.Person) string {
	for _, p := range people {
		if e := strings.TrimSpace(p.Email); e != "" {
			return e
		}
	}
	return ""
}

// Body returns the entry's full content, falling back to its summary.
func Body(entry *model.Entry) (string, error) {
	if entry.Content != "" {
		return entry.Content, nil
	}
	if entry.Summary != "" {
		return entry.Summary, nil
	}
	return "", ErrNoContent
}

// ArticleLink returns the first link of the entry, if any.
func ArticleLink(entry *model.Entry) (model.Link, bool) {
	if len(entry.Links) == 0 {
		return model.Link{}, false
	}
	return entry.Links[0], true
}

// Date returns the published time, then the updated time, then now.
func Date(entry *model.Entry, now func() time.Time) time.Time {
	switch {
	case entry.Published != nil:
		return *entry.Published
	case entry.Updated != nil:
		return *entry.Updated
	default:
		return now()
	}
}

// BaseURL returns the URL relative links of entry resolve against.
func BaseURL(feed *model.Feed, entry *model.Entry) string {
	if entry.BaseURL != "" {
		return entry.BaseURL
	}
	return feed.BaseURL
}
