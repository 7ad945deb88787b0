package model

import "time"

// Person is a feed or entry author.
type Person struct {
	Name  string
	Email string
}

// Link is a hyperlink attached to a feed or an entry.
type Link struct {
	Href  string
	Title string
}

// Feed is a parsed syndication feed.
type Feed struct {
	// ID is the source-assigned identifier (Atom <id>, RSS channel link, or
	// the subscription URL as a last resort).
	ID string

	Title string

	// URL is the subscription URL the feed was fetched from.
	URL string

	// BaseURL resolves relative links found in entry bodies.
	BaseURL string

	Authors []Person
	Links   []Link
	Entries []Entry
}

// Entry is one item of a feed. Empty strings and nil times mean absent.
type Entry struct {
	ID      string
	Title   string
	Content string
	Summary string

	Published *time.Time
	Updated   *time.Time

	Links   []Link
	Authors []Person

	// BaseURL overrides Feed.BaseURL for this entry's body.
	BaseURL string
}

// FeedURL returns the subscription URL so a FeedConfig can be handed to the
// syncer directly.
func (f FeedConfig) FeedURL() string {
	return f.URL
}
