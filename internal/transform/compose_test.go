package transform

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/feed2imap/internal/model"
)

func newTestComposer(sanitize bool) *Composer {
	c := NewComposer(ComposerOptions{
		Name:     "Reader",
		Email:    "reader@example.com",
		Sanitize: sanitize,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.Now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func readMessage(t *testing.T, raw []byte) (*mail.Reader, string) {
	t.Helper()
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("parsing composed message: %v", err)
	}
	part, err := mr.NextPart()
	if err != nil {
		t.Fatalf("reading body part: %v", err)
	}
	body, err := io.ReadAll(part.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return mr, string(body)
}

func TestCompose_Headers(t *testing.T) {
	published := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)
	feed := &model.Feed{
		ID:      "urn:feed",
		Title:   "Example Blog",
		BaseURL: "https://example.com/",
		Links:   []model.Link{{Href: "https://example.com/"}},
	}
	entry := &model.Entry{
		ID:        "urn:entry:1",
		Title:     "First post",
		Content:   "<p>hello</p>",
		Published: &published,
		Links:     []model.Link{{Href: "https://example.com/posts/1", Title: "First post"}},
	}

	raw, err := newTestComposer(false).Compose(feed, entry)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	mr, body := readMessage(t, raw)

	wantID := "<" + MessageID(feed, entry) + ">"
	if got := mr.Header.Get("Message-Id"); got != wantID {
		t.Errorf("Message-Id = %q, want %q", got, wantID)
	}

	subject, err := mr.Header.Subject()
	if err != nil || subject != "First post" {
		t.Errorf("Subject = (%q, %v), want %q", subject, err, "First post")
	}

	from, err := mr.Header.AddressList("From")
	if err != nil || len(from) != 1 {
		t.Fatalf("From = (%v, %v)", from, err)
	}
	if from[0].Name != "Example Blog" || from[0].Address != "rss@example.com" {
		t.Errorf("From = %q <%s>", from[0].Name, from[0].Address)
	}

	to, err := mr.Header.AddressList("To")
	if err != nil || len(to) != 1 || to[0].Address != "reader@example.com" || to[0].Name != "Reader" {
		t.Errorf("To = (%v, %v)", to, err)
	}

	date, err := mr.Header.Date()
	if err != nil || !date.Equal(published) {
		t.Errorf("Date = (%v, %v), want %v", date, err, published)
	}

	if !strings.Contains(body, "<p>hello</p>") {
		t.Errorf("body missing content: %q", body)
	}
	if !strings.Contains(body, "Links") || !strings.Contains(body, `href="https://example.com/posts/1"`) {
		t.Errorf("body missing links section: %q", body)
	}
}

func TestCompose_FallbacksForSparseEntry(t *testing.T) {
	feed := &model.Feed{ID: "f"}
	entry := &model.Entry{ID: "e", Summary: "just a summary"}

	raw, err := newTestComposer(false).Compose(feed, entry)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	mr, body := readMessage(t, raw)

	if subject, _ := mr.Header.Subject(); subject != "Unknown" {
		t.Errorf("Subject = %q, want placeholder", subject)
	}
	from, err := mr.Header.AddressList("From")
	if err != nil || len(from) != 1 || from[0].Address != "placeholder@example.com" {
		t.Errorf("From = (%v, %v)", from, err)
	}
	date, err := mr.Header.Date()
	if err != nil || !date.Equal(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("Date = (%v, %v), want the composer clock", date, err)
	}
	if !strings.Contains(body, "just a summary") {
		t.Errorf("summary not used as body: %q", body)
	}
	if !strings.Contains(body, `href="none"`) {
		t.Errorf("expected the no-link placeholder href: %q", body)
	}
}

func TestCompose_NoContent(t *testing.T) {
	_, err := newTestComposer(false).Compose(&model.Feed{ID: "f"}, &model.Entry{ID: "e", Title: "t"})
	if !errors.Is(err, ErrNoContent) {
		t.Errorf("Compose error = %v, want ErrNoContent", err)
	}
}

func TestHTMLBody_RewritesAgainstEntryBase(t *testing.T) {
	feed := &model.Feed{ID: "f", BaseURL: "https://example.com/"}
	entry := &model.Entry{
		ID:      "e",
		Content: `<img src="pic.png">`,
		BaseURL: "https://example.com/posts/",
	}
	body, err := newTestComposer(false).HTMLBody(feed, entry)
	if err != nil {
		t.Fatalf("HTMLBody: %v", err)
	}
	if !strings.Contains(body, `src="https://example.com/posts/pic.png"`) {
		t.Errorf("img not resolved against entry base: %q", body)
	}
}

func TestHTMLBody_InvalidBaseKeepsLinks(t *testing.T) {
	feed := &model.Feed{ID: "f", BaseURL: "://broken"}
	entry := &model.Entry{ID: "e", Content: `<img src="pic.png">`}
	body, err := newTestComposer(false).HTMLBody(feed, entry)
	if err != nil {
		t.Fatalf("HTMLBody: %v", err)
	}
	if !strings.Contains(body, `src="pic.png"`) {
		t.Errorf("links should stay unchanged: %q", body)
	}
}

func TestHTMLBody_Sanitize(t *testing.T) {
	entry := &model.Entry{ID: "e", Content: `<p>ok</p><script>alert(1)</script>`}
	body, err := newTestComposer(true).HTMLBody(&model.Feed{ID: "f"}, entry)
	if err != nil {
		t.Fatalf("HTMLBody: %v", err)
	}
	if strings.Contains(body, "alert(1)") {
		t.Errorf("script survived sanitizing: %q", body)
	}
}
