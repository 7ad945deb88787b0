package transform

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/microcosm-cc/bluemonday"

	"github.com/nhle/feed2imap/internal/model"
)

// Composer renders entries into serialized emails addressed to one
// recipient. It is safe for concurrent use.
type Composer struct {
	name   string
	email  string
	policy *bluemonday.Policy
	logger *slog.Logger

	// Now is the clock used for entries without timestamps.
	Now func() time.Time
}

// ComposerOptions configures a Composer.
type ComposerOptions struct {
	// Name and Email form the To header.
	Name  string
	Email string

	// Sanitize strips unsafe markup from bodies before rewriting.
	Sanitize bool
}

// NewComposer creates a Composer.
func NewComposer(opts ComposerOptions, logger *slog.Logger) *Composer {
	c := &Composer{
		name:   opts.Name,
		email:  opts.Email,
		logger: logger,
		Now:    time.Now,
	}
	if opts.Sanitize {
		c.policy = NewSanitizer()
	}
	return c
}

// HTMLBody produces the final HTML of entry: body extraction, optional
// sanitizing, relative link rewriting and template wrapping.
func (c *Composer) HTMLBody(feed *model.Feed, entry *model.Entry) (string, error) {
	content, err := Body(entry)
	if err != nil {
		return "", err
	}

	if c.policy != nil {
		content = c.policy.Sanitize(content)
	}

	if base := BaseURL(feed, entry); base != "" {
		rewritten, err := RewriteRelativeLinks(c.logger, base, content)
		if err != nil {
			c.logger.Warn("keeping entry links unchanged",
				slog.String("entry_id", entry.ID),
				slog.String("base_url", base),
				slog.String("error", err.Error()),
			)
		} else {
			content = rewritten
		}
	}

	link, ok := ArticleLink(entry)
	return WrapInTemplate(content, link, ok)
}

// Compose builds the complete message for entry. The Message-ID is the
// entry identity so that the mailbox itself records what was delivered.
func (c *Composer) Compose(feed *model.Feed, entry *model.Entry) ([]byte, error) {
	body, err := c.HTMLBody(feed, entry)
	if err != nil {
		return nil, err
	}

	var h mail.Header
	h.Set("MIME-Version", "1.0")
	h.SetMessageID(MessageID(feed, entry))
	h.SetAddressList("From", []*mail.Address{{
		Name:    FeedTitle(feed),
		Address: SenderEmail(feed, entry),
	}})
	h.SetAddressList("To", []*mail.Address{{
		Name:    c.name,
		Address: c.email,
	}})
	h.SetDate(Date(entry, c.Now))
	h.SetSubject(Title(entry))
	h.SetContentType("text/html", map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return nil, fmt.Errorf("writing message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing message writer: %w", err)
	}

	return buf.Bytes(), nil
}
