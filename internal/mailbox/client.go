// Package mailbox stores composed messages in an IMAP folder and lists the
// Message-IDs already present there.
package mailbox

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/textproto"
)

const messageIDField = "Message-Id"

// Options describes how to reach and authenticate against the server.
type Options struct {
	Host     string
	Port     int
	Username string
	Password string

	// TLS selects implicit TLS. When false the connection is upgraded with
	// STARTTLS before logging in.
	TLS bool

	// Timeout bounds every individual command. Zero means no limit.
	Timeout time.Duration

	// TLSConfig overrides the default TLS settings, mostly for tests.
	TLSConfig *tls.Config
}

func (o Options) addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// Client is an authenticated IMAP session. It is not safe for concurrent
// use; Output serializes access for the sync engine.
type Client struct {
	conn     net.Conn
	client   *imapclient.Client
	timeout  time.Duration
	logger   *slog.Logger
	selected string
}

// Connect dials the server, negotiates TLS and logs in.
func Connect(ctx context.Context, opts Options, logger *slog.Logger) (*Client, error) {
	addr := opts.addr()

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectionError{Addr: addr, Err: err}
	}

	tlsConfig := opts.TLSConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{ServerName: opts.Host}
	}
	imapOpts := &imapclient.Options{TLSConfig: tlsConfig}

	c := &Client{
		conn:    conn,
		timeout: opts.Timeout,
		logger:  logger,
	}
	done := c.guard(ctx)
	defer done()

	if opts.TLS {
		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, &TLSError{Addr: addr, Err: err}
		}
		c.client = imapclient.New(tlsConn, imapOpts)
	} else {
		client, err := imapclient.NewStartTLS(conn, imapOpts)
		if err != nil {
			_ = conn.Close()
			return nil, &TLSError{Addr: addr, Err: err}
		}
		c.client = client
	}

	if err := c.client.WaitGreeting(); err != nil {
		_ = c.client.Close()
		return nil, &ConnectionError{Addr: addr, Err: fmt.Errorf("waiting for greeting: %w", err)}
	}

	if err := c.client.Login(opts.Username, opts.Password).Wait(); err != nil {
		_ = c.client.Close()
		return nil, &AuthError{Username: opts.Username, Err: err}
	}

	logger.Debug("connected to mailbox",
		slog.String("addr", addr),
		slog.Bool("tls", opts.TLS),
	)

	return c, nil
}

// guard bounds the next command by the configured timeout and aborts it
// when ctx is cancelled. The returned func clears the deadline.
func (c *Client) guard(ctx context.Context) func() {
	if c.timeout > 0 {
		_ = c.conn.SetDeadline(time.Now().Add(c.timeout))
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now())
	})
	return func() {
		stop()
		_ = c.conn.SetDeadline(time.Time{})
	}
}

// ListMessageIDs opens folder read-only and returns the Message-ID of
// every message in it, without angle brackets. Messages whose header
// cannot be parsed are skipped.
func (c *Client) ListMessageIDs(ctx context.Context, folder string) (map[string]struct{}, error) {
	done := c.guard(ctx)
	defer done()

	data, err := c.client.Select(folder, &imap.SelectOptions{ReadOnly: true}).Wait()
	if err != nil {
		return nil, fmt.Errorf("examining folder %s: %w", folder, err)
	}
	c.selected = ""

	ids := make(map[string]struct{}, data.NumMessages)
	if data.NumMessages == 0 {
		return ids, nil
	}

	var seq imap.SeqSet
	seq.AddRange(1, 0)
	section := &imap.FetchItemBodySection{
		Specifier:    imap.PartSpecifierHeader,
		HeaderFields: []string{messageIDField},
		Peek:         true,
	}
	cmd := c.client.Fetch(seq, &imap.FetchOptions{
		BodySection: []*imap.FetchItemBodySection{section},
	})

	for {
		msg := cmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			c.logger.Debug("skipping unreadable message",
				slog.String("folder", folder),
				slog.String("error", err.Error()),
			)
			continue
		}
		id, ok := parseMessageID(buf.FindBodySection(section))
		if !ok {
			c.logger.Debug("skipping message without usable Message-ID",
				slog.String("folder", folder),
				slog.Uint64("seq", uint64(buf.SeqNum)),
			)
			continue
		}
		ids[id] = struct{}{}
	}

	if err := cmd.Close(); err != nil {
		return nil, fmt.Errorf("fetching message ids from %s: %w", folder, err)
	}

	c.logger.Debug("listed mailbox",
		slog.String("folder", folder),
		slog.Int("messages", int(data.NumMessages)),
		slog.Int("ids", len(ids)),
	)

	return ids, nil
}

// parseMessageID extracts the Message-ID from a raw header block.
func parseMessageID(raw []byte) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	if !bytes.HasSuffix(raw, []byte("\r\n\r\n")) && !bytes.HasSuffix(raw, []byte("\n\n")) {
		raw = append(append([]byte{}, raw...), "\r\n\r\n"...)
	}
	h, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return "", false
	}
	id := strings.TrimSpace(h.Get(messageIDField))
	id = strings.TrimSuffix(strings.TrimPrefix(id, "<"), ">")
	id = strings.TrimSpace(id)
	if id == "" {
		return "", false
	}
	return id, true
}

// Append selects folder read-write and stores raw as a new message.
func (c *Client) Append(ctx context.Context, folder string, raw []byte) error {
	done := c.guard(ctx)
	defer done()

	if c.selected != folder {
		if _, err := c.client.Select(folder, nil).Wait(); err != nil {
			return &AppendError{Folder: folder, Err: fmt.Errorf("selecting folder: %w", err)}
		}
		c.selected = folder
	}

	cmd := c.client.Append(folder, int64(len(raw)), &imap.AppendOptions{Time: time.Now()})
	if _, err := cmd.Write(raw); err != nil {
		_ = cmd.Close()
		return &AppendError{Folder: folder, Err: err}
	}
	if err := cmd.Close(); err != nil {
		return &AppendError{Folder: folder, Err: err}
	}
	if _, err := cmd.Wait(); err != nil {
		return &AppendError{Folder: folder, Err: err}
	}
	return nil
}

// EnsureFolder creates folder when the server does not list it.
func (c *Client) EnsureFolder(ctx context.Context, folder string) error {
	done := c.guard(ctx)
	defer done()

	existing, err := c.client.List("", folder, nil).Collect()
	if err != nil {
		return fmt.Errorf("listing folder %s: %w", folder, err)
	}
	if len(existing) > 0 {
		return nil
	}

	if err := c.client.Create(folder, nil).Wait(); err != nil {
		return fmt.Errorf("creating folder %s: %w", folder, err)
	}
	c.logger.Info("created folder", slog.String("folder", folder))
	return nil
}

// Logout ends the session. Errors are logged, not returned.
func (c *Client) Logout() {
	done := c.guard(context.Background())
	defer done()

	if err := c.client.Logout().Wait(); err != nil {
		c.logger.Debug("logout failed", slog.String("error", err.Error()))
	}
	if err := c.client.Close(); err != nil {
		c.logger.Debug("closing connection failed", slog.String("error", err.Error()))
	}
}
