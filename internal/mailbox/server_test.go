package mailbox

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"log"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapserver"
	"github.com/emersion/go-imap/v2/imapserver/imapmemserver"

	"github.com/nhle/feed2imap/internal/logger"
	"github.com/nhle/feed2imap/internal/model"
	"github.com/nhle/feed2imap/internal/transform"
)

const (
	testUser     = "reader"
	testPassword = "hunter2"
)

// testServer is an in-memory IMAP server listening on loopback.
type testServer struct {
	user      *imapmemserver.User
	host      string
	port      int
	clientTLS *tls.Config
}

// testCertificate borrows the self-signed loopback certificate of an
// httptest server.
func testCertificate(t *testing.T) (tls.Certificate, *x509.CertPool) {
	t.Helper()
	srv := httptest.NewUnstartedServer(nil)
	srv.StartTLS()
	defer srv.Close()

	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())
	return srv.TLS.Certificates[0], pool
}

// newTestServer starts a server with an INBOX for testUser. With implicit
// set the listener speaks TLS from the first byte, otherwise the server
// offers STARTTLS.
func newTestServer(t *testing.T, implicit bool) *testServer {
	t.Helper()

	cert, pool := testCertificate(t)
	serverTLS := &tls.Config{Certificates: []tls.Certificate{cert}}

	mem := imapmemserver.New()
	user := imapmemserver.NewUser(testUser, testPassword)
	if err := user.Create("INBOX", nil); err != nil {
		t.Fatalf("creating INBOX: %v", err)
	}
	mem.AddUser(user)

	opts := &imapserver.Options{
		NewSession: func(*imapserver.Conn) (imapserver.Session, *imapserver.GreetingData, error) {
			return mem.NewSession(), nil, nil
		},
		Caps: imap.CapSet{
			imap.CapIMAP4rev1: {},
			imap.CapIMAP4rev2: {},
		},
		Logger: log.New(io.Discard, "", 0),
	}
	if !implicit {
		opts.TLSConfig = serverTLS
	}
	server := imapserver.New(opts)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if implicit {
		ln = tls.NewListener(ln, serverTLS)
	}
	go func() { _ = server.Serve(ln) }()
	t.Cleanup(func() { _ = server.Close() })

	addr := ln.Addr().(*net.TCPAddr)
	return &testServer{
		user: user,
		host: "127.0.0.1",
		port: addr.Port,
		clientTLS: &tls.Config{
			RootCAs:    pool,
			ServerName: "127.0.0.1",
		},
	}
}

func (s *testServer) options(implicit bool) Options {
	return Options{
		Host:      s.host,
		Port:      s.port,
		Username:  testUser,
		Password:  testPassword,
		TLS:       implicit,
		Timeout:   5 * time.Second,
		TLSConfig: s.clientTLS,
	}
}

// seed stores raw in folder directly on the server.
func (s *testServer) seed(t *testing.T, folder, raw string) {
	t.Helper()
	if _, err := s.user.Append(folder, bytes.NewReader([]byte(raw)), &imap.AppendOptions{}); err != nil {
		t.Fatalf("seeding %s: %v", folder, err)
	}
}

func connect(t *testing.T, opts Options) *Client {
	t.Helper()
	c, err := Connect(context.Background(), opts, logger.Discard())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(c.Logout)
	return c
}

func TestClient_ListMessageIDs(t *testing.T) {
	srv := newTestServer(t, true)
	srv.seed(t, "INBOX", "Message-ID: <known-id>\r\nSubject: one\r\n\r\nbody\r\n")
	srv.seed(t, "INBOX", "Subject: no id here\r\n\r\nbody\r\n")
	srv.seed(t, "INBOX", "Message-ID: <>\r\nSubject: empty id\r\n\r\nbody\r\n")

	c := connect(t, srv.options(true))

	ids, err := c.ListMessageIDs(context.Background(), "INBOX")
	if err != nil {
		t.Fatalf("ListMessageIDs: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("got %d ids (%v), want only the usable one", len(ids), ids)
	}
	if _, ok := ids["known-id"]; !ok {
		t.Errorf("ids = %v, want known-id", ids)
	}
}

func TestClient_ListMessageIDs_UnknownFolder(t *testing.T) {
	srv := newTestServer(t, true)
	c := connect(t, srv.options(true))

	if _, err := c.ListMessageIDs(context.Background(), "Missing"); err == nil {
		t.Fatal("listing a missing folder should fail")
	}
}

func TestClient_AppendRoundTrip(t *testing.T) {
	srv := newTestServer(t, true)
	c := connect(t, srv.options(true))
	ctx := context.Background()

	if err := c.EnsureFolder(ctx, "Feeds"); err != nil {
		t.Fatalf("EnsureFolder: %v", err)
	}
	if err := c.EnsureFolder(ctx, "Feeds"); err != nil {
		t.Fatalf("EnsureFolder on an existing folder: %v", err)
	}

	out, err := NewOutput(ctx, c, "Feeds")
	if err != nil {
		t.Fatalf("NewOutput: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("new folder has %d ids, want 0", out.Len())
	}

	feed := &model.Feed{
		ID:      "https://blog.example.com/",
		Title:   "Example Blog",
		URL:     "https://blog.example.com/feed.xml",
		BaseURL: "https://blog.example.com/",
		Links:   []model.Link{{Href: "https://blog.example.com/"}},
	}
	entry := &model.Entry{
		ID:      "post-1",
		Title:   "Hello",
		Content: `<p>Hi <img src="a.png"></p>`,
		Links:   []model.Link{{Href: "https://blog.example.com/post-1"}},
	}
	composer := transform.NewComposer(transform.ComposerOptions{
		Name:  "Reader",
		Email: "reader@example.com",
	}, logger.Discard())
	raw, err := composer.Compose(feed, entry)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	if err := out.Append(ctx, raw); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if out.Contains(transform.MessageID(feed, entry)) {
		t.Error("Output snapshot must not change after Append")
	}

	ids, err := c.ListMessageIDs(ctx, "Feeds")
	if err != nil {
		t.Fatalf("ListMessageIDs after append: %v", err)
	}
	if _, ok := ids[transform.MessageID(feed, entry)]; !ok || len(ids) != 1 {
		t.Errorf("ids = %v, want exactly %s", ids, transform.MessageID(feed, entry))
	}

	// Listing switched the session to read-only; the next append must
	// select the folder again.
	if err := c.Append(ctx, "Feeds", raw); err != nil {
		t.Fatalf("second Append: %v", err)
	}
	data, err := srv.user.Status("Feeds", &imap.StatusOptions{NumMessages: true})
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if data.NumMessages == nil || *data.NumMessages != 2 {
		t.Errorf("Feeds holds %v messages, want 2", data.NumMessages)
	}
}

func TestClient_AppendMissingFolder(t *testing.T) {
	srv := newTestServer(t, true)
	c := connect(t, srv.options(true))

	err := c.Append(context.Background(), "Missing", []byte("Subject: x\r\n\r\nbody\r\n"))
	if !IsAppendError(err) {
		t.Fatalf("error = %v, want AppendError", err)
	}
}

func TestConnect_WrongPassword(t *testing.T) {
	srv := newTestServer(t, true)
	opts := srv.options(true)
	opts.Password = "wrong"

	_, err := Connect(context.Background(), opts, logger.Discard())
	if !IsAuthError(err) {
		t.Fatalf("error = %v, want AuthError", err)
	}
}

func TestConnect_StartTLS(t *testing.T) {
	srv := newTestServer(t, false)
	srv.seed(t, "INBOX", "Message-ID: <over-starttls>\r\n\r\nbody\r\n")

	c := connect(t, srv.options(false))
	ids, err := c.ListMessageIDs(context.Background(), "INBOX")
	if err != nil {
		t.Fatalf("ListMessageIDs: %v", err)
	}
	if _, ok := ids["over-starttls"]; !ok {
		t.Errorf("ids = %v, want over-starttls", ids)
	}
}

func TestConnect_CommandTimeout(t *testing.T) {
	cert, pool := testCertificate(t)
	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{Certificates: []tls.Certificate{cert}})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	// Greets, then never answers a command.
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = io.WriteString(conn, "* OK [CAPABILITY IMAP4rev1] ready\r\n")
		_, _ = io.Copy(io.Discard, conn)
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	start := time.Now()
	_, err = Connect(context.Background(), Options{
		Host:      "127.0.0.1",
		Port:      port,
		Username:  testUser,
		Password:  testPassword,
		TLS:       true,
		Timeout:   300 * time.Millisecond,
		TLSConfig: &tls.Config{RootCAs: pool, ServerName: "127.0.0.1"},
	}, logger.Discard())
	if err == nil {
		t.Fatal("Connect against a silent server should fail")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Connect took %v, want the timeout to cut it short", elapsed)
	}
}
