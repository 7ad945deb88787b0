package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nhle/feed2imap/internal/model"
	gosync "github.com/nhle/feed2imap/internal/sync"
	"github.com/nhle/feed2imap/tests/testutil"
)

// testApp returns an App whose config lives in a temp dir, plus its output.
func testApp(t *testing.T, cfg *model.AppConfig) (*App, string, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if cfg != nil {
		if cfg.HistoryDB == model.DefaultAppConfig().HistoryDB {
			cfg.HistoryDB = filepath.Join(dir, "history.db")
		}
		if err := model.SaveConfig(path, cfg); err != nil {
			t.Fatalf("SaveConfig: %v", err)
		}
	}
	var stdout bytes.Buffer
	return New(&stdout, &bytes.Buffer{}), path, &stdout
}

func execute(t *testing.T, a *App, args ...string) error {
	t.Helper()
	return a.Execute(context.Background(), args)
}

func TestDefaultConfigCommand(t *testing.T) {
	a, path, out := testApp(t, nil)
	if err := execute(t, a, "--config", path, "default-config"); err != nil {
		t.Fatalf("default-config: %v", err)
	}
	if !strings.Contains(out.String(), "port: 993") {
		t.Errorf("output:\n%s", out.String())
	}
}

func TestAddRemoveCommands(t *testing.T) {
	a, path, out := testApp(t, model.DefaultAppConfig())

	if err := execute(t, a, "--config", path, "add", "--no-check", "https://blog.example.com/feed"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(out.String(), "added: https://blog.example.com/feed") {
		t.Errorf("add output = %q", out.String())
	}
	cfg, err := model.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.HasFeed("https://blog.example.com/feed") {
		t.Fatalf("feed not saved: %+v", cfg.Feeds)
	}

	if err := execute(t, a, "--config", path, "add", "--no-check", "https://blog.example.com/feed"); err == nil {
		t.Error("adding a duplicate feed should fail")
	}

	if err := execute(t, a, "--config", path, "remove", "https://blog.example.com/feed"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	cfg, err = model.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.Feeds) != 0 {
		t.Errorf("feeds after remove = %+v", cfg.Feeds)
	}

	if err := execute(t, a, "--config", path, "remove", "https://blog.example.com/feed"); err == nil {
		t.Error("removing an unknown feed should fail")
	}
}

func TestListCommand_ShowsLastResult(t *testing.T) {
	cfg := model.DefaultAppConfig()
	cfg.Feeds = []model.FeedConfig{{URL: "https://a.example/feed"}, {URL: "https://b.example/feed"}}
	a, path, out := testApp(t, cfg)

	s, err := openHistory(cfg.HistoryDB)
	if err != nil {
		t.Fatalf("openHistory: %v", err)
	}
	testutil.RecordRun(t, s, time.Now(),
		gosync.Outcome{URL: "https://a.example/feed", Title: "Feed A", Appended: 1},
	)
	s.Close()

	if err := execute(t, a, "--config", path, "list"); err != nil {
		t.Fatalf("list: %v", err)
	}
	got := out.String()
	for _, want := range []string{"https://a.example/feed", "Feed A", "ok", "https://b.example/feed", "never"} {
		if !strings.Contains(got, want) {
			t.Errorf("list output missing %q:\n%s", want, got)
		}
	}
}

func TestHistoryCommand(t *testing.T) {
	cfg := model.DefaultAppConfig()
	a, path, out := testApp(t, cfg)

	if err := execute(t, a, "--config", path, "history"); err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out.String(), "No runs recorded yet.") {
		t.Errorf("history output = %q", out.String())
	}
	if _, err := os.Stat(cfg.HistoryDB); !errors.Is(err, os.ErrNotExist) {
		t.Error("history must not create the database")
	}

	s, err := openHistory(cfg.HistoryDB)
	if err != nil {
		t.Fatalf("openHistory: %v", err)
	}
	runID := testutil.RecordRun(t, s, time.Now(),
		gosync.Outcome{URL: "https://a.example/feed", Appended: 3},
		gosync.Outcome{URL: "https://b.example/feed", Err: errors.New("unexpected status 500")},
	)
	s.Close()

	out.Reset()
	if err := execute(t, a, "--config", path, "history"); err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out.String(), runID) {
		t.Errorf("history output missing run id:\n%s", out.String())
	}

	out.Reset()
	if err := execute(t, a, "--config", path, "history", "--run", runID); err != nil {
		t.Fatalf("history --run: %v", err)
	}
	if !strings.Contains(out.String(), "unexpected status 500") {
		t.Errorf("run results missing error:\n%s", out.String())
	}
}

func TestSyncCommand_Validation(t *testing.T) {
	a, path, _ := testApp(t, model.DefaultAppConfig())

	err := execute(t, a, "--config", path, "sync")
	if err == nil || !strings.Contains(err.Error(), "imap.host") {
		t.Errorf("sync with empty config error = %v, want missing imap.host", err)
	}

	if err := execute(t, a, "--config", path, "sync", "--summary", "xml"); err == nil {
		t.Error("unknown summary format should fail")
	}
}

func TestSyncCommand_NoFeeds(t *testing.T) {
	cfg := model.DefaultAppConfig()
	cfg.IMAP.Host = "imap.invalid"
	cfg.IMAP.Username = "me"
	cfg.IMAP.Email = "me@example.com"
	a, path, _ := testApp(t, cfg)

	if err := execute(t, a, "--config", path, "sync"); err != nil {
		t.Errorf("sync without feeds should be a no-op, got %v", err)
	}
}

func TestInitForm_Apply(t *testing.T) {
	cfg := model.DefaultAppConfig()
	f := newInitForm(cfg)
	f.host = " imap.example.com "
	f.port = "143"
	f.tls = false
	f.username = "me@example.com"
	f.password = "secret"
	f.folder = "Feeds"
	f.email = "me@example.com"

	if err := f.apply(cfg); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.IMAP.Host != "imap.example.com" || cfg.IMAP.Port != 143 || cfg.IMAP.TLS {
		t.Errorf("imap = %+v", cfg.IMAP)
	}
	if cfg.IMAP.Password != "" {
		t.Error("password must not be written to the config")
	}
	if cfg.IMAP.PasswordRef != "keyring:imap-me@example.com" {
		t.Errorf("password_ref = %q", cfg.IMAP.PasswordRef)
	}

	f.port = "abc"
	if err := f.apply(cfg); err == nil {
		t.Error("non-numeric port should fail")
	}
}

func TestValidators(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(string) error
		input   string
		wantErr bool
	}{
		{"required ok", validateRequired("Host"), "x", false},
		{"required blank", validateRequired("Host"), "  ", true},
		{"port ok", validatePort, "993", false},
		{"port letters", validatePort, "99a", true},
		{"port range", validatePort, "70000", true},
		{"email ok", validateEmail, "me@example.com", false},
		{"email no at", validateEmail, "me.example.com", true},
		{"email no domain", validateEmail, "me@", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(tt.input); (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
