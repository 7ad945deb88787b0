package mailbox

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSession struct {
	listFn   func(ctx context.Context, folder string) (map[string]struct{}, error)
	appendFn func(ctx context.Context, folder string, raw []byte) error
}

func (f *fakeSession) ListMessageIDs(ctx context.Context, folder string) (map[string]struct{}, error) {
	return f.listFn(ctx, folder)
}

func (f *fakeSession) Append(ctx context.Context, folder string, raw []byte) error {
	return f.appendFn(ctx, folder, raw)
}

func TestNewOutput_SnapshotsIDs(t *testing.T) {
	var listedFolder string
	session := &fakeSession{
		listFn: func(_ context.Context, folder string) (map[string]struct{}, error) {
			listedFolder = folder
			return map[string]struct{}{"abc": {}, "def": {}}, nil
		},
	}

	out, err := NewOutput(context.Background(), session, "Feeds")
	if err != nil {
		t.Fatalf("NewOutput: %v", err)
	}
	if listedFolder != "Feeds" {
		t.Errorf("listed folder %q, want %q", listedFolder, "Feeds")
	}
	if !out.Contains("abc") || !out.Contains("def") {
		t.Error("expected listed ids to be contained")
	}
	if out.Contains("xyz") {
		t.Error("unexpected id reported as contained")
	}
	if out.Len() != 2 {
		t.Errorf("Len = %d, want 2", out.Len())
	}
}

func TestNewOutput_ListError(t *testing.T) {
	listErr := errors.New("connection reset")
	session := &fakeSession{
		listFn: func(context.Context, string) (map[string]struct{}, error) {
			return nil, listErr
		},
	}
	if _, err := NewOutput(context.Background(), session, "INBOX"); !errors.Is(err, listErr) {
		t.Fatalf("error = %v, want wrapped list error", err)
	}
}

func TestOutput_AppendForwardsToFolder(t *testing.T) {
	var gotFolder string
	var gotRaw []byte
	session := &fakeSession{
		listFn: func(context.Context, string) (map[string]struct{}, error) { return nil, nil },
		appendFn: func(_ context.Context, folder string, raw []byte) error {
			gotFolder = folder
			gotRaw = raw
			return nil
		},
	}
	out, err := NewOutput(context.Background(), session, "Feeds")
	if err != nil {
		t.Fatalf("NewOutput: %v", err)
	}
	if err := out.Append(context.Background(), []byte("raw message")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if gotFolder != "Feeds" || string(gotRaw) != "raw message" {
		t.Errorf("append got (%q, %q)", gotFolder, gotRaw)
	}
	if out.Contains("anything") {
		t.Error("appending must not change the existing id snapshot")
	}
}

func TestOutput_AppendIsSerialized(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	session := &fakeSession{
		listFn: func(context.Context, string) (map[string]struct{}, error) { return nil, nil },
		appendFn: func(context.Context, string, []byte) error {
			n := inFlight.Add(1)
			for {
				m := maxInFlight.Load()
				if n <= m || maxInFlight.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			inFlight.Add(-1)
			return nil
		},
	}
	out, err := NewOutput(context.Background(), session, "INBOX")
	if err != nil {
		t.Fatalf("NewOutput: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := out.Append(context.Background(), []byte("m")); err != nil {
				t.Errorf("Append: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := maxInFlight.Load(); got != 1 {
		t.Errorf("max concurrent appends = %d, want 1", got)
	}
}
