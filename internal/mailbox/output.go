package mailbox

import (
	"context"
	"fmt"
	"sync"
)

// Session is the part of Client that Output needs.
type Session interface {
	ListMessageIDs(ctx context.Context, folder string) (map[string]struct{}, error)
	Append(ctx context.Context, folder string, raw []byte) error
}

// Output is the sync engine's view of one mailbox folder. The set of
// existing ids is captured once and never modified, so Contains needs no
// locking. Append holds the session lock for exactly one command.
type Output struct {
	mu      sync.Mutex
	session Session
	folder  string
	ids     map[string]struct{}
}

// NewOutput lists the Message-IDs present in folder and wraps session.
func NewOutput(ctx context.Context, session Session, folder string) (*Output, error) {
	ids, err := session.ListMessageIDs(ctx, folder)
	if err != nil {
		return nil, fmt.Errorf("listing existing messages: %w", err)
	}
	if ids == nil {
		ids = make(map[string]struct{})
	}
	return &Output{
		session: session,
		folder:  folder,
		ids:     ids,
	}, nil
}

// Contains reports whether a message with identity id existed when the
// Output was created.
func (o *Output) Contains(id string) bool {
	_, ok := o.ids[id]
	return ok
}

// Append stores raw in the folder.
func (o *Output) Append(ctx context.Context, raw []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.Append(ctx, o.folder, raw)
}

// Len returns the number of existing ids.
func (o *Output) Len() int {
	return len(o.ids)
}

// Folder returns the target folder name.
func (o *Output) Folder() string {
	return o.folder
}
