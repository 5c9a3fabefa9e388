// Package checkpoint defines the conversation state store: per-thread
// snapshots of the message history plus per-thread mutual exclusion, so
// that turns on the same thread never interleave.
//
// Store adapters (memory) implement the Store interface defined here.
package checkpoint

import (
	"context"
	"errors"
	"time"

	"github.com/rhuss/analyst/pkg/conversation"
)

// Sentinel errors for checkpoint operations.
var (
	// ErrNotFound is returned when a thread has no checkpoint.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStale is returned when a save is based on an outdated version.
	ErrStale = errors.New("checkpoint version is stale")
)

// Checkpoint is a snapshot of one thread's history after a completed turn.
type Checkpoint struct {
	// ID uniquely identifies this snapshot.
	ID string `json:"id"`

	ThreadID string `json:"thread_id"`

	// Version counts the turns saved on the thread, starting at 1.
	Version int `json:"version"`

	Messages []conversation.Message `json:"messages"`

	CreatedAt time.Time `json:"created_at"`
}

// Conversation returns the checkpoint's history as a conversation.
func (c *Checkpoint) Conversation() *conversation.Conversation {
	conv := conversation.New(c.ThreadID)
	for _, m := range c.Messages {
		conv.Append(m.Clone())
	}
	return conv
}

// Store holds checkpoints keyed by thread id.
type Store interface {
	// Lock acquires exclusive access to a thread. It blocks until the
	// thread is free or ctx is done. The returned release function must be
	// called exactly once the turn finishes; extra calls are no-ops.
	Lock(ctx context.Context, threadID string) (release func(), err error)

	// Load returns the latest checkpoint of a thread, or ErrNotFound.
	Load(ctx context.Context, threadID string) (*Checkpoint, error)

	// Save stores a new checkpoint holding the full history. prevVersion is
	// the version the history was loaded from (0 for a new thread); a
	// mismatch returns ErrStale.
	Save(ctx context.Context, threadID string, prevVersion int, messages []conversation.Message) (*Checkpoint, error)

	// Close releases store resources.
	Close() error
}
