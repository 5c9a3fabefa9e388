// Package memory provides an in-memory checkpoint.Store. Checkpoints are
// lost when the process restarts. Optional LRU eviction limits the number
// of threads kept.
package memory

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rhuss/analyst/pkg/checkpoint"
	"github.com/rhuss/analyst/pkg/conversation"
	"github.com/rhuss/analyst/pkg/debug"
	"github.com/rhuss/analyst/pkg/observability"
)

// Ensure Store implements checkpoint.Store at compile time.
var _ checkpoint.Store = (*Store)(nil)

type entry struct {
	cp      *checkpoint.Checkpoint
	lruElem *list.Element
}

// threadLock is a one-slot semaphore. refs counts holders and waiters so
// the lock can be dropped from the table once nobody references it.
type threadLock struct {
	sem  chan struct{}
	refs int
}

// Store is an in-memory checkpoint store with optional LRU eviction.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	lruList *list.List // front = most recently used
	maxSize int        // 0 = unlimited

	locksMu sync.Mutex
	locks   map[string]*threadLock
}

// New creates a store. If maxThreads is 0 the store grows without limit,
// otherwise the least recently used thread is evicted at capacity.
func New(maxThreads int) *Store {
	return &Store{
		entries: make(map[string]*entry),
		lruList: list.New(),
		maxSize: maxThreads,
		locks:   make(map[string]*threadLock),
	}
}

// Lock acquires exclusive access to a thread.
func (s *Store) Lock(ctx context.Context, threadID string) (func(), error) {
	s.locksMu.Lock()
	l, ok := s.locks[threadID]
	if !ok {
		l = &threadLock{sem: make(chan struct{}, 1)}
		s.locks[threadID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		s.unref(threadID, l)
		return nil, fmt.Errorf("lock thread %q: %w", threadID, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.sem
			s.unref(threadID, l)
		})
	}, nil
}

func (s *Store) unref(threadID string, l *threadLock) {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, threadID)
	}
}

// Load returns a copy of the latest checkpoint of a thread.
func (s *Store) Load(_ context.Context, threadID string) (*checkpoint.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[threadID]
	if !ok {
		return nil, checkpoint.ErrNotFound
	}
	s.lruList.MoveToFront(e.lruElem)
	return clone(e.cp), nil
}

// Save stores a new checkpoint for the thread.
func (s *Store) Save(_ context.Context, threadID string, prevVersion int, messages []conversation.Message) (*checkpoint.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := 0
	e, ok := s.entries[threadID]
	if ok {
		current = e.cp.Version
	}
	if current != prevVersion {
		return nil, fmt.Errorf("thread %q at version %d, saving from %d: %w", threadID, current, prevVersion, checkpoint.ErrStale)
	}

	cp := &checkpoint.Checkpoint{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		Version:   current + 1,
		Messages:  cloneMessages(messages),
		CreatedAt: time.Now().UTC(),
	}

	if ok {
		e.cp = cp
		s.lruList.MoveToFront(e.lruElem)
	} else {
		for s.maxSize > 0 && len(s.entries) >= s.maxSize {
			if !s.evictOldest() {
				break
			}
		}
		s.entries[threadID] = &entry{cp: cp, lruElem: s.lruList.PushFront(threadID)}
	}
	observability.CheckpointThreads.Set(float64(len(s.entries)))
	debug.Log(debug.Checkpoint, "checkpoint saved",
		"thread_id", threadID, "version", cp.Version, "messages", len(cp.Messages))

	return clone(cp), nil
}

// Len returns the number of threads held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// evictOldest removes the least recently used thread that nobody holds
// or waits on. A locked thread may be mid-turn with a loaded version, so
// it is skipped; when every thread is locked the store stays over
// capacity until a later save. It reports whether a thread was removed.
// Must be called with s.mu held.
func (s *Store) evictOldest() bool {
	for el := s.lruList.Back(); el != nil; el = el.Prev() {
		threadID := el.Value.(string)
		if s.locked(threadID) {
			continue
		}
		s.lruList.Remove(el)
		delete(s.entries, threadID)
		debug.Log(debug.Checkpoint, "thread evicted", "thread_id", threadID)
		return true
	}
	return false
}

func (s *Store) locked(threadID string) bool {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	_, ok := s.locks[threadID]
	return ok
}

func clone(cp *checkpoint.Checkpoint) *checkpoint.Checkpoint {
	c := *cp
	c.Messages = cloneMessages(cp.Messages)
	return &c
}

func cloneMessages(msgs []conversation.Message) []conversation.Message {
	out := make([]conversation.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
