package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rhuss/analyst/pkg/checkpoint"
	"github.com/rhuss/analyst/pkg/conversation"
)

func TestSaveAndLoad(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	msgs := []conversation.Message{conversation.Human("hi"), conversation.Assistant("hello")}
	cp, err := s.Save(ctx, "t1", 0, msgs)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if cp.Version != 1 || cp.ID == "" || cp.ThreadID != "t1" {
		t.Errorf("checkpoint = %+v", cp)
	}

	got, err := s.Load(ctx, "t1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got.Messages) != 2 || got.Messages[1].Text != "hello" {
		t.Errorf("messages = %+v", got.Messages)
	}

	conv := got.Conversation()
	if conv.ThreadID != "t1" || conv.Len() != 2 {
		t.Errorf("conversation = %+v", conv)
	}
}

func TestLoadNotFound(t *testing.T) {
	s := New(0)
	if _, err := s.Load(context.Background(), "missing"); !errors.Is(err, checkpoint.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveStale(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	if _, err := s.Save(ctx, "t1", 0, nil); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := s.Save(ctx, "t1", 0, nil); !errors.Is(err, checkpoint.ErrStale) {
		t.Errorf("err = %v, want ErrStale", err)
	}
	cp, err := s.Save(ctx, "t1", 1, nil)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if cp.Version != 2 {
		t.Errorf("version = %d, want 2", cp.Version)
	}
}

func TestCopiesAreIsolated(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	msgs := []conversation.Message{conversation.Human("original")}
	s.Save(ctx, "t1", 0, msgs)
	msgs[0].Text = "mutated"

	got, _ := s.Load(ctx, "t1")
	got.Messages[0].Text = "also mutated"

	again, _ := s.Load(ctx, "t1")
	if again.Messages[0].Text != "original" {
		t.Errorf("stored message changed to %q", again.Messages[0].Text)
	}
}

func TestLRUEviction(t *testing.T) {
	s := New(2)
	ctx := context.Background()

	s.Save(ctx, "a", 0, nil)
	s.Save(ctx, "b", 0, nil)
	// Touch a so b becomes least recently used.
	s.Load(ctx, "a")
	s.Save(ctx, "c", 0, nil)

	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	if _, err := s.Load(ctx, "b"); !errors.Is(err, checkpoint.ErrNotFound) {
		t.Error("expected b to be evicted")
	}
	if _, err := s.Load(ctx, "a"); err != nil {
		t.Errorf("a evicted unexpectedly: %v", err)
	}
}

func TestLRUEvictionSkipsLockedThread(t *testing.T) {
	s := New(1)
	ctx := context.Background()

	if _, err := s.Save(ctx, "a", 0, []conversation.Message{conversation.Human("one")}); err != nil {
		t.Fatalf("Save a: %v", err)
	}

	release, err := s.Lock(ctx, "a")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	cp, err := s.Load(ctx, "a")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// Another thread saves while a's turn is in flight.
	if _, err := s.Save(ctx, "b", 0, nil); err != nil {
		t.Fatalf("Save b: %v", err)
	}

	next, err := s.Save(ctx, "a", cp.Version, append(cp.Messages, conversation.Assistant("two")))
	if err != nil {
		t.Fatalf("in-flight save failed: %v", err)
	}
	if next.Version != cp.Version+1 {
		t.Errorf("version = %d, want %d", next.Version, cp.Version+1)
	}
	release()

	// Once a is released it is evictable again.
	if _, err := s.Save(ctx, "c", 0, nil); err != nil {
		t.Fatalf("Save c: %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1 once locks are released", s.Len())
	}
	if _, err := s.Load(ctx, "c"); err != nil {
		t.Errorf("c missing: %v", err)
	}
}

func TestLockSerializesThread(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := s.Lock(ctx, "t1")
			if err != nil {
				t.Errorf("Lock: %v", err)
				return
			}
			defer release()

			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxActive)
	}
	if len(s.locks) != 0 {
		t.Errorf("lock table not cleaned up: %d entries", len(s.locks))
	}
}

func TestLockDifferentThreadsIndependent(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	releaseA, err := s.Lock(ctx, "a")
	if err != nil {
		t.Fatalf("Lock a: %v", err)
	}
	defer releaseA()

	done := make(chan struct{})
	go func() {
		release, err := s.Lock(ctx, "b")
		if err == nil {
			release()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked by lock on a")
	}
}

func TestLockContextCancelled(t *testing.T) {
	s := New(0)

	release, _ := s.Lock(context.Background(), "t1")
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := s.Lock(ctx, "t1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	release, _ := s.Lock(ctx, "t1")
	release()
	release()

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	again, err := s.Lock(ctx, "t1")
	if err != nil {
		t.Fatalf("relock failed: %v", err)
	}
	again()
}
