package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type fakeHoldStore struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeHoldStore) ReleaseExpired(ctx context.Context, ttl time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return 2, f.err
}

func (f *fakeHoldStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestReaper_SweepsUntilCancelled(t *testing.T) {
	store := &fakeHoldStore{}
	r := NewReaper(slog.New(slog.NewTextHandler(io.Discard, nil)), store, time.Minute, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	deadline := time.After(time.Second)
	for store.count() < 3 {
		select {
		case <-deadline:
			t.Fatalf("reaper swept %d times, want at least 3", store.count())
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v, want nil on cancel", err)
		}
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop after cancel")
	}
}

func TestReaper_KeepsRunningAfterStoreError(t *testing.T) {
	store := &fakeHoldStore{err: errors.New("db down")}
	r := NewReaper(slog.New(slog.NewTextHandler(io.Discard, nil)), store, time.Minute, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	deadline := time.After(time.Second)
	for store.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("reaper stopped retrying after an error (%d sweeps)", store.count())
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done
}
