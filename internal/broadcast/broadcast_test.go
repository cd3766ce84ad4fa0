package broadcast

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

// Many joiners, one driver execution, everyone observes the same result.
func TestFuture_CoalescesJoiners(t *testing.T) {
	t.Parallel()

	var calls int64
	f := New(context.Background(), func(ctx context.Context) (any, error) {
		atomic.AddInt64(&calls, 1)
		time.Sleep(5 * time.Millisecond)
		return "v", nil
	}, nil, nil)

	const n = 32
	results := make(chan any, n)
	for i := 0; i < n; i++ {
		go func() {
			leave := f.Join()
			defer leave()
			v, _, ok := f.Wait(context.Background())
			if !ok {
				results <- nil
				return
			}
			results <- v
		}()
	}
	for i := 0; i < n; i++ {
		if v := <-results; v != "v" {
			t.Fatalf("joiner got %v, want v", v)
		}
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("fn ran %d times, want 1", got)
	}
}

// When every joiner leaves before fn observes cancellation, onAbort fires
// and fn's eventual result is discarded.
func TestFuture_AbortsWhenIdle(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	var aborted atomic.Bool
	f := New(context.Background(), func(ctx context.Context) (any, error) {
		close(started)
		<-ctx.Done()
		return "late", nil
	}, nil, func() {
		aborted.Store(true)
	})

	leave := f.Join()
	<-started
	leave()

	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("future never completed after last waiter left")
	}
	if !aborted.Load() {
		t.Fatal("expected onAbort to have fired")
	}
}

// A KeepAlive pin survives ordinary waiters leaving.
func TestFuture_KeepAlivePinsAgainstIdle(t *testing.T) {
	t.Parallel()

	completed := make(chan struct{})
	f := New(context.Background(), func(ctx context.Context) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(30 * time.Millisecond):
			return "done", nil
		}
	}, func(val any, err error) { close(completed) }, func() {
		t.Error("onAbort should not fire while KeepAlive pin is held")
	})

	releasePin := f.KeepAlive()
	defer releasePin()

	leave := f.Join()
	leave() // ordinary waiter leaves immediately; pin should keep it alive

	select {
	case <-completed:
	case <-time.After(time.Second):
		t.Fatal("future never completed while pinned")
	}
}
