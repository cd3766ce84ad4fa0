package assetcache

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

type fakeClock struct{ t atomic.Int64 }

func (f *fakeClock) Now() time.Time { return time.Unix(0, f.t.Load()) }
func (f *fakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- f.Now().Add(d)
	return ch
}
func (f *fakeClock) add(d time.Duration) { f.t.Add(int64(d)) }

type counterKey struct {
	BaseKey[*int]
	name  string
	calls *int64
}

func (k counterKey) String() string   { return "counter:" + k.name }
func (k counterKey) LongName() string { return k.String() }
func (k counterKey) Load(ctx context.Context, cache *AssetCache) *int {
	atomic.AddInt64(k.calls, 1)
	time.Sleep(5 * time.Millisecond)
	v := 1
	return &v
}
func (k counterKey) Asset() Asset[*int] { return PointerAsset[int]{} }

// Concurrent Get calls for the same key trigger Load at most once;
// everyone observes the same result.
func TestGet_Singleflight(t *testing.T) {
	var calls int64
	cache := New(Options{})
	t.Cleanup(func() { _ = cache.Close() })

	const n = 64
	var g errgroup.Group
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for i := 0; i < n; i++ {
		g.Go(func() error {
			v, err := Get(ctx, cache, counterKey{name: "k", calls: &calls})
			if err != nil {
				return err
			}
			if *v != 1 {
				return fmt.Errorf("got %d", *v)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("Load must run exactly once, got %d", got)
	}

	if v, err := Get(context.Background(), cache, counterKey{name: "k", calls: &calls}); err != nil || *v != 1 {
		t.Fatalf("second Get failed: v=%v err=%v", v, err)
	}
}

type blockingKey struct {
	BaseKey[*int]
	name     string
	started  chan struct{}
	canceled chan struct{}
}

func (k blockingKey) String() string   { return "blocking:" + k.name }
func (k blockingKey) LongName() string { return k.String() }
func (k blockingKey) Load(ctx context.Context, cache *AssetCache) *int {
	close(k.started)
	<-ctx.Done()
	close(k.canceled)
	v := 1
	return &v
}
func (k blockingKey) Asset() Asset[*int] { return PointerAsset[int]{} }

// StopLoading (the default DropPolicy): once the last waiter's context
// is cancelled, the in-flight load's context is cancelled too and the
// slot transitions to Aborted.
func TestGet_StopLoading_AbortsOnLastWaiterDrop(t *testing.T) {
	cache := New(Options{})
	t.Cleanup(func() { _ = cache.Close() })

	key := blockingKey{name: "x", started: make(chan struct{}), canceled: make(chan struct{})}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_, _ = Get(ctx, cache, key)
		close(done)
	}()

	<-key.started
	cancel()
	<-done

	select {
	case <-key.canceled:
	case <-time.After(time.Second):
		t.Fatal("load's context was never cancelled")
	}

	state, ok := ContentStateOf(cache, key)
	if !ok || state != StateAborted {
		t.Fatalf("want Aborted, got state=%v ok=%v", state, ok)
	}
}

type keepLoadingKey struct {
	BaseKey[*int]
	name     string
	started  chan struct{}
	canceled chan struct{}
}

func (k keepLoadingKey) String() string        { return "keepLoading:" + k.name }
func (k keepLoadingKey) LongName() string       { return k.String() }
func (k keepLoadingKey) DropPolicy() DropPolicy { return KeepLoading }
func (k keepLoadingKey) Load(ctx context.Context, cache *AssetCache) *int {
	close(k.started)
	select {
	case <-ctx.Done():
		close(k.canceled)
	case <-time.After(50 * time.Millisecond):
	}
	v := 1
	return &v
}
func (k keepLoadingKey) Asset() Asset[*int] { return PointerAsset[int]{} }

// KeepLoading: the load runs to completion even after the caller's own
// context is cancelled.
func TestGet_KeepLoading_SurvivesCallerCancel(t *testing.T) {
	cache := New(Options{})
	t.Cleanup(func() { _ = cache.Close() })

	key := keepLoadingKey{name: "x", started: make(chan struct{}), canceled: make(chan struct{})}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-key.started
		cancel()
	}()
	if _, err := Get(ctx, cache, key); err == nil {
		t.Fatal("want ctx.Err() once the caller's own context is cancelled")
	}

	select {
	case <-key.canceled:
		t.Fatal("load's internal context must not be cancelled under KeepLoading")
	case <-time.After(100 * time.Millisecond):
	}

	v, ok := IsLoaded(cache, key)
	if !ok || *v != 1 {
		t.Fatalf("want the detached load to have completed, got v=%v ok=%v", v, ok)
	}
}

type onceLoadKey struct {
	BaseKey[*int]
	name string
}

func (k onceLoadKey) String() string   { return "once:" + k.name }
func (k onceLoadKey) LongName() string { return k.String() }
func (k onceLoadKey) Load(ctx context.Context, cache *AssetCache) *int {
	v := 42
	return &v
}
func (k onceLoadKey) Asset() Asset[*int] { return PointerAsset[int]{} }

// IsLoaded never triggers a load.
func TestIsLoaded_NeverLoads(t *testing.T) {
	cache := New(Options{})
	t.Cleanup(func() { _ = cache.Close() })

	if _, ok := IsLoaded(cache, onceLoadKey{name: "never-requested"}); ok {
		t.Fatal("IsLoaded must not report a value for a key never Get/Peek'd")
	}
	if _, ok := ContentStateOf(cache, onceLoadKey{name: "never-requested"}); ok {
		t.Fatal("ContentStateOf must report no state for a never-touched key")
	}
}

type intKeyImpl struct {
	BaseKey[*int]
	ready chan struct{}
}

func (k intKeyImpl) String() string   { return "mismatched" }
func (k intKeyImpl) LongName() string { return "mismatched" }
func (k intKeyImpl) Load(ctx context.Context, c *AssetCache) *int {
	<-k.ready
	v := 1
	return &v
}
func (intKeyImpl) Asset() Asset[*int] { return PointerAsset[int]{} }

type stringKeyImpl struct{ BaseKey[*string] }

func (stringKeyImpl) String() string   { return "mismatched" }
func (stringKeyImpl) LongName() string { return "mismatched" }
func (stringKeyImpl) Load(ctx context.Context, c *AssetCache) *string {
	v := "x"
	return &v
}
func (stringKeyImpl) Asset() Asset[*string] { return PointerAsset[string]{} }

// Joining an in-flight load under a different T than the one it was
// started with panics rather than silently returning the wrong type;
// this can only happen if two AsyncAssetKey implementations disagree
// about what a shared canonical String() means.
func TestJoinLoad_TypeMismatchPanics(t *testing.T) {
	cache := New(Options{})
	t.Cleanup(func() { _ = cache.Close() })

	ready := make(chan struct{})
	ik := intKeyImpl{ready: ready}

	started := make(chan struct{})
	go func() {
		close(started)
		_, _ = Get(context.Background(), cache, ik)
	}()
	<-started
	time.Sleep(10 * time.Millisecond) // let startLoad install the Loading slot

	panicked := make(chan any, 1)
	joinDone := make(chan struct{})
	go func() {
		defer close(joinDone)
		defer func() { panicked <- recover() }()
		_, _ = Get(context.Background(), cache, stringKeyImpl{})
	}()

	close(ready) // let the int load complete
	<-joinDone

	if p := <-panicked; p == nil {
		t.Fatal("want a panic when joining a load under a mismatched type")
	}
}

// HitStats counts a slot-found-and-alive lookup as a hit and everything
// else (first load, a since-Loading slot, etc.) as a miss.
func TestHitStats_CountsHitsAndMisses(t *testing.T) {
	cache := New(Options{})
	t.Cleanup(func() { _ = cache.Close() })

	key := onceLoadKey{name: "stats"}
	if _, err := Get(context.Background(), cache, key); err != nil {
		t.Fatalf("first Get: %v", err)
	}
	if _, err := Get(context.Background(), cache, key); err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if _, err := Get(context.Background(), cache, key); err != nil {
		t.Fatalf("third Get: %v", err)
	}

	hits, misses := cache.HitStats()
	if hits != 2 {
		t.Fatalf("want 2 hits (second and third Get), got %d", hits)
	}
	if misses != 1 {
		t.Fatalf("want 1 miss (first Get, no slot yet), got %d", misses)
	}
}

// Close tears down the reaper and every outstanding KeepLoading goroutine.
func TestClose_StopsReaper(t *testing.T) {
	clk := &fakeClock{}
	cache := New(Options{Clock: clk, ReaperInterval: time.Millisecond})
	if err := cache.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Fatalf("second Close must be a no-op, got: %v", err)
	}
}
