package assetcache

import (
	"context"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/ivbrykalov/assetcache/internal/broadcast"
	"github.com/sirupsen/logrus"
)

// AssetCache is the handle every producer and consumer interacts
// through. Get, Peek, IsLoaded, and ContentStateOf are package-level
// generic functions rather than methods: a single *AssetCache stores
// heterogeneous asset types keyed by AssetKey, so the cache type
// itself cannot be generic over T, and Go does not allow a method to
// introduce type parameters the receiver doesn't have.
type AssetCache struct {
	core  *cacheCore
	stack []AssetKey // immutable; never mutated in place, only appended-and-copied
}

// cacheCore is the state actually shared across every forked handle.
type cacheCore struct {
	shards   *shardMap
	timeline *Timeline
	opts     Options

	// ctx is the root context every load goroutine, KeepLoading
	// detached goroutine, and keepalive timer derives from, so closing
	// the cache tears all of them down in one cancellation.
	ctx    context.Context
	cancel context.CancelFunc

	closed   atomic.Bool
	reaperWG chan struct{} // closed once the reaper goroutine has exited
}

// New constructs an AssetCache and starts its background reaper.
func New(opts Options) *AssetCache {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	core := &cacheCore{
		shards:   newShardMap(opts.Shards),
		timeline: NewTimeline(),
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		reaperWG: make(chan struct{}),
	}
	go core.runReaper(ctx)
	return &AssetCache{core: core}
}

// Timeline exposes the cache's append-only lifecycle history, mainly
// for debugging and JSON export via (*Timeline).MarshalJSON.
func (c *AssetCache) Timeline() *Timeline { return c.core.timeline }

// HitStats sums every shard's lookup counters: hits are Get/Peek calls
// that found an already-Loaded, still-upgradable slot; misses are every
// other outcome (absent, Loading, Aborted, Expired, or a dead weak
// reference), each of which falls through to a fresh or joined load.
func (c *AssetCache) HitStats() (hits, misses int64) {
	c.core.shards.forEach(func(sh *shard) {
		hits += sh.hits.Load()
		misses += sh.misses.Load()
	})
	return hits, misses
}

// Close stops the reaper and every outstanding keepalive/KeepLoading
// goroutine. Already-returned strong values remain valid; the cache
// itself simply stops doing further bookkeeping for them.
func (c *AssetCache) Close() error {
	if !c.core.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.core.cancel()
	<-c.core.reaperWG
	return nil
}

// fork returns a handle sharing this cache's core but with key pushed
// onto the ancestor stack, passed to a nested Load so its own Get calls
// record the dependency.
func (c *AssetCache) fork(key AssetKey) *AssetCache {
	next := make([]AssetKey, len(c.stack)+1)
	copy(next, c.stack)
	next[len(next)-1] = key
	return &AssetCache{core: c.core, stack: next}
}

// Get returns key's asset, loading it if necessary, coalescing
// concurrent loads for the same key, and refreshing its keepalive span.
// The returned error is non-nil only when ctx is cancelled or times out
// while this call was waiting; producer-level failures belong inside T
// itself (typically Result[T, E]) and never surface here.
func Get[T any](ctx context.Context, cache *AssetCache, key AsyncAssetKey[T]) (T, error) {
	ak := NewAssetKey(key.String())
	sh := cache.core.shards.pick(ak)

	sh.mu.Lock()
	if s, ok := sh.m[ak]; ok {
		if w, alive := s.upgrade(); alive {
			sh.mu.Unlock()
			if strong, ok := key.Asset().Upgrade(w); ok {
				sh.hits.Add(1)
				refreshKeepalive(cache, ak, sh, key, s, strong)
				return strong, nil
			}
			// Lost the race against the reaper between the two upgrade
			// checks above; fall through to a fresh load below.
			sh.mu.Lock()
		}
	}
	sh.misses.Add(1)
	s := sh.m[ak]
	if s == nil || (s.state != stateLoading) {
		s = startLoad(cache, ak, sh, key)
	}
	fut := s.future
	sh.mu.Unlock()

	return joinLoad(ctx, cache, key, ak, sh, fut)
}

// Peek returns key's asset without blocking: if it is already Loaded
// and its weak reference still upgrades, it is returned with ok ==
// true. Otherwise, if no load is in flight, Peek starts a background
// KeepLoading load; a load already in flight is left as it is, under
// its own drop policy. Either way Peek returns the zero value with ok
// == false without waiting, and a later Get or Peek observes the load.
func Peek[T any](cache *AssetCache, key AsyncAssetKey[T]) (T, bool) {
	var zero T
	ak := NewAssetKey(key.String())
	sh := cache.core.shards.pick(ak)

	sh.mu.Lock()
	if s, ok := sh.m[ak]; ok {
		if w, alive := s.upgrade(); alive {
			sh.mu.Unlock()
			if strong, ok := key.Asset().Upgrade(w); ok {
				sh.hits.Add(1)
				refreshKeepalive(cache, ak, sh, key, s, strong)
				return strong, true
			}
			sh.mu.Lock()
		}
	}
	sh.misses.Add(1)
	if s := sh.m[ak]; s == nil || s.state != stateLoading {
		startLoad(cache, ak, sh, Background[T]{Inner: key})
	}
	sh.mu.Unlock()
	return zero, false
}

// IsLoaded reports whether key's slot currently holds a live strong
// value, returning it if so. Unlike Get and Peek, IsLoaded never
// triggers a load and never touches the keepalive guard.
func IsLoaded[T any](cache *AssetCache, key AsyncAssetKey[T]) (T, bool) {
	var zero T
	ak := NewAssetKey(key.String())
	sh := cache.core.shards.pick(ak)

	sh.mu.Lock()
	s, ok := sh.m[ak]
	if !ok {
		sh.mu.Unlock()
		return zero, false
	}
	w, alive := s.upgrade()
	sh.mu.Unlock()
	if !alive {
		return zero, false
	}
	strong, ok := key.Asset().Upgrade(w)
	if !ok {
		return zero, false
	}
	return strong, true
}

// ContentStateOf reports the coarse state tag of key's slot, for tests
// and debug tooling. ok is false iff the key has never been loaded.
func ContentStateOf(cache *AssetCache, key interface{ String() string }) (ContentState, bool) {
	ak := NewAssetKey(key.String())
	sh := cache.core.shards.pick(ak)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	s, ok := sh.m[ak]
	if !ok {
		return 0, false
	}
	return s.state, true
}

// joinLoad attaches to an in-flight future, waits for it (or ctx), and
// refreshes the keepalive guard on success.
func joinLoad[T any](ctx context.Context, cache *AssetCache, key AsyncAssetKey[T], ak AssetKey, sh *shard, fut *broadcast.Future) (T, error) {
	var zero T
	release := fut.Join()
	val, _, ok := fut.Wait(ctx)
	release()
	if !ok {
		return zero, ctx.Err()
	}
	strong, isT := val.(T)
	if !isT {
		panicTypeMismatch(ak, reflect.TypeOf(zero), reflect.TypeOf(val))
	}

	sh.mu.Lock()
	s, present := sh.m[ak]
	if !present {
		sh.mu.Unlock()
		panicSlotDisappeared(ak)
	}
	sh.mu.Unlock()
	refreshKeepalive(cache, ak, sh, key, s, strong)

	return strong, nil
}

// startLoad installs a fresh Loading slot for ak and spawns the
// goroutine driving key.Load to completion. Must be called with sh.mu
// held; it returns the new slot (also already installed in sh.m).
func startLoad[T any](cache *AssetCache, ak AssetKey, sh *shard, key AsyncAssetKey[T]) *slot {
	longName := key.LongName()
	dropPolicy := key.DropPolicy()
	keepalive := key.Keepalive()
	asset := key.Asset()

	cache.core.timeline.startLoad(ak, longName, cache.stack, keepalive.IsActive())
	cache.core.opts.Metrics.LoadStarted(longName)
	start := cache.core.opts.Clock.Now()

	forked := cache.fork(ak)

	var fut *broadcast.Future
	fut = broadcast.New(
		cache.core.ctx,
		func(ctx context.Context) (any, error) {
			return key.Load(ctx, forked), nil
		},
		func(val any, _ error) {
			v := val.(T)
			w := asset.Downgrade(v)
			isAlive := func() bool {
				_, ok := asset.Upgrade(w)
				return ok
			}

			sh.mu.Lock()
			if cur, ok := sh.m[ak]; ok && cur.state == stateLoading && cur.future == fut {
				cur.state = stateLoaded
				cur.value = w
				cur.isAlive = isAlive
				cur.future = nil
			}
			sh.mu.Unlock()

			cpu, cpuOK := key.CPUSize(v)
			gpu, gpuOK := key.GPUSize(v)
			var cpuP, gpuP *uint64
			if cpuOK {
				cpuP = &cpu
			}
			if gpuOK {
				gpuP = &gpu
			}
			cache.core.timeline.endLoad(ak, cpuP, gpuP)
			cache.core.opts.Metrics.LoadCompleted(longName, cache.core.opts.Clock.Now().Sub(start))
			cache.core.opts.Logger.WithFields(logrus.Fields{
				"key":       ak.String(),
				"long_name": longName,
			}).Debug("asset load completed")
		},
		func() {
			sh.mu.Lock()
			if cur, ok := sh.m[ak]; ok && cur.state == stateLoading && cur.future == fut {
				cur.state = stateAborted
				cur.future = nil
			}
			sh.mu.Unlock()
			cache.core.timeline.aborted(ak)
			cache.core.opts.Metrics.LoadAborted(longName)
			cache.core.opts.Logger.WithField("key", ak.String()).Debug("asset load aborted")
		},
	)

	if dropPolicy == KeepLoading {
		// Acquire the pin synchronously, before this slot is ever visible
		// to a caller: the released lock below lets joinLoad's own
		// Join()/release() run immediately, and if that raced against a
		// backgrounded KeepAlive the last waiter dropping could cancel
		// the future before the pin ever took hold.
		release := fut.KeepAlive()
		go func() {
			defer release()
			<-fut.Done()
		}()
	}

	s := &slot{key: ak, state: stateLoading, future: fut, longName: longName}
	sh.m[ak] = s
	return s
}

// refreshKeepalive acquires or reuses the slot's keepalive guard and
// (re)arms a timer appropriate to key.Keepalive(), cancelling whatever
// non-Forever timer was previously installed. A Forever keepalive, once
// spawned for a slot's current guard, is never re-cancelled by a later
// refresh — only Close tears it down.
func refreshKeepalive[T any](cache *AssetCache, ak AssetKey, sh *shard, key AsyncAssetKey[T], s *slot, strong T) {
	ka := key.Keepalive()

	sh.mu.Lock()
	if s.foreverActive {
		// Already pinned forever on the current guard; nothing to do.
		sh.mu.Unlock()
		return
	}
	if s.keepaliveCancel != nil {
		s.keepaliveCancel()
		s.keepaliveCancel = nil
	}

	guard := s.guard
	if guard == nil || !guard.tryAcquire() {
		guard = newKeepaliveGuard()
		s.guard = guard
		cache.core.timeline.keepaliveStart(ak)
	}

	if ka.Kind() == KeepaliveNone {
		released := guard.release()
		if released && s.guard == guard {
			s.pin = nil
		}
		sh.mu.Unlock()
		if released {
			cache.core.timeline.keepaliveEnd(ak)
		}
		return
	}

	// Pin a strong reference for the guard's span: nothing else keeps
	// this value reachable once the caller's own reference goes away.
	s.pin = strong

	ctx, cancel := context.WithCancel(cache.core.ctx)
	s.keepaliveCancel = cancel
	if ka.Kind() == KeepaliveForever {
		s.foreverActive = true
	}
	dur := clampKeepalive(cache.core.opts, ka)
	sh.mu.Unlock()

	go runKeepaliveTimer(cache, ak, sh, s, guard, ka.Kind(), dur, ctx)
}

// clampKeepalive bounds a Timeout(d) keepalive by Options.MaxKeepalive;
// Forever is never clamped — a deliberate per-key opt-in the cache does
// not override.
func clampKeepalive(opts Options, ka Keepalive) time.Duration {
	if ka.Kind() != KeepaliveTimeout {
		return 0
	}
	d := ka.Duration()
	if opts.MaxKeepalive > 0 && d > opts.MaxKeepalive {
		return opts.MaxKeepalive
	}
	return d
}

// runKeepaliveTimer waits for either d to elapse (KeepaliveTimeout) or
// ctx cancellation (either kind — Forever waits only on ctx, which fires
// at cache Close), then releases its guard reference.
func runKeepaliveTimer(cache *AssetCache, ak AssetKey, sh *shard, s *slot, guard *keepaliveGuard, kind KeepaliveKind, d time.Duration, ctx context.Context) {
	if kind == KeepaliveTimeout {
		select {
		case <-cache.core.opts.Clock.After(d):
		case <-ctx.Done():
		}
	} else {
		<-ctx.Done()
	}

	sh.mu.Lock()
	if s.guard == guard {
		s.foreverActive = false
	}
	released := guard.release()
	if released && s.guard == guard {
		s.pin = nil
	}
	sh.mu.Unlock()

	if released {
		cache.core.timeline.keepaliveEnd(ak)
	}
}
