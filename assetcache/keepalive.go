package assetcache

import "sync/atomic"

// keepaliveGuard coalesces overlapping "keep this slot alive a bit
// longer" requests into a single pending expiry. Go has no destructor to
// hook a "last clone dropped" moment, so liveness here is tracked
// explicitly: every successful Get calls tryAcquire on the slot's
// guard (or creates a fresh one), and each timer goroutine calls
// release exactly once, when it fires or when a later refresh cancels
// it. A release that leaves other references outstanding does not end
// the span and the slot stays pinned; the newest timer's release ends
// it.
//
// This is a deliberate divergence from using weak.Pointer for guard
// liveness: GC-driven collection is fine for
// observing whether an Asset[T] value is still referenced, because the
// reaper already tolerates slack up to ReaperInterval, but it would be
// wrong here — whether a new keepalive span starts or an old one is
// extended is a correctness-relevant decision that must happen exactly
// once per acquire, not whenever the garbage collector gets around to
// it.
type keepaliveGuard struct {
	refs atomic.Int64
}

// newKeepaliveGuard creates a guard already holding one reference, on
// behalf of the timer goroutine about to be spawned for it.
func newKeepaliveGuard() *keepaliveGuard {
	g := &keepaliveGuard{}
	g.refs.Store(1)
	return g
}

// tryAcquire adds one reference on behalf of a new timer goroutine that
// wants to extend this guard's span, succeeding only if the guard has
// not yet reached zero (i.e. some other timer still holds it).
func (g *keepaliveGuard) tryAcquire() bool {
	for {
		cur := g.refs.Load()
		if cur <= 0 {
			return false
		}
		if g.refs.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// release drops one reference. It returns true exactly once, the first
// time the count reaches zero, telling the caller it is the timer that
// should actually end the guard's keepalive span.
func (g *keepaliveGuard) release() bool {
	return g.refs.Add(-1) == 0
}
