package assetcache

import (
	"context"

	"github.com/ivbrykalov/assetcache/internal/broadcast"
)

// contentStateKind classifies what a slot currently holds.
type contentStateKind int

const (
	// stateLoading means a broadcast.Future is in flight; waiters join
	// it rather than starting a new load.
	stateLoading contentStateKind = iota
	// stateLoaded means a load completed successfully; the slot holds a
	// WeakRef plus the isAlive probe derived from it.
	stateLoaded
	// stateAborted means the load's last waiter dropped under
	// StopLoading before it completed. A subsequent Get restarts it.
	stateAborted
	// stateExpired means a Loaded value's weak reference no longer
	// upgrades; only the reaper reclassifies a slot here. The slot stays
	// in its shard's map until a later Get replaces it with a new load.
	stateExpired
)

func (k contentStateKind) String() string {
	switch k {
	case stateLoading:
		return "Loading"
	case stateLoaded:
		return "Loaded"
	case stateAborted:
		return "Aborted"
	case stateExpired:
		return "Expired"
	default:
		return "Unknown"
	}
}

// ContentState is the caller-visible projection of contentStateKind,
// returned by ContentStateOf.
type ContentState = contentStateKind

// Exported aliases of the content-state constants, for callers that want
// to branch on ContentStateOf's result without reaching into the
// package's unexported names.
const (
	StateLoading = stateLoading
	StateLoaded  = stateLoaded
	StateAborted = stateAborted
	StateExpired = stateExpired
)

// slot is one entry in a shard's map: everything the cache knows about a
// single AssetKey. Exactly one of (future) or (value, isAlive) is
// meaningful, selected by state.
type slot struct {
	key   AssetKey
	state contentStateKind

	// valid when state == stateLoading.
	future *broadcast.Future

	// valid when state == stateLoaded; the reaper clears both on Expired.
	value   WeakRef
	isAlive func() bool

	// pin holds a strong reference to the loaded value for as long as an
	// active keepalive guard wants it kept alive regardless of whether
	// any external caller still references it. nil whenever no keepalive
	// is currently in effect (KeepaliveNone, or the guard has released).
	pin any

	// keepaliveCancel, when non-nil, cancels this slot's most recently
	// armed keepalive goroutine. Each non-None refresh cancels the
	// previous one and installs its own. It is also set for a Forever
	// keepalive, but once foreverActive is set no later refresh calls
	// it, so a Forever goroutine ends only at cache Close.
	keepaliveCancel context.CancelFunc
	guard           *keepaliveGuard
	// foreverActive is set once a Forever keepalive goroutine has been
	// spawned for this slot's current guard, so later Get calls refresh
	// the guard's liveness bookkeeping without spawning a second
	// identical goroutine.
	foreverActive bool

	// longName is snapshotted from the key at load start so the reaper
	// can report Expired events without a live key value.
	longName string
}

// upgrade attempts to recover a strong value from a Loaded slot. It
// returns ok == false for any other state.
func (s *slot) upgrade() (WeakRef, bool) {
	if s.state != stateLoaded {
		return nil, false
	}
	if s.isAlive == nil || !s.isAlive() {
		return nil, false
	}
	return s.value, true
}
