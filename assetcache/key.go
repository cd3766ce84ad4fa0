package assetcache

import (
	"context"
	"time"
)

// DropPolicy decides whether cancelling every waiter on an in-flight
// load also cancels the underlying work.
type DropPolicy int

const (
	// StopLoading cancels the load once its last waiter drops,
	// transitioning the slot to Aborted. This is the default.
	StopLoading DropPolicy = iota
	// KeepLoading keeps the load running to completion via a detached
	// goroutine regardless of waiter cancellation.
	KeepLoading
)

func (p DropPolicy) String() string {
	if p == KeepLoading {
		return "KeepLoading"
	}
	return "StopLoading"
}

// KeepaliveKind distinguishes Keepalive variants.
type KeepaliveKind int

const (
	// KeepaliveNone releases the asset as soon as the caller's own
	// strong reference is dropped and no one else holds one.
	KeepaliveNone KeepaliveKind = iota
	// KeepaliveTimeout pins the asset for a bounded duration after the
	// most recent Get.
	KeepaliveTimeout
	// KeepaliveForever pins the asset until the cache itself is closed.
	KeepaliveForever
)

// Keepalive describes how long a loaded asset should be pinned after a
// Get returns, independent of whether the caller still holds its own
// strong reference.
type Keepalive struct {
	kind KeepaliveKind
	dur  time.Duration
}

// NoKeepalive releases the asset as soon as external references drop.
func NoKeepalive() Keepalive { return Keepalive{kind: KeepaliveNone} }

// Timeout pins the asset for d after the most recent Get.
func Timeout(d time.Duration) Keepalive { return Keepalive{kind: KeepaliveTimeout, dur: d} }

// Forever pins the asset until the cache is closed.
func Forever() Keepalive { return Keepalive{kind: KeepaliveForever} }

// IsActive reports whether this keepalive ever pins the asset at all
// (used only for the timeline's keepalive-active hint at StartLoad).
func (k Keepalive) IsActive() bool { return k.kind != KeepaliveNone }

// Kind returns the keepalive variant.
func (k Keepalive) Kind() KeepaliveKind { return k.kind }

// Duration returns the configured duration; only meaningful when
// Kind() == KeepaliveTimeout.
func (k Keepalive) Duration() time.Duration { return k.dur }

// AsyncAssetKey is the user-facing interface an asset producer
// implements. Two keys that compare equal by String() must produce
// equivalent assets; the cache does not enforce purity.
type AsyncAssetKey[T any] interface {
	// String returns the canonical form used to derive this key's
	// AssetKey; it must be a deterministic function of the key's
	// fields.
	String() string
	// LongName returns a more verbose, human-readable identification
	// of the key, used only for the timeline and debug output.
	LongName() string
	// Load performs the expensive computation. cache is a handle whose
	// ancestor stack has already been pushed with this key, so any
	// nested Get it performs records the dependency.
	Load(ctx context.Context, cache *AssetCache) T
	// Keepalive reports how long a successful load should be pinned
	// after the most recent Get. Default: Timeout(60 * time.Second).
	Keepalive() Keepalive
	// DropPolicy reports whether cancelling every waiter aborts the
	// load. Default: StopLoading.
	DropPolicy() DropPolicy
	// CPUSize and GPUSize report optional size hints recorded on the
	// timeline once a load completes.
	CPUSize(T) (bytes uint64, ok bool)
	GPUSize(T) (bytes uint64, ok bool)
	// Asset returns the weak/strong adapter for T.
	Asset() Asset[T]
}

// BaseKey is embeddable by AsyncAssetKey[T] implementations to pick up
// the package's defaults (Timeout(60s), StopLoading, no size hints)
// without repeating them, keeping a producer's required surface small.
// It is parameterized over T solely so its CPUSize/GPUSize methods
// satisfy AsyncAssetKey[T]; Go does not allow a method to introduce
// type parameters beyond its receiver's.
type BaseKey[T any] struct{}

func (BaseKey[T]) Keepalive() Keepalive       { return Timeout(60 * time.Second) }
func (BaseKey[T]) DropPolicy() DropPolicy     { return StopLoading }
func (BaseKey[T]) CPUSize(T) (uint64, bool)   { return 0, false }
func (BaseKey[T]) GPUSize(T) (uint64, bool)   { return 0, false }

// Background wraps an AsyncAssetKey so that loading it always behaves as
// KeepLoading, regardless of the inner key's own DropPolicy. Used
// internally by Peek, and available to callers priming a cache entry
// without wanting to wait for it.
type Background[T any] struct {
	Inner AsyncAssetKey[T]
}

func (b Background[T]) String() string   { return b.Inner.String() }
func (b Background[T]) LongName() string { return b.Inner.LongName() }
func (b Background[T]) Load(ctx context.Context, cache *AssetCache) T {
	return b.Inner.Load(ctx, cache)
}
func (b Background[T]) Keepalive() Keepalive                  { return b.Inner.Keepalive() }
func (b Background[T]) DropPolicy() DropPolicy                { return KeepLoading }
func (b Background[T]) CPUSize(v T) (uint64, bool)            { return b.Inner.CPUSize(v) }
func (b Background[T]) GPUSize(v T) (uint64, bool)            { return b.Inner.GPUSize(v) }
func (b Background[T]) Asset() Asset[T]                       { return b.Inner.Asset() }
