package assetcache

import "weak"

// WeakRef is a type-erased weak handle produced by an Asset[T] adapter.
// Its concrete dynamic type is owned entirely by the adapter that
// created it; the cache never inspects it beyond passing it back to
// Upgrade.
type WeakRef = any

// Asset pairs a concrete asset type T with a weak peer, so the cache can
// observe liveness of externally-held strong references without
// extending their lifetime itself.
//
// Implementations must preserve: Upgrade(Downgrade(x)) yields a value
// equal to x for as long as any strong reference to x (or its
// constituents) is reachable outside the cache.
type Asset[T any] interface {
	// Downgrade produces the weak peer of a strong value.
	Downgrade(strong T) WeakRef
	// Upgrade attempts to recover a strong value from its weak peer.
	// ok is false iff no strong references remain reachable anywhere.
	Upgrade(w WeakRef) (strong T, ok bool)
}

// PointerAsset is the Asset[T] adapter for a single shared-ownership
// value represented as *T, built directly on Go 1.24's weak.Pointer —
// the standard library's own answer to "observe GC liveness of a value
// without keeping it alive," which is exactly the primitive the rest of
// the Asset family composes over.
type PointerAsset[T any] struct{}

func (PointerAsset[T]) Downgrade(strong *T) WeakRef {
	return weak.Make(strong)
}

func (PointerAsset[T]) Upgrade(w WeakRef) (*T, bool) {
	wp, ok := w.(weak.Pointer[T])
	if !ok {
		return nil, false
	}
	v := wp.Value()
	return v, v != nil
}

// Result is a fallible asset value: either Ok holds a T (IsOk == true)
// or Err holds an E. Both branches are cached by the orchestrator — an
// Err is never retried automatically.
type Result[T, E any] struct {
	Ok   T
	Err  E
	IsOk bool
}

// Ok constructs a successful Result.
func Ok[T, E any](v T) Result[T, E] { return Result[T, E]{Ok: v, IsOk: true} }

// Error constructs a failed Result.
func Error[T, E any](err E) Result[T, E] { return Result[T, E]{Err: err} }

// resultWeak is the type-erased weak peer of a Result[T,E]: either a
// wrapped weak T, or the E carried verbatim (errors are assumed cheap
// to copy and therefore always "alive" — the source's stated
// requirement on E).
type resultWeak[E any] struct {
	isOk bool
	weak WeakRef
	err  E
}

// ResultAsset is the Asset[Result[T,E]] adapter. E must be cheap to
// copy; the Err branch carries no weakness.
type ResultAsset[T, E any] struct {
	Inner Asset[T]
}

func (r ResultAsset[T, E]) Downgrade(strong Result[T, E]) WeakRef {
	if !strong.IsOk {
		return resultWeak[E]{isOk: false, err: strong.Err}
	}
	return resultWeak[E]{isOk: true, weak: r.Inner.Downgrade(strong.Ok)}
}

func (r ResultAsset[T, E]) Upgrade(w WeakRef) (Result[T, E], bool) {
	rw, ok := w.(resultWeak[E])
	if !ok {
		return Result[T, E]{}, false
	}
	if !rw.isOk {
		return Error[T, E](rw.err), true
	}
	v, ok := r.Inner.Upgrade(rw.weak)
	if !ok {
		return Result[T, E]{}, false
	}
	return Ok[T, E](v), true
}

// Option is an asset that may or may not be present; None is a legal,
// always-alive asset distinct from a load failure.
type Option[T any] struct {
	Value T
	Some  bool
}

// Some constructs a present Option.
func Some[T any](v T) Option[T] { return Option[T]{Value: v, Some: true} }

// None constructs an absent Option.
func None[T any]() Option[T] { return Option[T]{} }

type optionWeak struct {
	some bool
	weak WeakRef
}

// OptionAsset is the Asset[Option[T]] adapter.
type OptionAsset[T any] struct {
	Inner Asset[T]
}

func (o OptionAsset[T]) Downgrade(strong Option[T]) WeakRef {
	if !strong.Some {
		return optionWeak{some: false}
	}
	return optionWeak{some: true, weak: o.Inner.Downgrade(strong.Value)}
}

func (o OptionAsset[T]) Upgrade(w WeakRef) (Option[T], bool) {
	ow, ok := w.(optionWeak)
	if !ok {
		return Option[T]{}, false
	}
	if !ow.some {
		return None[T](), true
	}
	v, ok := o.Inner.Upgrade(ow.weak)
	if !ok {
		return Option[T]{}, false
	}
	return Some(v), true
}

// Pair is a two-element asset whose constituents may each be a
// different concrete Asset-compatible type.
type Pair[T, U any] struct {
	First  T
	Second U
}

type pairWeak struct {
	first  WeakRef
	second WeakRef
}

// PairAsset is the Asset[Pair[T,U]] adapter; it is alive iff both
// constituents are alive.
type PairAsset[T, U any] struct {
	First  Asset[T]
	Second Asset[U]
}

func (p PairAsset[T, U]) Downgrade(strong Pair[T, U]) WeakRef {
	return pairWeak{
		first:  p.First.Downgrade(strong.First),
		second: p.Second.Downgrade(strong.Second),
	}
}

func (p PairAsset[T, U]) Upgrade(w WeakRef) (Pair[T, U], bool) {
	pw, ok := w.(pairWeak)
	if !ok {
		return Pair[T, U]{}, false
	}
	first, ok := p.First.Upgrade(pw.first)
	if !ok {
		return Pair[T, U]{}, false
	}
	second, ok := p.Second.Upgrade(pw.second)
	if !ok {
		return Pair[T, U]{}, false
	}
	return Pair[T, U]{First: first, Second: second}, true
}

// SliceAsset is the Asset[[]T] adapter for a sequence of assets; it is
// alive iff every element is still alive.
type SliceAsset[T any] struct {
	Inner Asset[T]
}

func (s SliceAsset[T]) Downgrade(strong []T) WeakRef {
	weaks := make([]WeakRef, len(strong))
	for i, v := range strong {
		weaks[i] = s.Inner.Downgrade(v)
	}
	return weaks
}

func (s SliceAsset[T]) Upgrade(w WeakRef) ([]T, bool) {
	weaks, ok := w.([]WeakRef)
	if !ok {
		return nil, false
	}
	out := make([]T, len(weaks))
	for i, wv := range weaks {
		v, ok := s.Inner.Upgrade(wv)
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}
