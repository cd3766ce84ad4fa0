// Package assetcache provides a concurrent, reference-counted,
// lifetime-managed store for arbitrary typed "assets" identified by
// structured keys.
//
// Many independent consumers may request the same heavyweight resource
// (a decoded texture, a parsed mesh, an HTTP-fetched blob); the cache
// computes each distinct resource at most once, hands the result to
// every concurrent requester, keeps it alive exactly as long as some
// consumer needs it plus a configurable grace period, and unloads it
// promptly afterward.
//
// Design
//
//   - Concurrency: the cache shards its slot map — one mutex per shard,
//     sized to a power of two, to keep contention low under many
//     distinct keys. Picking a key's shard is a single FNV-1a hash.
//
//   - Keying: a user key implements AsyncAssetKey[T]; its canonical
//     string form (via fmt.Stringer) is interned once into an AssetKey
//     and used for all map lookups and timeline entries.
//
//   - Weak/strong duality: Go 1.24's weak.Pointer[T] backs the built-in
//     Asset[T] adapters (PointerAsset, ResultAsset, OptionAsset,
//     PairAsset, SliceAsset), letting the cache observe whether a
//     loaded value is still referenced anywhere without extending its
//     lifetime itself.
//
//   - Deduplication: concurrent Get calls for the same key join a
//     single in-flight broadcast.Future (internal/broadcast); exactly
//     one goroutine runs the user's Load.
//
//   - Keepalive: a loaded asset is pinned for Keepalive()'s duration
//     (default: 60s) after the most recent Get, coalesced across
//     overlapping requests via a reference-counted guard, and recorded
//     on the Timeline.
//
//   - Reaper: a background goroutine reclassifies Loaded slots whose
//     weak value no longer upgrades to Expired, once per
//     Options.ReaperInterval (default 1s).
//
//   - Timeline: Options.Metrics and an optional *logrus.Logger aside, the
//     cache keeps an append-only, JSON-exportable history of every
//     key's load/keepalive/drop lifecycle for debugging and
//     visualization.
//
// Basic usage
//
//	type greeting struct{ name string }
//
//	type greetingKey struct {
//	    assetcache.BaseKey[*greeting] // default Keepalive/DropPolicy/sizes
//	    name string
//	}
//
//	func (k greetingKey) String() string   { return "greeting:" + k.name }
//	func (k greetingKey) LongName() string { return k.String() }
//	func (k greetingKey) Load(ctx context.Context, c *assetcache.AssetCache) *greeting {
//	    return &greeting{name: k.name}
//	}
//	func (k greetingKey) Asset() assetcache.Asset[*greeting] { return assetcache.PointerAsset[greeting]{} }
//
//	cache := assetcache.New(assetcache.Options{})
//	defer cache.Close()
//	v, err := assetcache.Get(ctx, cache, greetingKey{name: "world"})
//
// See DESIGN.md at the repository root for the full design rationale.
package assetcache
