package assetcache

import (
	"sync"

	"github.com/ivbrykalov/assetcache/internal/util"
)

// SyncAssetKey is the producer surface for the synchronous sibling
// cache: cheap, always-alive values with blocking, memoize-once
// initialization. Unlike AsyncAssetKey, there is no keepalive, no weak
// form, and no timeline entry.
type SyncAssetKey[T any] interface {
	String() string
	Load(cache *SyncCache) T
}

// syncEntry is one memoized slot: an entry-local mutex guards the
// single Load call, independent of the owning shard's lock.
type syncEntry struct {
	mu    sync.Mutex
	ready bool
	value any
}

type syncShard struct {
	mu sync.Mutex
	m  map[AssetKey]*syncEntry
}

// SyncCache is a trivially-memoized key -> T map for values cheap
// enough not to need eviction, keepalive, or weak references — it
// shares only the keying and sharding discipline with AssetCache, via
// its own slice of syncShards and their maps; its entries are never
// shared with an AssetCache's slots.
type SyncCache struct {
	shards []*syncShard
	mask   uint64
}

// NewSyncCache constructs a SyncCache sharded the same way AssetCache
// shards its slot map.
func NewSyncCache(shards int) *SyncCache {
	if shards <= 0 {
		shards = util.ReasonableShardCount()
	}
	shards = int(util.NextPow2(uint64(shards)))
	sc := &SyncCache{shards: make([]*syncShard, shards), mask: uint64(shards - 1)}
	for i := range sc.shards {
		sc.shards[i] = &syncShard{m: make(map[AssetKey]*syncEntry)}
	}
	return sc
}

func (sc *SyncCache) pick(ak AssetKey) *syncShard {
	h := util.FNV64a(ak.String())
	return sc.shards[h&sc.mask]
}

// GetSync returns key's memoized value, computing it via key.Load on
// first access. Concurrent calls for the same key block on the same
// entry's mutex rather than duplicating work; key.Load may itself call
// GetSync on other keys (the shard lock is released before Load runs,
// only the entry's own mutex is held across it).
func GetSync[T any](cache *SyncCache, key SyncAssetKey[T]) T {
	ak := NewAssetKey(key.String())
	sh := cache.pick(ak)

	sh.mu.Lock()
	e, ok := sh.m[ak]
	if !ok {
		e = &syncEntry{}
		sh.m[ak] = e
	}
	sh.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		e.value = key.Load(cache)
		e.ready = true
	}
	return e.value.(T)
}
