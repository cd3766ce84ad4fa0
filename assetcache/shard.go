package assetcache

import (
	"sync"

	"github.com/ivbrykalov/assetcache/internal/util"
)

// shard is an independent partition of an AssetCache's slot map: its own
// mutex and map, with no intrusive LRU list — there is no capacity-based
// eviction here (see DESIGN.md), so a shard needs nothing beyond a
// guarded map.
type shard struct {
	mu sync.Mutex
	m  map[AssetKey]*slot

	_      util.CacheLinePad
	hits   util.PaddedAtomicInt64
	misses util.PaddedAtomicInt64
}

func newShard() *shard {
	return &shard{m: make(map[AssetKey]*slot)}
}

// shardMap partitions AssetKeys across a power-of-two number of shards by
// FNV-1a hash of their canonical string.
type shardMap struct {
	shards []*shard
	mask   uint64
}

func newShardMap(n int) *shardMap {
	if n <= 0 {
		n = util.ReasonableShardCount()
	}
	n = int(util.NextPow2(uint64(n)))
	sm := &shardMap{shards: make([]*shard, n), mask: uint64(n - 1)}
	for i := range sm.shards {
		sm.shards[i] = newShard()
	}
	return sm
}

func (sm *shardMap) pick(key AssetKey) *shard {
	h := util.FNV64a(key.String())
	return sm.shards[h&sm.mask]
}

// forEach calls fn for every shard in turn, each time holding only that
// shard's lock. fn must not call back into the shardMap.
func (sm *shardMap) forEach(fn func(*shard)) {
	for _, s := range sm.shards {
		s.mu.Lock()
		fn(s)
		s.mu.Unlock()
	}
}
