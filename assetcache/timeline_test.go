package assetcache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type timelineKey struct {
	BaseKey[*int]
	name string
}

func (k timelineKey) String() string   { return "tl:" + k.name }
func (k timelineKey) LongName() string { return "timeline key " + k.name }
func (k timelineKey) Load(ctx context.Context, cache *AssetCache) *int {
	v := 7
	return &v
}
func (k timelineKey) Asset() Asset[*int] { return PointerAsset[int]{} }

func TestTimeline_RecordsLoadAndKeepalive(t *testing.T) {
	cache := New(Options{})
	t.Cleanup(func() { _ = cache.Close() })

	key := timelineKey{name: "a"}
	if _, err := Get(context.Background(), cache, key); err != nil {
		t.Fatalf("Get: %v", err)
	}

	snap := cache.Timeline().Snapshot(NewAssetKey(key.String()))
	require.NotNil(t, snap)
	require.Equal(t, "timeline key a", snap.LongName)
	require.Len(t, snap.Lifetimes, 1)
	require.NotNil(t, snap.Lifetimes[0].EndLoad)
	require.NotNil(t, snap.Lifetimes[0].KeepaliveStart)
	require.True(t, snap.IsAlive)
}

func TestTimeline_MarshalJSONShape(t *testing.T) {
	cache := New(Options{})
	t.Cleanup(func() { _ = cache.Close() })

	if _, err := Get(context.Background(), cache, timelineKey{name: "b"}); err != nil {
		t.Fatalf("Get: %v", err)
	}

	b, err := json.Marshal(cache.Timeline())
	require.NoError(t, err)

	var decoded struct {
		StartTime time.Time                  `json:"start_time"`
		Assets    map[string]*AssetTimeline `json:"assets"`
	}
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.Contains(t, decoded.Assets, "tl:b")
	require.Equal(t, "timeline key b", decoded.Assets["tl:b"].LongName)
}

type abortOnceKey struct {
	BaseKey[*int]
	started chan struct{}
}

func (k abortOnceKey) String() string   { return "tl:abort" }
func (k abortOnceKey) LongName() string { return "aborting key" }
func (k abortOnceKey) Load(ctx context.Context, cache *AssetCache) *int {
	close(k.started)
	<-ctx.Done()
	v := 0
	return &v
}
func (k abortOnceKey) Asset() Asset[*int] { return PointerAsset[int]{} }

func TestTimeline_AbortedIsStickyAcrossDuplicateWrites(t *testing.T) {
	cache := New(Options{ReaperInterval: 5 * time.Millisecond})
	t.Cleanup(func() { _ = cache.Close() })

	key := abortOnceKey{started: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_, _ = Get(ctx, cache, key)
		close(done)
	}()
	<-key.started
	cancel()
	<-done

	time.Sleep(30 * time.Millisecond) // give the reaper a few ticks to observe Aborted again

	snap := cache.Timeline().Snapshot(NewAssetKey(key.String()))
	require.NotNil(t, snap)
	require.Len(t, snap.Lifetimes, 1)
	require.NotNil(t, snap.Lifetimes[0].Aborted)
}

func TestTimeline_NLoadingCountsOpenLifetimes(t *testing.T) {
	cache := New(Options{})
	t.Cleanup(func() { _ = cache.Close() })

	started := make(chan struct{})
	release := make(chan struct{})
	key := abortOnceKeyBlocking{started: started, release: release}

	go func() { _, _ = Get(context.Background(), cache, key) }()
	<-started

	if n := cache.Timeline().NLoading(); n != 1 {
		t.Fatalf("want 1 loading key, got %d", n)
	}
	close(release)
}

type abortOnceKeyBlocking struct {
	BaseKey[*int]
	started chan struct{}
	release chan struct{}
}

func (k abortOnceKeyBlocking) String() string   { return "tl:blocking" }
func (k abortOnceKeyBlocking) LongName() string { return "blocking key" }
func (k abortOnceKeyBlocking) Load(ctx context.Context, cache *AssetCache) *int {
	close(k.started)
	<-k.release
	v := 1
	return &v
}
func (k abortOnceKeyBlocking) Asset() Asset[*int] { return PointerAsset[int]{} }
