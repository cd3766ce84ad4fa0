package assetcache

import (
	"encoding/json"
	"sync"
	"time"
)

// AssetLifetime is one open/closed span of a key's history: one load
// attempt plus whatever keepalive/drop/abort events followed it.
//
// Invariants: within a lifetime, StartLoad <= EndLoad <= Dropped;
// EndLoad and Aborted are mutually exclusive; once Aborted is set it is
// sticky (see DESIGN.md for why first-writer-wins was kept as-is).
type AssetLifetime struct {
	StartLoad      time.Time  `json:"start_load"`
	EndLoad        *time.Time `json:"end_load,omitempty"`
	KeepaliveStart *time.Time `json:"keepalive_start,omitempty"`
	KeepaliveEnd   *time.Time `json:"keepalive_end,omitempty"`
	Dropped        *time.Time `json:"dropped,omitempty"`
	Aborted        *time.Time `json:"aborted,omitempty"`
	Keepalive      bool       `json:"keepalive"`
}

// EndTime returns the effective end of this lifetime: Aborted if set,
// else Dropped if set, else now (still open).
func (l AssetLifetime) EndTime() time.Time {
	if l.Aborted != nil {
		return *l.Aborted
	}
	if l.Dropped != nil {
		return *l.Dropped
	}
	return time.Now()
}

// AssetTimeline is the full recorded history of a single key.
type AssetTimeline struct {
	LongName  string          `json:"long_name"`
	Stack     []string        `json:"stack"`
	CPUSize   *uint64         `json:"cpu_size,omitempty"`
	GPUSize   *uint64         `json:"gpu_size,omitempty"`
	Lifetimes []AssetLifetime `json:"lifetimes"`
	IsAlive   bool            `json:"is_alive"`
}

// IsLoading reports whether the most recent lifetime is still open
// (neither completed nor aborted).
func (t *AssetTimeline) IsLoading() bool {
	if len(t.Lifetimes) == 0 {
		return false
	}
	last := t.Lifetimes[len(t.Lifetimes)-1]
	return last.EndLoad == nil && last.Aborted == nil
}

// IsAborted reports whether the most recent lifetime ended aborted.
func (t *AssetTimeline) IsAborted() bool {
	if len(t.Lifetimes) == 0 {
		return false
	}
	return t.Lifetimes[len(t.Lifetimes)-1].Aborted != nil
}

func (t *AssetTimeline) last() *AssetLifetime {
	return &t.Lifetimes[len(t.Lifetimes)-1]
}

// Timeline is the process-wide (per-AssetCache), thread-safe, append-
// only history of every key's lifecycle. All mutators are unexported:
// only the orchestrator and the reaper are allowed to call them, so
// callers outside the package can never mutate an unknown key's history.
type Timeline struct {
	mu        sync.Mutex
	startTime time.Time
	assets    map[AssetKey]*AssetTimeline
}

// NewTimeline constructs an empty timeline stamped with the current
// time.
func NewTimeline() *Timeline {
	return &Timeline{startTime: time.Now(), assets: make(map[AssetKey]*AssetTimeline)}
}

// NLoading returns the number of keys whose most recent lifetime is
// still open — a cheap liveness probe for dashboards.
func (tl *Timeline) NLoading() int {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	n := 0
	for _, a := range tl.assets {
		if a.IsLoading() {
			n++
		}
	}
	return n
}

func (tl *Timeline) startLoad(key AssetKey, longName string, stack []AssetKey, keepalive bool) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	a, ok := tl.assets[key]
	if !ok {
		a = &AssetTimeline{}
		tl.assets[key] = a
	}
	a.LongName = longName
	a.Stack = make([]string, len(stack))
	for i, s := range stack {
		a.Stack[i] = s.String()
	}
	a.IsAlive = true
	a.Lifetimes = append(a.Lifetimes, AssetLifetime{StartLoad: time.Now(), Keepalive: keepalive})
}

func (tl *Timeline) endLoad(key AssetKey, cpuSize, gpuSize *uint64) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	a, ok := tl.assets[key]
	if !ok {
		return
	}
	now := time.Now()
	a.last().EndLoad = &now
	a.CPUSize = cpuSize
	a.GPUSize = gpuSize
}

func (tl *Timeline) keepaliveStart(key AssetKey) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	a, ok := tl.assets[key]
	if !ok || len(a.Lifetimes) == 0 {
		return
	}
	lf := a.last()
	lf.KeepaliveEnd = nil
	if lf.KeepaliveStart == nil {
		now := time.Now()
		lf.KeepaliveStart = &now
	}
}

func (tl *Timeline) keepaliveEnd(key AssetKey) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	a, ok := tl.assets[key]
	if !ok || len(a.Lifetimes) == 0 {
		return
	}
	now := time.Now()
	a.last().KeepaliveEnd = &now
}

func (tl *Timeline) dropped(key AssetKey) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	a, ok := tl.assets[key]
	if !ok || len(a.Lifetimes) == 0 {
		return
	}
	now := time.Now()
	a.last().Dropped = &now
	a.IsAlive = false
}

func (tl *Timeline) aborted(key AssetKey) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	a, ok := tl.assets[key]
	if !ok || len(a.Lifetimes) == 0 {
		return
	}
	lf := a.last()
	if lf.Aborted == nil {
		now := time.Now()
		lf.Aborted = &now
	}
	a.IsAlive = false
}

// timelineView is the JSON-serializable snapshot shape exported by
// MarshalJSON below.
type timelineView struct {
	StartTime time.Time                  `json:"start_time"`
	Assets    map[string]*AssetTimeline `json:"assets"`
}

// MarshalJSON exports a deep, lock-held snapshot of the timeline in the
// documented shape.
func (tl *Timeline) MarshalJSON() ([]byte, error) {
	tl.mu.Lock()
	view := timelineView{StartTime: tl.startTime, Assets: make(map[string]*AssetTimeline, len(tl.assets))}
	for k, a := range tl.assets {
		cp := *a
		cp.Lifetimes = append([]AssetLifetime(nil), a.Lifetimes...)
		cp.Stack = append([]string(nil), a.Stack...)
		view.Assets[k.String()] = &cp
	}
	tl.mu.Unlock()
	return json.Marshal(view)
}

// Snapshot returns a copy of one key's recorded history, or nil if the
// key has never been loaded.
func (tl *Timeline) Snapshot(key AssetKey) *AssetTimeline {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	a, ok := tl.assets[key]
	if !ok {
		return nil
	}
	cp := *a
	cp.Lifetimes = append([]AssetLifetime(nil), a.Lifetimes...)
	cp.Stack = append([]string(nil), a.Stack...)
	return &cp
}
