package assetcache

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// Metrics exposes cache-level observability hooks. A NoopMetrics
// implementation is provided and used by default; metrics/prom adapts
// this interface onto Prometheus collectors.
type Metrics interface {
	// LoadStarted is called once per load attempt, keyed by the user
	// key's LongName.
	LoadStarted(longName string)
	// LoadCompleted is called when a load finishes successfully, with
	// its wall-clock duration.
	LoadCompleted(longName string, dur time.Duration)
	// LoadAborted is called when a load is cancelled before completing
	// (StopLoading, last waiter dropped).
	LoadAborted(longName string)
	// Expired is called when the reaper reclassifies a Loaded slot whose
	// weak value no longer upgrades.
	Expired(longName string)
	// KeepaliveActive reports the number of slots currently pinned by an
	// active keepalive guard, sampled on every reaper tick.
	KeepaliveActive(n int)
	// Resident reports the total number of slots currently tracked in
	// any state (Loading, Loaded, Aborted or Expired), sampled on every
	// reaper tick.
	Resident(n int)
}

// NoopMetrics is a Metrics implementation that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) LoadStarted(string)             {}
func (NoopMetrics) LoadCompleted(string, time.Duration) {}
func (NoopMetrics) LoadAborted(string)              {}
func (NoopMetrics) Expired(string)                  {}
func (NoopMetrics) KeepaliveActive(int)             {}
func (NoopMetrics) Resident(int)                    {}

// Clock abstracts wall-clock time so tests can run keepalive and reaper
// logic without sleeping.
type Clock interface {
	Now() time.Time
	// After mirrors time.After, returning a channel that fires once d
	// has elapsed according to this Clock.
	After(d time.Duration) <-chan time.Time
}

// realClock is the default Clock, backed by the time package.
type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Options configures an AssetCache. Zero values are safe; New applies
// sane defaults:
//   - Shards <= 0        => auto (≈2*GOMAXPROCS, rounded to a power of two)
//   - ReaperInterval <= 0 => 1 second
//   - nil Metrics         => NoopMetrics
//   - nil Clock           => real wall-clock time
//   - nil Logger          => a logrus.Logger discarding output
type Options struct {
	// Shards is the number of slot-map shards. 0 picks an automatic value.
	Shards int

	// ReaperInterval is how often the background reaper scans for
	// Expired slots. 0 defaults to 1 second.
	ReaperInterval time.Duration

	// MaxKeepalive clamps every key's Timeout(d) keepalive to at most
	// this duration. 0 disables clamping. It never affects Forever,
	// which is a deliberate per-key opt-in the cache does not override.
	MaxKeepalive time.Duration

	// Metrics receives load/abort/expire/keepalive observability events.
	Metrics Metrics

	// Clock is the time source used for keepalive timers and the reaper
	// tick; override in tests to avoid real sleeps.
	Clock Clock

	// Logger receives a debug-level entry for every completed load and
	// every aborted load. Load starts and expiries are not logged, and
	// panics raised by user Load functions are not recovered. A nil
	// Logger is replaced with a logrus.New() instance discarding output.
	Logger *logrus.Logger
}

func (o Options) withDefaults() Options {
	if o.ReaperInterval <= 0 {
		o.ReaperInterval = time.Second
	}
	if o.Metrics == nil {
		o.Metrics = NoopMetrics{}
	}
	if o.Clock == nil {
		o.Clock = realClock{}
	}
	if o.Logger == nil {
		o.Logger = logrus.New()
		o.Logger.SetOutput(io.Discard)
	}
	return o
}
