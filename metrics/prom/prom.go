// Package prom adapts assetcache.Metrics onto Prometheus collectors.
package prom

import (
	"time"

	"github.com/ivbrykalov/assetcache/assetcache"
	"github.com/prometheus/client_golang/prometheus"
)

// Adapter implements assetcache.Metrics and exports Prometheus
// counters/gauges. Safe for concurrent use; all Prometheus metric types
// are goroutine-safe.
type Adapter struct {
	loadsStarted    *prometheus.CounterVec
	loadsCompleted  *prometheus.CounterVec
	loadDuration    *prometheus.HistogramVec
	aborts          *prometheus.CounterVec
	expiries        *prometheus.CounterVec
	keepaliveActive prometheus.Gauge
	resident        prometheus.Gauge
}

// New constructs a Prometheus metrics adapter.
//   - reg:         registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:     Prometheus namespace and subsystem
//   - constLabels: static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		loadsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "loads_started_total",
			Help:        "Asset loads started, by long name",
			ConstLabels: constLabels,
		}, []string{"asset"}),
		loadsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "loads_completed_total",
			Help:        "Asset loads completed successfully, by long name",
			ConstLabels: constLabels,
		}, []string{"asset"}),
		loadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "load_duration_seconds",
			Help:        "Asset load wall-clock duration, by long name",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"asset"}),
		aborts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "loads_aborted_total",
			Help:        "Asset loads aborted before completion, by long name",
			ConstLabels: constLabels,
		}, []string{"asset"}),
		expiries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "expired_total",
			Help:        "Loaded slots reclassified Expired by the reaper, by long name",
			ConstLabels: constLabels,
		}, []string{"asset"}),
		keepaliveActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "keepalive_active",
			Help:        "Slots currently pinned by an active keepalive guard",
			ConstLabels: constLabels,
		}),
		resident: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "resident_slots",
			Help:        "Total slots currently tracked across all shards",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.loadsStarted, a.loadsCompleted, a.loadDuration, a.aborts, a.expiries, a.keepaliveActive, a.resident)
	return a
}

func (a *Adapter) LoadStarted(longName string) { a.loadsStarted.WithLabelValues(longName).Inc() }

func (a *Adapter) LoadCompleted(longName string, dur time.Duration) {
	a.loadsCompleted.WithLabelValues(longName).Inc()
	a.loadDuration.WithLabelValues(longName).Observe(dur.Seconds())
}

func (a *Adapter) LoadAborted(longName string) { a.aborts.WithLabelValues(longName).Inc() }

func (a *Adapter) Expired(longName string) { a.expiries.WithLabelValues(longName).Inc() }

func (a *Adapter) KeepaliveActive(n int) { a.keepaliveActive.Set(float64(n)) }

func (a *Adapter) Resident(n int) { a.resident.Set(float64(n)) }

// Compile-time check: ensure Adapter implements assetcache.Metrics.
var _ assetcache.Metrics = (*Adapter)(nil)
