package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ExtentCacheMetrics observes the extent client's write-back cache
// (spec.md §4.3). A nil *ExtentCacheMetrics is safe to call.
type ExtentCacheMetrics struct {
	hitTotal   prometheus.Counter
	missTotal  prometheus.Counter
	dirtyBytes prometheus.Gauge
}

// NewExtentCacheMetrics returns an ExtentCacheMetrics registered
// against the shared registry, or nil if metrics are disabled.
func NewExtentCacheMetrics() *ExtentCacheMetrics {
	if !IsEnabled() {
		return nil
	}
	reg := GetRegistry()
	return &ExtentCacheMetrics{
		hitTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "dfs_extent_cache_hit_total",
			Help: "Extent reads served from the local write-back cache.",
		}),
		missTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "dfs_extent_cache_miss_total",
			Help: "Extent reads that required a server round-trip.",
		}),
		dirtyBytes: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "dfs_extent_cache_dirty_bytes",
			Help: "Bytes currently dirty (written but not yet flushed).",
		}),
	}
}

// Hit records a cache read served from memory.
func (m *ExtentCacheMetrics) Hit() {
	if m == nil {
		return
	}
	m.hitTotal.Inc()
}

// Miss records a cache read that required a server round-trip.
func (m *ExtentCacheMetrics) Miss() {
	if m == nil {
		return
	}
	m.missTotal.Inc()
}

// SetDirtyBytes updates the dirty-bytes gauge.
func (m *ExtentCacheMetrics) SetDirtyBytes(n int64) {
	if m == nil {
		return
	}
	m.dirtyBytes.Set(float64(n))
}
