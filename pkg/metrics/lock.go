package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LockMetrics observes the cache-coherent lock server described in
// spec.md §4.1. A nil *LockMetrics is safe to call methods on (all
// methods guard against it), matching the teacher's "nil-returning
// constructor disables metrics" convention in pkg/metrics/cache.go.
type LockMetrics struct {
	acquireTotal *prometheus.CounterVec
	revokeTotal  prometheus.Counter
	retryTotal   prometheus.Counter
	held         prometheus.Gauge
}

// NewLockMetrics returns a LockMetrics registered against the shared
// registry, or nil if metrics are disabled.
func NewLockMetrics() *LockMetrics {
	if !IsEnabled() {
		return nil
	}
	reg := GetRegistry()
	return &LockMetrics{
		acquireTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dfs_lock_acquire_total",
			Help: "Lock acquire RPCs by result (OK, RETRY).",
		}, []string{"result"}),
		revokeTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "dfs_lock_revoke_total",
			Help: "Revoke RPCs sent to lock holders.",
		}),
		retryTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "dfs_lock_retry_total",
			Help: "Retry RPCs sent to waiting clients.",
		}),
		held: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "dfs_lock_held",
			Help: "Number of locks currently held by some client.",
		}),
	}
}

// ObserveAcquire records an acquire RPC's result ("OK" or "RETRY").
func (m *LockMetrics) ObserveAcquire(result string) {
	if m == nil {
		return
	}
	m.acquireTotal.WithLabelValues(result).Inc()
}

// ObserveRevoke records a revoke dispatched to a holder.
func (m *LockMetrics) ObserveRevoke() {
	if m == nil {
		return
	}
	m.revokeTotal.Inc()
}

// ObserveRetry records a retry dispatched to a waiter.
func (m *LockMetrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.retryTotal.Inc()
}

// SetHeld updates the count of currently-held locks.
func (m *LockMetrics) SetHeld(n int) {
	if m == nil {
		return
	}
	m.held.Set(float64(n))
}
