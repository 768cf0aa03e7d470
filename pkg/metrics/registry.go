// Package metrics owns the Prometheus registry shared by every dfs
// service, following the teacher's pkg/metrics/prometheus convention
// of using promauto.With(registry) rather than the global default
// registry, so multiple dfs nodes in one test process don't collide
// on metric names.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu       sync.Mutex
	registry *prometheus.Registry
)

// InitRegistry creates (once) and returns the process-wide registry.
// Services that don't call InitRegistry run with metrics disabled;
// constructors in this package return no-op collectors in that case
// so callers never need a nil check.
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return registry != nil
}

// GetRegistry returns the current registry, or nil if metrics are
// disabled.
func GetRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	return registry
}
