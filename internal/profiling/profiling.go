// Package profiling starts continuous CPU/heap profiling for a dfs
// binary, grounded on the teacher's use of
// github.com/grafana/pyroscope-go (wired behind the same
// optional-flag-gated pattern as pkg/metrics's Prometheus endpoint: a
// binary with no --profile-server set never calls Start, so no
// profiler runs).
package profiling

import (
	"github.com/grafana/pyroscope-go"
)

// Start begins sending profiles for application (e.g. "dfs.lockd") to
// serverAddr. The caller should defer the returned profiler's Stop.
func Start(application, serverAddr string) (*pyroscope.Profiler, error) {
	return pyroscope.Start(pyroscope.Config{
		ApplicationName: application,
		ServerAddress:   serverAddr,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
}
