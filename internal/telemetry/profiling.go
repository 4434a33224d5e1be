// Package telemetry wires rtftpd into Grafana Pyroscope continuous
// profiling, the one always-on-when-configured piece of observability
// that sits outside the per-request metrics in pkg/metrics.
package telemetry

import (
	"fmt"

	"github.com/grafana/pyroscope-go"
)

// ProfilingConfig configures the Pyroscope continuous profiler.
type ProfilingConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Endpoint       string
}

var profilingEnabled bool

// InitProfiling starts the Pyroscope profiler when cfg.Enabled, collecting
// CPU and heap profiles. Returns a shutdown function safe to call even when
// profiling was never started.
func InitProfiling(cfg ProfilingConfig) (shutdown func() error, err error) {
	if !cfg.Enabled {
		profilingEnabled = false
		return func() error { return nil }, nil
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ServiceName,
		ServerAddress:   cfg.Endpoint,
		Tags: map[string]string{
			"version": cfg.ServiceVersion,
		},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("starting pyroscope profiler: %w", err)
	}
	profilingEnabled = true

	return profiler.Stop, nil
}

// IsProfilingEnabled reports whether InitProfiling last started the
// profiler successfully.
func IsProfilingEnabled() bool {
	return profilingEnabled
}
