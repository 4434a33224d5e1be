// Package metrics defines the observability interfaces the transfer engine
// and session manager accept, and a process-wide Prometheus registry those
// implementations register against.
//
// Every interface here is optional: a nil interface value may be passed
// to disable metrics, and callers check for nil before recording. The
// Prometheus implementations' methods are also no-ops on a nil receiver.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registryOnce sync.Once
	registry     *prometheus.Registry
)

// InitRegistry creates the process-wide registry backing /metrics. It is
// idempotent; call it once during startup before constructing any
// Prometheus-backed metrics implementation.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			prometheus.NewGoCollector(),
			prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		)
	})
}

// IsEnabled reports whether InitRegistry has been called. Constructors in
// pkg/metrics/prometheus use this to return a nil implementation when
// metrics were never initialized, keeping the zero-overhead-when-disabled
// contract.
func IsEnabled() bool {
	return registry != nil
}

// GetRegistry returns the process-wide registry. Callers must only invoke
// this after InitRegistry; it panics otherwise, since a constructor that
// reaches this point without checking IsEnabled first is a programming
// error.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		panic("metrics: GetRegistry called before InitRegistry")
	}
	return registry
}
