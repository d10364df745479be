// Package metrics defines the instrumentation seam for checkout
// operations: event counters and operation latencies, labeled by
// network. The facade records through the Recorder interface; the
// Prometheus implementation is opt-in.
package metrics

import "time"

// Recorder counts events and observes operation latencies.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
