package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Allocation records inbound-call allocation outcomes. A nil *Allocation is a
// valid no-op recorder.
type Allocation struct {
	outcomes  *prometheus.CounterVec
	duration  prometheus.Histogram
	conflicts prometheus.Counter
}

// NewAllocation registers the allocation metrics on reg.
func NewAllocation(reg prometheus.Registerer) *Allocation {
	if reg == nil {
		return &Allocation{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dispatch",
		Name:      "allocations_total",
		Help:      "Inbound call allocations by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "dispatch",
		Name:      "allocation_duration_seconds",
		Help:      "Time spent deciding an inbound call allocation.",
		Buckets:   prometheus.DefBuckets,
	})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "dispatch",
		Name:      "claim_conflicts_total",
		Help:      "Worker claims lost to a concurrent allocation.",
	})
	reg.MustRegister(outcomes, duration, conflicts)
	return &Allocation{outcomes: outcomes, duration: duration, conflicts: conflicts}
}

// Observe records one finished allocation.
func (a *Allocation) Observe(outcome string, took time.Duration) {
	if a == nil || a.outcomes == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	a.outcomes.WithLabelValues(outcome).Inc()
	a.duration.Observe(took.Seconds())
}

// IncConflict records a lost claim race.
func (a *Allocation) IncConflict() {
	if a == nil || a.conflicts == nil {
		return
	}
	a.conflicts.Inc()
}
