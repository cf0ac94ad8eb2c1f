package graph

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/teranos/discograph/errors"
)

// Build outcomes recorded on discograph_network_builds_total.
const (
	OutcomeOK          = "ok"
	OutcomeNotFound    = "not_found"
	OutcomeInvalid     = "invalid"
	OutcomeUnavailable = "unavailable"
	OutcomeCancelled   = "cancelled"
	OutcomeError       = "error"
)

// Metrics holds the Prometheus collectors for network builds. A nil *Metrics
// records nothing.
type Metrics struct {
	// Builds counts builds by outcome.
	Builds *prometheus.CounterVec

	// BuildSeconds measures wall time per build.
	BuildSeconds prometheus.Histogram

	// Nodes observes the node count of successful builds.
	Nodes prometheus.Histogram

	// PrunedRoles counts role prunings by role.
	PrunedRoles *prometheus.CounterVec
}

// NewMetrics creates the build collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Builds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "discograph",
				Name:      "network_builds_total",
				Help:      "Ego network builds by outcome",
			},
			[]string{"outcome"},
		),
		BuildSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "discograph",
			Name:      "network_build_seconds",
			Help:      "Time spent building one ego network",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		Nodes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "discograph",
			Name:      "network_nodes",
			Help:      "Nodes in each successfully built network",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 200, 400, 800, 1600},
		}),
		PrunedRoles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "discograph",
				Name:      "network_pruned_roles_total",
				Help:      "High fan-out roles pruned during builds",
			},
			[]string{"role"},
		),
	}
}

// Outcome classifies a build error for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCancelled
	case errors.IsNotFoundError(err):
		return OutcomeNotFound
	case errors.IsInvalidRequestError(err):
		return OutcomeInvalid
	case errors.IsServiceUnavailableError(err):
		return OutcomeUnavailable
	default:
		return OutcomeError
	}
}

func (m *Metrics) observeBuild(start time.Time, network *Network, err error) {
	if m == nil {
		return
	}
	m.Builds.WithLabelValues(Outcome(err)).Inc()
	m.BuildSeconds.Observe(time.Since(start).Seconds())
	if network != nil {
		m.Nodes.Observe(float64(len(network.Nodes)))
	}
}

func (m *Metrics) observePrune(role string) {
	if m == nil {
		return
	}
	m.PrunedRoles.WithLabelValues(role).Inc()
}
