package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	RoutedTurns     *prometheus.CounterVec
	ActiveLocks     prometheus.Gauge
	PlanWrites      prometheus.Counter
	CalendarSyncs   *prometheus.CounterVec
	ParkingCaptures prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		RoutedTurns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routed_turns_total",
			Help:      "Routed conversation turns by handler.",
		}, []string{"handler"}),
		ActiveLocks: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_session_locks",
			Help:      "Number of router sessions currently locked to a handler.",
		}),
		PlanWrites: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_writes_total",
			Help:      "Successful plan file writes.",
		}),
		CalendarSyncs: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calendar_syncs_total",
			Help:      "Calendar sync attempts by action and outcome.",
		}, []string{"action", "outcome"}),
		ParkingCaptures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parking_captures_total",
			Help:      "Thoughts captured by the parking side-channel.",
		}),
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
