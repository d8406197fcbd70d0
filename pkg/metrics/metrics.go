package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RoleDesired = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "roleam",
		Name:      "role_desired",
		Help:      "Desired container count for a role.",
	}, []string{"role"})

	RoleActual = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "roleam",
		Name:      "role_actual",
		Help:      "Actual live container count for a role.",
	}, []string{"role"})

	RoleRequested = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "roleam",
		Name:      "role_requested",
		Help:      "Outstanding container requests for a role.",
	}, []string{"role"})

	RoleFailedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roleam",
		Name:      "role_failed_total",
		Help:      "Cumulative container failures for a role.",
	}, []string{"role"})

	ReviewCyclesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "roleam",
		Name:      "review_cycles_total",
		Help:      "Total number of review passes run.",
	})

	ReviewDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "roleam",
		Name:      "review_duration_seconds",
		Help:      "Time spent in one review pass.",
		Buckets:   prometheus.DefBuckets,
	})

	SurplusContainersTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "roleam",
		Name:      "surplus_containers_total",
		Help:      "Containers released immediately because the resource manager over-allocated.",
	})

	UnknownCompletionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "roleam",
		Name:      "unknown_completions_total",
		Help:      "Completion events for containers the engine had no record of.",
	})

	TeardownTriggersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roleam",
		Name:      "teardown_triggers_total",
		Help:      "Times a role's failure count crossed its configured threshold.",
	}, []string{"role"})
)

func init() {
	prometheus.MustRegister(
		RoleDesired,
		RoleActual,
		RoleRequested,
		RoleFailedTotal,
		ReviewCyclesTotal,
		ReviewDuration,
		SurplusContainersTotal,
		UnknownCompletionsTotal,
		TeardownTriggersTotal,
	)
}

// Handler exposes the registered collectors for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer starts a histogram observer; call the returned func when the
// timed operation completes.
func Timer(h prometheus.Histogram) func() {
	start := time.Now()
	return func() {
		h.Observe(time.Since(start).Seconds())
	}
}
