package metrics

import (
	"net/http"

	"github.com/hqc-labs/huddle-delivery/internal/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Executor metrics

	ScheduleExecutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "delivery",
		Name:      "schedule_executions_total",
		Help:      "Total schedule executions, by outcome.",
	}, []string{"outcome"})

	ExecutionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "delivery",
		Name:      "schedule_execution_duration_seconds",
		Help:      "Duration of one schedule execution (publish + notify + persist).",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"outcome"})

	SchedulesInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "delivery",
		Name:      "schedules_in_flight",
		Help:      "Number of schedule executions currently running.",
	})

	SchedulesAutoDisabledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "delivery",
		Name:      "schedules_auto_disabled_total",
		Help:      "Schedules moved to FAILED by the consecutive-failure threshold.",
	})

	// Poller metrics

	PollCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "delivery",
		Name:      "poll_cycle_duration_seconds",
		Help:      "Time taken for one poll tick (claim + dispatch).",
		Buckets:   prometheus.DefBuckets,
	})

	SchedulesClaimedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "delivery",
		Name:      "schedules_claimed_total",
		Help:      "Due schedules claimed for execution.",
	})

	// Reminder sweep metrics

	RemindersSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "delivery",
		Name:      "reminders_sent_total",
		Help:      "Pre-release reminders sent.",
	})

	// Janitor metrics

	StaleClaimsReleasedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "delivery",
		Name:      "stale_claims_released_total",
		Help:      "Claims released after their holder went silent.",
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "delivery",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "delivery",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		ScheduleExecutionsTotal,
		ExecutionDuration,
		SchedulesInFlight,
		SchedulesAutoDisabledTotal,
		PollCycleDuration,
		SchedulesClaimedTotal,
		RemindersSentTotal,
		StaleClaimsReleasedTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// NewServer exposes /metrics plus liveness and readiness probes.
func NewServer(addr string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", checker.LivenessHandler)
	mux.HandleFunc("/readyz", checker.ReadinessHandler)
	return &http.Server{Addr: addr, Handler: mux}
}
