package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Runner metrics

	RunClaimLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "querycore",
		Name:      "run_claim_latency_seconds",
		Help:      "Time from run creation to a runner claiming it.",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	RunExecutionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "querycore",
		Name:      "run_execution_duration_seconds",
		Help:      "Duration of query execution against the tenant datasource.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"status"})

	RunsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "querycore",
		Name:      "runner_runs_in_flight",
		Help:      "Number of runs currently being executed by this runner.",
	})

	RunsCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "querycore",
		Name:      "runs_completed_total",
		Help:      "Total runs finished, by outcome.",
	}, []string{"outcome"})

	LimiterRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "querycore",
		Name:      "limiter_rejections_total",
		Help:      "Total runs rejected by the concurrency limiter, by scope.",
	}, []string{"scope"})

	// Reaper metrics

	ReaperSweptTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "querycore",
		Name:      "reaper_swept_total",
		Help:      "Total stale runs transitioned to timeout by the reaper.",
	}, []string{"action"})

	ReaperCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "querycore",
		Name:      "reaper_cycle_duration_seconds",
		Help:      "Time taken for one reaper cycle.",
		Buckets:   prometheus.DefBuckets,
	})

	// Scheduler metrics

	ScheduleFireLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "querycore",
		Name:      "schedule_fire_latency_seconds",
		Help:      "Time between a schedule's due time and it actually firing.",
		Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 300},
	})

	SchedulesFiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "querycore",
		Name:      "schedules_fired_total",
		Help:      "Total schedules claimed and fired.",
	})

	// Process lifecycle

	ProcessStartTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "querycore",
		Name:      "process_start_time_seconds",
		Help:      "Unix timestamp when the process started.",
	})

	ProcessShutdownsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "querycore",
		Name:      "process_shutdowns_total",
		Help:      "Number of times this process has shut down.",
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "querycore",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "querycore",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		RunClaimLatency,
		RunExecutionDuration,
		RunsInFlight,
		RunsCompletedTotal,
		LimiterRejectionsTotal,
		ReaperSweptTotal,
		ReaperCycleDuration,
		ScheduleFireLatency,
		SchedulesFiredTotal,
		ProcessStartTime,
		ProcessShutdownsTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux}
}
