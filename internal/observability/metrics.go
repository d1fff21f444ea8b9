package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	activeSessions  prometheus.Gauge
	sessionInits    *prometheus.CounterVec
	lockWait        prometheus.Histogram
	lockTimeouts    prometheus.Counter
	forcedReleases  prometheus.Counter

	stepTotal    *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec

	parseTotal  *prometheus.CounterVec
	parseErrors *prometheus.CounterVec

	modelCallTotal    *prometheus.CounterVec
	modelCallDuration *prometheus.HistogramVec

	streamEvents *prometheus.CounterVec
	abortedRuns  prometheus.Counter
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "device_sessions_active",
					Help: "Current number of initialized device sessions.",
				},
			),
			sessionInits: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "device_session_inits_total",
					Help: "Total session initializations by agent type.",
				},
				[]string{"agent_type"},
			),
			lockWait: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "device_lock_wait_seconds",
					Help:    "Time spent waiting for a device lock.",
					Buckets: prometheus.DefBuckets,
				},
			),
			lockTimeouts: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "device_lock_timeouts_total",
					Help: "Total device lock acquisitions that timed out.",
				},
			),
			forcedReleases: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "device_lock_forced_releases_total",
					Help: "Total device lock releases without a matching lease.",
				},
			),
			stepTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agent_steps_total",
					Help: "Total agent steps by agent type and status.",
				},
				[]string{"agent_type", "status"},
			),
			stepDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "agent_step_duration_seconds",
					Help:    "Single agent step duration by agent type.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"agent_type"},
			),
			parseTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "response_parse_total",
					Help: "Total model response parses by dialect.",
				},
				[]string{"dialect"},
			),
			parseErrors: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "response_parse_errors_total",
					Help: "Total malformed model responses by dialect.",
				},
				[]string{"dialect"},
			),
			modelCallTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "model_calls_total",
					Help: "Total model API calls by provider and status.",
				},
				[]string{"provider", "status"},
			),
			modelCallDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "model_call_duration_seconds",
					Help:    "Model API call duration by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			streamEvents: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "stream_events_total",
					Help: "Total streamed events by event type.",
				},
				[]string{"type"},
			),
			abortedRuns: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "aborted_runs_total",
					Help: "Total runs ended by a cooperative abort.",
				},
			),
		}

		prometheus.MustRegister(
			m.activeSessions,
			m.sessionInits,
			m.lockWait,
			m.lockTimeouts,
			m.forcedReleases,
			m.stepTotal,
			m.stepDuration,
			m.parseTotal,
			m.parseErrors,
			m.modelCallTotal,
			m.modelCallDuration,
			m.streamEvents,
			m.abortedRuns,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func SetActiveSessions(count int) {
	getMetrics().activeSessions.Set(float64(count))
}

func RecordSessionInit(agentType string) {
	getMetrics().sessionInits.WithLabelValues(agentType).Inc()
}

func RecordLockWait(duration time.Duration, acquired bool) {
	m := getMetrics()
	m.lockWait.Observe(duration.Seconds())
	if !acquired {
		m.lockTimeouts.Inc()
	}
}

func RecordForcedRelease() {
	getMetrics().forcedReleases.Inc()
}

func RecordStep(agentType string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.stepTotal.WithLabelValues(agentType, status).Inc()
	m.stepDuration.WithLabelValues(agentType).Observe(duration.Seconds())
}

func RecordParse(dialect string, success bool) {
	m := getMetrics()
	m.parseTotal.WithLabelValues(dialect).Inc()
	if !success {
		m.parseErrors.WithLabelValues(dialect).Inc()
	}
}

func RecordModelCall(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.modelCallTotal.WithLabelValues(provider, status).Inc()
	m.modelCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func RecordStreamEvent(eventType string) {
	getMetrics().streamEvents.WithLabelValues(eventType).Inc()
}

func RecordAbort() {
	getMetrics().abortedRuns.Inc()
}
