package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes Prometheus metrics for the hunt engine and the
// reporting API. It carries its own registry so tests can build
// isolated collectors.
type Collector struct {
	registry *prometheus.Registry

	taskDuration *prometheus.HistogramVec
	tasksTotal   *prometheus.CounterVec
	snapshots    *prometheus.CounterVec
	triggerRuns  *prometheus.CounterVec

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

// New constructs a collector with the default instruments registered.
func New() (*Collector, error) {
	registry := prometheus.NewRegistry()

	taskDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "metrico",
		Subsystem: "hunt",
		Name:      "task_duration_seconds",
		Help:      "Latency distribution for per-entity refresh tasks.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind", "result"})

	tasksTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "metrico",
		Subsystem: "hunt",
		Name:      "tasks_total",
		Help:      "Total number of per-entity refresh tasks.",
	}, []string{"kind", "result"})

	snapshots := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "metrico",
		Subsystem: "store",
		Name:      "ingests_total",
		Help:      "Total number of refresh payloads written to the store.",
	}, []string{"kind"})

	triggerRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "metrico",
		Subsystem: "trigger",
		Name:      "runs_total",
		Help:      "Total number of trigger runs by outcome.",
	}, []string{"trigger", "result"})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "metrico",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for inbound HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "metrico",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of inbound HTTP requests.",
	}, []string{"method", "path", "status"})

	for _, c := range []prometheus.Collector{taskDuration, tasksTotal, snapshots, triggerRuns, requestDuration, requestTotal} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Collector{
		registry:        registry,
		taskDuration:    taskDuration,
		tasksTotal:      tasksTotal,
		snapshots:       snapshots,
		triggerRuns:     triggerRuns,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
	}, nil
}

// ObserveTask records one per-entity refresh task.
func (c *Collector) ObserveTask(kind string, err error, duration time.Duration) {
	if c == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	c.tasksTotal.WithLabelValues(kind, result).Inc()
	c.taskDuration.WithLabelValues(kind, result).Observe(duration.Seconds())
}

// ObserveIngest records one refresh payload written to the store.
func (c *Collector) ObserveIngest(kind string) {
	if c == nil {
		return
	}
	c.snapshots.WithLabelValues(kind).Inc()
}

// ObserveTriggerRun records one finished trigger run.
func (c *Collector) ObserveTriggerRun(trigger string, success bool) {
	if c == nil {
		return
	}
	result := "success"
	if !success {
		result = "failed"
	}
	c.triggerRuns.WithLabelValues(trigger, result).Inc()
}

// Handler returns an HTTP handler exposing the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
