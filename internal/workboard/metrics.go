package workboard

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/colonyops/workboard/internal/core/worker"
	"github.com/colonyops/workboard/internal/data/workdir"
)

// Metrics holds the Prometheus collectors of one server. Every method is
// safe on a nil receiver so services can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	mutations    *prometheus.CounterVec
	stalePatches prometheus.Counter
	queueWait    prometheus.Histogram
	queueRun     prometheus.Histogram
	workers      *prometheus.GaugeVec
	claims       prometheus.Gauge
	assignments  prometheus.Counter
	reverted     *prometheus.CounterVec
	requests     *prometheus.CounterVec
}

// NewMetrics registers the workboard collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workboard_mutations_total",
			Help: "Backlog mutations by operation and result.",
		}, []string{"op", "result"}),
		stalePatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "workboard_stale_patches_total",
			Help: "Commits rejected because a file changed since it was loaded.",
		}),
		queueWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "workboard_queue_wait_seconds",
			Help:    "Time a mutation spent waiting in the operation queue.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		queueRun: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "workboard_queue_run_seconds",
			Help:    "Time a mutation spent running.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		workers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "workboard_workers",
			Help: "Known workers by reported status.",
		}, []string{"status"}),
		claims: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "workboard_item_claims",
			Help: "Items currently claimed by a worker.",
		}),
		assignments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "workboard_assignments_total",
			Help: "Assignments pushed to workers.",
		}),
		reverted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workboard_tasks_reverted_total",
			Help: "Tasks put back to open, by reason.",
		}, []string{"reason"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workboard_http_requests_total",
			Help: "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.mutations, m.stalePatches, m.queueWait, m.queueRun,
		m.workers, m.claims, m.assignments, m.reverted, m.requests,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveQueue matches queue.Observer.
func (m *Metrics) ObserveQueue(_ string, wait, run time.Duration, _ error) {
	if m == nil {
		return
	}
	m.queueWait.Observe(wait.Seconds())
	m.queueRun.Observe(run.Seconds())
}

func (m *Metrics) mutation(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	switch {
	case errors.Is(err, workdir.ErrStalePatch):
		result = "stale"
		m.stalePatches.Inc()
	case err != nil:
		result = "error"
	}
	m.mutations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) workerStates(states []worker.State, claims int) {
	if m == nil {
		return
	}
	m.workers.Reset()
	for _, s := range []worker.Status{worker.StatusIdle, worker.StatusInProgress, worker.StatusBusy, worker.StatusDone} {
		m.workers.WithLabelValues(string(s)).Set(0)
	}
	for _, s := range states {
		m.workers.WithLabelValues(string(s.Status)).Inc()
	}
	m.claims.Set(float64(claims))
}

func (m *Metrics) assigned() {
	if m == nil {
		return
	}
	m.assignments.Inc()
}

func (m *Metrics) revert(reason string) {
	if m == nil {
		return
	}
	m.reverted.WithLabelValues(reason).Inc()
}

// ObserveRequest counts one HTTP response.
func (m *Metrics) ObserveRequest(method string, code int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}
