package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the playback engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	fetchesTotal      *prometheus.CounterVec
	fetchErrorsTotal  *prometheus.CounterVec
	bytesFetchedTotal *prometheus.CounterVec
	segmentsAppended  *prometheus.CounterVec
	tasksTotal        *prometheus.CounterVec
	taskErrorsTotal   *prometheus.CounterVec
	bandwidthEstimate prometheus.Gauge
	bufferedAhead     *prometheus.GaugeVec
	requestsTotal     prometheus.Counter
	errorsTotal       prometheus.Counter
}

// New creates and registers the engine metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		fetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hls_fetches_total",
			Help: "Resources fetched, by kind (manifest, segment, init, captions)",
		}, []string{"kind"}),
		fetchErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hls_fetch_errors_total",
			Help: "Failed resource fetches, by kind",
		}, []string{"kind"}),
		bytesFetchedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hls_bytes_fetched_total",
			Help: "Bytes of media fetched, by track kind",
		}, []string{"track"}),
		segmentsAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hls_segments_appended_total",
			Help: "Segments appended to a source buffer, by track kind",
		}, []string{"track"}),
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hls_orchestration_tasks_total",
			Help: "Orchestration tasks started, by unit",
		}, []string{"unit"}),
		taskErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hls_orchestration_task_errors_total",
			Help: "Orchestration tasks that failed with an error other than cancellation, by unit",
		}, []string{"unit"}),
		bandwidthEstimate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hls_bandwidth_estimate_bps",
			Help: "Current bandwidth estimate in bits per second",
		}),
		bufferedAhead: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hls_buffered_ahead_seconds",
			Help: "Seconds buffered ahead of the playhead, by track kind",
		}, []string{"track"}),
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hls_api_requests_total",
			Help: "Total number of control API requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hls_api_errors_total",
			Help: "Total number of control API responses with error status (4xx or 5xx)",
		}),
	}

	registry.MustRegister(
		m.fetchesTotal,
		m.fetchErrorsTotal,
		m.bytesFetchedTotal,
		m.segmentsAppended,
		m.tasksTotal,
		m.taskErrorsTotal,
		m.bandwidthEstimate,
		m.bufferedAhead,
		m.requestsTotal,
		m.errorsTotal,
	)
	return m
}

// ObserveFetch records one fetch of the given kind.
func (m *Metrics) ObserveFetch(kind string, err error) {
	if m == nil {
		return
	}
	m.fetchesTotal.WithLabelValues(kind).Inc()
	if err != nil {
		m.fetchErrorsTotal.WithLabelValues(kind).Inc()
	}
}

// AddBytes records n media bytes fetched for a track kind.
func (m *Metrics) AddBytes(track string, n int) {
	if m == nil {
		return
	}
	m.bytesFetchedTotal.WithLabelValues(track).Add(float64(n))
}

// IncSegmentsAppended counts one appended segment.
func (m *Metrics) IncSegmentsAppended(track string) {
	if m == nil {
		return
	}
	m.segmentsAppended.WithLabelValues(track).Inc()
}

// IncTask counts a started orchestration task.
func (m *Metrics) IncTask(unit string) {
	if m == nil {
		return
	}
	m.tasksTotal.WithLabelValues(unit).Inc()
}

// IncTaskError counts a failed orchestration task.
func (m *Metrics) IncTaskError(unit string) {
	if m == nil {
		return
	}
	m.taskErrorsTotal.WithLabelValues(unit).Inc()
}

// SetBandwidthEstimate sets the bandwidth gauge.
func (m *Metrics) SetBandwidthEstimate(bps float64) {
	if m == nil {
		return
	}
	m.bandwidthEstimate.Set(bps)
}

// SetBufferedAhead sets the forward buffer gauge for a track kind.
func (m *Metrics) SetBufferedAhead(track string, seconds float64) {
	if m == nil {
		return
	}
	m.bufferedAhead.WithLabelValues(track).Set(seconds)
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	if m == nil {
		return
	}
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	if m == nil {
		return
	}
	m.errorsTotal.Inc()
}

// TasksStarted returns the started-task counter of a unit.
func (m *Metrics) TasksStarted(unit string) prometheus.Counter {
	return m.tasksTotal.WithLabelValues(unit)
}

// TaskErrors returns the failed-task counter of a unit.
func (m *Metrics) TaskErrors(unit string) prometheus.Counter {
	return m.taskErrorsTotal.WithLabelValues(unit)
}

// Fetches returns the fetch counter for a resource kind.
func (m *Metrics) Fetches(kind string) prometheus.Counter {
	return m.fetchesTotal.WithLabelValues(kind)
}

// SegmentsAppended returns the appended-segment counter for a track kind.
func (m *Metrics) SegmentsAppended(track string) prometheus.Counter {
	return m.segmentsAppended.WithLabelValues(track)
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
