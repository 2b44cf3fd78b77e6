// Package metrics exposes Prometheus instruments for the extraction pipeline.
//
// All Collector methods are safe on a nil receiver so components can run without metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the pipeline's counters and histograms.
type Collector struct {
	documentsTotal    *prometheus.CounterVec
	attemptsTotal     *prometheus.CounterVec
	inferenceTotal    *prometheus.CounterVec
	inferenceDuration *prometheus.HistogramVec
	rowsPersisted     prometheus.Counter
	rowsRejected      *prometheus.CounterVec
	inferenceRestarts *prometheus.CounterVec
	documentsInFlight prometheus.Gauge
}

// NewCollector registers the instruments on reg under namespace.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		documentsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_total",
				Help:      "Documents finished, by outcome (succeeded, no_data, failed, resumed, load_error, persist_error).",
			},
			[]string{"outcome"},
		),
		attemptsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extraction_attempts_total",
				Help:      "Extraction attempts, by result (rows, empty_parse, empty_validation, transport_error, overload).",
			},
			[]string{"result"},
		),
		inferenceTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "inference_requests_total",
				Help:      "Inference calls, by call shape and status.",
			},
			[]string{"call", "status"},
		),
		inferenceDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "inference_request_duration_seconds",
				Help:      "Inference call latency in seconds.",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"call"},
		),
		rowsPersisted: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_persisted_total",
				Help:      "Rows appended to the result table.",
			},
		),
		rowsRejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_rejected_total",
				Help:      "Parsed rows dropped during validation, by reason.",
			},
			[]string{"reason"},
		),
		inferenceRestarts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "inference_restarts_total",
				Help:      "Out-of-band inference service restarts, by status.",
			},
			[]string{"status"},
		),
		documentsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "documents_in_flight",
				Help:      "Documents currently being processed.",
			},
		),
	}
}

func (c *Collector) Document(outcome string) {
	if c == nil {
		return
	}
	c.documentsTotal.WithLabelValues(outcome).Inc()
}

func (c *Collector) Attempt(result string) {
	if c == nil {
		return
	}
	c.attemptsTotal.WithLabelValues(result).Inc()
}

// Inference records one call; call is "check" or "extract".
func (c *Collector) Inference(call string, err error, elapsed time.Duration) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.inferenceTotal.WithLabelValues(call, status).Inc()
	c.inferenceDuration.WithLabelValues(call).Observe(elapsed.Seconds())
}

func (c *Collector) RowsPersisted(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.rowsPersisted.Add(float64(n))
}

func (c *Collector) RowsRejected(reason string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.rowsRejected.WithLabelValues(reason).Add(float64(n))
}

func (c *Collector) Restart(err error) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.inferenceRestarts.WithLabelValues(status).Inc()
}

// InFlight adjusts the in-flight gauge by delta.
func (c *Collector) InFlight(delta int) {
	if c == nil {
		return
	}
	c.documentsInFlight.Add(float64(delta))
}
