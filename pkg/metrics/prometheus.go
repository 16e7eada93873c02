package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	candidatesTotal  *prometheus.CounterVec
	malformedTotal   prometheus.Counter
	gateRejectsTotal *prometheus.CounterVec
	bufferedTotal    prometheus.Counter
	bufferSize       prometheus.Gauge
	distributedTotal *prometheus.CounterVec
	quotaDenials     *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	latency          *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		candidatesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ignitex_candidates_total",
				Help: "Total raw candidates accepted by ingress",
			},
			[]string{"strategy"},
		),
		malformedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ignitex_malformed_candidates_total",
				Help: "Total candidates rejected by ingress validation",
			},
		),
		gateRejectsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ignitex_gate_rejects_total",
				Help: "Total gate rejections by stage",
			},
			[]string{"stage"},
		),
		bufferedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ignitex_buffered_total",
				Help: "Total signals admitted to the buffer",
			},
		),
		bufferSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ignitex_buffer_size",
				Help: "Current number of buffered signals",
			},
		),
		distributedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ignitex_distributed_total",
				Help: "Total signals distributed by tier",
			},
			[]string{"tier"},
		),
		quotaDenials: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ignitex_quota_denials_total",
				Help: "Total release skips due to exhausted quota by tier",
			},
			[]string{"tier"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ignitex_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ignitex_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordCandidate(strategy string) {
	r.candidatesTotal.WithLabelValues(strategy).Inc()
}

func (r *Recorder) RecordMalformed() {
	r.malformedTotal.Inc()
}

func (r *Recorder) RecordGateReject(stage string) {
	r.gateRejectsTotal.WithLabelValues(stage).Inc()
}

func (r *Recorder) RecordBuffered() {
	r.bufferedTotal.Inc()
}

func (r *Recorder) RecordBufferSize(n int) {
	r.bufferSize.Set(float64(n))
}

func (r *Recorder) RecordDistributed(tier string) {
	r.distributedTotal.WithLabelValues(tier).Inc()
}

func (r *Recorder) RecordQuotaDenied(tier string) {
	r.quotaDenials.WithLabelValues(tier).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
