package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the dubbing service
type Metrics struct {
	// Engine metrics
	BlocksProcessed prometheus.Counter
	ActiveVoices    prometheus.Gauge
	VoicesScheduled prometheus.Counter
	VoicesStopped   prometheus.Counter

	// Synthesis metrics
	SynthesisRequests  prometheus.Counter
	SynthesisSuccesses prometheus.Counter
	SynthesisFailures  prometheus.Counter
	SynthesisDuration  prometheus.Histogram
	SynthesisRetries   prometheus.Counter
	BufferDuration     prometheus.Histogram

	// Playback metrics
	PreviewsStarted  prometheus.Counter
	FullPassesRun    prometheus.Counter
	SegmentsSkipped  prometheus.Counter

	// Export metrics
	ExportsStarted   prometheus.Counter
	ExportsCompleted prometheus.Counter
	ExportsFailed    prometheus.Counter
	ExportDuration   prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Engine metrics
		BlocksProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "redub_engine_blocks_processed_total",
			Help: "Total number of audio blocks processed by the engine",
		}),
		ActiveVoices: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "redub_engine_active_voices",
			Help: "Current number of in-flight playback instances",
		}),
		VoicesScheduled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "redub_engine_voices_scheduled_total",
			Help: "Total number of clips scheduled on the mix bus",
		}),
		VoicesStopped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "redub_engine_voices_stopped_total",
			Help: "Total number of clips cancelled before finishing",
		}),

		// Synthesis metrics
		SynthesisRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "redub_synthesis_requests_total",
			Help: "Total number of synthesis requests sent",
		}),
		SynthesisSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "redub_synthesis_successes_total",
			Help: "Total number of successful synthesis requests",
		}),
		SynthesisFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "redub_synthesis_failures_total",
			Help: "Total number of failed synthesis requests",
		}),
		SynthesisDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "redub_synthesis_duration_seconds",
			Help:    "Duration of synthesis requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
		SynthesisRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "redub_synthesis_retries_total",
			Help: "Total number of synthesis request retries",
		}),
		BufferDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "redub_buffer_duration_seconds",
			Help:    "Duration of trimmed segment buffers",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 0.25s to ~1 minute
		}),

		// Playback metrics
		PreviewsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "redub_previews_started_total",
			Help: "Total number of single-segment previews started",
		}),
		FullPassesRun: promauto.NewCounter(prometheus.CounterOpts{
			Name: "redub_full_passes_total",
			Help: "Total number of full-timeline playback passes",
		}),
		SegmentsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "redub_segments_skipped_total",
			Help: "Total number of segments skipped for lacking a buffer",
		}),

		// Export metrics
		ExportsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "redub_exports_started_total",
			Help: "Total number of export passes started",
		}),
		ExportsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "redub_exports_completed_total",
			Help: "Total number of export passes completed",
		}),
		ExportsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "redub_exports_failed_total",
			Help: "Total number of export passes that failed",
		}),
		ExportDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "redub_export_duration_seconds",
			Help:    "Wall-clock duration of export passes",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		}),

		// HTTP API metrics
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "redub_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "redub_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "redub_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordBlockProcessed increments the engine block counter
func (m *Metrics) RecordBlockProcessed() {
	m.BlocksProcessed.Inc()
}

// SetActiveVoices sets the current number of in-flight clips
func (m *Metrics) SetActiveVoices(count int) {
	m.ActiveVoices.Set(float64(count))
}

// RecordVoiceScheduled increments the scheduled clip counter
func (m *Metrics) RecordVoiceScheduled() {
	m.VoicesScheduled.Inc()
}

// RecordVoicesStopped records a batch cancellation
func (m *Metrics) RecordVoicesStopped(count int) {
	m.VoicesStopped.Add(float64(count))
}

// RecordSynthesisRequest increments the synthesis request counter
func (m *Metrics) RecordSynthesisRequest() {
	m.SynthesisRequests.Inc()
}

// RecordSynthesisSuccess records a successful synthesis call and the
// trimmed buffer it produced
func (m *Metrics) RecordSynthesisSuccess(requestSeconds, bufferSeconds float64) {
	m.SynthesisSuccesses.Inc()
	m.SynthesisDuration.Observe(requestSeconds)
	m.BufferDuration.Observe(bufferSeconds)
}

// RecordSynthesisFailure records a failed synthesis call
func (m *Metrics) RecordSynthesisFailure(requestSeconds float64) {
	m.SynthesisFailures.Inc()
	m.SynthesisDuration.Observe(requestSeconds)
}

// RecordSynthesisRetry increments the retry counter
func (m *Metrics) RecordSynthesisRetry() {
	m.SynthesisRetries.Inc()
}

// RecordPreviewStarted increments the single-segment preview counter
func (m *Metrics) RecordPreviewStarted() {
	m.PreviewsStarted.Inc()
}

// RecordFullPass records a full-timeline pass and its skipped segments
func (m *Metrics) RecordFullPass(skipped int) {
	m.FullPassesRun.Inc()
	m.SegmentsSkipped.Add(float64(skipped))
}

// RecordExportStarted increments the export start counter
func (m *Metrics) RecordExportStarted() {
	m.ExportsStarted.Inc()
}

// RecordExportCompleted records a finished export
func (m *Metrics) RecordExportCompleted(durationSeconds float64) {
	m.ExportsCompleted.Inc()
	m.ExportDuration.Observe(durationSeconds)
}

// RecordExportFailed increments the export failure counter
func (m *Metrics) RecordExportFailed() {
	m.ExportsFailed.Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
