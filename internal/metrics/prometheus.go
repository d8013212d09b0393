package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the pendant sync service.
type Metrics struct {
	// Discovery and connection metrics
	Scans              prometheus.Counter
	Connections        prometheus.Counter
	ConnectionFailures prometheus.Counter
	SessionDuration    prometheus.Histogram

	// Transfer metrics
	TransferAttempts prometheus.Counter
	TransferRetries  prometheus.Counter
	TransferStalls   prometheus.Counter
	TransferTimeouts prometheus.Counter
	TransferDuration prometheus.Histogram
	BytesReceived    prometheus.Counter
	ChunkSize        prometheus.Histogram

	// Recording metrics
	RecordingsSynced prometheus.Counter
	EmptyRecordings  prometheus.Counter
	ArtifactSize     prometheus.Histogram

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionDuration  prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics against the
// given registerer. Production passes prometheus.DefaultRegisterer; tests
// use a fresh registry per instance.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Discovery and connection metrics
		Scans: factory.NewCounter(prometheus.CounterOpts{
			Name: "pendant_scans_total",
			Help: "Total number of scan windows performed",
		}),
		Connections: factory.NewCounter(prometheus.CounterOpts{
			Name: "pendant_connections_total",
			Help: "Total number of successful connections to the pendant",
		}),
		ConnectionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "pendant_connection_failures_total",
			Help: "Total number of failed connection attempts",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pendant_session_duration_seconds",
			Help:    "Duration of completed sync sessions",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17 minutes
		}),

		// Transfer metrics
		TransferAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "pendant_transfer_attempts_total",
			Help: "Total number of transfer attempts started",
		}),
		TransferRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "pendant_transfer_retries_total",
			Help: "Total number of transfer retries after a failed attempt",
		}),
		TransferStalls: factory.NewCounter(prometheus.CounterOpts{
			Name: "pendant_transfer_stalls_total",
			Help: "Total number of attempts abandoned by the stall timeout",
		}),
		TransferTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "pendant_transfer_timeouts_total",
			Help: "Total number of attempts abandoned by the total timeout",
		}),
		TransferDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pendant_transfer_duration_seconds",
			Help:    "Duration of successful transfers",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 11), // 100ms to ~2 minutes
		}),
		BytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "pendant_transfer_bytes_received_total",
			Help: "Total audio payload bytes received over all attempts",
		}),
		ChunkSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pendant_transfer_chunk_size_bytes",
			Help:    "Size of individual notification chunks",
			Buckets: prometheus.ExponentialBuckets(8, 2, 8), // 8B to ~1KB
		}),

		// Recording metrics
		RecordingsSynced: factory.NewCounter(prometheus.CounterOpts{
			Name: "pendant_recordings_synced_total",
			Help: "Total number of recordings acknowledged to the pendant",
		}),
		EmptyRecordings: factory.NewCounter(prometheus.CounterOpts{
			Name: "pendant_empty_recordings_total",
			Help: "Total number of zero-size recordings acknowledged without transfer",
		}),
		ArtifactSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pendant_artifact_size_bytes",
			Help:    "Size of persisted MP3 artifacts",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12), // 1KB to ~4MB
		}),

		// Transcription metrics
		TranscriptionRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "pendant_transcription_requests_total",
			Help: "Total number of transcription requests sent",
		}),
		TranscriptionSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "pendant_transcription_successes_total",
			Help: "Total number of successful transcription requests",
		}),
		TranscriptionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "pendant_transcription_failures_total",
			Help: "Total number of failed transcription requests",
		}),
		TranscriptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pendant_transcription_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),

		// HTTP API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pendant_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pendant_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// RecordScan increments the scan counter.
func (m *Metrics) RecordScan() {
	m.Scans.Inc()
}

// RecordConnection increments the successful connection counter.
func (m *Metrics) RecordConnection() {
	m.Connections.Inc()
}

// RecordConnectionFailure increments the failed connection counter.
func (m *Metrics) RecordConnectionFailure() {
	m.ConnectionFailures.Inc()
}

// RecordSession records a completed sync session.
func (m *Metrics) RecordSession(durationSeconds float64) {
	m.SessionDuration.Observe(durationSeconds)
}

// RecordTransferAttempt increments the attempt counter, counting retries
// separately from first attempts.
func (m *Metrics) RecordTransferAttempt(attempt int) {
	m.TransferAttempts.Inc()
	if attempt > 1 {
		m.TransferRetries.Inc()
	}
}

// RecordTransferStall increments the stall-timeout counter.
func (m *Metrics) RecordTransferStall() {
	m.TransferStalls.Inc()
}

// RecordTransferTimeout increments the total-timeout counter.
func (m *Metrics) RecordTransferTimeout() {
	m.TransferTimeouts.Inc()
}

// RecordTransferComplete records a successful transfer.
func (m *Metrics) RecordTransferComplete(durationSeconds float64) {
	m.TransferDuration.Observe(durationSeconds)
}

// RecordChunk records one received notification chunk.
func (m *Metrics) RecordChunk(sizeBytes int) {
	m.BytesReceived.Add(float64(sizeBytes))
	m.ChunkSize.Observe(float64(sizeBytes))
}

// RecordRecordingSynced records an acknowledged recording.
func (m *Metrics) RecordRecordingSynced(empty bool) {
	m.RecordingsSynced.Inc()
	if empty {
		m.EmptyRecordings.Inc()
	}
}

// RecordArtifact records a persisted artifact.
func (m *Metrics) RecordArtifact(sizeBytes int) {
	m.ArtifactSize.Observe(float64(sizeBytes))
}

// RecordTranscriptionRequest increments the transcription request counter.
func (m *Metrics) RecordTranscriptionRequest() {
	m.TranscriptionRequests.Inc()
}

// RecordTranscriptionSuccess records a successful transcription.
func (m *Metrics) RecordTranscriptionSuccess(durationSeconds float64) {
	m.TranscriptionSuccesses.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionFailure records a failed transcription.
func (m *Metrics) RecordTranscriptionFailure(durationSeconds float64) {
	m.TranscriptionFailures.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}
