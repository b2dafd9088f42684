package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the speech relay
type Metrics struct {
	// Connection metrics
	ActiveConnections prometheus.Gauge
	ConnectionsTotal  prometheus.Counter

	// Stream metrics
	ActiveStreams  prometheus.Gauge
	StreamsStarted prometheus.Counter
	StreamsEnded   prometheus.Counter

	// Audio metrics
	ChunksForwarded prometheus.Counter
	ChunksDropped   prometheus.Counter
	BytesForwarded  prometheus.Counter

	// Transcription metrics
	TranscriptionsEmitted prometheus.Counter

	// Error metrics
	StreamStartFailures prometheus.Counter
	WriteFailures       prometheus.Counter
	UpstreamErrors      prometheus.Counter
}

// New creates and registers all Prometheus metrics with the given registerer
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_active_connections",
			Help: "Number of currently connected WebSocket clients",
		}),
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_connections_total",
			Help: "Total number of WebSocket connections accepted",
		}),
		ActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_active_streams",
			Help: "Number of currently open recognition streams",
		}),
		StreamsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_streams_started_total",
			Help: "Total number of recognition streams opened",
		}),
		StreamsEnded: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_streams_ended_total",
			Help: "Total number of recognition streams closed",
		}),
		ChunksForwarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_audio_chunks_forwarded_total",
			Help: "Total number of audio chunks forwarded upstream",
		}),
		ChunksDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_audio_chunks_dropped_total",
			Help: "Total number of audio chunks dropped because no live stream existed",
		}),
		BytesForwarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_audio_bytes_forwarded_total",
			Help: "Total number of audio bytes forwarded upstream",
		}),
		TranscriptionsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_transcriptions_emitted_total",
			Help: "Total number of transcription events sent to clients",
		}),
		StreamStartFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_stream_start_failures_total",
			Help: "Total number of failed attempts to open a recognition stream",
		}),
		WriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_write_failures_total",
			Help: "Total number of failed audio writes to a recognition stream",
		}),
		UpstreamErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_upstream_errors_total",
			Help: "Total number of non-benign errors reported by the recognition backend",
		}),
	}
}

// NewDefault creates metrics registered with the default Prometheus registry
func NewDefault() *Metrics {
	return New(prometheus.DefaultRegisterer)
}
