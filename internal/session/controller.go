package session

import (
	"context"
	"sync"

	"github.com/sonavox/speech-relay/internal/metrics"
	"github.com/sonavox/speech-relay/internal/recognition"
	"github.com/sonavox/speech-relay/pkg/logger"
)

// Client-facing error messages, one per failure category.
const (
	msgNotConfigured = "Speech-to-Text service is not configured"
	msgStartFailed   = "Failed to start stream"
	msgAudioFailed   = "Failed to process audio data"
	msgUpstreamError = "Speech recognition error: "
)

// Emitter sends events back to the client that owns this session.
// Implementations must be safe for concurrent use.
type Emitter interface {
	// Transcription delivers one recognized utterance or partial.
	Transcription(text string)

	// Error delivers a human-readable failure description.
	Error(message string)
}

// Controller owns the recognition stream of a single client connection.
// It maps transport events (start, audio, stop, disconnect) onto the
// stream's lifecycle and routes the stream's events back to the client.
//
// At most one stream is open at a time. Client events arrive from the
// transport read pump while stream events arrive from the gateway read
// loop, so all state is guarded by a mutex. A generation counter ties
// stream callbacks to the stream they belong to, so events from an
// already-replaced stream cannot corrupt the current one.
type Controller struct {
	connID  string
	gateway recognition.Streamer // nil when the backend is not configured
	cfg     recognition.StreamConfig
	emitter Emitter
	metrics *metrics.Metrics
	logger  *logger.Logger

	mu     sync.Mutex
	stream recognition.Stream
	ended  bool
	gen    int
}

// NewController creates the session controller for one client connection.
// Pass a nil gateway when the recognition backend is not configured; every
// start request will then surface a configuration error to the client.
func NewController(
	connID string,
	gateway recognition.Streamer,
	cfg recognition.StreamConfig,
	emitter Emitter,
	m *metrics.Metrics,
	log *logger.Logger,
) *Controller {
	return &Controller{
		connID:  connID,
		gateway: gateway,
		cfg:     cfg,
		emitter: emitter,
		metrics: m,
		logger:  log.Named("session").With(logger.String("connection_id", connID)),
	}
}

// Start opens a new recognition stream for this session. If a stream is
// already open it is closed first; its remaining events are discarded via
// the generation check. On failure no stream is installed and the client
// is notified.
func (c *Controller) Start(ctx context.Context) {
	if c.gateway == nil {
		c.logger.Warn("Stream start rejected, recognition backend not configured")
		c.emitter.Error(msgNotConfigured)
		return
	}

	c.mu.Lock()
	if old := c.stream; old != nil && !c.ended {
		c.logger.Warn("Stream already open on start request, closing previous stream")
		if err := old.End(); err != nil {
			c.logger.Error("Failed to close previous stream", logger.Error(err))
		}
		c.metrics.StreamsEnded.Inc()
		c.metrics.ActiveStreams.Dec()
	}
	c.stream = nil
	c.ended = true
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	stream, err := c.gateway.OpenStream(ctx, c.cfg, &streamHandler{c: c, gen: gen})
	if err != nil {
		c.metrics.StreamStartFailures.Inc()
		c.logger.Error("Failed to open recognition stream", logger.Error(err))
		c.emitter.Error(msgStartFailed)
		return
	}

	c.mu.Lock()
	if c.gen != gen {
		// Replaced while opening; close the now-orphaned stream.
		c.mu.Unlock()
		if err := stream.End(); err != nil {
			c.logger.Error("Failed to close orphaned stream", logger.Error(err))
		}
		return
	}
	c.stream = stream
	c.ended = false
	c.mu.Unlock()

	c.metrics.StreamsStarted.Inc()
	c.metrics.ActiveStreams.Inc()
	c.logger.Info("Recognition stream opened",
		logger.String("model", c.cfg.Model),
		logger.String("language", c.cfg.Language))
}

// AudioChunk forwards raw audio bytes to the live stream, preserving
// arrival order. Chunks arriving without a live stream are dropped, never
// buffered. A write failure is surfaced to the client but does not close
// the stream; the next chunk may still succeed or the stream's own error
// event will tear it down.
func (c *Controller) AudioChunk(data []byte) {
	c.mu.Lock()
	stream := c.stream
	ended := c.ended
	c.mu.Unlock()

	if stream == nil || ended {
		c.metrics.ChunksDropped.Inc()
		return
	}

	if err := stream.Write(data); err != nil {
		c.metrics.WriteFailures.Inc()
		c.logger.Error("Failed to forward audio chunk",
			logger.Error(err),
			logger.Int("bytes", len(data)))
		c.emitter.Error(msgAudioFailed)
		return
	}

	c.metrics.ChunksForwarded.Inc()
	c.metrics.BytesForwarded.Add(float64(len(data)))
}

// Stop requests graceful closure of the live stream and clears it.
// Idempotent: calling without a live stream is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	stream := c.stream
	if stream == nil || c.ended {
		c.mu.Unlock()
		return
	}
	c.ended = true
	c.stream = nil
	c.mu.Unlock()

	if err := stream.End(); err != nil {
		// The stream is going away regardless; log only.
		c.logger.Error("Failed to close recognition stream", logger.Error(err))
	}

	c.metrics.StreamsEnded.Inc()
	c.metrics.ActiveStreams.Dec()
	c.logger.Info("Recognition stream closed")
}

// Disconnect tears down the session when the client connection is lost.
// Invoked unconditionally by the transport layer, including after a prior
// Stop.
func (c *Controller) Disconnect() {
	c.Stop()
}

// handleResult forwards the first alternative of the first result to the
// client. Each event is forwarded independently and immediately; nothing
// is buffered across calls.
func (c *Controller) handleResult(gen int, res recognition.Result) {
	c.mu.Lock()
	stale := gen != c.gen
	c.mu.Unlock()
	if stale {
		c.logger.Debug("Dropping result from replaced stream")
		return
	}

	if len(res.Results) == 0 || len(res.Results[0].Alternatives) == 0 {
		return
	}
	text := res.Results[0].Alternatives[0].Transcript
	if text == "" {
		return
	}

	c.metrics.TranscriptionsEmitted.Inc()
	c.emitter.Transcription(text)
}

// handleError processes an asynchronous stream failure. The benign
// write-after-end race is suppressed entirely; any other error is surfaced
// to the client and treated as terminal, transitioning the session back to
// the no-stream state so later chunks are dropped instead of hitting a
// broken stream.
func (c *Controller) handleError(gen int, err error) {
	if err.Error() == recognition.WriteAfterEndMessage {
		c.logger.Debug("Suppressed benign write-after-end race")
		return
	}

	c.mu.Lock()
	stream := c.stream
	live := gen == c.gen && stream != nil
	if live {
		c.stream = nil
		c.ended = true
	} else if gen == c.gen {
		// Failed before Start could install the stream; invalidate the
		// pending install so the handle is treated as orphaned.
		c.gen++
	}
	c.mu.Unlock()

	if !live {
		c.logger.Debug("Ignoring error from torn-down stream", logger.Error(err))
		return
	}

	// The stream does not close itself on an error event; request closure
	// so its connection and read loop terminate.
	if endErr := stream.End(); endErr != nil {
		c.logger.Error("Failed to close failed stream", logger.Error(endErr))
	}

	c.metrics.UpstreamErrors.Inc()
	c.metrics.StreamsEnded.Inc()
	c.metrics.ActiveStreams.Dec()
	c.logger.Error("Recognition stream error", logger.Error(err))
	c.emitter.Error(msgUpstreamError + err.Error())
}

// handleEnd processes the backend finishing the stream on its own, for
// example due to service-side limits. Later audio chunks are then safely
// dropped.
func (c *Controller) handleEnd(gen int) {
	c.mu.Lock()
	cleared := gen == c.gen && c.stream != nil
	if cleared {
		c.stream = nil
		c.ended = true
	} else if gen == c.gen {
		// Ended before Start could install the stream; invalidate the
		// pending install so the handle is treated as orphaned.
		c.gen++
	}
	c.mu.Unlock()

	if cleared {
		c.metrics.StreamsEnded.Inc()
		c.metrics.ActiveStreams.Dec()
		c.logger.Info("Recognition stream ended by backend")
	}
}

// streamHandler routes one stream's events into the controller, tagged
// with the generation the stream was opened under.
type streamHandler struct {
	c   *Controller
	gen int
}

func (h *streamHandler) HandleResult(res recognition.Result) { h.c.handleResult(h.gen, res) }
func (h *streamHandler) HandleError(err error)               { h.c.handleError(h.gen, err) }
func (h *streamHandler) HandleEnd()                          { h.c.handleEnd(h.gen) }
