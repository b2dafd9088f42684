package recognition

import "context"

// WriteAfterEndMessage is the error message produced when audio is written
// to a stream that has already finished. A write racing a just-ended stream
// is expected during normal teardown, so consumers treat this message as
// benign.
const WriteAfterEndMessage = "write after end"

// StreamConfig is the fixed configuration sent when opening a recognition
// stream.
type StreamConfig struct {
	Encoding       string // audio encoding, e.g. "linear16"
	SampleRateHz   int    // sample rate of the forwarded audio
	Language       string // BCP-47 language code, e.g. "en-US"
	Punctuate      bool   // enable automatic punctuation
	Model          string // model variant, e.g. "latest_short" for short utterances
	InterimResults bool   // request interim (partial) results
}

// Alternative is a single candidate transcript for a span of speech.
type Alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// SpeechResult holds the candidate transcripts for one recognized span.
type SpeechResult struct {
	Alternatives []Alternative `json:"alternatives"`
	IsFinal      bool          `json:"is_final"`
}

// Result is a single recognition event emitted by the backend. Partial
// results may repeat or extend previous text depending on the backend's
// own semantics.
type Result struct {
	Results []SpeechResult `json:"results"`
}

// Handler receives the asynchronous events of one recognition stream.
// Implementations must tolerate events arriving after they have requested
// the stream to end.
type Handler interface {
	// HandleResult is invoked for each recognition result.
	HandleResult(res Result)

	// HandleError is invoked when the stream fails. An error whose message
	// is exactly WriteAfterEndMessage indicates the benign teardown race.
	HandleError(err error)

	// HandleEnd is invoked when the stream finishes on its own, for
	// example due to service-side limits.
	HandleEnd()
}

// Stream is an open bidirectional recognition stream. It accepts raw audio
// bytes and a graceful close request; results arrive through the Handler
// registered at open time.
type Stream interface {
	// Write forwards raw audio bytes upstream.
	Write(p []byte) error

	// End requests graceful closure. Further writes fail.
	End() error
}

// Streamer opens recognition streams. A single Streamer is long-lived and
// safe for concurrent use by many sessions; only the streams it creates
// are per-session.
type Streamer interface {
	OpenStream(ctx context.Context, cfg StreamConfig, h Handler) (Stream, error)
}
