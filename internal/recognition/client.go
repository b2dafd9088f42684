package recognition

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sonavox/speech-relay/pkg/logger"
)

// DefaultBaseURL is the default recognition backend endpoint.
const DefaultBaseURL = "https://api.sonavox.dev"

// Client handles communication with the streaming recognition backend. It
// is constructed once at startup and shared read-only across all sessions.
type Client struct {
	creds      *Credentials
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a new recognition backend client. The base URL is
// resolved in order: explicit parameter, per-credential endpoint, default.
func NewClient(creds *Credentials, baseURL string, timeoutSeconds int, log *logger.Logger) *Client {
	timeout := time.Duration(timeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	base := strings.TrimRight(baseURL, "/")
	if base == "" && creds != nil {
		base = strings.TrimRight(creds.Endpoint, "/")
	}
	if base == "" {
		base = DefaultBaseURL
	}

	return &Client{
		creds:   creds,
		baseURL: base,
		logger:  log.Named("recognition"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// toWebSocketBase converts an http(s) base URL to the corresponding ws(s) URL.
// e.g. https://api.example -> wss://api.example
func toWebSocketBase(httpBase string) string {
	b := strings.TrimRight(httpBase, "/")
	if strings.HasPrefix(b, "https://") {
		return "wss://" + strings.TrimPrefix(b, "https://")
	} else if strings.HasPrefix(b, "http://") {
		return "ws://" + strings.TrimPrefix(b, "http://")
	}
	return b
}

// sessionRequest is the body of the session-create call.
type sessionRequest struct {
	Config sessionConfig `json:"config"`
}

type sessionConfig struct {
	Encoding                   string `json:"encoding"`
	SampleRateHz               int    `json:"sample_rate_hz"`
	LanguageCode               string `json:"language_code"`
	EnableAutomaticPunctuation bool   `json:"enable_automatic_punctuation"`
	Model                      string `json:"model"`
	InterimResults             bool   `json:"interim_results"`
}

type sessionResponse struct {
	SessionID    string `json:"session_id"`
	ClientSecret struct {
		Value     string `json:"value"`
		ExpiresAt int64  `json:"expires_at"`
	} `json:"client_secret"`
}

// createSession creates a new streaming recognition session and returns the
// session ID and short-lived client secret used for the WebSocket dial.
func (c *Client) createSession(ctx context.Context, cfg StreamConfig) (string, string, error) {
	reqBody := sessionRequest{
		Config: sessionConfig{
			Encoding:                   cfg.Encoding,
			SampleRateHz:               cfg.SampleRateHz,
			LanguageCode:               cfg.Language,
			EnableAutomaticPunctuation: cfg.Punctuate,
			Model:                      cfg.Model,
			InterimResults:             cfg.InterimResults,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal session request: %w", err)
	}

	apiURL := c.baseURL + "/v1/streaming/sessions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.creds.APIKey))
	if c.creds.ProjectID != "" {
		req.Header.Set("X-Project-Id", c.creds.ProjectID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", "", fmt.Errorf("unexpected status code: %d, response: %s", resp.StatusCode, string(bodyBytes))
	}

	var result sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", "", fmt.Errorf("failed to parse session response: %w", err)
	}

	c.logger.Debug("Created recognition session",
		logger.String("session_id", result.SessionID),
		logger.Int64("secret_expires_at", result.ClientSecret.ExpiresAt))

	return result.SessionID, result.ClientSecret.Value, nil
}

// OpenStream creates a recognition session and connects its WebSocket,
// returning a live duplex stream. Events are routed to the given Handler
// from a dedicated read loop until the stream ends or fails.
func (c *Client) OpenStream(ctx context.Context, cfg StreamConfig, h Handler) (Stream, error) {
	sessionID, clientSecret, err := c.createSession(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create recognition session: %w", err)
	}

	wsBase := toWebSocketBase(c.baseURL)
	wsURL := fmt.Sprintf("%s/v1/streaming?session_id=%s", wsBase, url.QueryEscape(sessionID))

	dialer := websocket.Dialer{
		HandshakeTimeout: 45 * time.Second,
	}

	headers := http.Header{}
	headers.Set("Authorization", fmt.Sprintf("Bearer %s", clientSecret))

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect recognition stream: %w", err)
	}
	c.logger.Debug("Connected recognition stream",
		logger.String("session_id", sessionID),
		logger.String("status", resp.Status))

	stream := &wsStream{
		conn:      conn,
		sessionID: sessionID,
		logger:    c.logger.With(logger.String("session_id", sessionID)),
	}

	go stream.readLoop(h)

	return stream, nil
}

// wsStream is a recognition stream backed by a WebSocket connection.
type wsStream struct {
	conn      *websocket.Conn
	sessionID string
	logger    *logger.Logger

	mu    sync.Mutex
	ended bool // no further writes once set
}

// audioMessage wraps one chunk of audio for the wire.
type audioMessage struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

// Write forwards raw audio bytes upstream as a base64-encoded append event.
func (s *wsStream) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return errors.New(WriteAfterEndMessage)
	}

	msg := audioMessage{
		Type:  "audio.append",
		Audio: base64.StdEncoding.EncodeToString(p),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal audio message: %w", err)
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send audio chunk: %w", err)
	}

	return nil
}

// End requests graceful closure of the stream. The backend flushes any
// pending results and replies with a stream.ended event, which terminates
// the read loop and closes the connection.
func (s *wsStream) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return nil
	}
	s.ended = true

	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"stream.end"}`)); err != nil {
		return fmt.Errorf("failed to send end request: %w", err)
	}

	return nil
}

// streamEvent is the envelope of every event read from the backend.
type streamEvent struct {
	Type    string         `json:"type"`
	Results []SpeechResult `json:"results,omitempty"`
	Error   *struct {
		Message string `json:"message"`
		Code    string `json:"code,omitempty"`
	} `json:"error,omitempty"`
}

// readLoop reads backend events and routes them into the handler until the
// stream ends or the connection fails.
func (s *wsStream) readLoop(h Handler) {
	defer s.conn.Close()

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			ended := s.ended
			s.mu.Unlock()
			if ended {
				// Expected during teardown after an End request.
				s.logger.Debug("Recognition stream closed", logger.Error(err))
				h.HandleEnd()
			} else {
				h.HandleError(err)
			}
			return
		}

		var event streamEvent
		if err := json.Unmarshal(message, &event); err != nil {
			s.logger.Error("Failed to parse stream event", logger.Error(err))
			continue
		}

		switch event.Type {
		case "result":
			h.HandleResult(Result{Results: event.Results})

		case "error":
			msg := "unknown recognition error"
			if event.Error != nil {
				msg = event.Error.Message
			}
			h.HandleError(errors.New(msg))

		case "stream.ended":
			s.mu.Lock()
			s.ended = true
			s.mu.Unlock()
			h.HandleEnd()
			return

		default:
			s.logger.Debug("Unhandled stream event type", logger.String("type", event.Type))
		}
	}
}
