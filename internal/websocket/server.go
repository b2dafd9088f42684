package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sonavox/speech-relay/internal/metrics"
	"github.com/sonavox/speech-relay/pkg/logger"
)

// Inbound control message types
const (
	MessageTypeStartStream = "start_stream"
	MessageTypeEndStream   = "end_stream"
)

// Outbound message types
const (
	MessageTypeTranscription = "transcription"
	MessageTypeError         = "error"
)

// Message represents a WebSocket control or event message. Audio travels
// as raw binary frames, not as messages.
type Message struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// SessionController handles the transport events of a single connection.
// Events are delivered one at a time in arrival order from the read pump.
type SessionController interface {
	Start(ctx context.Context)
	AudioChunk(data []byte)
	Stop()
	Disconnect()
}

// SessionFactory creates the session controller for a newly accepted
// connection. The client doubles as the session's event emitter.
type SessionFactory func(connectionID string, client *Client) SessionController

// Client represents a connected WebSocket client
type Client struct {
	id         string
	conn       *websocket.Conn
	send       chan *Message
	server     *Server
	controller SessionController
	ctx        context.Context
	cancel     context.CancelFunc
	mu         sync.Mutex
	closed     bool
}

// Server represents the WebSocket transport layer
type Server struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	upgrader   websocket.Upgrader
	factory    SessionFactory
	metrics    *metrics.Metrics
	logger     *logger.Logger
	mu         sync.RWMutex
}

// NewServer creates a new WebSocket server. Handshakes are accepted only
// from the given origins; "*" allows any origin. Requests without an
// Origin header (non-browser clients) are always accepted.
func NewServer(allowedOrigins []string, factory SessionFactory, m *metrics.Metrics, log *logger.Logger) *Server {
	return &Server{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		factory:    factory,
		metrics:    m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range allowedOrigins {
					if allowed == "*" || allowed == origin {
						return true
					}
				}
				return false
			},
		},
		logger: log.Named("web-socket"),
	}
}

// Run starts the WebSocket server's registration loop
func (s *Server) Run() {
	s.logger.Info("Starting WebSocket server")

	for {
		select {
		case client := <-s.register:
			s.mu.Lock()
			s.clients[client] = true
			clientCount := len(s.clients)
			s.mu.Unlock()
			s.metrics.ActiveConnections.Inc()
			s.logger.Debug("Client registered",
				logger.String("connection_id", client.id),
				logger.Int("client_count", clientCount))

		case client := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				// Mark client as closed first to prevent new messages
				client.mu.Lock()
				client.closed = true
				client.mu.Unlock()
				close(client.send)
				s.metrics.ActiveConnections.Dec()
			}
			clientCount := len(s.clients)
			s.mu.Unlock()
			s.logger.Debug("Client unregistered",
				logger.String("connection_id", client.id),
				logger.Int("client_count", clientCount))
		}
	}
}

// ClientCount returns the number of currently connected clients
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// CloseAll closes every connected client, used during shutdown
func (s *Server) CloseAll() {
	s.mu.RLock()
	clients := make([]*Client, 0, len(s.clients))
	for client := range s.clients {
		clients = append(clients, client)
	}
	s.mu.RUnlock()

	for _, client := range clients {
		client.Close()
	}
}

// HandleConnection upgrades an HTTP request to a WebSocket connection and
// binds a new session to it
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("Handling new WebSocket connection request",
		logger.String("remote_addr", r.RemoteAddr))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection",
			logger.Error(err),
			logger.String("remote_addr", r.RemoteAddr))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan *Message, 256),
		server: s,
		ctx:    ctx,
		cancel: cancel,
	}
	client.controller = s.factory(client.id, client)

	s.metrics.ConnectionsTotal.Inc()
	s.logger.Info("Client connected",
		logger.String("connection_id", client.id),
		logger.String("remote_addr", r.RemoteAddr))

	s.register <- client

	go client.readPump()
	go client.writePump()
}

// ID returns the opaque identifier assigned to this connection
func (c *Client) ID() string {
	return c.id
}

// Transcription sends a transcription event to this client. Implements
// the session emitter contract.
func (c *Client) Transcription(text string) {
	c.SendMessage(&Message{
		Type: MessageTypeTranscription,
		Data: map[string]any{"text": text},
	})
}

// Error sends an error notification to this client. Implements the
// session emitter contract. The connection is never closed on error; the
// client decides whether to retry.
func (c *Client) Error(message string) {
	c.SendMessage(&Message{
		Type: MessageTypeError,
		Data: map[string]any{"message": message},
	})
}

// SendMessage queues a message for delivery to this client. Messages are
// dropped when the client cannot keep up.
func (c *Client) SendMessage(message *Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- message:
		return true
	default:
		c.server.logger.Warn("Client send channel full, dropping message",
			logger.String("connection_id", c.id),
			logger.String("message_type", message.Type))
		return false
	}
}

// Close closes the client connection. Marks the client closed first so no
// further messages are queued to a connection being torn down.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.conn.Close()
}

// readPump delivers inbound frames to the session controller, one at a
// time in arrival order. Binary frames carry raw audio; text frames carry
// JSON control messages. The session is torn down when the connection is
// lost, regardless of whether the client sent end_stream first.
func (c *Client) readPump() {
	defer func() {
		c.controller.Disconnect()
		c.cancel()
		c.server.unregister <- c
		c.conn.Close()
		c.server.logger.Info("Client disconnected", logger.String("connection_id", c.id))
	}()

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.server.logger.Error("WebSocket read error",
					logger.Error(err),
					logger.String("connection_id", c.id))
			}
			break
		}

		switch msgType {
		case websocket.BinaryMessage:
			c.controller.AudioChunk(data)

		case websocket.TextMessage:
			var message Message
			if err := json.Unmarshal(data, &message); err != nil {
				c.server.logger.Error("Failed to parse WebSocket message",
					logger.Error(err),
					logger.String("connection_id", c.id))
				continue
			}

			switch message.Type {
			case MessageTypeStartStream:
				c.controller.Start(c.ctx)
			case MessageTypeEndStream:
				c.controller.Stop()
			default:
				c.server.logger.Debug("Unhandled message type",
					logger.String("type", message.Type),
					logger.String("connection_id", c.id))
			}
		}
	}
}

// writePump pumps queued messages to the WebSocket connection
func (c *Client) writePump() {
	defer c.conn.Close()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(message)
			if err != nil {
				c.server.logger.Error("Failed to marshal message", logger.Error(err))
				continue
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}
