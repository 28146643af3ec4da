package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Server to client message types
const (
	TypeConnection            = "connection"
	TypeSubscriptionConfirmed = "subscription_confirmed"
	TypePong                  = "pong"
	TypeStats                 = "webhook_stats"
	TypeError                 = "error"
)

const (
	pingInterval = 30 * time.Second
	staleAfter   = 5 * time.Minute
	writeWait    = 10 * time.Second
	maxMessage   = 64 * 1024
	sendBuffer   = 64
)

// Message is the envelope of every server frame
type Message struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// control is a client to server message
type control struct {
	Type string `json:"type"`
	Data struct {
		Events []string `json:"events"`
	} `json:"data"`
}

// Recorder stores broadcast analytics (webhook_broadcast_logs)
type Recorder interface {
	RecordBroadcast(ctx context.Context, eventType string, data any, recipients int) error
}

// StatsFunc answers get_stats requests
type StatsFunc func(ctx context.Context) (any, error)

// Option configures a Hub
type Option func(*Hub)

// WithClock replaces the wall clock
func WithClock(c clockwork.Clock) Option {
	return func(h *Hub) { h.clock = c }
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

// WithRecorder enables broadcast analytics logging
func WithRecorder(r Recorder) Option {
	return func(h *Hub) { h.recorder = r }
}

// WithStats sets the get_stats responder
func WithStats(f StatsFunc) Option {
	return func(h *Hub) { h.stats = f }
}

// WithCheckOrigin overrides the upgrader origin policy
func WithCheckOrigin(f func(r *http.Request) bool) Option {
	return func(h *Hub) { h.upgrader.CheckOrigin = f }
}

/* Hub is the real-time broadcast registry
 * Fan-out never blocks on a slow client: each client has a buffered queue
 * drained by its own write pump
 */
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	upgrader websocket.Upgrader
	clock    clockwork.Clock
	logger   zerolog.Logger
	recorder Recorder
	stats    StatsFunc
}

// NewHub creates an empty hub
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients: make(map[string]*Client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clock:  clockwork.NewRealClock(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request and serves the connection until it closes
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := newClient(uuid.New().String(), r.URL.Query().Get("user_id"), conn, sendBuffer, h.clock.Now())
	h.register(c)

	go h.writePump(c)
	h.send(c, TypeConnection, map[string]any{
		"client_id": c.ID,
		"user_id":   c.UserID,
	})
	h.readPump(r.Context(), c)
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Info().Str("client_id", c.ID).Str("user_id", c.UserID).Int("clients", total).Msg("websocket client connected")
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c.ID]
	delete(h.clients, c.ID)
	h.mu.Unlock()
	if ok {
		c.close()
		h.logger.Info().Str("client_id", c.ID).Msg("websocket client disconnected")
	}
}

func (h *Hub) readPump(ctx context.Context, c *Client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessage)
	c.conn.SetPongHandler(func(string) error {
		c.touch(h.clock.Now())
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Str("client_id", c.ID).Msg("websocket read failed")
			}
			return
		}
		c.touch(h.clock.Now())
		h.handleControl(ctx, c, data)
	}
}

func (h *Hub) handleControl(ctx context.Context, c *Client, data []byte) {
	var msg control
	if err := json.Unmarshal(data, &msg); err != nil {
		h.send(c, TypeError, map[string]string{"message": "invalid message"})
		return
	}

	switch msg.Type {
	case "subscribe":
		c.Subscribe(msg.Data.Events)
		h.send(c, TypeSubscriptionConfirmed, map[string]any{"events": c.Subscriptions()})
	case "unsubscribe":
		c.Unsubscribe(msg.Data.Events)
		h.send(c, TypeSubscriptionConfirmed, map[string]any{"events": c.Subscriptions()})
	case "ping":
		h.send(c, TypePong, nil)
	case "get_stats":
		if h.stats == nil {
			h.send(c, TypeStats, map[string]any{})
			return
		}
		stats, err := h.stats(ctx)
		if err != nil {
			h.logger.Warn().Err(err).Msg("collecting stats for websocket client")
			h.send(c, TypeError, map[string]string{"message": "stats unavailable"})
			return
		}
		h.send(c, TypeStats, stats)
	default:
		h.send(c, TypeError, map[string]string{"message": "unknown message type: " + msg.Type})
	}
}

func (h *Hub) writePump(c *Client) {
	for frame := range c.send {
		c.conn.SetWriteDeadline(h.clock.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			h.logger.Debug().Err(err).Str("client_id", c.ID).Msg("websocket write failed")
			c.conn.Close()
			// Keep draining until the reader unregisters the client
			for range c.send {
			}
			return
		}
	}
	c.conn.SetWriteDeadline(h.clock.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) frame(eventType string, data any) ([]byte, error) {
	return json.Marshal(Message{Type: eventType, Data: data, Timestamp: h.clock.Now().UTC()})
}

func (h *Hub) send(c *Client, eventType string, data any) {
	frame, err := h.frame(eventType, data)
	if err != nil {
		h.logger.Error().Err(err).Str("type", eventType).Msg("encoding websocket message")
		return
	}
	if !c.enqueue(frame) {
		h.logger.Warn().Str("client_id", c.ID).Str("type", eventType).Msg("websocket client buffer full, message dropped")
	}
}

// Broadcast sends to every client subscribed to eventType and returns the recipient count
func (h *Hub) Broadcast(eventType string, data any) int {
	return h.fanOut(eventType, data, func(c *Client) bool { return c.Subscribed(eventType) })
}

// BroadcastToUser sends to every connection of one user, regardless of subscriptions
func (h *Hub) BroadcastToUser(userID, eventType string, data any) int {
	if userID == "" {
		return 0
	}
	return h.fanOut(eventType, data, func(c *Client) bool { return c.UserID == userID })
}

func (h *Hub) fanOut(eventType string, data any, match func(*Client) bool) int {
	frame, err := h.frame(eventType, data)
	if err != nil {
		h.logger.Error().Err(err).Str("type", eventType).Msg("encoding broadcast")
		return 0
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		if match(c) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if c.enqueue(frame) {
			sent++
		}
	}

	if sent > 0 {
		h.record(eventType, data, sent)
	}
	return sent
}

// record logs the broadcast off the delivery path; failures are only logged
func (h *Hub) record(eventType string, data any, recipients int) {
	if h.recorder == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error().Interface("panic", r).Msg("broadcast recorder panicked")
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.recorder.RecordBroadcast(ctx, eventType, data, recipients); err != nil {
			h.logger.Warn().Err(err).Str("type", eventType).Msg("recording broadcast")
		}
	}()
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client returns a connected client by id
func (h *Hub) Client(id string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	return c, ok
}

// Prune disconnects clients silent for longer than the stale window and returns how many
func (h *Hub) Prune() int {
	cutoff := h.clock.Now().Add(-staleAfter)

	h.mu.RLock()
	var stale []*Client
	for _, c := range h.clients {
		if !c.seenSince(cutoff) {
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		h.unregister(c)
		c.conn.Close()
	}
	return len(stale)
}

// pingAll asks every client for a pong
func (h *Hub) pingAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	deadline := h.clock.Now().Add(writeWait)
	for _, c := range clients {
		if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
			h.logger.Debug().Err(err).Str("client_id", c.ID).Msg("websocket ping failed")
		}
	}
}

// Run pings and prunes clients every 30 seconds until ctx is cancelled
func (h *Hub) Run(ctx context.Context) error {
	ticker := h.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil
		case <-ticker.Chan():
			h.pingAll()
			if n := h.Prune(); n > 0 {
				h.logger.Info().Int("pruned", n).Msg("pruned stale websocket clients")
			}
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*Client)
	h.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}
