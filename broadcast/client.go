package broadcast

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Wildcard subscribes a client to every event type
const Wildcard = "*"

/* Client is one connected WebSocket
 * Subscriptions and liveness are guarded by mu; writes go through send
 * and are performed only by the client's write pump
 */
type Client struct {
	ID     string
	UserID string

	conn *websocket.Conn
	send chan []byte

	mu       sync.Mutex
	subs     map[string]struct{}
	lastSeen time.Time
	closed   bool
}

func newClient(id, userID string, conn *websocket.Conn, buffer int, now time.Time) *Client {
	return &Client{
		ID:       id,
		UserID:   userID,
		conn:     conn,
		send:     make(chan []byte, buffer),
		subs:     make(map[string]struct{}),
		lastSeen: now,
	}
}

// Subscribe adds event types to the subscription set
func (c *Client) Subscribe(events []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range events {
		c.subs[e] = struct{}{}
	}
}

// Unsubscribe removes exactly the listed event types
func (c *Client) Unsubscribe(events []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range events {
		delete(c.subs, e)
	}
}

// Subscribed reports whether the client receives eventType
func (c *Client) Subscribed(eventType string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[Wildcard]; ok {
		return true
	}
	_, ok := c.subs[eventType]
	return ok
}

// Subscriptions returns a copy of the subscription set
func (c *Client) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.subs))
	for e := range c.subs {
		out = append(out, e)
	}
	return out
}

func (c *Client) touch(now time.Time) {
	c.mu.Lock()
	c.lastSeen = now
	c.mu.Unlock()
}

func (c *Client) seenSince(cutoff time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && !c.lastSeen.Before(cutoff)
}

// enqueue hands a frame to the write pump without blocking; a full buffer drops it
func (c *Client) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// close stops the write pump once
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
