// Package notify pushes reservation changes to websocket subscribers.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 256
)

// ErrClosed is returned by Broadcast once the hub has stopped.
var ErrClosed = errors.New("notify: hub closed")

// Message is the envelope of every frame sent to subscribers.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type outbound struct {
	payload   []byte
	adminOnly bool
}

type readyMsg struct {
	client  *client
	initial [][]byte
}

// Hub tracks connected subscribers and fans messages out to them.  All
// client bookkeeping happens on the Run goroutine.
//
// A new subscriber is registered before its initial snapshot is read.
// Broadcasts that arrive in between are held back and delivered after the
// snapshot, so a subscriber never ends on a state older than its snapshot.
type Hub struct {
	register   chan *client
	unregister chan *client
	ready      chan readyMsg
	broadcast  chan outbound
	done       chan struct{}
	clients    map[*client]struct{}
	count      atomic.Int64
	log        *zap.Logger
}

// NewHub returns a hub; call Run to start it.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		ready:      make(chan readyMsg),
		broadcast:  make(chan outbound, 256),
		done:       make(chan struct{}),
		clients:    make(map[*client]struct{}),
		log:        log.Named("hub"),
	}
}

// Run processes hub events until ctx is cancelled, then disconnects every
// subscriber.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for c := range h.clients {
			h.drop(c)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			c.syncing = true
			h.clients[c] = struct{}{}
			h.count.Store(int64(len(h.clients)))
		case c := <-h.unregister:
			h.drop(c)
		case r := <-h.ready:
			if _, ok := h.clients[r.client]; !ok {
				continue
			}
			r.client.syncing = false
			queued := append(r.initial, r.client.pending...)
			r.client.pending = nil
			for _, p := range queued {
				if !h.deliver(r.client, p) {
					break
				}
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				if msg.adminOnly && !c.admin {
					continue
				}
				if c.syncing {
					if len(c.pending) >= sendBufferSize {
						h.drop(c)
						continue
					}
					c.pending = append(c.pending, msg.payload)
					continue
				}
				h.deliver(c, msg.payload)
			}
		}
	}
}

// deliver queues p for c, dropping c when its buffer is full.
func (h *Hub) deliver(c *client, p []byte) bool {
	select {
	case c.send <- p:
		return true
	default:
		h.log.Warn("dropping slow subscriber")
		h.drop(c)
		return false
	}
}

func (h *Hub) drop(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	h.count.Store(int64(len(h.clients)))
	close(c.send)
	c.conn.Close()
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int { return int(h.count.Load()) }

// Broadcast sends event to every subscriber, or only to admin subscribers
// when adminOnly is set.
func (h *Hub) Broadcast(ctx context.Context, event string, data any, adminOnly bool) error {
	payload, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		return err
	}
	select {
	case <-h.done:
		return ErrClosed
	default:
	}
	select {
	case h.broadcast <- outbound{payload: payload, adminOnly: adminOnly}:
		return nil
	case <-h.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Serve runs the subscription on an upgraded connection until the peer
// goes away.  snapshot supplies the initial messages; it is called after
// the subscriber is registered.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, admin bool, snapshot func(context.Context) ([]Message, error)) {
	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBufferSize), admin: admin}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	go c.writePump()

	msgs, err := snapshot(ctx)
	if err != nil {
		h.log.Warn("initial snapshot failed", zap.Error(err))
		h.leave(c)
		return
	}
	initial := make([][]byte, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			h.log.Warn("marshal initial message", zap.String("event", m.Event), zap.Error(err))
			h.leave(c)
			return
		}
		initial = append(initial, b)
	}
	select {
	case h.ready <- readyMsg{client: c, initial: initial}:
	case <-h.done:
		return
	}
	c.readPump()
}

func (h *Hub) leave(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

type client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	admin bool

	// owned by the Run goroutine
	syncing bool
	pending [][]byte
}

// readPump discards inbound frames; subscribers only listen.
func (c *client) readPump() {
	defer c.hub.leave(c)
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
