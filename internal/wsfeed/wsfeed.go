// Package wsfeed is the live /ws/idt feed: every accepted vouch, proof, or
// punish action fans an {user, idt, penalty} event out to every connected
// subscriber. It implements action.Publisher.
package wsfeed

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/blackyblack/identity-server/internal/engine"
	"github.com/blackyblack/identity-server/internal/obsv"
)

// writeTimeout bounds how long a single client's write may block before
// the hub gives up on it and drops the connection.
const writeTimeout = 5 * time.Second

// Event is a single pushed update.
type Event struct {
	User    string `json:"user"`
	IDT     int64  `json:"idt"`
	Penalty int64  `json:"penalty"`
}

type client struct {
	conn   *websocket.Conn
	cancel context.CancelFunc
}

// Hub fans out Events to every connected client. The zero value is not
// usable; construct with New.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]bool
	engine  *engine.Engine
	log     *slog.Logger
}

// New builds a Hub that recomputes penalty via eng when publishing.
func New(eng *engine.Engine, log *slog.Logger) *Hub {
	return &Hub{clients: make(map[*client]bool), engine: eng, log: log}
}

// PublishIDT implements action.Publisher: it recomputes penalty for user
// and broadcasts the pair to every subscriber. Best-effort: a slow or
// dead client is dropped, not retried.
func (h *Hub) PublishIDT(user string, idt int64) {
	pen, err := h.engine.Penalty(user)
	if err != nil {
		h.log.Warn("wsfeed: failed to recompute penalty for broadcast", slog.String("err", err.Error()))
		return
	}
	h.broadcast(Event{User: user, IDT: idt, Penalty: pen})
}

func (h *Hub) broadcast(evt Event) {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := wsjson.Write(ctx, c.conn, evt)
		cancel()
		if err != nil {
			c.cancel()
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	obsv.WSFeedSubscribers.Inc()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	obsv.WSFeedSubscribers.Dec()
}

// ServeHTTP upgrades the connection and holds it open until the peer
// disconnects, discarding any inbound messages — this feed is
// push-only, there is no subscribe protocol to speak.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		h.log.Warn("wsfeed: accept failed", slog.String("err", err.Error()))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	c := &client{conn: conn, cancel: cancel}

	h.register(c)
	defer func() {
		h.unregister(c)
		conn.CloseNow()
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}
