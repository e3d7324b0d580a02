// Package monitor fans out workflow lifecycle events to connected
// websocket dashboards, grounded on the Hub/Client pattern of the
// teacher's websocket package (register/unregister channels, buffered
// per-client send queue, slow-client eviction).
package monitor

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/workflowforge/engine/internal/wflog"
	"github.com/workflowforge/engine/internal/workflow"
)

// Event is the JSON frame broadcast to every connected dashboard client.
type Event struct {
	RunID    string `json:"run_id"`
	Kind     string `json:"kind"`
	Unit     string `json:"unit,omitempty"`
	UnitKind string `json:"unit_kind,omitempty"`
	Message  string `json:"message,omitempty"`
}

const sendBuffer = 256

// Hub maintains connected dashboard clients and broadcasts workflow
// events to all of them.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	mu         sync.RWMutex
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub builds an unstarted Hub; call Run in its own goroutine.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, sendBuffer),
		register:   make(chan *client),
		unregister: make(chan *client),
	}
}

// Run drives the hub's register/unregister/broadcast loop until the
// process exits; it is meant to run in its own goroutine.
func (h *Hub) Run() {
	log := wflog.Monitor()
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			var slow []*client
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.RUnlock()

			if len(slow) > 0 {
				h.mu.Lock()
				for _, c := range slow {
					close(c.send)
					delete(h.clients, c)
				}
				h.mu.Unlock()
				log.Warn().Int("count", len(slow)).Msg("evicted slow monitor clients")
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeHTTP upgrades the request to a websocket and registers the client
// as a dashboard listener until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		wflog.Monitor().Warn().Err(err).Msg("monitor websocket upgrade failed")
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.register <- c
	go c.writePump()
	go c.readPump(h)
}

func (c *client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) publish(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		wflog.Monitor().Warn().Err(err).Msg("failed to marshal monitor event")
		return
	}
	h.broadcast <- data
}

// Listener adapts a Hub into a workflow.Listener, broadcasting every
// lifecycle callback as a JSON frame.
type Listener struct {
	workflow.BaseListener
	hub *Hub
}

// NewListener builds a monitor Listener publishing through hub.
func NewListener(hub *Hub) *Listener {
	return &Listener{hub: hub}
}

func (l *Listener) OnStart(ctx *workflow.Context) {
	l.hub.publish(Event{RunID: ctx.RunID(), Kind: "start"})
}

func (l *Listener) OnUnitStart(ctx *workflow.Context) {
	l.hub.publish(Event{RunID: ctx.RunID(), Kind: "unit_start", Unit: ctx.CurrentUnit(), UnitKind: string(ctx.CurrentUnitKind())})
}

func (l *Listener) OnUnitFinish(ctx *workflow.Context) {
	l.hub.publish(Event{RunID: ctx.RunID(), Kind: "unit_finish", Unit: ctx.CurrentUnit(), UnitKind: string(ctx.CurrentUnitKind())})
}

func (l *Listener) OnError(ctx *workflow.Context, kind, value, stack string) {
	l.hub.publish(Event{RunID: ctx.RunID(), Kind: "error", Unit: ctx.CurrentUnit(), Message: value})
}

func (l *Listener) OnFinish(ctx *workflow.Context) {
	l.hub.publish(Event{RunID: ctx.RunID(), Kind: "finish"})
}
