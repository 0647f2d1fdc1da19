// README: WebSocket hub pushing order and planning snapshots to dispatch
// consoles. Delivery is best-effort and never blocks the caller.
package broadcast

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"relaxedrive/internal/modules/order"
	"relaxedrive/internal/modules/planning"
)

const sendBuffer = 16

type message struct {
	Kind    string `json:"kind"`
	Payload any    `json:"payload"`
}

type client struct {
	conn *websocket.Conn
	send chan message
}

// Hub fans planner and order snapshots out to every connected console.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan message
	done       chan struct{}
	clients    map[*client]bool
	logger     *slog.Logger
	mu         sync.Mutex
	upgrader   websocket.Upgrader
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan message, sendBuffer),
		done:       make(chan struct{}),
		clients:    make(map[*client]bool),
		logger:     logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run owns the client set until the context is cancelled. Once it
// returns, connection goroutines observe the done channel instead of the
// register and unregister channels, so they never block on a stopped hub.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				c.conn.Close()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				c.conn.Close()
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow consumer, drop it rather than stall the hub.
					delete(h.clients, c)
					close(c.send)
					c.conn.Close()
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastOrders pushes the active order list to all consoles.
func (h *Hub) BroadcastOrders(orders []order.Order) {
	h.publish(message{Kind: "orders", Payload: orders})
}

// BroadcastPlanning pushes a planning snapshot to all consoles.
func (h *Hub) BroadcastPlanning(r *planning.Result) {
	h.publish(message{Kind: "planning", Payload: r})
}

func (h *Hub) publish(msg message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("broadcast queue full, dropping message", slog.String("kind", msg.Kind))
	}
}

// HandleWebSocket upgrades the request and keeps the connection until the
// peer goes away.
func (h *Hub) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	cl := &client{conn: conn, send: make(chan message, sendBuffer)}
	select {
	case h.register <- cl:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writeLoop(cl)
	go h.readLoop(cl)
}

func (h *Hub) drop(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
		c.conn.Close()
	}
}

func (h *Hub) writeLoop(c *client) {
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			h.drop(c)
			return
		}
	}
}

// readLoop drains and discards inbound frames so pings and closes are
// processed.
func (h *Hub) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}
