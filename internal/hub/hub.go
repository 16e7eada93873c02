package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"IgniteX/internal/domain/models"
	domrepo "IgniteX/internal/domain/repository"
	"IgniteX/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 30 * time.Second
	sendBufferSize = 16
)

// Hub pushes freshly distributed signals to connected dashboard clients.
// Each client subscribes to one tier; delivery is best effort and a slow
// client is disconnected rather than allowed to block a release cycle.
// The durable row remains the source of truth.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]models.Tier
	log      *logger.Logger
	upgrader websocket.Upgrader
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New creates a hub.
func New(log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]models.Tier),
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// dashboards are served from other origins in dev
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the request and registers the client for its tier.
// Route: GET /ws/signals?tier=FREE|PRO|MAX
func (h *Hub) ServeWS(c echo.Context) error {
	tier, err := models.ParseTier(c.QueryParam("tier"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	cl := &client{conn: conn, send: make(chan []byte, sendBufferSize)}
	h.mu.Lock()
	h.clients[cl] = tier
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info("ws client connected", logger.String("tier", string(tier)), logger.Int("clients", n))

	go h.writePump(cl)
	go h.readPump(cl)
	return nil
}

// NotifyDistributed broadcasts the signal to all clients of its tier.
func (h *Hub) NotifyDistributed(_ context.Context, s *models.DistributedSignal) error {
	payload, err := json.Marshal(map[string]interface{}{
		"type":   "signal",
		"signal": s,
	})
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for cl, tier := range h.clients {
		if tier != s.Tier {
			continue
		}
		select {
		case cl.send <- payload:
		default:
			// slow client; writePump will tear it down on close
			close(cl.send)
			delete(h.clients, cl)
		}
	}
	return nil
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		close(cl.send)
		delete(h.clients, cl)
	}
}

func (h *Hub) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-cl.send:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains control frames and detects disconnects; clients never
// send application data.
func (h *Hub) readPump(cl *client) {
	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[cl]; ok {
			close(cl.send)
			delete(h.clients, cl)
		}
		h.mu.Unlock()
		cl.conn.Close()
	}()
	cl.conn.SetReadLimit(512)
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

var _ domrepo.Notifier = (*Hub)(nil)
