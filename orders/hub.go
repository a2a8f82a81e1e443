package orders

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"fashion-store/models"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	EventCreated          = "order.created"
	EventStatusChanged    = "order.status_changed"
	EventPaymentRestarted = "order.payment_restarted"

	writeWait  = 10 * time.Second
	sendBuffer = 16
)

// Event is one message on the admin order feed
type Event struct {
	Type  string       `json:"type"`
	Order models.Order `json:"order"`
}

type Publisher interface {
	Publish(e Event)
}

// Hub fans order events out to connected admin websockets. Slow clients
// that fill their buffer are dropped.
type Hub struct {
	upgrader websocket.Upgrader
	log      logrus.FieldLogger

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub accepts browser connections from appURL's origin or from the
// feed's own host. Clients that send no Origin header are not browsers and
// are let through; the admin middleware still authenticates them.
func NewHub(appURL string, log logrus.FieldLogger) *Hub {
	h := &Hub{
		log:     log,
		clients: make(map[*client]struct{}),
	}
	allowed := ""
	if u, err := url.Parse(appURL); err == nil && u.Host != "" {
		allowed = strings.ToLower(u.Scheme + "://" + u.Host)
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			if strings.EqualFold(u.Host, r.Host) || strings.ToLower(u.Scheme+"://"+u.Host) == allowed {
				return true
			}
			h.log.WithField("origin", origin).Warn("order feed refused foreign origin")
			return false
		},
	}
	return h
}

func (h *Hub) Publish(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		h.log.WithField("err", err).Error("encode order event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Warn("dropping slow order feed client")
			h.remove(c)
		}
	}
}

// Clients is the number of connected feeds
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams events until the peer goes away
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithField("err", err).Warn("order feed upgrade failed")
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go c.writeLoop()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	h.remove(c)
	h.mu.Unlock()
}

// remove must be called with h.mu held
func (h *Hub) remove(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.remove(c)
	}
}

func (c *client) writeLoop() {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}
