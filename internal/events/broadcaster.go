package events

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// Broadcaster fans Hub events out to connected WebSocket clients. Adapted
// from the teacher's internal/logging.WebSocketLogger + the
// routes_management.go `/logs/stream` upgrade handler, repointed at usage
// events instead of log lines: UsageLogger.Finalize (§10) publishes
// TopicUsageFinalized through the Hub on every completed request, and this
// is the transport that gets it to a connected listener.
type Broadcaster struct {
	hub            *Hub
	upgrader       ws.Upgrader
	mu             sync.RWMutex
	clients        map[*ws.Conn]struct{}
	broadcast      chan Event
	maxConnections int
}

// NewBroadcaster subscribes to topics on hub and returns a Broadcaster ready
// to accept WebSocket clients via ServeWS.
func NewBroadcaster(hub *Hub, allowedOrigins []string, topics ...string) *Broadcaster {
	b := &Broadcaster{
		hub:            hub,
		clients:        make(map[*ws.Conn]struct{}),
		broadcast:      make(chan Event, 100),
		maxConnections: 100,
		upgrader: ws.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return checkOrigin(r, allowedOrigins) },
		},
	}
	for _, topic := range topics {
		hub.Subscribe(topic, func(_ context.Context, evt Event) {
			select {
			case b.broadcast <- evt:
			default:
			}
		})
	}
	go b.run()
	return b
}

func checkOrigin(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(a, origin) || strings.EqualFold(a, u.Host) {
			return true
		}
	}
	return false
}

func (b *Broadcaster) run() {
	for evt := range b.broadcast {
		b.mu.RLock()
		for conn := range b.clients {
			go func(c *ws.Conn, e Event) {
				if err := c.WriteJSON(e); err != nil {
					b.removeClient(c)
				}
			}(conn, evt)
		}
		b.mu.RUnlock()
	}
}

func (b *Broadcaster) removeClient(conn *ws.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[conn]; ok {
		delete(b.clients, conn)
		conn.Close()
	}
}

// ServeWS upgrades the HTTP request to a WebSocket and registers the
// resulting connection as a broadcast target until it disconnects.
func (b *Broadcaster) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	if len(b.clients) >= b.maxConnections {
		b.mu.Unlock()
		_ = conn.WriteJSON(map[string]string{"error": "maximum connections reached"})
		conn.Close()
		return
	}
	b.clients[conn] = struct{}{}
	b.mu.Unlock()

	_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := conn.WriteMessage(ws.PingMessage, nil); err != nil {
				return
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.Debugf("events broadcaster: client disconnected: %v", err)
			b.removeClient(conn)
			return
		}
	}
}
