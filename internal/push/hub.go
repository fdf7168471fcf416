// Package push streams tracker snapshots to WebSocket subscribers.
//
// The hub is a stats consumer: every aggregation tick it receives the
// fresh client and traffic snapshots and fans them out as JSON frames.
// Subscribers that cannot keep up are dropped rather than allowed to
// stall the hub.
package push

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/servepulse/go-serve-pulse/internal/stats"
)

// Frame types sent to subscribers.
const (
	FrameClients = "clients"
	FrameTraffic = "traffic"
	FrameFatal   = "fatal"
)

// ClientsFrame carries the per-client snapshot.
type ClientsFrame struct {
	Type    string             `json:"type"`
	Clients []stats.ClientInfo `json:"clients"`
}

// TrafficFrame carries the sliding-window traffic history.
type TrafficFrame struct {
	Type    string                `json:"type"`
	Samples []stats.TrafficSample `json:"samples"`
}

// FatalFrame reports a tracker failure to subscribers.
type FatalFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Hub fans tracker snapshots out to WebSocket subscribers.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	lastClients []byte // most recent encoded frames, replayed on subscribe
	lastTraffic []byte
	closed      bool
}

// NewHub creates a hub with no subscribers.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The dashboard is same-host tooling; cross-origin pages
			// may subscribe too.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		subscribers: make(map[*subscriber]struct{}),
	}
}

// ClientsUpdated implements stats.Consumer.
func (h *Hub) ClientsUpdated(clients []stats.ClientInfo) {
	frame, err := json.Marshal(ClientsFrame{Type: FrameClients, Clients: clients})
	if err != nil {
		h.logger.Error("push_encode_failed", "frame", FrameClients, "error", err)
		return
	}
	h.broadcast(frame, true, false)
}

// TrafficUpdated implements stats.Consumer.
func (h *Hub) TrafficUpdated(samples []stats.TrafficSample) {
	frame, err := json.Marshal(TrafficFrame{Type: FrameTraffic, Samples: samples})
	if err != nil {
		h.logger.Error("push_encode_failed", "frame", FrameTraffic, "error", err)
		return
	}
	h.broadcast(frame, false, true)
}

// TrackerFailed implements stats.Consumer.
func (h *Hub) TrackerFailed(err error) {
	frame, encErr := json.Marshal(FatalFrame{Type: FrameFatal, Error: err.Error()})
	if encErr != nil {
		return
	}
	h.broadcast(frame, false, false)
}

// broadcast sends an encoded frame to every subscriber, dropping any
// whose send buffer is full.
func (h *Hub) broadcast(frame []byte, isClients, isTraffic bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if isClients {
		h.lastClients = frame
	}
	if isTraffic {
		h.lastTraffic = frame
	}

	for sub := range h.subscribers {
		select {
		case sub.send <- frame:
		default:
			h.logger.Warn("push_subscriber_dropped", "remote_addr", sub.remoteAddr)
			delete(h.subscribers, sub)
			sub.close()
		}
	}
}

// Handler returns the WebSocket upgrade handler, mounted on the admin
// mux at /ws.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("push_upgrade_failed", "remote_addr", r.RemoteAddr, "error", err)
			return
		}
		h.register(conn)
	})
}

// register attaches a new subscriber and replays the latest snapshots
// so a fresh dashboard renders without waiting for the next tick.
func (h *Hub) register(conn *websocket.Conn) {
	sub := newSubscriber(h, conn)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.subscribers[sub] = struct{}{}
	if h.lastClients != nil {
		sub.send <- h.lastClients
	}
	if h.lastTraffic != nil {
		sub.send <- h.lastTraffic
	}
	n := len(h.subscribers)
	h.mu.Unlock()

	h.logger.Debug("push_subscriber_connected",
		"remote_addr", sub.remoteAddr,
		"subscribers", n,
	)

	go sub.writePump()
	go sub.readPump()
}

// unregister detaches a subscriber after its pumps exit.
func (h *Hub) unregister(sub *subscriber) {
	h.mu.Lock()
	_, ok := h.subscribers[sub]
	if ok {
		delete(h.subscribers, sub)
	}
	n := len(h.subscribers)
	h.mu.Unlock()

	if ok {
		sub.close()
		h.logger.Debug("push_subscriber_disconnected",
			"remote_addr", sub.remoteAddr,
			"subscribers", n,
		)
	}
}

// SubscriberCount returns the number of attached subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Shutdown disconnects all subscribers. The hub accepts no new ones
// afterwards.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	subs := make([]*subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.subscribers = make(map[*subscriber]struct{})
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}
