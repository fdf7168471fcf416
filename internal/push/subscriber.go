package push

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single frame write to a subscriber.
	writeWait = 5 * time.Second

	// pongWait is how long a subscriber may stay silent before the
	// read side gives up; pings go out at a third of that.
	pongWait   = 60 * time.Second
	pingPeriod = pongWait / 3

	// sendBuffer is the per-subscriber frame backlog. At one clients
	// frame and one traffic frame per tick this is several seconds of
	// slack before a subscriber is dropped.
	sendBuffer = 16
)

// subscriber is one WebSocket connection attached to the hub.
type subscriber struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
	closeOnce  sync.Once
}

func newSubscriber(h *Hub, conn *websocket.Conn) *subscriber {
	return &subscriber{
		hub:        h,
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		remoteAddr: conn.RemoteAddr().String(),
	}
}

// close signals the write pump to finish. Safe to call more than once;
// only the hub calls it, always after the subscriber is removed from
// the broadcast set.
func (s *subscriber) close() {
	s.closeOnce.Do(func() { close(s.send) })
}

// writePump drains the send channel onto the connection and keeps the
// connection alive with pings.
func (s *subscriber) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-s.send:
			if !ok {
				s.conn.SetWriteDeadline(time.Now().Add(writeWait))
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound messages; the feed is one-way. It exists
// to notice the peer going away and to answer pings.
func (s *subscriber) readPump() {
	defer s.hub.unregister(s)

	s.conn.SetReadLimit(512)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
