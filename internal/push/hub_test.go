package push

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/servepulse/go-serve-pulse/internal/stats"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// dialHub stands up an httptest server for the hub and dials it.
func dialHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(h.Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })

	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return data
}

func waitForSubscribers(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.SubscriberCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("subscriber count = %d, want %d", h.SubscriberCount(), want)
}

func TestHub_BroadcastsClientSnapshot(t *testing.T) {
	h := NewHub(testLogger())
	conn := dialHub(t, h)
	waitForSubscribers(t, h, 1)

	h.ClientsUpdated([]stats.ClientInfo{
		{ID: 1, RemoteAddr: "10.0.0.1:1234"},
		{ID: 2, RemoteAddr: "10.0.0.2:5678", Slow: true},
	})

	var frame ClientsFrame
	if err := json.Unmarshal(readFrame(t, conn), &frame); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if frame.Type != FrameClients {
		t.Errorf("frame type = %q, want %q", frame.Type, FrameClients)
	}
	if len(frame.Clients) != 2 {
		t.Fatalf("clients = %d, want 2", len(frame.Clients))
	}
	if !frame.Clients[1].Slow {
		t.Error("slow flag lost in transit")
	}
}

func TestHub_BroadcastsTrafficSnapshot(t *testing.T) {
	h := NewHub(testLogger())
	conn := dialHub(t, h)
	waitForSubscribers(t, h, 1)

	now := time.Now().Truncate(time.Second)
	h.TrafficUpdated([]stats.TrafficSample{
		{Timestamp: now.Add(-time.Second), Bytes: 100},
		{Timestamp: now, Bytes: 250},
	})

	var frame TrafficFrame
	if err := json.Unmarshal(readFrame(t, conn), &frame); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if frame.Type != FrameTraffic {
		t.Errorf("frame type = %q, want %q", frame.Type, FrameTraffic)
	}
	if len(frame.Samples) != 2 || frame.Samples[1].Bytes != 250 {
		t.Errorf("samples = %+v", frame.Samples)
	}
}

func TestHub_ReplaysLatestSnapshotsOnSubscribe(t *testing.T) {
	h := NewHub(testLogger())

	// Snapshots arrive before anyone subscribes.
	h.ClientsUpdated([]stats.ClientInfo{{ID: 9, RemoteAddr: "10.0.0.9:999"}})
	h.TrafficUpdated([]stats.TrafficSample{{Timestamp: time.Now(), Bytes: 42}})

	conn := dialHub(t, h)

	var clients ClientsFrame
	if err := json.Unmarshal(readFrame(t, conn), &clients); err != nil {
		t.Fatalf("decode clients frame: %v", err)
	}
	if clients.Type != FrameClients || len(clients.Clients) != 1 || clients.Clients[0].ID != 9 {
		t.Errorf("replayed clients frame = %+v", clients)
	}

	var traffic TrafficFrame
	if err := json.Unmarshal(readFrame(t, conn), &traffic); err != nil {
		t.Fatalf("decode traffic frame: %v", err)
	}
	if traffic.Type != FrameTraffic || len(traffic.Samples) != 1 || traffic.Samples[0].Bytes != 42 {
		t.Errorf("replayed traffic frame = %+v", traffic)
	}
}

func TestHub_ForwardsTrackerFailure(t *testing.T) {
	h := NewHub(testLogger())
	conn := dialHub(t, h)
	waitForSubscribers(t, h, 1)

	h.TrackerFailed(errors.New("event queue overflow"))

	var frame FatalFrame
	if err := json.Unmarshal(readFrame(t, conn), &frame); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if frame.Type != FrameFatal {
		t.Errorf("frame type = %q, want %q", frame.Type, FrameFatal)
	}
	if !strings.Contains(frame.Error, "overflow") {
		t.Errorf("error = %q, want overflow mention", frame.Error)
	}
}

func TestHub_DropsStalledSubscriber(t *testing.T) {
	h := NewHub(testLogger())

	// A subscriber with an unbuffered channel and no pump can never
	// accept a frame, which is exactly what a stalled peer looks like
	// to broadcast.
	stuck := &subscriber{hub: h, send: make(chan []byte), remoteAddr: "stuck"}
	h.mu.Lock()
	h.subscribers[stuck] = struct{}{}
	h.mu.Unlock()

	h.ClientsUpdated(nil)

	if got := h.SubscriberCount(); got != 0 {
		t.Errorf("subscriber count = %d, want 0 after drop", got)
	}

	// Its channel must be closed so a pump would exit.
	select {
	case _, ok := <-stuck.send:
		if ok {
			t.Error("expected closed send channel")
		}
	default:
		t.Error("send channel still open after drop")
	}
}

func TestHub_Shutdown(t *testing.T) {
	h := NewHub(testLogger())
	conn := dialHub(t, h)
	waitForSubscribers(t, h, 1)

	h.Shutdown()

	if got := h.SubscriberCount(); got != 0 {
		t.Errorf("subscriber count = %d, want 0", got)
	}

	// The peer sees the connection end.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	// New subscribers are refused after shutdown.
	conn2 := dialHub(t, h)
	conn2.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn2.ReadMessage(); err == nil {
		t.Error("subscriber attached after shutdown")
	}
	if got := h.SubscriberCount(); got != 0 {
		t.Errorf("subscriber count after shutdown dial = %d, want 0", got)
	}
}
