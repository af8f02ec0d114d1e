package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"careline/pkg/types"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newTestConn dials a throwaway WebSocket server and wraps the client
// side. Frames sent through the returned Connection show up on the
// received channel.
func newTestConn(t *testing.T, class types.ClassTag, identity *int64) (*Connection, chan []byte) {
	t.Helper()

	received := make(chan []byte, 32)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			// Drop when the buffer is full so a flood of frames cannot
			// wedge the handler and stall server shutdown.
			select {
			case received <- data:
			default:
			}
		}
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial test WebSocket server: %v", err)
	}

	conn := NewConnection(ws, Params{
		Class:        class,
		Identity:     identity,
		WriteTimeout: time.Second,
	})
	t.Cleanup(func() { _ = conn.Close() })

	return conn, received
}

// newDeadConn returns a Connection whose transport is already closed, so
// the first Send fails.
func newDeadConn(t *testing.T, class types.ClassTag, identity *int64) *Connection {
	t.Helper()

	conn, _ := newTestConn(t, class, identity)
	_ = conn.conn.Close()
	// Give the peer close a moment to land.
	time.Sleep(10 * time.Millisecond)
	return conn
}

func identityOf(id int64) *int64 {
	return &id
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

// recvFrame waits for one frame on the channel.
func recvFrame(t *testing.T, ch chan []byte) []byte {
	t.Helper()

	select {
	case data := <-ch:
		return data
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for frame")
		return nil
	}
}
