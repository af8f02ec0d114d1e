package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"careline/internal/config"
	"careline/internal/presence"
	"careline/pkg/types"
)

func TestParseWebSocketPath(t *testing.T) {
	five := int64(5)

	tests := []struct {
		name     string
		path     string
		class    types.ClassTag
		identity *int64
		wantErr  bool
	}{
		{name: "bare ws is general", path: "/ws", class: types.ClassGeneral},
		{name: "explicit general", path: "/ws/general", class: types.ClassGeneral},
		{name: "doctor with id", path: "/ws/doctors/5", class: types.ClassDoctors, identity: &five},
		{name: "patient with id", path: "/ws/patients/5", class: types.ClassPatients, identity: &five},
		{name: "general with id rejected", path: "/ws/general/5", wantErr: true},
		{name: "unknown class", path: "/ws/nurses/5", wantErr: true},
		{name: "missing id", path: "/ws/doctors", wantErr: true},
		{name: "non-numeric id", path: "/ws/doctors/abc", wantErr: true},
		{name: "zero id", path: "/ws/doctors/0", wantErr: true},
		{name: "negative id", path: "/ws/doctors/-3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class, identity, err := parseWebSocketPath(tt.path)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error for %s", tt.path)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if class != tt.class {
				t.Errorf("Expected class %s, got %s", tt.class, class)
			}
			if (identity == nil) != (tt.identity == nil) {
				t.Fatalf("Identity presence mismatch for %s", tt.path)
			}
			if identity != nil && *identity != *tt.identity {
				t.Errorf("Expected identity %d, got %d", *tt.identity, *identity)
			}
		})
	}
}

func newTestHandler(t *testing.T) (*Handler, *Registry, *presence.Tracker, string) {
	t.Helper()

	registry := NewRegistry()
	tracker := presence.NewTracker(registry)
	handler := NewHandler(registry, tracker, &config.WebSocketConfig{
		PingInterval: 50 * time.Millisecond,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		BufferSize:   16,
	})

	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(server.Close)

	return handler, registry, tracker, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dialTest(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func TestHandler_RegistersIdentifiedConnection(t *testing.T) {
	_, registry, _, base := newTestHandler(t)

	dialTest(t, base+"/ws/doctors/7")

	waitFor(t, time.Second, func() bool {
		_, ok := registry.IdentityConnection(7)
		return ok
	}, "Doctor connection never registered")
}

func TestHandler_RejectsInvalidPath(t *testing.T) {
	_, _, _, base := newTestHandler(t)

	if _, _, err := websocket.DefaultDialer.Dial(base+"/ws/nurses/7", nil); err == nil {
		t.Error("Invalid class must be rejected before the upgrade")
	}
}

func TestHandler_StatusUpdateFrame(t *testing.T) {
	_, _, tracker, base := newTestHandler(t)

	ws := dialTest(t, base+"/ws/doctors/7")
	if err := ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"status_update","status":"busy"}`)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		return tracker.Status(7).Status == types.StatusBusy
	}, "Status update never reached the tracker")
}

func TestHandler_InvalidStatusIgnored(t *testing.T) {
	_, _, tracker, base := newTestHandler(t)

	ws := dialTest(t, base+"/ws/doctors/7")
	if err := ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"status_update","status":"napping"}`)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"status_update","status":"busy"}`)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// The invalid frame is dropped without closing the connection; the
	// following valid frame still lands.
	waitFor(t, time.Second, func() bool {
		return tracker.Status(7).Status == types.StatusBusy
	}, "Connection did not survive an invalid status update")
}

func TestHandler_PatientStatusUpdateIgnored(t *testing.T) {
	_, _, tracker, base := newTestHandler(t)

	ws := dialTest(t, base+"/ws/patients/9")
	if err := ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"status_update","status":"busy"}`)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if got := tracker.Status(9).Status; got != types.StatusOffline {
		t.Errorf("Patient status update must be ignored, tracker reports %s", got)
	}
}

func TestHandler_DoctorDisconnectGoesOffline(t *testing.T) {
	_, registry, tracker, base := newTestHandler(t)

	ws := dialTest(t, base+"/ws/doctors/7")
	if err := ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"status_update","status":"online"}`)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	waitFor(t, time.Second, func() bool {
		return tracker.Status(7).Status == types.StatusOnline
	}, "Doctor never came online")

	_ = ws.Close()

	waitFor(t, time.Second, func() bool {
		_, ok := registry.IdentityConnection(7)
		return !ok && tracker.Status(7).Status == types.StatusOffline
	}, "Disconnect must deregister the doctor and mark them offline")
}
