package websocket

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"careline/internal/config"
	"careline/pkg/interfaces"
	"careline/pkg/types"
)

// Control frames are low-volume by nature; this cap only exists to keep a
// misbehaving client from flooding presence broadcasts.
const statusUpdatesPerMinute = 30

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins; deployments front this with a proxy that
		// enforces origin policy.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Handler accepts WebSocket connections and drives their read loops.
// It is the collaborator that reports doctor disconnects to presence;
// the registry itself never infers presence from connection loss.
type Handler struct {
	registry *Registry
	tracker  interfaces.PresenceTracker
	wsConfig *config.WebSocketConfig
	limiter  *RateLimiter
}

// NewHandler creates a WebSocket handler.
func NewHandler(registry *Registry, tracker interfaces.PresenceTracker, wsConfig *config.WebSocketConfig) *Handler {
	return &Handler{
		registry: registry,
		tracker:  tracker,
		wsConfig: wsConfig,
		limiter:  NewRateLimiter(statusUpdatesPerMinute),
	}
}

// HandleWebSocket serves GET /ws/{class}/{id} for doctors and patients
// and GET /ws/general for anonymous listeners. Validation happens before
// the upgrade so rejected requests get proper HTTP status codes.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	class, identity, err := parseWebSocketPath(r.URL.Path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	wsConn := NewConnection(conn, Params{
		Class:        class,
		Identity:     identity,
		BufferSize:   h.wsConfig.BufferSize,
		WriteTimeout: h.wsConfig.WriteTimeout,
	})

	h.registry.Add(wsConn)
	if identity != nil {
		log.Printf("Connection opened: class=%s user=%d", class, *identity)
	} else {
		log.Printf("Connection opened: class=%s", class)
	}

	go h.handleConnection(wsConn)
}

// parseWebSocketPath extracts class and optional identity from the URL.
// "/ws/general" has no identity; "/ws/doctors/5" and "/ws/patients/9"
// bind the connection to that user.
func parseWebSocketPath(path string) (types.ClassTag, *int64, error) {
	trimmed := strings.Trim(strings.TrimPrefix(path, "/ws"), "/")
	if trimmed == "" || trimmed == string(types.ClassGeneral) {
		return types.ClassGeneral, nil, nil
	}

	parts := strings.Split(trimmed, "/")
	if len(parts) != 2 {
		return "", nil, ErrInvalidPath
	}
	if !types.IsValidClass(parts[0]) {
		return "", nil, ErrInvalidClass
	}
	class := types.ClassTag(parts[0])
	if class == types.ClassGeneral {
		return "", nil, ErrInvalidPath
	}

	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return "", nil, ErrInvalidIdentity
	}

	return class, &id, nil
}

// handleConnection owns the connection's read loop and heartbeat. On any
// exit path it deregisters the connection and, for identified doctors,
// reports them offline.
func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		h.registry.Remove(conn)
		_ = conn.Close()

		if id, bound := conn.Identity(); bound && conn.Class() == types.ClassDoctors {
			if err := h.tracker.UpdateStatus(id, types.StatusOffline); err != nil {
				log.Printf("Failed to mark doctor %d offline: %v", id, err)
			}
		}

		// Disconnects are the natural moment to age out idle limiter
		// entries.
		h.limiter.Cleanup()
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(h.wsConfig.ReadTimeout)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.wsConfig.ReadTimeout))
	})

	ticker := time.NewTicker(h.wsConfig.PingInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				deadline := time.Now().Add(h.wsConfig.WriteTimeout)
				if err := conn.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			case <-conn.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			return
		}

		if messageType == websocket.TextMessage {
			h.handleFrame(conn, data)
		}
	}
}

// handleFrame processes one inbound text frame. Unrecognized frames are
// a normal variant and are dropped without closing the connection.
func (h *Handler) handleFrame(conn *Connection, data []byte) {
	frame := DecodeInbound(data)
	if frame.Control == nil {
		return
	}

	// Status updates are honored only on identified doctors connections.
	id, bound := conn.Identity()
	if !bound || conn.Class() != types.ClassDoctors {
		return
	}

	if !h.limiter.Allow(id) {
		log.Printf("Dropping status update from doctor %d: rate limit", id)
		return
	}

	if err := h.tracker.UpdateStatus(id, types.PresenceStatus(frame.Control.Status)); err != nil {
		log.Printf("Ignoring status update from doctor %d: %v", id, err)
	}
}
