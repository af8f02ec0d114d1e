package websocket

import (
	"encoding/json"
	"log"
	"sync"

	"careline/pkg/types"
)

// Registry owns every live connection, grouped by class and indexed by
// user identity. It is the only component that holds connection handles;
// everything else addresses peers through it.
type Registry struct {
	mu         sync.RWMutex
	classes    map[types.ClassTag]map[*Connection]struct{}
	identities map[int64]*Connection
}

// NewRegistry creates an empty registry. One instance is constructed at
// process start and passed to every component that needs it.
func NewRegistry() *Registry {
	classes := make(map[types.ClassTag]map[*Connection]struct{}, len(types.Classes))
	for _, class := range types.Classes {
		classes[class] = make(map[*Connection]struct{})
	}
	return &Registry{
		classes:    classes,
		identities: make(map[int64]*Connection),
	}
}

// Add inserts an open connection into its class set and, when the
// connection carries an identity, into the identity map. A newer
// connection for the same identity silently replaces the old entry; the
// superseded connection is not closed and remains in its class set until
// its own handler removes it.
func (r *Registry) Add(conn *Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.classes[conn.Class()]
	if !ok {
		set = make(map[*Connection]struct{})
		r.classes[conn.Class()] = set
	}
	set[conn] = struct{}{}

	if id, bound := conn.Identity(); bound {
		r.identities[id] = conn
	}
}

// Remove deletes a connection from its class set. The identity entry is
// removed only when it still maps to this exact connection, so a late
// disconnect from a superseded connection never evicts its replacement.
// Idempotent.
func (r *Registry) Remove(conn *Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(conn)
}

func (r *Registry) removeLocked(conn *Connection) {
	if set, ok := r.classes[conn.Class()]; ok {
		delete(set, conn)
	}
	if id, bound := conn.Identity(); bound {
		if current, ok := r.identities[id]; ok && current == conn {
			delete(r.identities, id)
		}
	}
}

// IdentityConnection returns the live connection bound to an identity.
func (r *Registry) IdentityConnection(identity int64) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.identities[identity]
	return conn, ok
}

// ClassConnections returns a snapshot of the class set. Mutations after
// the snapshot do not affect the returned slice.
func (r *Registry) ClassConnections(class types.ClassTag) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.classes[class]
	conns := make([]*Connection, 0, len(set))
	for conn := range set {
		conns = append(conns, conn)
	}
	return conns
}

// SendTo delivers a payload to the identity's live connection. An absent
// recipient is a normal outcome, reported as false. A transport failure
// prunes the dead connection from both maps and also reports false; it
// is never surfaced as an error.
func (r *Registry) SendTo(identity int64, payload interface{}) bool {
	conn, ok := r.IdentityConnection(identity)
	if !ok {
		return false
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Dropping undeliverable payload for user %d: %v", identity, err)
		return false
	}

	if err := conn.Send(data); err != nil {
		r.prune(conn)
		return false
	}
	return true
}

// BroadcastToClass delivers a payload to every connection in the class
// snapshot taken at call time, exactly once each. Failed connections are
// pruned after the loop completes, never during it, so one dead peer
// cannot skip or duplicate delivery to the others.
func (r *Registry) BroadcastToClass(class types.ClassTag, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Dropping undeliverable broadcast to %s: %v", class, err)
		return
	}
	r.broadcast(class, data)
}

func (r *Registry) broadcast(class types.ClassTag, data []byte) {
	conns := r.ClassConnections(class)

	var failed []*Connection
	for _, conn := range conns {
		if err := conn.Send(data); err != nil {
			failed = append(failed, conn)
		}
	}

	for _, conn := range failed {
		r.prune(conn)
	}
}

// BroadcastToAll delivers a payload to every class in a fixed order:
// doctors, then patients, then general.
func (r *Registry) BroadcastToAll(payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Dropping undeliverable broadcast: %v", err)
		return
	}
	for _, class := range types.Classes {
		r.broadcast(class, data)
	}
}

// prune removes a dead connection from both maps and closes it. Failure
// during delivery is an implicit disconnect.
func (r *Registry) prune(conn *Connection) {
	r.Remove(conn)
	_ = conn.Close()
}

// Stats reports connection counts for the health endpoint.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	stats := make(map[string]int, len(r.classes)+2)
	for class, set := range r.classes {
		stats[string(class)] = len(set)
		total += len(set)
	}
	stats["total_connections"] = total
	stats["identified_users"] = len(r.identities)
	return stats
}
