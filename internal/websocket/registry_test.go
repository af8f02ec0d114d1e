package websocket

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"careline/pkg/types"
)

func TestRegistry_AddIndexesByClassAndIdentity(t *testing.T) {
	registry := NewRegistry()

	doctor, _ := newTestConn(t, types.ClassDoctors, identityOf(5))
	anon, _ := newTestConn(t, types.ClassGeneral, nil)

	registry.Add(doctor)
	registry.Add(anon)

	if got, ok := registry.IdentityConnection(5); !ok || got != doctor {
		t.Error("Identified connection not reachable by identity")
	}
	if len(registry.ClassConnections(types.ClassDoctors)) != 1 {
		t.Error("Doctor connection missing from class set")
	}
	if len(registry.ClassConnections(types.ClassGeneral)) != 1 {
		t.Error("Anonymous connection missing from class set")
	}
	if _, ok := registry.IdentityConnection(0); ok {
		t.Error("Anonymous connection must not be indexed by identity")
	}
}

func TestRegistry_LastConnectWins(t *testing.T) {
	registry := NewRegistry()

	older, _ := newTestConn(t, types.ClassDoctors, identityOf(5))
	newer, _ := newTestConn(t, types.ClassDoctors, identityOf(5))

	registry.Add(older)
	registry.Add(newer)

	got, ok := registry.IdentityConnection(5)
	if !ok || got != newer {
		t.Error("Identity must map to the most recent connection")
	}

	// The superseded connection is replaced silently, not closed, and
	// stays in its class set until its own handler removes it.
	select {
	case <-older.Done():
		t.Error("Superseded connection must not be closed by the registry")
	default:
	}
	if len(registry.ClassConnections(types.ClassDoctors)) != 2 {
		t.Error("Superseded connection must remain in its class set")
	}
}

func TestRegistry_StaleDisconnectGuard(t *testing.T) {
	registry := NewRegistry()

	older, _ := newTestConn(t, types.ClassDoctors, identityOf(5))
	newer, _ := newTestConn(t, types.ClassDoctors, identityOf(5))

	registry.Add(older)
	registry.Add(newer)

	// The old connection's handler fires late. It must not evict the
	// replacement from the identity map.
	registry.Remove(older)

	got, ok := registry.IdentityConnection(5)
	if !ok || got != newer {
		t.Error("Stale disconnect evicted the replacement connection")
	}
	if len(registry.ClassConnections(types.ClassDoctors)) != 1 {
		t.Error("Stale disconnect must still remove the old class entry")
	}

	registry.Remove(newer)
	if _, ok := registry.IdentityConnection(5); ok {
		t.Error("Current connection's disconnect must clear the identity entry")
	}
}

func TestRegistry_RemoveIsIdempotent(t *testing.T) {
	registry := NewRegistry()

	conn, _ := newTestConn(t, types.ClassPatients, identityOf(9))
	registry.Add(conn)

	registry.Remove(conn)
	registry.Remove(conn)
	registry.Remove(nil)

	if len(registry.ClassConnections(types.ClassPatients)) != 0 {
		t.Error("Connection still present after removal")
	}
}

func TestRegistry_SendToAbsentRecipient(t *testing.T) {
	registry := NewRegistry()

	if registry.SendTo(42, map[string]string{"hello": "world"}) {
		t.Error("Send to an absent recipient must report false")
	}
}

func TestRegistry_SendToDelivers(t *testing.T) {
	registry := NewRegistry()

	conn, received := newTestConn(t, types.ClassPatients, identityOf(9))
	registry.Add(conn)

	if !registry.SendTo(9, map[string]string{"type": "test"}) {
		t.Fatal("Send to a live recipient must report true")
	}

	var frame map[string]string
	if err := json.Unmarshal(recvFrame(t, received), &frame); err != nil {
		t.Fatalf("Delivered frame is not valid JSON: %v", err)
	}
	if frame["type"] != "test" {
		t.Errorf("Expected type 'test', got %q", frame["type"])
	}
}

func TestRegistry_SendToFailurePrunes(t *testing.T) {
	registry := NewRegistry()

	dead := newDeadConn(t, types.ClassDoctors, identityOf(5))
	registry.Add(dead)

	if registry.SendTo(5, map[string]string{"type": "test"}) {
		t.Error("Send over a dead transport must report false")
	}
	if _, ok := registry.IdentityConnection(5); ok {
		t.Error("Dead connection must be pruned from the identity map")
	}
	if len(registry.ClassConnections(types.ClassDoctors)) != 0 {
		t.Error("Dead connection must be pruned from its class set")
	}
}

func TestRegistry_BroadcastDeliversExactlyOnce(t *testing.T) {
	registry := NewRegistry()

	channels := make([]chan []byte, 3)
	for i := range channels {
		conn, received := newTestConn(t, types.ClassPatients, nil)
		registry.Add(conn)
		channels[i] = received
	}

	doctor, doctorCh := newTestConn(t, types.ClassDoctors, identityOf(5))
	registry.Add(doctor)

	registry.BroadcastToClass(types.ClassPatients, map[string]string{"type": "announce"})

	select {
	case <-doctorCh:
		t.Error("Class broadcast leaked into another class")
	case <-time.After(50 * time.Millisecond):
	}

	for i, ch := range channels {
		recvFrame(t, ch)
		select {
		case <-ch:
			t.Errorf("Connection %d received a duplicate frame", i)
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestRegistry_BroadcastPrunesFailedAfterDelivery(t *testing.T) {
	registry := NewRegistry()

	live, received := newTestConn(t, types.ClassDoctors, identityOf(7))
	dead := newDeadConn(t, types.ClassDoctors, identityOf(8))
	registry.Add(live)
	registry.Add(dead)

	registry.BroadcastToClass(types.ClassDoctors, map[string]string{"type": "announce"})

	// One dead peer must not affect delivery to the rest.
	recvFrame(t, received)

	if _, ok := registry.IdentityConnection(8); ok {
		t.Error("Failed connection must be pruned after the broadcast")
	}
	if _, ok := registry.IdentityConnection(7); !ok {
		t.Error("Healthy connection must survive the broadcast")
	}
}

func TestRegistry_BroadcastToAllReachesEveryClass(t *testing.T) {
	registry := NewRegistry()

	doctor, doctorCh := newTestConn(t, types.ClassDoctors, identityOf(5))
	patient, patientCh := newTestConn(t, types.ClassPatients, identityOf(9))
	anon, anonCh := newTestConn(t, types.ClassGeneral, nil)
	registry.Add(doctor)
	registry.Add(patient)
	registry.Add(anon)

	registry.BroadcastToAll(map[string]string{"type": "announce"})

	recvFrame(t, doctorCh)
	recvFrame(t, patientCh)
	recvFrame(t, anonCh)
}

// Connects, sends and disconnects for many identities race each other
// and a broadcast loop; run with -race. Afterwards every identity must
// be cleanly gone, whatever order the operations landed in.
func TestRegistry_ConcurrentMutationAndBroadcast(t *testing.T) {
	registry := NewRegistry()

	const workers = 8
	const iterations = 10

	conns := make([][]*Connection, workers)
	for w := range conns {
		conns[w] = make([]*Connection, iterations)
		for i := range conns[w] {
			conn, _ := newTestConn(t, types.ClassPatients, identityOf(int64(100+w)))
			conns[w][i] = conn
		}
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			registry.BroadcastToAll(map[string]string{"type": "announce"})
		}
	}()

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			identity := int64(100 + w)
			for _, conn := range conns[w] {
				registry.Add(conn)
				registry.SendTo(identity, map[string]string{"type": "ping"})
				registry.BroadcastToClass(types.ClassPatients, map[string]string{"type": "announce"})
				registry.Remove(conn)
			}
		}(w)
	}
	wg.Wait()

	for w := 0; w < workers; w++ {
		if _, ok := registry.IdentityConnection(int64(100 + w)); ok {
			t.Errorf("Identity %d still mapped after its last disconnect", 100+w)
		}
	}
	if n := len(registry.ClassConnections(types.ClassPatients)); n != 0 {
		t.Errorf("Expected an empty class set after all disconnects, got %d", n)
	}
}

func TestRegistry_Stats(t *testing.T) {
	registry := NewRegistry()

	doctor, _ := newTestConn(t, types.ClassDoctors, identityOf(5))
	anon, _ := newTestConn(t, types.ClassGeneral, nil)
	registry.Add(doctor)
	registry.Add(anon)

	stats := registry.Stats()
	if stats["doctors"] != 1 || stats["general"] != 1 || stats["patients"] != 0 {
		t.Errorf("Unexpected per-class stats: %v", stats)
	}
	if stats["total_connections"] != 2 {
		t.Errorf("Expected 2 total connections, got %d", stats["total_connections"])
	}
	if stats["identified_users"] != 1 {
		t.Errorf("Expected 1 identified user, got %d", stats["identified_users"])
	}
}
