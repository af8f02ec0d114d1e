package presence

import (
	"sync"
	"time"

	"careline/pkg/interfaces"
	"careline/pkg/types"
)

const eventDoctorStatusUpdate = "doctor_status_update"

// Tracker maintains last-known doctor availability. Records are created
// lazily on first update and never deleted; a doctor without a record is
// offline with no timestamp, which is also what every doctor looks like
// after a process restart.
type Tracker struct {
	mu          sync.RWMutex
	statuses    map[int64]types.DoctorPresence
	broadcaster interfaces.Broadcaster
}

// NewTracker creates a presence tracker that announces status changes
// through the given broadcaster.
func NewTracker(broadcaster interfaces.Broadcaster) *Tracker {
	return &Tracker{
		statuses:    make(map[int64]types.DoctorPresence),
		broadcaster: broadcaster,
	}
}

// UpdateStatus records a doctor's status and broadcasts the change to
// every connected client. This is the only path that mutates presence,
// so every status change is observed as a message. Unknown status values
// are rejected before any state changes.
func (t *Tracker) UpdateStatus(doctorID int64, status types.PresenceStatus) error {
	if !types.IsValidPresenceStatus(string(status)) {
		return ErrInvalidStatus
	}

	now := time.Now().UTC()

	t.mu.Lock()
	t.statuses[doctorID] = types.DoctorPresence{
		Status:      status,
		LastUpdated: &now,
	}
	t.mu.Unlock()

	t.broadcaster.BroadcastToAll(types.PresenceEvent{
		Type:      eventDoctorStatusUpdate,
		DoctorID:  doctorID,
		Status:    status,
		Timestamp: now,
	})

	return nil
}

// Status returns a doctor's last-known presence. Never fails: an unknown
// doctor reads as offline with a nil timestamp.
func (t *Tracker) Status(doctorID int64) types.DoctorPresence {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if record, ok := t.statuses[doctorID]; ok {
		return record
	}
	return types.DoctorPresence{Status: types.StatusOffline}
}
