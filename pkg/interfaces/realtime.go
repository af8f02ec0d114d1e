package interfaces

import "careline/pkg/types"

// Sender delivers a payload to the live connection bound to an identity.
// The boolean reports delivery: false means the recipient is offline or
// the send failed (and the dead connection was pruned). Never an error —
// an absent recipient is a normal outcome.
type Sender interface {
	SendTo(identity int64, payload interface{}) bool
}

// Broadcaster fans a payload out to live connections.
type Broadcaster interface {
	BroadcastToClass(class types.ClassTag, payload interface{})
	BroadcastToAll(payload interface{})
}

// EventNotifier is the narrow surface the request/response layer uses to
// push committed domain events into the real-time core.
type EventNotifier interface {
	AppointmentEvent(summary types.AppointmentSummary, action types.AppointmentAction)
}

// PresenceTracker maintains last-known doctor availability.
type PresenceTracker interface {
	UpdateStatus(doctorID int64, status types.PresenceStatus) error
	Status(doctorID int64) types.DoctorPresence
}
