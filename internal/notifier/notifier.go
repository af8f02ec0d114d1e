package notifier

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"careline/pkg/interfaces"
	"careline/pkg/types"
)

// Notifier translates committed domain events into addressed frames and
// hands them to the registry. It holds no state of its own; delivery is
// best-effort and at-most-once, with no retry for offline recipients.
type Notifier struct {
	sender interfaces.Sender
}

// NewNotifier creates an event notifier that delivers through sender.
func NewNotifier(sender interfaces.Sender) *Notifier {
	return &Notifier{sender: sender}
}

// AppointmentEvent notifies both participants of an appointment change.
// The two deliveries are independent: a missed patient does not affect
// the doctor, and vice versa.
func (n *Notifier) AppointmentEvent(summary types.AppointmentSummary, action types.AppointmentAction) {
	now := time.Now().UTC()
	eventType := fmt.Sprintf("appointment_%s", action)

	patientNote := types.Notification{
		ID:        uuid.New().String(),
		Type:      eventType,
		Message:   fmt.Sprintf("Your appointment has been %s", action),
		Data:      summary,
		Timestamp: now,
	}
	if !n.sender.SendTo(summary.PatientID, patientNote) {
		log.Printf("Appointment %s event not delivered to patient %d (offline)", action, summary.PatientID)
	}

	doctorNote := types.Notification{
		ID:        uuid.New().String(),
		Type:      eventType,
		Message:   fmt.Sprintf("Appointment has been %s", action),
		Data:      summary,
		Timestamp: now,
	}
	if !n.sender.SendTo(summary.DoctorID, doctorNote) {
		log.Printf("Appointment %s event not delivered to doctor %d (offline)", action, summary.DoctorID)
	}
}
