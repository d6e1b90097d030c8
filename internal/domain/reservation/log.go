package reservation

import (
	"context"
	"time"
)

// Audit event type tags, one per lifecycle transition.
const (
	LogRequestCreated  = "request_created"
	LogRequestApproved = "request_approved"
	LogRequestDeclined = "request_declined"
	LogCanceled        = "reservation_canceled"
	LogRequestExpired  = "request_expired"
)

// LogEntry is one immutable row of a reservation's audit trail. ActorID is
// empty for system-initiated transitions such as expiry. Entries are never
// consulted by the state machine.
type LogEntry struct {
	ID            string
	ReservationID ReservationID
	ActorID       string
	Type          string
	Message       string
	Metadata      map[string]string
	CreatedAt     time.Time
}

// EventLog is the append-only store for audit entries.
type EventLog interface {
	Append(ctx context.Context, entry LogEntry) error
	// ByReservation returns entries newest first.
	ByReservation(ctx context.Context, id ReservationID) ([]LogEntry, error)
}
