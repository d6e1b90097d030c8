package policies

import "context"

// Notification type tags consumed by the notifier.
const (
	NotifyReservationRequest  = "reservation_request"
	NotifyReservationApproved = "reservation_approved"
	NotifyReservationDeclined = "reservation_declined"
	NotifyReservationCanceled = "reservation_canceled"
	NotifyReservationExpired  = "reservation_expired"
)

// Notifier delivers user-facing notifications. Calls are fire-and-forget:
// the ledger invokes them only after commit and ignores the returned error
// beyond logging it.
type Notifier interface {
	Notify(ctx context.Context, userID, typeTag, title, body string, payload map[string]string) error
}
