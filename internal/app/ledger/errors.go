package ledger

// Reason is the machine-readable code attached to every business-rule
// rejection. HTTP layers map the pair (reason, message) onto flash-style
// responses; nothing here is a fault.
type Reason string

const (
	ReasonInvalidDates       Reason = "invalid_dates"
	ReasonListingNotBookable Reason = "listing_not_bookable"
	ReasonHostNotApproved    Reason = "host_not_approved"
	ReasonSelfBooking        Reason = "self_booking"
	ReasonCapacityExceeded   Reason = "capacity_exceeded"
	ReasonDatesBlocked       Reason = "dates_blocked"
	ReasonDatesReserved      Reason = "dates_reserved"
	ReasonWrongActor         Reason = "wrong_actor"
	ReasonWrongStatus        Reason = "wrong_status"
	ReasonRequestExpired     Reason = "request_expired"
	ReasonApprovalConflict   Reason = "approval_conflict"
	ReasonConcurrentUpdate   Reason = "concurrent_update"
)

// RuleViolation is the single recoverable error kind for rejected
// operations. Callers branch on Reason with errors.As; it is surfaced to the
// user, never retried automatically.
type RuleViolation struct {
	Reason  Reason
	Message string
}

func (e *RuleViolation) Error() string {
	return e.Message
}

func violation(reason Reason, message string) *RuleViolation {
	return &RuleViolation{Reason: reason, Message: message}
}
