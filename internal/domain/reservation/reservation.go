package reservation

import (
	"context"
	"errors"
	"time"

	"covach/internal/domain/listing"
	"covach/internal/domain/shared/daterange"
	"covach/internal/domain/shared/events"
	"covach/internal/domain/shared/money"
)

var (
	ErrNotFound         = errors.New("reservation: not found")
	ErrInvalidStatus    = errors.New("reservation: invalid status transition")
	ErrInvalidGuests    = errors.New("reservation: guest count must be positive")
	ErrConcurrentUpdate = errors.New("reservation: concurrent update detected")
)

type ReservationID string

type Status string

const (
	StatusRequested Status = "requested"
	StatusApproved  Status = "approved"
	StatusDeclined  Status = "declined"
	StatusCanceled  Status = "canceled"
	StatusExpired   Status = "expired"
)

// Reservation is the ledger aggregate. HostID is copied from the listing at
// creation time so the record stays attributable if listing ownership moves.
type Reservation struct {
	ID              ReservationID
	ListingID       listing.ListingID
	GuestID         string
	HostID          string
	Range           daterange.DateRange
	Guests          int
	Total           money.Money
	Status          Status
	GuestMessage    string
	CancellationFee money.Money
	ExpiresAt       time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int64
	events.EventRecorder
}

type RequestParams struct {
	ID        ReservationID
	ListingID listing.ListingID
	GuestID   string
	HostID    string
	Range     daterange.DateRange
	Guests    int
	Total     money.Money
	Message   string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewRequest builds a reservation in the requested state, the only entry
// point into the lifecycle.
func NewRequest(params RequestParams) (*Reservation, error) {
	if params.Guests <= 0 {
		return nil, ErrInvalidGuests
	}
	if params.GuestID == "" {
		return nil, errors.New("reservation: guest id required")
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	now := params.CreatedAt.UTC()
	r := &Reservation{
		ID:           params.ID,
		ListingID:    params.ListingID,
		GuestID:      params.GuestID,
		HostID:       params.HostID,
		Range:        params.Range,
		Guests:       params.Guests,
		Total:        params.Total,
		Status:       StatusRequested,
		GuestMessage: params.Message,
		ExpiresAt:    params.ExpiresAt.UTC(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.Record(RequestCreated{ReservationID: r.ID, ListingID: r.ListingID, GuestID: r.GuestID, HostID: r.HostID, Range: r.Range, Guests: r.Guests, Total: r.Total, At: now})
	return r, nil
}

// DeadlinePassed reports whether an unanswered request has outlived its TTL.
func (r *Reservation) DeadlinePassed(now time.Time) bool {
	return r.Status == StatusRequested && !r.ExpiresAt.After(now.UTC())
}

func (r *Reservation) Approve(now time.Time) error {
	if r.Status != StatusRequested {
		return ErrInvalidStatus
	}
	r.Status = StatusApproved
	r.UpdatedAt = now.UTC()
	r.Record(RequestApproved{ReservationID: r.ID, ListingID: r.ListingID, Range: r.Range, At: r.UpdatedAt})
	return nil
}

func (r *Reservation) Decline(now time.Time) error {
	if r.Status != StatusRequested {
		return ErrInvalidStatus
	}
	r.Status = StatusDeclined
	r.UpdatedAt = now.UTC()
	r.Record(RequestDeclined{ReservationID: r.ID, At: r.UpdatedAt})
	return nil
}

// Cancel moves a requested or approved reservation to canceled, recording the
// fee computed by the listing's policy. The fee is set nowhere else.
func (r *Reservation) Cancel(fee money.Money, now time.Time) error {
	if r.Status != StatusRequested && r.Status != StatusApproved {
		return ErrInvalidStatus
	}
	r.Status = StatusCanceled
	r.CancellationFee = fee
	r.UpdatedAt = now.UTC()
	r.Record(Canceled{ReservationID: r.ID, Fee: fee, At: r.UpdatedAt})
	return nil
}

func (r *Reservation) MarkExpired(now time.Time) error {
	if r.Status != StatusRequested {
		return ErrInvalidStatus
	}
	r.Status = StatusExpired
	r.UpdatedAt = now.UTC()
	r.Record(RequestExpired{ReservationID: r.ID, At: r.UpdatedAt})
	return nil
}

// ListFilter narrows read queries for dashboards.
type ListFilter struct {
	HostID    string
	GuestID   string
	ListingID listing.ListingID
	Status    Status
	Limit     int
}

type Repository interface {
	ByID(ctx context.Context, id ReservationID) (*Reservation, error)
	// Save persists the aggregate guarded by its version; a stale version
	// yields ErrConcurrentUpdate.
	Save(ctx context.Context, r *Reservation) error
	// AnyApprovedOverlap reports whether an approved reservation other than
	// exclude overlaps dr on the listing. This is the ledger's side of the
	// shared availability predicate.
	AnyApprovedOverlap(ctx context.Context, id listing.ListingID, dr daterange.DateRange, exclude ReservationID) (bool, error)
	// OpenPastDeadline lists requested reservations whose TTL elapsed.
	OpenPastDeadline(ctx context.Context, now time.Time) ([]*Reservation, error)
	List(ctx context.Context, filter ListFilter) ([]*Reservation, error)
}
