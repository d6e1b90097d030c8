package reservation

import (
	"time"

	"covach/internal/domain/listing"
	"covach/internal/domain/shared/daterange"
	"covach/internal/domain/shared/money"
)

type RequestCreated struct {
	ReservationID ReservationID
	ListingID     listing.ListingID
	GuestID       string
	HostID        string
	Range         daterange.DateRange
	Guests        int
	Total         money.Money
	At            time.Time
}

func (e RequestCreated) EventName() string     { return "reservation.request_created" }
func (e RequestCreated) AggregateID() string   { return string(e.ReservationID) }
func (e RequestCreated) OccurredAt() time.Time { return e.At }

type RequestApproved struct {
	ReservationID ReservationID
	ListingID     listing.ListingID
	Range         daterange.DateRange
	At            time.Time
}

func (e RequestApproved) EventName() string     { return "reservation.request_approved" }
func (e RequestApproved) AggregateID() string   { return string(e.ReservationID) }
func (e RequestApproved) OccurredAt() time.Time { return e.At }

type RequestDeclined struct {
	ReservationID ReservationID
	At            time.Time
}

func (e RequestDeclined) EventName() string     { return "reservation.request_declined" }
func (e RequestDeclined) AggregateID() string   { return string(e.ReservationID) }
func (e RequestDeclined) OccurredAt() time.Time { return e.At }

type Canceled struct {
	ReservationID ReservationID
	Fee           money.Money
	At            time.Time
}

func (e Canceled) EventName() string     { return "reservation.canceled" }
func (e Canceled) AggregateID() string   { return string(e.ReservationID) }
func (e Canceled) OccurredAt() time.Time { return e.At }

type RequestExpired struct {
	ReservationID ReservationID
	At            time.Time
}

func (e RequestExpired) EventName() string     { return "reservation.request_expired" }
func (e RequestExpired) AggregateID() string   { return string(e.ReservationID) }
func (e RequestExpired) OccurredAt() time.Time { return e.At }
