package memory

import (
	"context"
	"errors"
	"sync"

	"covach/internal/app/uow"
	domainlisting "covach/internal/domain/listing"
	domainreservation "covach/internal/domain/reservation"
)

var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// Factory wires in-memory repositories into a unit-of-work boundary.
// Writable units hold a factory-wide mutex from Begin until Commit or
// Rollback, serializing every check-then-act sequence the way the mongo
// implementation does with transactions.
type Factory struct {
	ListingsRepo     *ListingRepository
	BlocksRepo       *BlockRepository
	ReservationsRepo *ReservationRepository
	Events           *EventLog

	writeMu sync.Mutex
}

func (f *Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.ListingsRepo == nil || f.BlocksRepo == nil || f.ReservationsRepo == nil || f.Events == nil {
		return nil, ErrFactoryMisconfigured
	}
	unit := &Unit{
		listings:     f.ListingsRepo,
		blocks:       f.BlocksRepo,
		reservations: f.ReservationsRepo,
		events:       f.Events,
	}
	if !opts.ReadOnly {
		f.writeMu.Lock()
		unit.release = f.writeMu.Unlock
	}
	return unit, nil
}

// Unit is a uow.UnitOfWork backed by in-memory stores. Writes apply
// immediately; rollback is not supported beyond releasing the serialization
// lock, which is sufficient for the operations the ledger performs (a failed
// precondition aborts before any write).
type Unit struct {
	listings     *ListingRepository
	blocks       *BlockRepository
	reservations *ReservationRepository
	events       *EventLog
	release      func()
	done         bool
}

func (u *Unit) Listings() domainlisting.Repository { return u.listings }
func (u *Unit) Blocks() domainlisting.BlockRepository { return u.blocks }
func (u *Unit) Reservations() domainreservation.Repository { return u.reservations }
func (u *Unit) Events() domainreservation.EventLog { return u.events }

func (u *Unit) Commit(ctx context.Context) error {
	u.finish()
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	u.finish()
	return nil
}

func (u *Unit) finish() {
	if u.done {
		return
	}
	u.done = true
	if u.release != nil {
		u.release()
	}
}
