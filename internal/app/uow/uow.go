package uow

import (
	"context"

	domainlisting "covach/internal/domain/listing"
	domainreservation "covach/internal/domain/reservation"
)

// UnitOfWork coordinates repositories inside a transaction boundary. A
// reservation transition and its audit entry always commit together.
type UnitOfWork interface {
	Listings() domainlisting.Repository
	Blocks() domainlisting.BlockRepository
	Reservations() domainreservation.Repository
	Events() domainreservation.EventLog

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Factory starts unit of work instances.
type Factory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries. Writable units serialize the
// check-then-act sequences of approve/decline/cancel.
type TxOptions struct {
	ReadOnly bool
}
