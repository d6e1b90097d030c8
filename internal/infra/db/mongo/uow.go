package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"covach/internal/app/uow"
	domainlisting "covach/internal/domain/listing"
	domainreservation "covach/internal/domain/reservation"
)

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Factory wires Mongo transactions into the generic UnitOfWork interface.
// Combined with the versioned reservation saves, a session transaction gives
// the serializing check-then-act boundary the ledger requires.
type Factory struct {
	DB *mongo.Database

	ListingsRepo     domainlisting.Repository
	BlocksRepo       domainlisting.BlockRepository
	ReservationsRepo domainreservation.Repository
	EventsRepo       domainreservation.EventLog
}

// Begin starts a MongoDB session/transaction.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().SetReadConcern(f.DB.ReadConcern()).SetWriteConcern(f.DB.WriteConcern())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{
		session:      session,
		listings:     f.ListingsRepo,
		blocks:       f.BlocksRepo,
		reservations: f.ReservationsRepo,
		events:       f.EventsRepo,
	}, nil
}

type Unit struct {
	session mongo.Session

	listings     domainlisting.Repository
	blocks       domainlisting.BlockRepository
	reservations domainreservation.Repository
	events       domainreservation.EventLog
}

func (u *Unit) Listings() domainlisting.Repository         { return u.listings }
func (u *Unit) Blocks() domainlisting.BlockRepository      { return u.blocks }
func (u *Unit) Reservations() domainreservation.Repository { return u.reservations }
func (u *Unit) Events() domainreservation.EventLog         { return u.events }

func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.CommitTransaction(ctx)
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures the Mongo session is available in context for
// downstream repositories.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}
