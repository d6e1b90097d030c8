package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainlisting "covach/internal/domain/listing"
	domainreservation "covach/internal/domain/reservation"
	domainrange "covach/internal/domain/shared/daterange"
	"covach/internal/domain/shared/money"
)

// ReservationRepository persists the ledger aggregate. Saves are guarded by
// the stored version so a lost approve/cancel race surfaces as
// ErrConcurrentUpdate instead of silently clobbering a transition.
type ReservationRepository struct {
	col *mongo.Collection
}

func NewReservationRepository(db *mongo.Database) *ReservationRepository {
	col := db.Collection("reservations")
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "listing_id", Value: 1}, {Key: "status", Value: 1}, {Key: "check_in", Value: 1}, {Key: "check_out", Value: 1}}},
		{Keys: bson.D{{Key: "host_id", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "guest_id", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}}},
	}
	_, _ = col.Indexes().CreateMany(context.Background(), indexes)
	return &ReservationRepository{col: col}
}

func (r *ReservationRepository) ByID(ctx context.Context, id domainreservation.ReservationID) (*domainreservation.Reservation, error) {
	var doc reservationDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainreservation.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *ReservationRepository) Save(ctx context.Context, res *domainreservation.Reservation) error {
	doc := newReservationDocument(res)
	filter := bson.M{"_id": doc.ID, "version": res.Version}
	doc.Version = res.Version + 1
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(res.Version == 0)
	result, err := r.col.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainreservation.ErrConcurrentUpdate
		}
		return err
	}
	if result.MatchedCount == 0 && result.UpsertedCount == 0 {
		return domainreservation.ErrConcurrentUpdate
	}
	res.Version = doc.Version
	return nil
}

func (r *ReservationRepository) AnyApprovedOverlap(ctx context.Context, id domainlisting.ListingID, dr domainrange.DateRange, exclude domainreservation.ReservationID) (bool, error) {
	filter := bson.M{
		"listing_id": string(id),
		"status":     string(domainreservation.StatusApproved),
		"check_in":   bson.M{"$lt": dr.CheckOut.UnixMilli()},
		"check_out":  bson.M{"$gt": dr.CheckIn.UnixMilli()},
	}
	if exclude != "" {
		filter["_id"] = bson.M{"$ne": string(exclude)}
	}
	err := r.col.FindOne(ctx, filter).Err()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	return false, err
}

func (r *ReservationRepository) OpenPastDeadline(ctx context.Context, now time.Time) ([]*domainreservation.Reservation, error) {
	filter := bson.M{
		"status":     string(domainreservation.StatusRequested),
		"expires_at": bson.M{"$lte": now.UTC().UnixMilli()},
	}
	cursor, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	return decodeReservations(ctx, cursor)
}

func (r *ReservationRepository) List(ctx context.Context, filter domainreservation.ListFilter) ([]*domainreservation.Reservation, error) {
	query := bson.M{}
	if filter.HostID != "" {
		query["host_id"] = filter.HostID
	}
	if filter.GuestID != "" {
		query["guest_id"] = filter.GuestID
	}
	if filter.ListingID != "" {
		query["listing_id"] = string(filter.ListingID)
	}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if filter.Limit > 0 {
		opts = opts.SetLimit(int64(filter.Limit))
	}
	cursor, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	return decodeReservations(ctx, cursor)
}

func decodeReservations(ctx context.Context, cursor *mongo.Cursor) ([]*domainreservation.Reservation, error) {
	var out []*domainreservation.Reservation
	for cursor.Next(ctx) {
		var doc reservationDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cursor.Err()
}

type reservationDocument struct {
	ID              string `bson:"_id"`
	ListingID       string `bson:"listing_id"`
	GuestID         string `bson:"guest_id"`
	HostID          string `bson:"host_id"`
	CheckIn         int64  `bson:"check_in"`
	CheckOut        int64  `bson:"check_out"`
	Guests          int    `bson:"guests"`
	TotalCents      int64  `bson:"total_cents"`
	Status          string `bson:"status"`
	GuestMessage    string `bson:"guest_message"`
	CancelFeeCents  int64  `bson:"cancellation_fee_cents"`
	ExpiresAt       int64  `bson:"expires_at"`
	CreatedAt       int64  `bson:"created_at"`
	UpdatedAt       int64  `bson:"updated_at"`
	Version         int64  `bson:"version"`
}

func newReservationDocument(res *domainreservation.Reservation) reservationDocument {
	return reservationDocument{
		ID:             string(res.ID),
		ListingID:      string(res.ListingID),
		GuestID:        res.GuestID,
		HostID:         res.HostID,
		CheckIn:        res.Range.CheckIn.UnixMilli(),
		CheckOut:       res.Range.CheckOut.UnixMilli(),
		Guests:         res.Guests,
		TotalCents:     res.Total.Cents,
		Status:         string(res.Status),
		GuestMessage:   res.GuestMessage,
		CancelFeeCents: res.CancellationFee.Cents,
		ExpiresAt:      res.ExpiresAt.UnixMilli(),
		CreatedAt:      res.CreatedAt.UnixMilli(),
		UpdatedAt:      res.UpdatedAt.UnixMilli(),
		Version:        res.Version,
	}
}

func (d reservationDocument) toAggregate() *domainreservation.Reservation {
	return &domainreservation.Reservation{
		ID:              domainreservation.ReservationID(d.ID),
		ListingID:       domainlisting.ListingID(d.ListingID),
		GuestID:         d.GuestID,
		HostID:          d.HostID,
		Range:           domainrange.DateRange{CheckIn: timestampToTime(d.CheckIn), CheckOut: timestampToTime(d.CheckOut)},
		Guests:          d.Guests,
		Total:           money.FromCents(d.TotalCents),
		Status:          domainreservation.Status(d.Status),
		GuestMessage:    d.GuestMessage,
		CancellationFee: money.FromCents(d.CancelFeeCents),
		ExpiresAt:       timestampToTime(d.ExpiresAt),
		CreatedAt:       timestampToTime(d.CreatedAt),
		UpdatedAt:       timestampToTime(d.UpdatedAt),
		Version:         d.Version,
	}
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
