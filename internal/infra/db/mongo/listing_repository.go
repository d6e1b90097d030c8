package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainlisting "covach/internal/domain/listing"
	domainrange "covach/internal/domain/shared/daterange"
	"covach/internal/domain/shared/money"
)

// ListingRepository reads catalog records. The ledger and search never write
// listings; the catalog service owns the collection.
type ListingRepository struct {
	col *mongo.Collection
}

func NewListingRepository(db *mongo.Database) *ListingRepository {
	col := db.Collection("listings")
	idx := mongo.IndexModel{Keys: bson.D{{Key: "status", Value: 1}, {Key: "city", Value: 1}, {Key: "nightly_rate_cents", Value: 1}}}
	_, _ = col.Indexes().CreateOne(context.Background(), idx)
	return &ListingRepository{col: col}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlisting.ListingID) (*domainlisting.Listing, error) {
	var doc listingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainlisting.ErrListingNotFound
		}
		return nil, err
	}
	return doc.toListing(), nil
}

func (r *ListingRepository) Search(ctx context.Context, params domainlisting.SearchParams) ([]*domainlisting.Listing, error) {
	query := bson.M{"status": string(domainlisting.StatusPublished)}
	if params.PropertyType != "" {
		query["property_type"] = string(params.PropertyType)
	}
	if params.MinGuests > 0 {
		query["max_guests"] = bson.M{"$gte": params.MinGuests}
	}
	rate := bson.M{}
	if !params.PriceMin.IsZero() {
		rate["$gte"] = params.PriceMin.Cents
	}
	if !params.PriceMax.IsZero() {
		rate["$lte"] = params.PriceMax.Cents
	}
	if len(rate) > 0 {
		query["nightly_rate_cents"] = rate
	}
	if params.City != "" {
		query["city"] = params.City
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if params.Limit > 0 {
		opts = opts.SetLimit(int64(params.Limit))
	}
	cursor, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*domainlisting.Listing
	for cursor.Next(ctx) {
		var doc listingDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toListing())
	}
	return out, cursor.Err()
}

type listingDocument struct {
	ID                 string `bson:"_id"`
	HostID             string `bson:"host_id"`
	Title              string `bson:"title"`
	PropertyType       string `bson:"property_type"`
	City               string `bson:"city"`
	Country            string `bson:"country"`
	NightlyRateCents   int64  `bson:"nightly_rate_cents"`
	MaxGuests          int    `bson:"max_guests"`
	Status             string `bson:"status"`
	CancellationPolicy string `bson:"cancellation_policy"`
	CreatedAt          int64  `bson:"created_at"`
	UpdatedAt          int64  `bson:"updated_at"`
}

func (d listingDocument) toListing() *domainlisting.Listing {
	return &domainlisting.Listing{
		ID:                 domainlisting.ListingID(d.ID),
		HostID:             d.HostID,
		Title:              d.Title,
		PropertyType:       domainlisting.PropertyType(d.PropertyType),
		City:               d.City,
		Country:            d.Country,
		NightlyRate:        money.FromCents(d.NightlyRateCents),
		MaxGuests:          d.MaxGuests,
		Status:             domainlisting.Status(d.Status),
		CancellationPolicy: domainlisting.CancellationPolicy(d.CancellationPolicy),
		CreatedAt:          timestampToTime(d.CreatedAt),
		UpdatedAt:          timestampToTime(d.UpdatedAt),
	}
}

// BlockRepository reads host availability blocks.
type BlockRepository struct {
	col *mongo.Collection
}

func NewBlockRepository(db *mongo.Database) *BlockRepository {
	col := db.Collection("availability_blocks")
	idx := mongo.IndexModel{Keys: bson.D{{Key: "listing_id", Value: 1}, {Key: "start_date", Value: 1}, {Key: "end_date", Value: 1}}}
	_, _ = col.Indexes().CreateOne(context.Background(), idx)
	return &BlockRepository{col: col}
}

func (r *BlockRepository) AnyOverlapping(ctx context.Context, id domainlisting.ListingID, dr domainrange.DateRange) (bool, error) {
	filter := bson.M{
		"listing_id": string(id),
		"start_date": bson.M{"$lt": dr.CheckOut.UnixMilli()},
		"end_date":   bson.M{"$gt": dr.CheckIn.UnixMilli()},
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

func (r *BlockRepository) ByListing(ctx context.Context, id domainlisting.ListingID) ([]*domainlisting.AvailabilityBlock, error) {
	opts := options.Find().SetSort(bson.D{{Key: "start_date", Value: 1}})
	cursor, err := r.col.Find(ctx, bson.M{"listing_id": string(id)}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*domainlisting.AvailabilityBlock
	for cursor.Next(ctx) {
		var doc blockDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, &domainlisting.AvailabilityBlock{
			ID:        doc.ID,
			ListingID: domainlisting.ListingID(doc.ListingID),
			Range:     domainrange.DateRange{CheckIn: timestampToTime(doc.StartDate), CheckOut: timestampToTime(doc.EndDate)},
			Reason:    doc.Reason,
			CreatedAt: timestampToTime(doc.CreatedAt),
		})
	}
	return out, cursor.Err()
}

type blockDocument struct {
	ID        string `bson:"_id"`
	ListingID string `bson:"listing_id"`
	StartDate int64  `bson:"start_date"`
	EndDate   int64  `bson:"end_date"`
	Reason    string `bson:"reason"`
	CreatedAt int64  `bson:"created_at"`
}
