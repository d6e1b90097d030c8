package listing

import (
	"context"
	"errors"
	"time"

	"covach/internal/domain/shared/daterange"
	"covach/internal/domain/shared/money"
)

var ErrListingNotFound = errors.New("listing: not found")

type ListingID string

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

type CancellationPolicy string

const (
	PolicyFlexible CancellationPolicy = "flexible"
	PolicyModerate CancellationPolicy = "moderate"
	PolicyStrict   CancellationPolicy = "strict"
)

type PropertyType string

const (
	PropertyApartment PropertyType = "apartment"
	PropertyHouse     PropertyType = "house"
	PropertyCondo     PropertyType = "condo"
	PropertyCabin     PropertyType = "cabin"
	PropertyVilla     PropertyType = "villa"
)

// Listing is the catalog record the reservation ledger reads. The ledger
// never mutates listings; publication and rates are owned by the catalog.
type Listing struct {
	ID                 ListingID
	HostID             string
	Title              string
	PropertyType       PropertyType
	City               string
	Country            string
	NightlyRate        money.Money
	MaxGuests          int
	Status             Status
	CancellationPolicy CancellationPolicy
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Bookable reports whether new reservation requests may target the listing.
// Existing reservations keep referencing archived listings.
func (l *Listing) Bookable() bool {
	return l.Status == StatusPublished
}

// AvailabilityBlock is a host-imposed closure. Blocked nights are never
// bookable regardless of reservation state.
type AvailabilityBlock struct {
	ID        string
	ListingID ListingID
	Range     daterange.DateRange
	Reason    string
	CreatedAt time.Time
}

type Repository interface {
	ByID(ctx context.Context, id ListingID) (*Listing, error)
	Search(ctx context.Context, params SearchParams) ([]*Listing, error)
}

type BlockRepository interface {
	// AnyOverlapping reports whether any block on the listing overlaps dr.
	AnyOverlapping(ctx context.Context, id ListingID, dr daterange.DateRange) (bool, error)
	ByListing(ctx context.Context, id ListingID) ([]*AvailabilityBlock, error)
}

// SearchParams filter the published catalog. Date availability is applied by
// the search service on top, not here.
type SearchParams struct {
	PropertyType PropertyType
	MinGuests    int
	PriceMin     money.Money
	PriceMax     money.Money
	City         string
	Limit        int
}
