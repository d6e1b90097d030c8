package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"covach/internal/app/policies"
	domainlisting "covach/internal/domain/listing"
	domainreservation "covach/internal/domain/reservation"
	domainrange "covach/internal/domain/shared/daterange"
	"covach/internal/domain/shared/events"
)

// ListingRepository is an in-memory catalog used by tests and demo mode.
type ListingRepository struct {
	mu    sync.RWMutex
	items map[domainlisting.ListingID]*domainlisting.Listing
}

func NewListingRepository() *ListingRepository {
	return &ListingRepository{items: make(map[domainlisting.ListingID]*domainlisting.Listing)}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlisting.ListingID) (*domainlisting.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lst, ok := r.items[id]
	if !ok {
		return nil, domainlisting.ErrListingNotFound
	}
	copied := *lst
	return &copied, nil
}

func (r *ListingRepository) Put(lst *domainlisting.Listing) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *lst
	r.items[lst.ID] = &copied
}

func (r *ListingRepository) Search(ctx context.Context, params domainlisting.SearchParams) ([]*domainlisting.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := make([]*domainlisting.Listing, 0, len(r.items))
	for _, lst := range r.items {
		if lst.Status != domainlisting.StatusPublished {
			continue
		}
		if params.PropertyType != "" && lst.PropertyType != params.PropertyType {
			continue
		}
		if params.MinGuests > 0 && lst.MaxGuests < params.MinGuests {
			continue
		}
		if !params.PriceMin.IsZero() && lst.NightlyRate.Cents < params.PriceMin.Cents {
			continue
		}
		if !params.PriceMax.IsZero() && lst.NightlyRate.Cents > params.PriceMax.Cents {
			continue
		}
		if params.City != "" && !strings.EqualFold(lst.City, params.City) {
			continue
		}
		copied := *lst
		matches = append(matches, &copied)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	if params.Limit > 0 && len(matches) > params.Limit {
		matches = matches[:params.Limit]
	}
	return matches, nil
}

// BlockRepository stores host availability blocks.
type BlockRepository struct {
	mu     sync.RWMutex
	blocks []*domainlisting.AvailabilityBlock
}

func NewBlockRepository() *BlockRepository {
	return &BlockRepository{}
}

func (r *BlockRepository) Put(block *domainlisting.AvailabilityBlock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *block
	r.blocks = append(r.blocks, &copied)
}

func (r *BlockRepository) AnyOverlapping(ctx context.Context, id domainlisting.ListingID, dr domainrange.DateRange) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, block := range r.blocks {
		if block.ListingID == id && block.Range.Overlaps(dr) {
			return true, nil
		}
	}
	return false, nil
}

func (r *BlockRepository) ByListing(ctx context.Context, id domainlisting.ListingID) ([]*domainlisting.AvailabilityBlock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainlisting.AvailabilityBlock
	for _, block := range r.blocks {
		if block.ListingID == id {
			copied := *block
			out = append(out, &copied)
		}
	}
	return out, nil
}

// ReservationRepository keeps reservation rows guarded by the same version
// discipline as the mongo implementation, so the ledger's conflict handling
// is exercised identically in tests.
type ReservationRepository struct {
	mu    sync.RWMutex
	items map[domainreservation.ReservationID]*domainreservation.Reservation
}

func NewReservationRepository() *ReservationRepository {
	return &ReservationRepository{items: make(map[domainreservation.ReservationID]*domainreservation.Reservation)}
}

func (r *ReservationRepository) ByID(ctx context.Context, id domainreservation.ReservationID) (*domainreservation.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.items[id]
	if !ok {
		return nil, domainreservation.ErrNotFound
	}
	copied := *res
	copied.EventRecorder = events.EventRecorder{}
	return &copied, nil
}

func (r *ReservationRepository) Save(ctx context.Context, res *domainreservation.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.items[res.ID]
	if ok && existing.Version != res.Version {
		return domainreservation.ErrConcurrentUpdate
	}
	res.Version++
	copied := *res
	copied.EventRecorder = events.EventRecorder{}
	r.items[res.ID] = &copied
	return nil
}

func (r *ReservationRepository) AnyApprovedOverlap(ctx context.Context, id domainlisting.ListingID, dr domainrange.DateRange, exclude domainreservation.ReservationID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, res := range r.items {
		if res.ListingID != id || res.ID == exclude {
			continue
		}
		if res.Status == domainreservation.StatusApproved && res.Range.Overlaps(dr) {
			return true, nil
		}
	}
	return false, nil
}

func (r *ReservationRepository) OpenPastDeadline(ctx context.Context, now time.Time) ([]*domainreservation.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainreservation.Reservation
	for _, res := range r.items {
		if res.Status == domainreservation.StatusRequested && !res.ExpiresAt.After(now.UTC()) {
			copied := *res
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *ReservationRepository) List(ctx context.Context, filter domainreservation.ListFilter) ([]*domainreservation.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainreservation.Reservation
	for _, res := range r.items {
		if filter.HostID != "" && res.HostID != filter.HostID {
			continue
		}
		if filter.GuestID != "" && res.GuestID != filter.GuestID {
			continue
		}
		if filter.ListingID != "" && res.ListingID != filter.ListingID {
			continue
		}
		if filter.Status != "" && res.Status != filter.Status {
			continue
		}
		copied := *res
		out = append(out, &copied)
	}
	// Newest first, matching the mongo index ordering.
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// EventLog is the in-memory audit trail.
type EventLog struct {
	mu      sync.RWMutex
	entries []domainreservation.LogEntry
}

func NewEventLog() *EventLog {
	return &EventLog{}
}

func (l *EventLog) Append(ctx context.Context, entry domainreservation.LogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

func (l *EventLog) ByReservation(ctx context.Context, id domainreservation.ReservationID) ([]domainreservation.LogEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domainreservation.LogEntry
	for _, entry := range l.entries {
		if entry.ReservationID == id {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// HostProfileDirectory is a static host-profile lookup.
type HostProfileDirectory struct {
	mu       sync.RWMutex
	statuses map[string]policies.HostProfileStatus
}

func NewHostProfileDirectory() *HostProfileDirectory {
	return &HostProfileDirectory{statuses: make(map[string]policies.HostProfileStatus)}
}

func (d *HostProfileDirectory) Set(userID string, status policies.HostProfileStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.statuses[userID] = status
}

func (d *HostProfileDirectory) Status(ctx context.Context, userID string) (policies.HostProfileStatus, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	status, ok := d.statuses[userID]
	if !ok {
		return policies.HostProfileNone, nil
	}
	return status, nil
}
