package search

import (
	"context"
	"time"

	"covach/internal/app/policies"
	"covach/internal/app/uow"
	domainlisting "covach/internal/domain/listing"
	domainrange "covach/internal/domain/shared/daterange"
)

// Params combine catalog filters with an optional stay range. When both
// dates are given and valid, listings with a conflicting block or approved
// reservation are excluded.
type Params struct {
	domainlisting.SearchParams
	CheckIn  time.Time
	CheckOut time.Time
}

// Service is a read-only consumer of the listing catalog and the reservation
// ledger. It must answer availability with the exact overlap predicate the
// ledger applies, so a listing it returns is one the ledger would accept a
// request for (dates permitting).
type Service struct {
	UoW          uow.Factory
	HostProfiles policies.HostProfiles
}

// Available reports whether the listing is free for dr: no host block and no
// approved reservation overlapping the half-open range.
func (s *Service) Available(ctx context.Context, id domainlisting.ListingID, dr domainrange.DateRange) (bool, error) {
	unit, err := s.UoW.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return false, err
	}
	defer func() { _ = unit.Rollback(ctx) }()
	return s.available(ctx, unit, id, dr)
}

// Search returns published listings matching the filters, hosted by approved
// hosts, and (when dates are supplied) available for the stay.
func (s *Service) Search(ctx context.Context, params Params) ([]*domainlisting.Listing, error) {
	unit, err := s.UoW.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer func() { _ = unit.Rollback(ctx) }()

	matches, err := unit.Listings().Search(ctx, params.SearchParams)
	if err != nil {
		return nil, err
	}

	var dr domainrange.DateRange
	filterDates := false
	if !params.CheckIn.IsZero() && !params.CheckOut.IsZero() {
		if dr, err = domainrange.New(params.CheckIn, params.CheckOut); err == nil {
			filterDates = true
		}
	}

	out := make([]*domainlisting.Listing, 0, len(matches))
	for _, lst := range matches {
		if !lst.Bookable() {
			continue
		}
		if s.HostProfiles != nil {
			status, err := s.HostProfiles.Status(ctx, lst.HostID)
			if err != nil {
				return nil, err
			}
			if status != policies.HostProfileApproved {
				continue
			}
		}
		if filterDates {
			free, err := s.available(ctx, unit, lst.ID, dr)
			if err != nil {
				return nil, err
			}
			if !free {
				continue
			}
		}
		out = append(out, lst)
	}
	return out, nil
}

func (s *Service) available(ctx context.Context, unit uow.UnitOfWork, id domainlisting.ListingID, dr domainrange.DateRange) (bool, error) {
	blocked, err := unit.Blocks().AnyOverlapping(ctx, id, dr)
	if err != nil {
		return false, err
	}
	if blocked {
		return false, nil
	}
	reserved, err := unit.Reservations().AnyApprovedOverlap(ctx, id, dr, "")
	if err != nil {
		return false, err
	}
	return !reserved, nil
}
