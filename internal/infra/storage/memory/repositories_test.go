package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"covach/internal/app/uow"
	domainreservation "covach/internal/domain/reservation"
	domainrange "covach/internal/domain/shared/daterange"
)

func storedReservation(t *testing.T, repo *ReservationRepository, id domainreservation.ReservationID) *domainreservation.Reservation {
	t.Helper()
	checkIn := time.Date(2026, 7, 20, 0, 0, 0, 0, time.UTC)
	res, err := domainreservation.NewRequest(domainreservation.RequestParams{
		ID:        id,
		ListingID: "lst-1",
		GuestID:   "guest-1",
		HostID:    "host-1",
		Range:     domainrange.DateRange{CheckIn: checkIn, CheckOut: checkIn.AddDate(0, 0, 4)},
		Guests:    2,
		ExpiresAt: time.Date(2026, 7, 2, 12, 0, 0, 0, time.UTC),
		CreatedAt: time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if err := repo.Save(context.Background(), res); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return res
}

func TestReservationRepositoryVersioning(t *testing.T) {
	repo := NewReservationRepository()
	ctx := context.Background()
	res := storedReservation(t, repo, "res-1")

	if res.Version != 1 {
		t.Fatalf("Version after insert = %d, want 1", res.Version)
	}

	first, err := repo.ByID(ctx, res.ID)
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	second, err := repo.ByID(ctx, res.ID)
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}

	now := time.Date(2026, 7, 1, 13, 0, 0, 0, time.UTC)
	if err := first.Approve(now); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// The second loaded copy now carries a stale version.
	if err := second.Decline(now); err != nil {
		t.Fatalf("Decline: %v", err)
	}
	if err := repo.Save(ctx, second); !errors.Is(err, domainreservation.ErrConcurrentUpdate) {
		t.Errorf("stale Save err = %v, want ErrConcurrentUpdate", err)
	}

	stored, err := repo.ByID(ctx, res.ID)
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if stored.Status != domainreservation.StatusApproved {
		t.Errorf("Status = %q, want %q", stored.Status, domainreservation.StatusApproved)
	}
}

func TestReservationRepositoryByIDIsolatesCopies(t *testing.T) {
	repo := NewReservationRepository()
	ctx := context.Background()
	res := storedReservation(t, repo, "res-1")

	loaded, err := repo.ByID(ctx, res.ID)
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	loaded.GuestID = "tampered"

	again, err := repo.ByID(ctx, res.ID)
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if again.GuestID != "guest-1" {
		t.Errorf("stored GuestID = %q, mutation leaked through", again.GuestID)
	}
	if len(again.PendingEvents()) != 0 {
		t.Error("loaded reservation carries recorded events")
	}
}

func TestAnyApprovedOverlap(t *testing.T) {
	repo := NewReservationRepository()
	ctx := context.Background()
	res := storedReservation(t, repo, "res-1")

	dr := res.Range
	overlap, err := repo.AnyApprovedOverlap(ctx, "lst-1", dr, "")
	if err != nil {
		t.Fatalf("AnyApprovedOverlap: %v", err)
	}
	if overlap {
		t.Error("a requested reservation should not count as an overlap")
	}

	loaded, _ := repo.ByID(ctx, res.ID)
	if err := loaded.Approve(time.Now()); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err := repo.Save(ctx, loaded); err != nil {
		t.Fatalf("Save: %v", err)
	}

	overlap, err = repo.AnyApprovedOverlap(ctx, "lst-1", dr, "")
	if err != nil {
		t.Fatalf("AnyApprovedOverlap: %v", err)
	}
	if !overlap {
		t.Error("approved reservation not reported as overlap")
	}

	// Excluding the reservation itself finds nothing, which is how the
	// ledger re-checks during approval.
	overlap, err = repo.AnyApprovedOverlap(ctx, "lst-1", dr, res.ID)
	if err != nil {
		t.Fatalf("AnyApprovedOverlap: %v", err)
	}
	if overlap {
		t.Error("excluded reservation still reported as overlap")
	}

	// Other listings are unaffected.
	overlap, err = repo.AnyApprovedOverlap(ctx, "lst-2", dr, "")
	if err != nil {
		t.Fatalf("AnyApprovedOverlap: %v", err)
	}
	if overlap {
		t.Error("overlap reported for a different listing")
	}
}

func TestFactorySerializesWritableUnits(t *testing.T) {
	factory := &Factory{
		ListingsRepo:     NewListingRepository(),
		BlocksRepo:       NewBlockRepository(),
		ReservationsRepo: NewReservationRepository(),
		Events:           NewEventLog(),
	}
	ctx := context.Background()

	unit, err := factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	acquired := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		second, err := factory.Begin(ctx, uow.TxOptions{})
		if err != nil {
			t.Errorf("second Begin: %v", err)
			return
		}
		close(acquired)
		_ = second.Rollback(ctx)
	}()

	select {
	case <-acquired:
		t.Fatal("second writable unit began before the first finished")
	case <-time.After(20 * time.Millisecond):
	}

	if err := unit.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	wg.Wait()

	select {
	case <-acquired:
	default:
		t.Fatal("second writable unit never began")
	}
}

func TestReadOnlyUnitsDoNotBlock(t *testing.T) {
	factory := &Factory{
		ListingsRepo:     NewListingRepository(),
		BlocksRepo:       NewBlockRepository(),
		ReservationsRepo: NewReservationRepository(),
		Events:           NewEventLog(),
	}
	ctx := context.Background()

	writer, err := factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	defer func() { _ = writer.Rollback(ctx) }()

	done := make(chan struct{})
	go func() {
		reader, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
		if err == nil {
			_ = reader.Rollback(ctx)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("read-only unit blocked behind a writer")
	}
}
