package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"covach/internal/app/policies"
	domainlisting "covach/internal/domain/listing"
	domainreservation "covach/internal/domain/reservation"
	domainrange "covach/internal/domain/shared/daterange"
	"covach/internal/domain/shared/money"
	"covach/internal/infra/storage/memory"
)

type fixture struct {
	svc          *Service
	listings     *memory.ListingRepository
	blocks       *memory.BlockRepository
	reservations *memory.ReservationRepository
	eventLog     *memory.EventLog
	hostProfiles *memory.HostProfileDirectory
	notifier     *memory.Notifier
	outbox       *memory.Outbox

	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		listings:     memory.NewListingRepository(),
		blocks:       memory.NewBlockRepository(),
		reservations: memory.NewReservationRepository(),
		eventLog:     memory.NewEventLog(),
		hostProfiles: memory.NewHostProfileDirectory(),
		notifier:     memory.NewNotifier(),
		outbox:       memory.NewOutbox(),
		now:          time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC),
	}
	seq := 0
	f.svc = &Service{
		UoW: &memory.Factory{
			ListingsRepo:     f.listings,
			BlocksRepo:       f.blocks,
			ReservationsRepo: f.reservations,
			Events:           f.eventLog,
		},
		HostProfiles: f.hostProfiles,
		Notifier:     f.notifier,
		Outbox:       f.outbox,
		Now:          func() time.Time { return f.now },
		NewID: func() string {
			seq++
			return fmt.Sprintf("id-%03d", seq)
		},
	}
	f.hostProfiles.Set("host-1", policies.HostProfileApproved)
	f.listings.Put(&domainlisting.Listing{
		ID:                 "lst-1",
		HostID:             "host-1",
		Title:              "Harbor view flat",
		City:               "Lisbon",
		Country:            "Portugal",
		NightlyRate:        money.FromDollars(120),
		MaxGuests:          4,
		Status:             domainlisting.StatusPublished,
		CancellationPolicy: domainlisting.PolicyStrict,
	})
	return f
}

func (f *fixture) createParams() CreateRequestParams {
	return CreateRequestParams{
		GuestID:   "guest-1",
		ListingID: "lst-1",
		CheckIn:   time.Date(2026, 7, 20, 0, 0, 0, 0, time.UTC),
		CheckOut:  time.Date(2026, 7, 24, 0, 0, 0, 0, time.UTC),
		Guests:    2,
	}
}

func (f *fixture) mustCreate(t *testing.T, params CreateRequestParams) *domainreservation.Reservation {
	t.Helper()
	res, err := f.svc.CreateRequest(context.Background(), params)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	return res
}

func wantViolation(t *testing.T, err error, reason Reason) {
	t.Helper()
	var rv *RuleViolation
	if !errors.As(err, &rv) {
		t.Fatalf("err = %v, want *RuleViolation", err)
	}
	if rv.Reason != reason {
		t.Fatalf("violation reason = %q, want %q", rv.Reason, reason)
	}
}

func TestCreateRequest(t *testing.T) {
	f := newFixture(t)
	res := f.mustCreate(t, f.createParams())

	if res.Status != domainreservation.StatusRequested {
		t.Errorf("Status = %q, want %q", res.Status, domainreservation.StatusRequested)
	}
	if res.HostID != "host-1" {
		t.Errorf("HostID = %q, want host-1", res.HostID)
	}
	// 4 nights at $120.
	if res.Total.Cents != 48000 {
		t.Errorf("Total = %s, want 480.00", res.Total)
	}
	if want := f.now.Add(DefaultRequestTTL); !res.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", res.ExpiresAt, want)
	}

	stored, err := f.svc.Reservation(context.Background(), res.ID)
	if err != nil {
		t.Fatalf("Reservation: %v", err)
	}
	if stored.Status != domainreservation.StatusRequested {
		t.Errorf("stored Status = %q, want %q", stored.Status, domainreservation.StatusRequested)
	}

	trail, err := f.svc.AuditTrail(context.Background(), res.ID)
	if err != nil {
		t.Fatalf("AuditTrail: %v", err)
	}
	if len(trail) != 1 || trail[0].Type != domainreservation.LogRequestCreated {
		t.Errorf("audit trail = %+v, want one %q entry", trail, domainreservation.LogRequestCreated)
	}

	if records := f.outbox.Records(); len(records) != 1 {
		t.Errorf("outbox records = %d, want 1", len(records))
	}
	deliveries := f.notifier.Deliveries()
	if len(deliveries) != 1 || deliveries[0].UserID != "host-1" || deliveries[0].Type != policies.NotifyReservationRequest {
		t.Errorf("deliveries = %+v, want one request notification to host-1", deliveries)
	}
}

func TestCreateRequestHonorsTTLProvider(t *testing.T) {
	f := newFixture(t)
	ttl := 48 * time.Hour
	f.svc.RequestTTL = func() time.Duration { return ttl }

	res := f.mustCreate(t, f.createParams())
	if want := f.now.Add(ttl); !res.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", res.ExpiresAt, want)
	}

	// Later requests pick up a changed TTL; existing deadlines stay put.
	ttl = 2 * time.Hour
	second := f.mustCreate(t, f.createParams())
	if want := f.now.Add(2 * time.Hour); !second.ExpiresAt.Equal(want) {
		t.Errorf("second ExpiresAt = %v, want %v", second.ExpiresAt, want)
	}
}

func TestCreateRequestRejections(t *testing.T) {
	checkIn := time.Date(2026, 7, 20, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		prepare func(t *testing.T, f *fixture)
		mutate  func(p *CreateRequestParams)
		reason  Reason
	}{
		{
			name:   "inverted dates",
			mutate: func(p *CreateRequestParams) { p.CheckIn, p.CheckOut = p.CheckOut, p.CheckIn },
			reason: ReasonInvalidDates,
		},
		{
			name:   "zero-night stay",
			mutate: func(p *CreateRequestParams) { p.CheckOut = p.CheckIn },
			reason: ReasonInvalidDates,
		},
		{
			name: "draft listing",
			prepare: func(t *testing.T, f *fixture) {
				lst, _ := f.listings.ByID(context.Background(), "lst-1")
				lst.Status = domainlisting.StatusDraft
				f.listings.Put(lst)
			},
			reason: ReasonListingNotBookable,
		},
		{
			name: "archived listing",
			prepare: func(t *testing.T, f *fixture) {
				lst, _ := f.listings.ByID(context.Background(), "lst-1")
				lst.Status = domainlisting.StatusArchived
				f.listings.Put(lst)
			},
			reason: ReasonListingNotBookable,
		},
		{
			name:    "host not approved",
			prepare: func(t *testing.T, f *fixture) { f.hostProfiles.Set("host-1", policies.HostProfilePending) },
			reason:  ReasonHostNotApproved,
		},
		{
			name:   "host books own listing",
			mutate: func(p *CreateRequestParams) { p.GuestID = "host-1" },
			reason: ReasonSelfBooking,
		},
		{
			name:   "too many guests",
			mutate: func(p *CreateRequestParams) { p.Guests = 5 },
			reason: ReasonCapacityExceeded,
		},
		{
			name: "dates blocked by host",
			prepare: func(t *testing.T, f *fixture) {
				f.blocks.Put(&domainlisting.AvailabilityBlock{
					ID:        "blk-1",
					ListingID: "lst-1",
					Range:     domainrange.DateRange{CheckIn: checkIn.AddDate(0, 0, 2), CheckOut: checkIn.AddDate(0, 0, 3)},
				})
			},
			reason: ReasonDatesBlocked,
		},
		{
			name: "dates already reserved",
			prepare: func(t *testing.T, f *fixture) {
				res := f.mustCreate(t, CreateRequestParams{
					GuestID: "guest-2", ListingID: "lst-1",
					CheckIn: checkIn, CheckOut: checkIn.AddDate(0, 0, 4), Guests: 2,
				})
				if _, err := f.svc.ApproveRequest(context.Background(), res.ID, "host-1"); err != nil {
					t.Fatalf("ApproveRequest: %v", err)
				}
			},
			reason: ReasonDatesReserved,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			if tc.prepare != nil {
				tc.prepare(t, f)
			}
			params := f.createParams()
			if tc.mutate != nil {
				tc.mutate(&params)
			}
			_, err := f.svc.CreateRequest(context.Background(), params)
			wantViolation(t, err, tc.reason)
		})
	}
}

func TestCreateRequestUnknownListing(t *testing.T) {
	f := newFixture(t)
	params := f.createParams()
	params.ListingID = "lst-missing"

	_, err := f.svc.CreateRequest(context.Background(), params)
	if !errors.Is(err, domainlisting.ErrListingNotFound) {
		t.Errorf("err = %v, want ErrListingNotFound", err)
	}
}

func TestCreateRequestAllowsBackToBackStays(t *testing.T) {
	f := newFixture(t)
	first := f.mustCreate(t, f.createParams())
	if _, err := f.svc.ApproveRequest(context.Background(), first.ID, "host-1"); err != nil {
		t.Fatalf("ApproveRequest: %v", err)
	}

	// Checking in on the prior stay's check-out day shares no night.
	params := f.createParams()
	params.GuestID = "guest-2"
	params.CheckIn = time.Date(2026, 7, 24, 0, 0, 0, 0, time.UTC)
	params.CheckOut = time.Date(2026, 7, 27, 0, 0, 0, 0, time.UTC)
	f.mustCreate(t, params)
}

func TestCompetingRequestsResolvedAtApproval(t *testing.T) {
	f := newFixture(t)
	first := f.mustCreate(t, f.createParams())

	second := f.createParams()
	second.GuestID = "guest-2"
	second.CheckIn = time.Date(2026, 7, 22, 0, 0, 0, 0, time.UTC)
	second.CheckOut = time.Date(2026, 7, 26, 0, 0, 0, 0, time.UTC)
	rival := f.mustCreate(t, second)

	if _, err := f.svc.ApproveRequest(context.Background(), first.ID, "host-1"); err != nil {
		t.Fatalf("first ApproveRequest: %v", err)
	}

	_, err := f.svc.ApproveRequest(context.Background(), rival.ID, "host-1")
	wantViolation(t, err, ReasonApprovalConflict)

	// The losing request stays open for the host to decline or the guest to
	// cancel.
	stored, err := f.svc.Reservation(context.Background(), rival.ID)
	if err != nil {
		t.Fatalf("Reservation: %v", err)
	}
	if stored.Status != domainreservation.StatusRequested {
		t.Errorf("rival Status = %q, want %q", stored.Status, domainreservation.StatusRequested)
	}
}

func TestApproveRequest(t *testing.T) {
	f := newFixture(t)
	res := f.mustCreate(t, f.createParams())

	approved, err := f.svc.ApproveRequest(context.Background(), res.ID, "host-1")
	if err != nil {
		t.Fatalf("ApproveRequest: %v", err)
	}
	if approved.Status != domainreservation.StatusApproved {
		t.Errorf("Status = %q, want %q", approved.Status, domainreservation.StatusApproved)
	}

	deliveries := f.notifier.Deliveries()
	last := deliveries[len(deliveries)-1]
	if last.UserID != "guest-1" || last.Type != policies.NotifyReservationApproved {
		t.Errorf("last delivery = %+v, want approval notification to guest-1", last)
	}
}

func TestApproveRequestGuards(t *testing.T) {
	t.Run("only the host may approve", func(t *testing.T) {
		f := newFixture(t)
		res := f.mustCreate(t, f.createParams())
		_, err := f.svc.ApproveRequest(context.Background(), res.ID, "guest-1")
		wantViolation(t, err, ReasonWrongActor)
	})

	t.Run("declined request cannot be approved", func(t *testing.T) {
		f := newFixture(t)
		res := f.mustCreate(t, f.createParams())
		if _, err := f.svc.DeclineRequest(context.Background(), res.ID, "host-1"); err != nil {
			t.Fatalf("DeclineRequest: %v", err)
		}
		_, err := f.svc.ApproveRequest(context.Background(), res.ID, "host-1")
		wantViolation(t, err, ReasonWrongStatus)
	})

	t.Run("unknown reservation", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.ApproveRequest(context.Background(), "res-missing", "host-1")
		if !errors.Is(err, domainreservation.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}

func TestApproveExpiresStaleRequestInPlace(t *testing.T) {
	f := newFixture(t)
	res := f.mustCreate(t, f.createParams())

	f.now = f.now.Add(DefaultRequestTTL + time.Minute)
	_, err := f.svc.ApproveRequest(context.Background(), res.ID, "host-1")
	wantViolation(t, err, ReasonRequestExpired)

	// The expiry transition commits even though the approval failed.
	stored, err := f.svc.Reservation(context.Background(), res.ID)
	if err != nil {
		t.Fatalf("Reservation: %v", err)
	}
	if stored.Status != domainreservation.StatusExpired {
		t.Errorf("Status = %q, want %q", stored.Status, domainreservation.StatusExpired)
	}
	deliveries := f.notifier.Deliveries()
	last := deliveries[len(deliveries)-1]
	if last.UserID != "guest-1" || last.Type != policies.NotifyReservationExpired {
		t.Errorf("last delivery = %+v, want expiry notification to guest-1", last)
	}

	trail, err := f.svc.AuditTrail(context.Background(), res.ID)
	if err != nil {
		t.Fatalf("AuditTrail: %v", err)
	}
	if trail[0].Type != domainreservation.LogRequestExpired || trail[0].ActorID != "" {
		t.Errorf("latest audit entry = %+v, want system %q entry", trail[0], domainreservation.LogRequestExpired)
	}
}

func TestDeclineRequest(t *testing.T) {
	f := newFixture(t)
	res := f.mustCreate(t, f.createParams())

	declined, err := f.svc.DeclineRequest(context.Background(), res.ID, "host-1")
	if err != nil {
		t.Fatalf("DeclineRequest: %v", err)
	}
	if declined.Status != domainreservation.StatusDeclined {
		t.Errorf("Status = %q, want %q", declined.Status, domainreservation.StatusDeclined)
	}

	_, err = f.svc.DeclineRequest(context.Background(), res.ID, "host-1")
	wantViolation(t, err, ReasonWrongStatus)

	f2 := newFixture(t)
	res2 := f2.mustCreate(t, f2.createParams())
	_, err = f2.svc.DeclineRequest(context.Background(), res2.ID, "guest-1")
	wantViolation(t, err, ReasonWrongActor)
}

func TestCancelReservation(t *testing.T) {
	f := newFixture(t)
	res := f.mustCreate(t, f.createParams())
	if _, err := f.svc.ApproveRequest(context.Background(), res.ID, "host-1"); err != nil {
		t.Fatalf("ApproveRequest: %v", err)
	}

	// Strict policy, three days before check-in: the full total is charged.
	f.now = time.Date(2026, 7, 17, 9, 0, 0, 0, time.UTC)
	canceled, err := f.svc.CancelReservation(context.Background(), res.ID, "guest-1")
	if err != nil {
		t.Fatalf("CancelReservation: %v", err)
	}
	if canceled.Status != domainreservation.StatusCanceled {
		t.Errorf("Status = %q, want %q", canceled.Status, domainreservation.StatusCanceled)
	}
	if canceled.CancellationFee.Cents != 48000 {
		t.Errorf("CancellationFee = %s, want 480.00", canceled.CancellationFee)
	}

	deliveries := f.notifier.Deliveries()
	last := deliveries[len(deliveries)-1]
	if last.UserID != "host-1" || last.Type != policies.NotifyReservationCanceled {
		t.Errorf("last delivery = %+v, want cancellation notification to host-1", last)
	}
	if last.Payload["fee_usd"] != "480.00" {
		t.Errorf("payload fee_usd = %q, want 480.00", last.Payload["fee_usd"])
	}

	trail, err := f.svc.AuditTrail(context.Background(), res.ID)
	if err != nil {
		t.Fatalf("AuditTrail: %v", err)
	}
	if trail[0].Type != domainreservation.LogCanceled || trail[0].Metadata["fee_usd"] != "480.00" {
		t.Errorf("latest audit entry = %+v, want %q with fee metadata", trail[0], domainreservation.LogCanceled)
	}
}

func TestCancelReservationFreeOutsideWindow(t *testing.T) {
	f := newFixture(t)
	res := f.mustCreate(t, f.createParams())
	if _, err := f.svc.ApproveRequest(context.Background(), res.ID, "host-1"); err != nil {
		t.Fatalf("ApproveRequest: %v", err)
	}

	// Ten days out under the strict policy cancels free.
	f.now = time.Date(2026, 7, 10, 9, 0, 0, 0, time.UTC)
	canceled, err := f.svc.CancelReservation(context.Background(), res.ID, "host-1")
	if err != nil {
		t.Fatalf("CancelReservation: %v", err)
	}
	if !canceled.CancellationFee.IsZero() {
		t.Errorf("CancellationFee = %s, want 0.00", canceled.CancellationFee)
	}

	// Host canceled, so the guest hears about it.
	deliveries := f.notifier.Deliveries()
	last := deliveries[len(deliveries)-1]
	if last.UserID != "guest-1" {
		t.Errorf("last delivery went to %q, want guest-1", last.UserID)
	}
}

func TestCancelReservationGuards(t *testing.T) {
	f := newFixture(t)
	res := f.mustCreate(t, f.createParams())

	_, err := f.svc.CancelReservation(context.Background(), res.ID, "stranger")
	wantViolation(t, err, ReasonWrongActor)

	if _, err := f.svc.DeclineRequest(context.Background(), res.ID, "host-1"); err != nil {
		t.Fatalf("DeclineRequest: %v", err)
	}
	_, err = f.svc.CancelReservation(context.Background(), res.ID, "guest-1")
	wantViolation(t, err, ReasonWrongStatus)
}

func TestCancelSurvivesListingArchival(t *testing.T) {
	f := newFixture(t)
	res := f.mustCreate(t, f.createParams())
	if _, err := f.svc.ApproveRequest(context.Background(), res.ID, "host-1"); err != nil {
		t.Fatalf("ApproveRequest: %v", err)
	}

	lst, _ := f.listings.ByID(context.Background(), "lst-1")
	lst.Status = domainlisting.StatusArchived
	f.listings.Put(lst)

	if _, err := f.svc.CancelReservation(context.Background(), res.ID, "guest-1"); err != nil {
		t.Fatalf("CancelReservation after archival: %v", err)
	}
}

func TestNotifierFailureDoesNotFailOperations(t *testing.T) {
	f := newFixture(t)
	f.notifier.Err = errors.New("smtp down")

	res := f.mustCreate(t, f.createParams())
	if _, err := f.svc.ApproveRequest(context.Background(), res.ID, "host-1"); err != nil {
		t.Fatalf("ApproveRequest with failing notifier: %v", err)
	}
}

func TestExpireOpenRequests(t *testing.T) {
	f := newFixture(t)
	stale1 := f.mustCreate(t, f.createParams())

	second := f.createParams()
	second.GuestID = "guest-2"
	stale2 := f.mustCreate(t, second)

	f.now = f.now.Add(12 * time.Hour)
	third := f.createParams()
	third.GuestID = "guest-3"
	fresh := f.mustCreate(t, third)

	f.now = f.now.Add(DefaultRequestTTL - time.Hour)
	count, err := f.svc.ExpireOpenRequests(context.Background())
	if err != nil {
		t.Fatalf("ExpireOpenRequests: %v", err)
	}
	if count != 2 {
		t.Errorf("expired count = %d, want 2", count)
	}

	for _, id := range []domainreservation.ReservationID{stale1.ID, stale2.ID} {
		stored, err := f.svc.Reservation(context.Background(), id)
		if err != nil {
			t.Fatalf("Reservation(%s): %v", id, err)
		}
		if stored.Status != domainreservation.StatusExpired {
			t.Errorf("reservation %s Status = %q, want %q", id, stored.Status, domainreservation.StatusExpired)
		}
	}
	stored, err := f.svc.Reservation(context.Background(), fresh.ID)
	if err != nil {
		t.Fatalf("Reservation: %v", err)
	}
	if stored.Status != domainreservation.StatusRequested {
		t.Errorf("fresh reservation Status = %q, want %q", stored.Status, domainreservation.StatusRequested)
	}

	// A second sweep finds nothing: expiry is idempotent.
	count, err = f.svc.ExpireOpenRequests(context.Background())
	if err != nil {
		t.Fatalf("second ExpireOpenRequests: %v", err)
	}
	if count != 0 {
		t.Errorf("second sweep count = %d, want 0", count)
	}
}

func TestReservationsListFilter(t *testing.T) {
	f := newFixture(t)
	mine := f.mustCreate(t, f.createParams())

	other := f.createParams()
	other.GuestID = "guest-2"
	f.mustCreate(t, other)

	got, err := f.svc.Reservations(context.Background(), domainreservation.ListFilter{GuestID: "guest-1"})
	if err != nil {
		t.Fatalf("Reservations: %v", err)
	}
	if len(got) != 1 || got[0].ID != mine.ID {
		t.Errorf("Reservations(guest-1) = %+v, want just %s", got, mine.ID)
	}

	got, err = f.svc.Reservations(context.Background(), domainreservation.ListFilter{HostID: "host-1"})
	if err != nil {
		t.Fatalf("Reservations: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Reservations(host-1) len = %d, want 2", len(got))
	}
}
