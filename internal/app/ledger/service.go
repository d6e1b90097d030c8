package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"covach/internal/app/outbox"
	"covach/internal/app/policies"
	"covach/internal/app/uow"
	domainlisting "covach/internal/domain/listing"
	domainreservation "covach/internal/domain/reservation"
	domainrange "covach/internal/domain/shared/daterange"
)

// DefaultRequestTTL applies when no TTL provider is configured.
const DefaultRequestTTL = 24 * time.Hour

var ErrUnitOfWorkRequired = errors.New("ledger: unit of work factory required")

// Service is the reservation ledger: the only writer of reservation records.
// Every transition commits its state change, audit entry and outbox record in
// one unit of work; notifications go out after commit and are best-effort.
type Service struct {
	UoW          uow.Factory
	HostProfiles policies.HostProfiles
	Notifier     policies.Notifier
	Outbox       outbox.Outbox
	Encoder      outbox.EventEncoder

	// RequestTTL is read on every create so configuration changes affect
	// only subsequently created requests.
	RequestTTL func() time.Duration
	Now        func() time.Time
	NewID      func() string
	Logger     *slog.Logger
}

type CreateRequestParams struct {
	GuestID   string
	ListingID domainlisting.ListingID
	CheckIn   time.Time
	CheckOut  time.Time
	Guests    int
	Message   string
}

// CreateRequest validates the preconditions in order and files a reservation
// request. The first failing rule aborts with no side effects. Competing
// requests over the same dates are allowed to coexist; conflicts are resolved
// at approval time.
func (s *Service) CreateRequest(ctx context.Context, params CreateRequestParams) (*domainreservation.Reservation, error) {
	dr, err := domainrange.New(params.CheckIn, params.CheckOut)
	if err != nil {
		return nil, violation(ReasonInvalidDates, "Check-out date must be after check-in date.")
	}

	unit, execCtx, err := s.begin(ctx, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(execCtx)
		}
	}()

	lst, err := unit.Listings().ByID(execCtx, params.ListingID)
	if err != nil {
		return nil, err
	}
	if !lst.Bookable() {
		return nil, violation(ReasonListingNotBookable, "This listing is not available for booking.")
	}
	hostStatus, err := s.HostProfiles.Status(execCtx, lst.HostID)
	if err != nil {
		return nil, err
	}
	if hostStatus != policies.HostProfileApproved {
		return nil, violation(ReasonHostNotApproved, "Host is not approved for reservations.")
	}
	if params.GuestID == lst.HostID {
		return nil, violation(ReasonSelfBooking, "Hosts cannot reserve their own listings.")
	}
	if params.Guests > lst.MaxGuests {
		return nil, violation(ReasonCapacityExceeded, "Guest count exceeds listing capacity.")
	}
	blocked, err := unit.Blocks().AnyOverlapping(execCtx, lst.ID, dr)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, violation(ReasonDatesBlocked, "Selected dates are blocked by the host.")
	}
	reserved, err := unit.Reservations().AnyApprovedOverlap(execCtx, lst.ID, dr, "")
	if err != nil {
		return nil, err
	}
	if reserved {
		return nil, violation(ReasonDatesReserved, "Selected dates are already reserved.")
	}

	now := s.now()
	res, err := domainreservation.NewRequest(domainreservation.RequestParams{
		ID:        domainreservation.ReservationID(s.newID()),
		ListingID: lst.ID,
		GuestID:   params.GuestID,
		HostID:    lst.HostID,
		Range:     dr,
		Guests:    params.Guests,
		Total:     lst.NightlyRate.Multiply(int64(dr.Nights())),
		Message:   params.Message,
		ExpiresAt: now.Add(s.requestTTL()),
		CreatedAt: now,
	})
	if err != nil {
		return nil, err
	}
	if err := unit.Reservations().Save(execCtx, res); err != nil {
		return nil, err
	}
	if err := s.appendLog(execCtx, unit, res, params.GuestID, domainreservation.LogRequestCreated, "Reservation request submitted", nil); err != nil {
		return nil, err
	}
	if err := s.drainEvents(execCtx, res); err != nil {
		return nil, err
	}
	if err := unit.Commit(execCtx); err != nil {
		return nil, err
	}
	committed = true

	s.notify(ctx, res.HostID, policies.NotifyReservationRequest,
		"New reservation request",
		fmt.Sprintf("Guest %s requested %s for %s.", res.GuestID, lst.Title, res.Range),
		map[string]string{"reservation_id": string(res.ID)})
	return res, nil
}

// ApproveRequest moves a requested reservation to approved. The whole
// check-then-act sequence runs inside one serialized unit of work; losing the
// overlap race surfaces as a rule violation, not a fault. A request past its
// deadline is expired in place before the error is returned.
func (s *Service) ApproveRequest(ctx context.Context, id domainreservation.ReservationID, actorID string) (*domainreservation.Reservation, error) {
	unit, execCtx, err := s.begin(ctx, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(execCtx)
		}
	}()

	res, err := unit.Reservations().ByID(execCtx, id)
	if err != nil {
		return nil, err
	}
	if res.HostID != actorID {
		return nil, violation(ReasonWrongActor, "Only the host can approve this request.")
	}
	if res.Status != domainreservation.StatusRequested {
		return nil, violation(ReasonWrongStatus, "Only requested reservations can be approved.")
	}
	now := s.now()
	if res.DeadlinePassed(now) {
		// Lazy expiry: the transition persists even though the approval
		// itself fails.
		if err := s.expireInUnit(execCtx, unit, res, now); err != nil {
			return nil, err
		}
		if err := unit.Commit(execCtx); err != nil {
			return nil, err
		}
		committed = true
		s.notifyExpired(ctx, res)
		return nil, violation(ReasonRequestExpired, "Reservation request has expired.")
	}
	conflict, err := unit.Reservations().AnyApprovedOverlap(execCtx, res.ListingID, res.Range, res.ID)
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, violation(ReasonApprovalConflict, "Another approved reservation overlaps these dates.")
	}

	if err := res.Approve(now); err != nil {
		return nil, s.mapStatusErr(err)
	}
	if err := unit.Reservations().Save(execCtx, res); err != nil {
		return nil, s.mapSaveErr(err)
	}
	if err := s.appendLog(execCtx, unit, res, actorID, domainreservation.LogRequestApproved, "Host approved reservation", nil); err != nil {
		return nil, err
	}
	if err := s.drainEvents(execCtx, res); err != nil {
		return nil, err
	}
	if err := unit.Commit(execCtx); err != nil {
		return nil, err
	}
	committed = true

	s.notify(ctx, res.GuestID, policies.NotifyReservationApproved,
		"Reservation approved",
		fmt.Sprintf("Your reservation for %s was approved.", res.Range),
		map[string]string{"reservation_id": string(res.ID)})
	return res, nil
}

// DeclineRequest moves a requested reservation to declined. Declining never
// creates a date conflict, so no overlap check runs.
func (s *Service) DeclineRequest(ctx context.Context, id domainreservation.ReservationID, actorID string) (*domainreservation.Reservation, error) {
	unit, execCtx, err := s.begin(ctx, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(execCtx)
		}
	}()

	res, err := unit.Reservations().ByID(execCtx, id)
	if err != nil {
		return nil, err
	}
	if res.HostID != actorID {
		return nil, violation(ReasonWrongActor, "Only the host can decline this request.")
	}
	if res.Status != domainreservation.StatusRequested {
		return nil, violation(ReasonWrongStatus, "Only requested reservations can be declined.")
	}
	if err := res.Decline(s.now()); err != nil {
		return nil, s.mapStatusErr(err)
	}
	if err := unit.Reservations().Save(execCtx, res); err != nil {
		return nil, s.mapSaveErr(err)
	}
	if err := s.appendLog(execCtx, unit, res, actorID, domainreservation.LogRequestDeclined, "Host declined reservation", nil); err != nil {
		return nil, err
	}
	if err := s.drainEvents(execCtx, res); err != nil {
		return nil, err
	}
	if err := unit.Commit(execCtx); err != nil {
		return nil, err
	}
	committed = true

	s.notify(ctx, res.GuestID, policies.NotifyReservationDeclined,
		"Reservation declined",
		fmt.Sprintf("Your reservation request for %s was declined.", res.Range),
		map[string]string{"reservation_id": string(res.ID)})
	return res, nil
}

// CancelReservation cancels a requested or approved reservation on behalf of
// either participant, charging the fee dictated by the listing's policy. The
// other party is notified, fee included.
func (s *Service) CancelReservation(ctx context.Context, id domainreservation.ReservationID, actorID string) (*domainreservation.Reservation, error) {
	unit, execCtx, err := s.begin(ctx, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(execCtx)
		}
	}()

	res, err := unit.Reservations().ByID(execCtx, id)
	if err != nil {
		return nil, err
	}
	if actorID != res.GuestID && actorID != res.HostID {
		return nil, violation(ReasonWrongActor, "Only reservation participants can cancel.")
	}
	if res.Status != domainreservation.StatusRequested && res.Status != domainreservation.StatusApproved {
		return nil, violation(ReasonWrongStatus, "Reservation cannot be canceled in this state.")
	}
	// Archived listings remain readable for historical reservations.
	lst, err := unit.Listings().ByID(execCtx, res.ListingID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	fee := domainreservation.CancellationFee(lst.CancellationPolicy, res.Total, res.Range, now)
	if err := res.Cancel(fee, now); err != nil {
		return nil, s.mapStatusErr(err)
	}
	if err := unit.Reservations().Save(execCtx, res); err != nil {
		return nil, s.mapSaveErr(err)
	}
	if err := s.appendLog(execCtx, unit, res, actorID, domainreservation.LogCanceled, "Reservation canceled", map[string]string{"fee_usd": fee.String()}); err != nil {
		return nil, err
	}
	if err := s.drainEvents(execCtx, res); err != nil {
		return nil, err
	}
	if err := unit.Commit(execCtx); err != nil {
		return nil, err
	}
	committed = true

	other := res.GuestID
	if actorID == res.GuestID {
		other = res.HostID
	}
	s.notify(ctx, other, policies.NotifyReservationCanceled,
		"Reservation canceled",
		fmt.Sprintf("Reservation for %s was canceled. Cancellation fee: $%s.", res.Range, fee),
		map[string]string{"reservation_id": string(res.ID), "fee_usd": fee.String()})
	return res, nil
}

// ExpireOpenRequests sweeps every requested reservation whose deadline has
// passed and returns the number transitioned. Each row is processed in its
// own unit of work; a row that loses its version race to a concurrent sweep
// is skipped, which keeps the sweep idempotent.
func (s *Service) ExpireOpenRequests(ctx context.Context) (int, error) {
	readUnit, readCtx, err := s.begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return 0, err
	}
	now := s.now()
	stale, err := readUnit.Reservations().OpenPastDeadline(readCtx, now)
	if rollbackErr := readUnit.Rollback(readCtx); rollbackErr != nil && err == nil {
		err = rollbackErr
	}
	if err != nil {
		return 0, err
	}

	count := 0
	for _, candidate := range stale {
		expired, err := s.expireOne(ctx, candidate.ID)
		if err != nil {
			return count, err
		}
		if expired != nil {
			count++
			s.notifyExpired(ctx, expired)
		}
	}
	return count, nil
}

// expireOne transitions a single stale request, returning nil when another
// invocation already handled it.
func (s *Service) expireOne(ctx context.Context, id domainreservation.ReservationID) (*domainreservation.Reservation, error) {
	unit, execCtx, err := s.begin(ctx, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(execCtx)
		}
	}()

	res, err := unit.Reservations().ByID(execCtx, id)
	if err != nil {
		if errors.Is(err, domainreservation.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	now := s.now()
	if !res.DeadlinePassed(now) {
		return nil, nil
	}
	if err := s.expireInUnit(execCtx, unit, res, now); err != nil {
		if errors.Is(err, domainreservation.ErrConcurrentUpdate) {
			return nil, nil
		}
		return nil, err
	}
	if err := unit.Commit(execCtx); err != nil {
		return nil, err
	}
	committed = true
	return res, nil
}

func (s *Service) expireInUnit(ctx context.Context, unit uow.UnitOfWork, res *domainreservation.Reservation, now time.Time) error {
	if err := res.MarkExpired(now); err != nil {
		return err
	}
	if err := unit.Reservations().Save(ctx, res); err != nil {
		return err
	}
	// System transition: no actor on the audit entry.
	if err := s.appendLog(ctx, unit, res, "", domainreservation.LogRequestExpired, "Request expired", nil); err != nil {
		return err
	}
	return s.drainEvents(ctx, res)
}

// Reservations lists reservation records for dashboards.
func (s *Service) Reservations(ctx context.Context, filter domainreservation.ListFilter) ([]*domainreservation.Reservation, error) {
	unit, execCtx, err := s.begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer func() { _ = unit.Rollback(execCtx) }()
	return unit.Reservations().List(execCtx, filter)
}

// Reservation returns one record by id.
func (s *Service) Reservation(ctx context.Context, id domainreservation.ReservationID) (*domainreservation.Reservation, error) {
	unit, execCtx, err := s.begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer func() { _ = unit.Rollback(execCtx) }()
	return unit.Reservations().ByID(execCtx, id)
}

// AuditTrail returns a reservation's audit entries, newest first.
func (s *Service) AuditTrail(ctx context.Context, id domainreservation.ReservationID) ([]domainreservation.LogEntry, error) {
	unit, execCtx, err := s.begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer func() { _ = unit.Rollback(execCtx) }()
	return unit.Events().ByReservation(execCtx, id)
}

func (s *Service) begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, context.Context, error) {
	if s.UoW == nil {
		return nil, nil, ErrUnitOfWorkRequired
	}
	unit, err := s.UoW.Begin(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	execCtx := ctx
	if injector, ok := unit.(interface {
		InjectContext(context.Context) context.Context
	}); ok {
		execCtx = injector.InjectContext(ctx)
	}
	return unit, uow.ContextWithUnitOfWork(execCtx, unit), nil
}

func (s *Service) appendLog(ctx context.Context, unit uow.UnitOfWork, res *domainreservation.Reservation, actorID, entryType, message string, metadata map[string]string) error {
	return unit.Events().Append(ctx, domainreservation.LogEntry{
		ID:            s.newID(),
		ReservationID: res.ID,
		ActorID:       actorID,
		Type:          entryType,
		Message:       message,
		Metadata:      metadata,
		CreatedAt:     s.now(),
	})
}

func (s *Service) drainEvents(ctx context.Context, res *domainreservation.Reservation) error {
	pending := res.PendingEvents()
	res.ClearEvents()
	return outbox.RecordDomainEvents(ctx, s.Outbox, s.Encoder, pending)
}

// notify delivers best-effort: a failure is logged and never surfaced.
func (s *Service) notify(ctx context.Context, userID, typeTag, title, body string, payload map[string]string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Notify(ctx, userID, typeTag, title, body, payload); err != nil {
		s.logger().Warn("notification delivery failed", "user_id", userID, "type", typeTag, "error", err)
	}
}

func (s *Service) notifyExpired(ctx context.Context, res *domainreservation.Reservation) {
	s.notify(ctx, res.GuestID, policies.NotifyReservationExpired,
		"Reservation request expired",
		fmt.Sprintf("Your reservation request for %s has expired.", res.Range),
		map[string]string{"reservation_id": string(res.ID)})
}

func (s *Service) mapStatusErr(err error) error {
	if errors.Is(err, domainreservation.ErrInvalidStatus) {
		return violation(ReasonWrongStatus, "Reservation cannot change state from its current status.")
	}
	return err
}

func (s *Service) mapSaveErr(err error) error {
	if errors.Is(err, domainreservation.ErrConcurrentUpdate) {
		return violation(ReasonConcurrentUpdate, "Reservation was updated concurrently. Please retry.")
	}
	return err
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) requestTTL() time.Duration {
	if s.RequestTTL != nil {
		if ttl := s.RequestTTL(); ttl > 0 {
			return ttl
		}
	}
	return DefaultRequestTTL
}

func (s *Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
