package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"studio-booking-backend/internal/events"
	"studio-booking-backend/internal/model"
	"studio-booking-backend/internal/parse"
	"studio-booking-backend/internal/store"
	"studio-booking-backend/internal/timerange"
)

// Notifier is told about bookings whose slot was freed by a cancellation.
type Notifier interface {
	Dispatch(b model.Booking)
}

// CreateRequest asks for one unit of a studio over [Start, End).
type CreateRequest struct {
	StudioID int64
	Unit     string
	Start    time.Time
	End      time.Time
}

// AdminFilter narrows an admin listing. Zero values match everything.
type AdminFilter struct {
	UserQuery   string
	StudioQuery string
	Date        *time.Time
}

// Manager owns every booking state transition.
type Manager struct {
	store     store.Store
	policy    Policy
	notifier  Notifier
	publisher events.Publisher
	// publishTimeout bounds how long a write waits on the event publisher.
	publishTimeout time.Duration
	log            *slog.Logger
}

const defaultPublishTimeout = 2 * time.Second

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithNotifier sets the receiver of freed slots.
func WithNotifier(n Notifier) ManagerOption {
	return func(m *Manager) { m.notifier = n }
}

// WithPublisher sets the booking event publisher.
func WithPublisher(p events.Publisher) ManagerOption {
	return func(m *Manager) { m.publisher = p }
}

// WithPublishTimeout sets how long publishing one event may take.
func WithPublishTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.publishTimeout = d }
}

func NewManager(s store.Store, policy Policy, log *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:          s,
		policy:         policy,
		publisher:      events.Nop{},
		publishTimeout: defaultPublishTimeout,
		log:            log,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Policy returns the rules the manager enforces.
func (m *Manager) Policy() Policy {
	return m.policy
}

// Index returns an availability index over committed bookings.
func (m *Manager) Index() *Index {
	return NewIndex(m.store, m.policy)
}

// Resolver returns a resolver over committed bookings. Its decisions are hints;
// Create re-runs resolution under the unit lock.
func (m *Manager) Resolver() *Resolver {
	return NewResolver(m.Index())
}

// Unit resolves raw to a canonical unit label of studioID.
func (m *Manager) Unit(ctx context.Context, studioID int64, raw string) (*model.Studio, string, error) {
	studio, err := m.store.GetStudio(ctx, studioID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, "", fmt.Errorf("%w: studio %d", ErrNotFound, studioID)
		}
		return nil, "", storageErr("load studio", err)
	}
	unit, err := parse.NormalizeUnit(raw, studio.Code, studio.NumStudios)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return studio, unit, nil
}

// Create books a unit for actor. The request is validated, then resolved and
// inserted while writes to the unit are serialized, so two overlapping
// requests can never both be confirmed. A conflict is a *SlotConflictError.
func (m *Manager) Create(ctx context.Context, actor Actor, req CreateRequest) (*model.Booking, error) {
	if actor.ID == "" {
		return nil, ErrUnauthorized
	}
	if _, err := m.policy.Validate(req.Start, req.End); err != nil {
		return nil, err
	}

	_, unit, err := m.Unit(ctx, req.StudioID, req.Unit)
	if err != nil {
		return nil, err
	}

	var created *model.Booking
	err = m.store.WithinUnitLock(ctx, req.StudioID, unit, func(tx store.Store) error {
		decision, err := NewResolver(NewIndex(tx, m.policy)).Resolve(ctx, req.StudioID, unit, req.Start, req.End)
		if err != nil {
			return err
		}
		if !decision.Accepted() {
			return decision.Err()
		}

		b := &model.Booking{
			OwnerID:      actor.ID,
			OwnerName:    actor.Name,
			OwnerEmail:   actor.Email,
			StudioID:     req.StudioID,
			Unit:         unit,
			StartAt:      decision.Range.Start,
			EndAt:        decision.Range.End,
			BlockedUntil: decision.Range.End.Add(m.policy.Padding),
			Status:       model.BookingStatusConfirmed,
		}
		if err := tx.CreateBooking(ctx, b); err != nil {
			if errors.Is(err, store.ErrOverlap) {
				return &SlotConflictError{}
			}
			return storageErr("create booking", err)
		}
		created = b
		return nil
	})
	if err != nil {
		return nil, classify("create booking", err)
	}

	m.log.Info("booking created",
		"booking_id", created.ID,
		"owner_id", created.OwnerID,
		"studio_id", created.StudioID,
		"unit", created.Unit,
		"start", created.StartAt,
		"end", created.EndAt,
	)
	m.publish(ctx, events.BookingCreated, created)
	return created, nil
}

// Cancel cancels a confirmed booking on behalf of actor. Cancelling a booking
// that is not confirmed returns ErrAlreadyTerminal and leaves its reason alone.
func (m *Manager) Cancel(ctx context.Context, actor Actor, id uuid.UUID, reason *string) (*model.Booking, error) {
	if reason != nil {
		trimmed := strings.TrimSpace(*reason)
		if trimmed == "" {
			reason = nil
		} else {
			reason = &trimmed
		}
	}

	var cancelled *model.Booking
	err := m.store.Transaction(ctx, func(tx store.Store) error {
		b, err := tx.GetBooking(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: booking %s", ErrNotFound, id)
			}
			return storageErr("load booking", err)
		}
		if !actor.CanCancel(b) {
			return ErrUnauthorized
		}
		if b.Status != model.BookingStatusConfirmed {
			return ErrAlreadyTerminal
		}

		ok, err := tx.CancelBooking(ctx, id, reason, m.policy.now())
		if err != nil {
			return storageErr("cancel booking", err)
		}
		if !ok {
			return ErrAlreadyTerminal
		}

		if cancelled, err = tx.GetBooking(ctx, id); err != nil {
			return storageErr("reload booking", err)
		}
		return nil
	})
	if err != nil {
		return nil, classify("cancel booking", err)
	}

	m.log.Info("booking cancelled",
		"booking_id", cancelled.ID,
		"actor_id", actor.ID,
		"actor_role", actor.Role.String(),
		"studio_id", cancelled.StudioID,
		"unit", cancelled.Unit,
	)
	if m.notifier != nil {
		m.notifier.Dispatch(*cancelled)
	}
	m.publish(ctx, events.BookingCancelled, cancelled)
	return cancelled, nil
}

// ListForUser returns every booking owned by userID, newest first.
func (m *Manager) ListForUser(ctx context.Context, userID string) ([]model.Booking, error) {
	bookings, err := m.store.ListBookingsByOwner(ctx, userID)
	if err != nil {
		return nil, storageErr("list bookings", err)
	}
	return bookings, nil
}

// ListForAdminScope lists bookings visible to an admin. Super admins see all
// studios, studio admins only their assigned ones.
func (m *Manager) ListForAdminScope(ctx context.Context, actor Actor, filter AdminFilter) ([]model.Booking, error) {
	scope, err := actor.AdminScope()
	if err != nil {
		return nil, err
	}

	f := store.BookingFilter{
		StudioIDs:   scope,
		OwnerQuery:  filter.UserQuery,
		StudioQuery: filter.StudioQuery,
	}
	if filter.Date != nil {
		day := timerange.Day(*filter.Date, m.policy.location())
		f.Day = &day
	}

	bookings, err := m.store.ListBookings(ctx, f)
	if err != nil {
		return nil, storageErr("list bookings", err)
	}
	return bookings, nil
}

// CompleteElapsed moves confirmed bookings whose turnover buffer has elapsed to completed.
func (m *Manager) CompleteElapsed(ctx context.Context) (int, error) {
	now := m.policy.now()
	completed, err := m.store.CompleteElapsed(ctx, now)
	if err != nil {
		return 0, storageErr("complete bookings", err)
	}
	for i := range completed {
		m.publish(ctx, events.BookingCompleted, &completed[i])
	}
	return len(completed), nil
}

// Partition splits bookings into those starting today or later and the rest.
func (m *Manager) Partition(bookings []model.Booking) (upcoming, history []model.Booking) {
	today := timerange.Day(m.policy.now(), m.policy.location()).Start
	upcoming = make([]model.Booking, 0, len(bookings))
	history = make([]model.Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.StartAt.Before(today) {
			history = append(history, b)
		} else {
			upcoming = append(upcoming, b)
		}
	}
	return upcoming, history
}

// publish runs after commit. It outlives a cancelled request but never holds
// the caller for longer than publishTimeout.
func (m *Manager) publish(ctx context.Context, t events.Type, b *model.Booking) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.publishTimeout)
	defer cancel()
	if err := m.publisher.Publish(ctx, events.FromBooking(t, b, m.policy.now())); err != nil {
		m.log.Warn("failed to publish booking event", "type", t, "booking_id", b.ID, "err", err)
	}
}

// classify passes taxonomy errors through and wraps anything else as a StorageError.
func classify(op string, err error) error {
	for _, known := range []error{
		ErrInvalidRange, ErrOutsideOperatingHours, ErrSlotConflict,
		ErrUnauthorized, ErrAlreadyTerminal, ErrNotFound, ErrStorage,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return storageErr(op, err)
}
