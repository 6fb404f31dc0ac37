package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"studio-booking-backend/internal/model"
	"studio-booking-backend/internal/timerange"
)

// pgExclusionViolation is the SQLSTATE raised by an EXCLUDE constraint.
const pgExclusionViolation = "23P01"

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	// Transaction runs fn in a database transaction. The Store passed to fn is bound to it.
	Transaction(ctx context.Context, fn func(tx Store) error) error
	// WithinUnitLock is Transaction with writes to (studioID, unit) serialized for its duration.
	WithinUnitLock(ctx context.Context, studioID int64, unit string, fn func(tx Store) error) error

	GetStudio(ctx context.Context, id int64) (*model.Studio, error)
	ListStudios(ctx context.Context, filter StudioFilter) ([]model.Studio, error)
	UpsertStudios(ctx context.Context, studios []model.Studio) error

	ConfirmedBookings(ctx context.Context, studioID int64, unit string, window timerange.Range) ([]model.Booking, error)
	CountConfirmedOverlapping(ctx context.Context, studioIDs []int64, r timerange.Range) (map[int64]int, error)
	CreateBooking(ctx context.Context, b *model.Booking) error
	GetBooking(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	CancelBooking(ctx context.Context, id uuid.UUID, reason *string, at time.Time) (bool, error)
	ListBookingsByOwner(ctx context.Context, ownerID string) ([]model.Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]model.Booking, error)
	CompleteElapsed(ctx context.Context, now time.Time) ([]model.Booking, error)

	PutSubscription(ctx context.Context, sub *model.PushSubscription, studioIDs []int64) error
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db    *gorm.DB
	locks *keyedMutex
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db, locks: newKeyedMutex()}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx, locks: s.locks})
	})
}

func (s *gormStore) WithinUnitLock(ctx context.Context, studioID int64, unit string, fn func(tx Store) error) error {
	key := unitKey(studioID, unit)
	unlock := s.locks.Lock(key)
	defer unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			// Serializes writers across processes sharing the database.
			if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", key).Error; err != nil {
				return fmt.Errorf("failed to take unit lock %s: %w", key, err)
			}
		}
		return fn(&gormStore{db: tx, locks: s.locks})
	})
}

func unitKey(studioID int64, unit string) string {
	return fmt.Sprintf("booking:%d:%s", studioID, unit)
}

func (s *gormStore) GetStudio(ctx context.Context, id int64) (*model.Studio, error) {
	var studio model.Studio
	if err := s.db.WithContext(ctx).First(&studio, id).Error; err != nil {
		return nil, translate(err)
	}
	return &studio, nil
}

func (s *gormStore) ListStudios(ctx context.Context, filter StudioFilter) ([]model.Studio, error) {
	q := s.db.WithContext(ctx).Model(&model.Studio{})
	if city := strings.TrimSpace(filter.City); city != "" {
		q = q.Where("LOWER(city) = ?", strings.ToLower(city))
	}
	if text := strings.TrimSpace(filter.Query); text != "" {
		like := likePattern(text)
		q = q.Where(`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(area) LIKE ? ESCAPE '\' OR LOWER(address) LIKE ? ESCAPE '\'`, like, like, like)
	}

	var studios []model.Studio
	if err := q.Order("name").Find(&studios).Error; err != nil {
		return nil, err
	}
	return studios, nil
}

func (s *gormStore) UpsertStudios(ctx context.Context, studios []model.Studio) error {
	if len(studios) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "code", "address", "city", "area", "latitude", "longitude",
			"num_studios", "facilities", "photos", "updated_at",
		}),
	}).Create(&studios).Error
}

// ConfirmedBookings returns confirmed bookings of one unit intersecting window, by start time.
func (s *gormStore) ConfirmedBookings(ctx context.Context, studioID int64, unit string, window timerange.Range) ([]model.Booking, error) {
	var bookings []model.Booking
	err := s.db.WithContext(ctx).
		Where("studio_id = ? AND unit = ? AND status = ?", studioID, unit, model.BookingStatusConfirmed).
		Where("start_at < ? AND end_at > ?", window.End.UTC(), window.Start.UTC()).
		Order("start_at").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// CountConfirmedOverlapping counts confirmed bookings per studio whose raw range overlaps r.
// Studios without any are absent from the result.
func (s *gormStore) CountConfirmedOverlapping(ctx context.Context, studioIDs []int64, r timerange.Range) (map[int64]int, error) {
	counts := make(map[int64]int, len(studioIDs))
	if len(studioIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		StudioID int64
		Booked   int
	}
	err := s.db.WithContext(ctx).Model(&model.Booking{}).
		Select("studio_id, COUNT(*) AS booked").
		Where("studio_id IN ? AND status = ?", studioIDs, model.BookingStatusConfirmed).
		Where("start_at < ? AND end_at > ?", r.End.UTC(), r.Start.UTC()).
		Group("studio_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.StudioID] = row.Booked
	}
	return counts, nil
}

func (s *gormStore) CreateBooking(ctx context.Context, b *model.Booking) error {
	b.StartAt = b.StartAt.UTC()
	b.EndAt = b.EndAt.UTC()
	b.BlockedUntil = b.BlockedUntil.UTC()
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(b).Error; err != nil {
		return translate(err)
	}
	return nil
}

func (s *gormStore) GetBooking(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	var b model.Booking
	if err := s.db.WithContext(ctx).Preload("Studio").First(&b, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &b, nil
}

// CancelBooking moves a confirmed booking to cancelled. It reports false, and changes
// nothing, when the booking is not confirmed anymore.
func (s *gormStore) CancelBooking(ctx context.Context, id uuid.UUID, reason *string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Booking{}).
		Where("id = ? AND status = ?", id, model.BookingStatusConfirmed).
		Updates(map[string]any{
			"status":              model.BookingStatusCancelled,
			"cancellation_reason": reason,
			"updated_at":          at.UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *gormStore) ListBookingsByOwner(ctx context.Context, ownerID string) ([]model.Booking, error) {
	var bookings []model.Booking
	err := s.db.WithContext(ctx).Preload("Studio").
		Where("owner_id = ?", ownerID).
		Order("start_at DESC").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (s *gormStore) ListBookings(ctx context.Context, filter BookingFilter) ([]model.Booking, error) {
	if filter.StudioIDs != nil && len(filter.StudioIDs) == 0 {
		return []model.Booking{}, nil
	}

	q := s.db.WithContext(ctx).Model(&model.Booking{}).
		Joins("JOIN studios ON studios.id = bookings.studio_id").
		Preload("Studio")

	if filter.StudioIDs != nil {
		q = q.Where("bookings.studio_id IN ?", filter.StudioIDs)
	}
	if text := strings.TrimSpace(filter.OwnerQuery); text != "" {
		like := likePattern(text)
		q = q.Where(`LOWER(bookings.owner_name) LIKE ? ESCAPE '\' OR LOWER(bookings.owner_email) LIKE ? ESCAPE '\'`, like, like)
	}
	if text := strings.TrimSpace(filter.StudioQuery); text != "" {
		like := likePattern(text)
		q = q.Where(`LOWER(studios.name) LIKE ? ESCAPE '\' OR LOWER(studios.city) LIKE ? ESCAPE '\' OR `+
			`LOWER(studios.area) LIKE ? ESCAPE '\' OR LOWER(studios.address) LIKE ? ESCAPE '\'`,
			like, like, like, like)
	}
	if filter.Day != nil {
		q = q.Where("bookings.start_at >= ? AND bookings.start_at < ?", filter.Day.Start.UTC(), filter.Day.End.UTC())
	}

	var bookings []model.Booking
	if err := q.Order("bookings.start_at DESC").Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

// CompleteElapsed marks confirmed bookings whose turnover buffer ended at or
// before now as completed and returns them. Until then the booking still blocks
// its unit, so it must stay confirmed.
func (s *gormStore) CompleteElapsed(ctx context.Context, now time.Time) ([]model.Booking, error) {
	var completed []model.Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("status = ? AND blocked_until <= ?", model.BookingStatusConfirmed, now.UTC()).
			Order("end_at").
			Find(&completed).Error; err != nil {
			return err
		}
		if len(completed) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, len(completed))
		for i := range completed {
			ids[i] = completed[i].ID
			completed[i].Status = model.BookingStatusCompleted
		}
		return tx.Model(&model.Booking{}).
			Where("id IN ? AND status = ?", ids, model.BookingStatusConfirmed).
			Updates(map[string]any{"status": model.BookingStatusCompleted, "updated_at": now.UTC()}).Error
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}

// PutSubscription creates or replaces a push subscription and its studio set.
func (s *gormStore) PutSubscription(ctx context.Context, sub *model.PushSubscription, studioIDs []int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Create(sub).Error; err != nil {
			return err
		}

		var studios []*model.Studio
		if len(studioIDs) > 0 {
			if err := tx.Find(&studios, studioIDs).Error; err != nil {
				return err
			}
		}
		return tx.Model(sub).Association("Studios").Replace(&studios)
	})
}

func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := s.db.WithContext(ctx).Preload("Studios").First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub := model.PushSubscription{Endpoint: endpoint}
		if err := tx.Model(&sub).Association("Studios").Clear(); err != nil {
			return err
		}
		return tx.Delete(&sub).Error
	})
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern builds a substring match for LIKE ... ESCAPE '\'. Wildcards in
// text match literally.
func likePattern(text string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(text)) + "%"
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation {
		return fmt.Errorf("%w: %s", ErrOverlap, pgErr.ConstraintName)
	}
	return err
}
