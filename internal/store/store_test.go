package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"studio-booking-backend/config"
	"studio-booking-backend/internal/db"
	"studio-booking-backend/internal/logx"
	"studio-booking-backend/internal/model"
	"studio-booking-backend/internal/timerange"
)

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: sqlDB,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	gormDB, err := db.Init(&config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:", LogLevel: "silent"}, logx.Discard())
	require.NoError(t, err)
	return NewGormStore(gormDB)
}

func at(hour, min int) time.Time {
	return time.Date(2025, 3, 10, hour, min, 0, 0, time.UTC)
}

func seedStudio(t *testing.T, s Store, id int64, name, city string, units int) model.Studio {
	t.Helper()
	studio := model.Studio{ID: id, Name: name, Code: name[:3], City: city, NumStudios: units}
	require.NoError(t, s.UpsertStudios(context.Background(), []model.Studio{studio}))
	return studio
}

func seedBooking(t *testing.T, s Store, studioID int64, unit string, start, end time.Time, owner string) *model.Booking {
	t.Helper()
	b := &model.Booking{
		OwnerID:      owner,
		OwnerName:    owner,
		OwnerEmail:   owner + "@example.edu",
		StudioID:     studioID,
		Unit:         unit,
		StartAt:      start,
		EndAt:        end,
		BlockedUntil: end.Add(timerange.DefaultPadding),
		Status:       model.BookingStatusConfirmed,
	}
	require.NoError(t, s.CreateBooking(context.Background(), b))
	return b
}

func TestWithinUnitLock_TakesAdvisoryLockOnPostgres(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock(hashtext($1))`)).
		WithArgs("booking:7:NOI-001").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	called := false
	err := s.WithinUnitLock(context.Background(), 7, "NOI-001", func(tx Store) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinUnitLock_RollsBackOnError(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock`)).
		WithArgs(Any{}).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := s.WithinUnitLock(context.Background(), 7, "NOI-001", func(tx Store) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBooking_ExclusionViolationIsOverlap(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "bookings"`)).
		WillReturnError(&pgconn.PgError{Code: "23P01", ConstraintName: "bookings_no_overlap"})
	mock.ExpectRollback()

	err := s.CreateBooking(context.Background(), &model.Booking{
		OwnerID: "u1", StudioID: 1, Unit: "NOI-001",
		StartAt: at(10, 0), EndAt: at(11, 0), BlockedUntil: at(11, 10),
		Status: model.BookingStatusConfirmed,
	})
	assert.ErrorIs(t, err, ErrOverlap)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTranslate(t *testing.T) {
	assert.Nil(t, translate(nil))
	assert.ErrorIs(t, translate(gorm.ErrRecordNotFound), ErrNotFound)
	assert.ErrorIs(t, translate(&pgconn.PgError{Code: "23P01"}), ErrOverlap)

	other := &pgconn.PgError{Code: "23505"}
	assert.Equal(t, other, translate(other))
}

func TestConfirmedBookings(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	seedStudio(t, s, 1, "Noise Lab", "Pune", 2)

	late := seedBooking(t, s, 1, "NOI-001", at(15, 0), at(16, 0), "alice")
	early := seedBooking(t, s, 1, "NOI-001", at(9, 0), at(10, 0), "bob")
	seedBooking(t, s, 1, "NOI-002", at(9, 0), at(10, 0), "carol")
	cancelled := seedBooking(t, s, 1, "NOI-001", at(12, 0), at(13, 0), "dave")
	ok, err := s.CancelBooking(ctx, cancelled.ID, nil, at(8, 0))
	require.NoError(t, err)
	require.True(t, ok)

	got, err := s.ConfirmedBookings(ctx, 1, "NOI-001", timerange.Day(at(0, 0), time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, early.ID, got[0].ID, "ordered by start time")
	assert.Equal(t, late.ID, got[1].ID)

	// window touching the end of the early booking excludes it
	got, err = s.ConfirmedBookings(ctx, 1, "NOI-001", timerange.Range{Start: at(10, 0), End: at(15, 0)})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestConfirmedBookings_NonUTCInput(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	seedStudio(t, s, 1, "Noise Lab", "Pune", 1)

	ist := time.FixedZone("IST", 5*3600+1800)
	start := time.Date(2025, 3, 10, 14, 0, 0, 0, ist)
	seedBooking(t, s, 1, "NOI-001", start, start.Add(time.Hour), "alice")

	got, err := s.ConfirmedBookings(ctx, 1, "NOI-001", timerange.Day(start, ist))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].StartAt.Equal(start))
}

func TestCountConfirmedOverlapping(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	seedStudio(t, s, 1, "Noise Lab", "Pune", 2)
	seedStudio(t, s, 2, "Echo Room", "Pune", 1)

	seedBooking(t, s, 1, "NOI-001", at(10, 0), at(11, 0), "a")
	seedBooking(t, s, 1, "NOI-002", at(10, 30), at(11, 30), "b")
	seedBooking(t, s, 2, "ECH-001", at(11, 0), at(12, 0), "c")

	counts, err := s.CountConfirmedOverlapping(ctx, []int64{1, 2, 3}, timerange.Range{Start: at(10, 45), End: at(11, 0)})
	require.NoError(t, err)
	assert.Equal(t, 2, counts[1])
	assert.Equal(t, 0, counts[2], "touching is not overlapping")
	_, present := counts[3]
	assert.False(t, present)

	empty, err := s.CountConfirmedOverlapping(ctx, nil, timerange.Range{Start: at(10, 0), End: at(11, 0)})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCancelBooking_OnlyOnce(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	seedStudio(t, s, 1, "Noise Lab", "Pune", 1)
	b := seedBooking(t, s, 1, "NOI-001", at(10, 0), at(11, 0), "alice")

	first := "sick"
	ok, err := s.CancelBooking(ctx, b.ID, &first, at(9, 0))
	require.NoError(t, err)
	assert.True(t, ok)

	second := "changed my mind"
	ok, err = s.CancelBooking(ctx, b.ID, &second, at(9, 5))
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCancelled, got.Status)
	require.NotNil(t, got.CancellationReason)
	assert.Equal(t, "sick", *got.CancellationReason)
	require.NotNil(t, got.Studio)
	assert.Equal(t, "Noise Lab", got.Studio.Name)
}

func TestGetBooking_NotFound(t *testing.T) {
	s := newSQLiteStore(t)
	_, err := s.GetBooking(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetStudio(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListBookings_Filters(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	seedStudio(t, s, 1, "Noise Lab", "Pune", 1)
	seedStudio(t, s, 2, "Echo Room", "Mumbai", 1)

	a := seedBooking(t, s, 1, "NOI-001", at(10, 0), at(11, 0), "alice")
	b := seedBooking(t, s, 2, "ECH-001", at(10, 0), at(11, 0), "bob")
	c := seedBooking(t, s, 2, "ECH-001", at(10, 0).AddDate(0, 0, 1), at(11, 0).AddDate(0, 0, 1), "alice")

	ids := func(bs []model.Booking) []string {
		out := make([]string, len(bs))
		for i := range bs {
			out[i] = bs[i].ID.String()
		}
		return out
	}

	all, err := s.ListBookings(ctx, BookingFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	scoped, err := s.ListBookings(ctx, BookingFilter{StudioIDs: []int64{2}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{b.ID.String(), c.ID.String()}, ids(scoped))

	none, err := s.ListBookings(ctx, BookingFilter{StudioIDs: []int64{}})
	require.NoError(t, err)
	assert.Empty(t, none)

	byOwner, err := s.ListBookings(ctx, BookingFilter{OwnerQuery: "ALICE@"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID.String(), c.ID.String()}, ids(byOwner))

	byStudio, err := s.ListBookings(ctx, BookingFilter{StudioQuery: "mum"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{b.ID.String(), c.ID.String()}, ids(byStudio))

	day := timerange.Day(at(0, 0), time.UTC)
	byDay, err := s.ListBookings(ctx, BookingFilter{Day: &day, OwnerQuery: "alice"})
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID.String()}, ids(byDay))
	require.NotNil(t, byDay[0].Studio)
}

func TestListBookings_WildcardsMatchLiterally(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	seedStudio(t, s, 1, "Noise Lab", "Pune", 2)

	under := seedBooking(t, s, 1, "NOI-001", at(10, 0), at(11, 0), "a_b")
	seedBooking(t, s, 1, "NOI-002", at(10, 0), at(11, 0), "axb")

	got, err := s.ListBookings(ctx, BookingFilter{OwnerQuery: "a_b"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, under.ID, got[0].ID)

	got, err = s.ListBookings(ctx, BookingFilter{OwnerQuery: "%"})
	require.NoError(t, err)
	assert.Empty(t, got)

	studios, err := s.ListStudios(ctx, StudioFilter{Query: "_"})
	require.NoError(t, err)
	assert.Empty(t, studios)

	studios, err = s.ListStudios(ctx, StudioFilter{Query: "e l"})
	require.NoError(t, err)
	assert.Len(t, studios, 1)
}

func TestListBookingsByOwner(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	seedStudio(t, s, 1, "Noise Lab", "Pune", 1)

	older := seedBooking(t, s, 1, "NOI-001", at(8, 0), at(9, 0), "alice")
	newer := seedBooking(t, s, 1, "NOI-001", at(12, 0), at(13, 0), "alice")
	seedBooking(t, s, 1, "NOI-001", at(15, 0), at(16, 0), "bob")
	_, err := s.CancelBooking(ctx, older.ID, nil, at(7, 0))
	require.NoError(t, err)

	got, err := s.ListBookingsByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got, 2, "all statuses are returned")
	assert.Equal(t, newer.ID, got[0].ID)
	assert.Equal(t, older.ID, got[1].ID)
}

func TestCompleteElapsed(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	seedStudio(t, s, 1, "Noise Lab", "Pune", 1)

	done := seedBooking(t, s, 1, "NOI-001", at(8, 0), at(9, 0), "alice")
	running := seedBooking(t, s, 1, "NOI-001", at(10, 0), at(11, 0), "bob")

	completed, err := s.CompleteElapsed(ctx, at(10, 30))
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, done.ID, completed[0].ID)
	assert.Equal(t, model.BookingStatusCompleted, completed[0].Status)

	got, err := s.GetBooking(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, got.Status)

	again, err := s.CompleteElapsed(ctx, at(10, 30))
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestCompleteElapsed_WaitsForBuffer(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	seedStudio(t, s, 1, "Noise Lab", "Pune", 1)
	b := seedBooking(t, s, 1, "NOI-001", at(10, 0), at(11, 0), "alice")

	completed, err := s.CompleteElapsed(ctx, at(11, 0))
	require.NoError(t, err)
	assert.Empty(t, completed, "the turnover buffer runs until 11:10")

	completed, err = s.CompleteElapsed(ctx, at(11, 9))
	require.NoError(t, err)
	assert.Empty(t, completed)

	completed, err = s.CompleteElapsed(ctx, at(11, 10))
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, b.ID, completed[0].ID)
}

func TestStudios(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	seedStudio(t, s, 1, "Noise Lab", "Pune", 1)
	seedStudio(t, s, 2, "Echo Room", "Mumbai", 1)

	// upsert updates in place
	require.NoError(t, s.UpsertStudios(ctx, []model.Studio{{ID: 1, Name: "Noise Lab", Code: "NOI", City: "Pune", NumStudios: 3, Area: "Kothrud"}}))
	studio, err := s.GetStudio(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, studio.NumStudios)

	got, err := s.ListStudios(ctx, StudioFilter{City: "PUNE"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)

	got, err = s.ListStudios(ctx, StudioFilter{Query: "kothrud"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, err = s.ListStudios(ctx, StudioFilter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Echo Room", got[0].Name)
}

func TestSubscriptions(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	seedStudio(t, s, 1, "Noise Lab", "Pune", 1)
	seedStudio(t, s, 2, "Echo Room", "Mumbai", 1)

	sub := &model.PushSubscription{Endpoint: "https://push.example/abc", P256DH: "p", Auth: "a"}
	require.NoError(t, s.PutSubscription(ctx, sub, []int64{1, 2}))

	got, err := s.GetSubscription(ctx, sub.Endpoint)
	require.NoError(t, err)
	assert.Len(t, got.Studios, 2)

	require.NoError(t, s.PutSubscription(ctx, &model.PushSubscription{Endpoint: sub.Endpoint, P256DH: "p2", Auth: "a2"}, []int64{2}))
	got, err = s.GetSubscription(ctx, sub.Endpoint)
	require.NoError(t, err)
	require.Len(t, got.Studios, 1)
	assert.Equal(t, int64(2), got.Studios[0].ID)
	assert.Equal(t, "p2", got.P256DH)

	require.NoError(t, s.DeleteSubscription(ctx, sub.Endpoint))
	_, err = s.GetSubscription(ctx, sub.Endpoint)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWithinUnitLock_SerializesSameUnit(t *testing.T) {
	s := newSQLiteStore(t)
	seedStudio(t, s, 1, "Noise Lab", "Pune", 1)

	var (
		mu     sync.Mutex
		inside int
		maxIn  int
		wg     sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithinUnitLock(context.Background(), 1, "NOI-001", func(tx Store) error {
				mu.Lock()
				inside++
				if inside > maxIn {
					maxIn = inside
				}
				mu.Unlock()

				_, err := tx.ConfirmedBookings(context.Background(), 1, "NOI-001", timerange.Day(at(0, 0), time.UTC))
				time.Sleep(time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxIn)
}

func TestKeyedMutex_ReleasesKeys(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	assert.Len(t, k.locks, 2)
	unlockA()
	unlockB()
	assert.Empty(t, k.locks)
}

// Any is a custom sqlmock.Argument that matches any value.
type Any struct{}

// Match satisfies the sqlmock.Argument interface
func (a Any) Match(v driver.Value) bool {
	return true
}
