package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"studio-booking-backend/internal/events"
	"studio-booking-backend/internal/model"
	"studio-booking-backend/internal/timerange"
)

func at(hour, min int) time.Time {
	return time.Date(2025, 3, 10, hour, min, 0, 0, time.UTC)
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func testPolicy(padding time.Duration) Policy {
	return Policy{Padding: padding, Location: time.UTC, Now: fixedNow(at(0, 0))}
}

// memReader serves confirmed bookings from memory.
type memReader struct {
	bookings []model.Booking
	calls    int
}

func (m *memReader) add(studioID int64, unit string, start, end time.Time) {
	m.bookings = append(m.bookings, model.Booking{
		StudioID: studioID, Unit: unit, StartAt: start, EndAt: end, Status: model.BookingStatusConfirmed,
	})
}

func (m *memReader) ConfirmedBookings(ctx context.Context, studioID int64, unit string, window timerange.Range) ([]model.Booking, error) {
	m.calls++
	var out []model.Booking
	for _, b := range m.bookings {
		if b.StudioID != studioID || b.Unit != unit || b.Status != model.BookingStatusConfirmed {
			continue
		}
		if timerange.Overlaps(timerange.Range{Start: b.StartAt, End: b.EndAt}, window) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (m *memReader) CountConfirmedOverlapping(ctx context.Context, studioIDs []int64, r timerange.Range) (map[int64]int, error) {
	counts := make(map[int64]int)
	for _, id := range studioIDs {
		for _, b := range m.bookings {
			if b.StudioID == id && b.Status == model.BookingStatusConfirmed &&
				timerange.Overlaps(timerange.Range{Start: b.StartAt, End: b.EndAt}, r) {
				counts[id]++
			}
		}
	}
	return counts, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type recordingNotifier struct {
	freed []model.Booking
}

func (n *recordingNotifier) Dispatch(b model.Booking) {
	n.freed = append(n.freed, b)
}
