package booking

import (
	"context"

	"studio-booking-backend/internal/model"
	"studio-booking-backend/internal/timerange"
)

// OccupancyReader counts confirmed bookings per studio.
type OccupancyReader interface {
	CountConfirmedOverlapping(ctx context.Context, studioIDs []int64, r timerange.Range) (map[int64]int, error)
}

// Aggregator is a coarse studio-level busy signal for list views. It counts raw,
// unbuffered overlaps across all units, so an available studio can still reject
// a specific unit at booking time.
type Aggregator struct {
	reader OccupancyReader
}

func NewAggregator(reader OccupancyReader) *Aggregator {
	return &Aggregator{reader: reader}
}

// UnitsBookedAt counts confirmed bookings of the studio overlapping r.
func (a *Aggregator) UnitsBookedAt(ctx context.Context, studioID int64, r timerange.Range) (int, error) {
	counts, err := a.reader.CountConfirmedOverlapping(ctx, []int64{studioID}, r)
	if err != nil {
		return 0, storageErr("count bookings", err)
	}
	return counts[studioID], nil
}

// IsStudioAvailable reports whether fewer bookings than units overlap r.
func (a *Aggregator) IsStudioAvailable(ctx context.Context, studio model.Studio, r timerange.Range) (bool, error) {
	booked, err := a.UnitsBookedAt(ctx, studio.ID, r)
	if err != nil {
		return false, err
	}
	return booked < studio.NumStudios, nil
}

// AvailableStudios keeps the studios that are available over r, in order.
func (a *Aggregator) AvailableStudios(ctx context.Context, studios []model.Studio, r timerange.Range) ([]model.Studio, error) {
	if len(studios) == 0 {
		return studios, nil
	}
	ids := make([]int64, len(studios))
	for i, s := range studios {
		ids[i] = s.ID
	}
	counts, err := a.reader.CountConfirmedOverlapping(ctx, ids, r)
	if err != nil {
		return nil, storageErr("count bookings", err)
	}

	available := make([]model.Studio, 0, len(studios))
	for _, s := range studios {
		if counts[s.ID] < s.NumStudios {
			available = append(available, s)
		}
	}
	return available, nil
}
