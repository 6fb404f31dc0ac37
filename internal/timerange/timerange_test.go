package timerange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, min int) time.Time {
	return time.Date(2025, 3, 10, hour, min, 0, 0, time.UTC)
}

func TestNew(t *testing.T) {
	_, err := New(at(10, 0), at(10, 0))
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = New(at(11, 0), at(10, 0))
	assert.ErrorIs(t, err, ErrInvalidRange)

	r, err := New(at(10, 0), at(11, 0))
	require.NoError(t, err)
	assert.Equal(t, time.Hour, r.Duration())
}

func TestOverlaps(t *testing.T) {
	testCases := []struct {
		name     string
		a, b     Range
		expected bool
	}{
		{"disjoint", Range{at(9, 0), at(10, 0)}, Range{at(11, 0), at(12, 0)}, false},
		{"touching", Range{at(9, 0), at(10, 0)}, Range{at(10, 0), at(11, 0)}, false},
		{"partial", Range{at(9, 0), at(10, 30)}, Range{at(10, 0), at(11, 0)}, true},
		{"nested", Range{at(9, 0), at(12, 0)}, Range{at(10, 0), at(11, 0)}, true},
		{"identical", Range{at(9, 0), at(10, 0)}, Range{at(9, 0), at(10, 0)}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Overlaps(tc.a, tc.b))
			assert.Equal(t, tc.expected, Overlaps(tc.b, tc.a), "overlap must be symmetric")
		})
	}
}

func TestContains(t *testing.T) {
	r := Range{Start: at(10, 0), End: at(11, 0)}

	assert.True(t, Contains(r, at(10, 0)), "start is inclusive")
	assert.True(t, r.Contains(at(10, 59)))
	assert.False(t, Contains(r, at(11, 0)), "end is exclusive")
	assert.False(t, Contains(r, at(9, 59)))
}

func TestBuffered(t *testing.T) {
	r := Range{Start: at(10, 0), End: at(11, 0)}

	b := Buffered(r, DefaultPadding)
	assert.Equal(t, at(9, 50), b.Start)
	assert.Equal(t, at(11, 10), b.End)

	assert.Equal(t, r, Buffered(r, 0))

	// existing 10:00-11:00 buffered to 09:50-11:10
	assert.False(t, Overlaps(b, Range{at(11, 10), at(12, 0)}))
	assert.True(t, Overlaps(b, Range{at(11, 9), at(12, 0)}))
}

func TestShiftAndDay(t *testing.T) {
	r := Range{Start: at(10, 0), End: at(11, 30)}
	s := r.Shift(at(14, 0))
	assert.Equal(t, at(14, 0), s.Start)
	assert.Equal(t, at(15, 30), s.End)

	loc := time.FixedZone("UTC+5", 5*3600)
	d := Day(time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC), loc)
	assert.Equal(t, time.Date(2025, 3, 11, 0, 0, 0, 0, loc), d.Start)
	assert.Equal(t, 24*time.Hour, d.Duration())
}
