package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithin(t *testing.T) {
	cases := []struct {
		hour int
		want bool
	}{
		{0, false},
		{6, false},
		{7, true},
		{12, true},
		{20, true},
		{21, false},
		{22, false},
		{23, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Within(tc.hour), "hour=%d", tc.hour)
	}
}

func TestMidnightStripsTimeOfDay(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kuala_Lumpur")
	require.NoError(t, err)

	at := time.Date(2026, 3, 14, 18, 42, 7, 123, loc)
	got := Midnight(at, loc)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, loc), got)
}

func TestDaysBetween(t *testing.T) {
	loc := time.UTC

	a := time.Date(2026, 1, 1, 23, 59, 0, 0, loc)
	b := time.Date(2026, 1, 2, 0, 1, 0, 0, loc)
	// Wall-clock minutes apart, but a full day boundary was crossed.
	assert.Equal(t, 1, DaysBetween(a, b, loc))

	assert.Equal(t, 0, DaysBetween(b, b, loc))
	assert.Equal(t, -1, DaysBetween(b, a, loc))

	c := time.Date(2026, 1, 16, 9, 0, 0, 0, loc)
	assert.Equal(t, 15, DaysBetween(a, c, loc))
}

func TestNextMorning(t *testing.T) {
	loc := time.UTC

	before := time.Date(2026, 5, 1, 6, 30, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 5, 1, 7, 0, 0, 0, loc), NextMorning(before, loc))

	exactly := time.Date(2026, 5, 1, 7, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 5, 2, 7, 0, 0, 0, loc), NextMorning(exactly, loc))

	after := time.Date(2026, 5, 1, 15, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 5, 2, 7, 0, 0, 0, loc), NextMorning(after, loc))
}

func TestDayKey(t *testing.T) {
	loc := time.UTC
	at := time.Date(2026, 9, 3, 23, 0, 0, 0, loc)
	assert.Equal(t, "2026-09-03", DayKey(at, loc))
}
