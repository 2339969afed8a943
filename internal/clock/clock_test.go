package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		input  string
		hour   int
		minute int
	}{
		{"09:00", 9, 0},
		{"00:00", 0, 0},
		{"23:59", 23, 59},
		{" 08:30 ", 8, 30},
		{"7:05", 7, 5},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tod, err := ParseTimeOfDay(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.hour, tod.Hour)
			assert.Equal(t, tt.minute, tod.Minute)
		})
	}
}

func TestParseTimeOfDayRejectsMalformed(t *testing.T) {
	for _, input := range []string{"", "9", "09:00:00", "24:00", "12:60", "-1:30", "ab:cd", "12-30"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseTimeOfDay(input)
			require.Error(t, err)
		})
	}
}

func TestTimeOfDayString(t *testing.T) {
	assert.Equal(t, "09:05", TimeOfDay{Hour: 9, Minute: 5}.String())
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	loc, err = LoadLocation("America/New_York")
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())

	_, err = LoadLocation("Not/AZone")
	require.Error(t, err)
}

func TestLocalDayWindowUTC(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 42, 0, 0, time.UTC)
	window := LocalDayWindow(now, time.UTC)

	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), window.Start)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), window.End)
	assert.True(t, window.Contains(now))
	assert.True(t, window.Contains(window.Start))
	assert.False(t, window.Contains(window.End))
}

func TestLocalDayWindowNewYork(t *testing.T) {
	loc, err := LoadLocation("America/New_York")
	require.NoError(t, err)

	// January 15 is EST (UTC-5): the local day runs 05:00Z to 05:00Z.
	now := time.Date(2026, 1, 15, 14, 0, 0, 0, time.UTC)
	window := LocalDayWindow(now, loc)

	assert.Equal(t, time.Date(2026, 1, 15, 5, 0, 0, 0, time.UTC), window.Start)
	assert.Equal(t, time.Date(2026, 1, 16, 5, 0, 0, 0, time.UTC), window.End)

	// 04:59Z is still January 14 locally.
	early := time.Date(2026, 1, 15, 4, 59, 0, 0, time.UTC)
	assert.False(t, window.Contains(early))
	assert.True(t, LocalDayWindow(early, loc).Contains(early))
}

func TestLocalDayWindowDSTTransition(t *testing.T) {
	loc, err := LoadLocation("America/New_York")
	require.NoError(t, err)

	// US clocks spring forward on 2026-03-08; that local day is 23 hours.
	now := time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)
	window := LocalDayWindow(now, loc)

	assert.Equal(t, time.Date(2026, 3, 8, 5, 0, 0, 0, time.UTC), window.Start)
	assert.Equal(t, time.Date(2026, 3, 9, 4, 0, 0, 0, time.UTC), window.End)
	assert.Equal(t, 23*time.Hour, window.End.Sub(window.Start))
}

func TestAt(t *testing.T) {
	loc, err := LoadLocation("America/New_York")
	require.NoError(t, err)
	tod := TimeOfDay{Hour: 9, Minute: 0}

	// EST: 09:00 local is 14:00Z.
	winter := time.Date(2026, 1, 15, 11, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 1, 15, 14, 0, 0, 0, time.UTC), At(winter, tod, loc))

	// EDT: 09:00 local is 13:00Z.
	summer := time.Date(2026, 7, 15, 11, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 7, 15, 13, 0, 0, 0, time.UTC), At(summer, tod, loc))
}

func TestStartOfUTCDay(t *testing.T) {
	now := time.Date(2026, 1, 16, 23, 59, 59, 5000, time.UTC)
	assert.Equal(t, time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC), StartOfUTCDay(now))

	// Non-UTC inputs are normalised before truncation.
	loc, err := LoadLocation("America/New_York")
	require.NoError(t, err)
	local := time.Date(2026, 1, 15, 22, 0, 0, 0, loc) // 03:00Z on the 16th
	assert.Equal(t, time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC), StartOfUTCDay(local))
}

func TestFixedClock(t *testing.T) {
	instant := time.Date(2026, 1, 15, 14, 0, 0, 0, time.UTC)
	clk := Fixed(instant)
	assert.Equal(t, instant, clk.Now())
	assert.Equal(t, instant, clk.Now())
}

func TestSystemClockReportsUTC(t *testing.T) {
	now := System().Now()
	assert.Equal(t, time.UTC, now.Location())
}
