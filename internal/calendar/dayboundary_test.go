package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapponejosh/lunar-calendar-api/internal/database"
)

func TestLunarDate_FallbackBoundary(t *testing.T) {
	before := LunarDate(time.Date(2024, 3, 20, 17, 59, 0, 0, time.UTC), time.UTC, nil)
	assert.Equal(t, civil(2024, 3, 20), before.Date)
	assert.True(t, before.Fallback)
	assert.Equal(t, time.Date(2024, 3, 20, 18, 0, 0, 0, time.UTC), before.Boundary)

	at := LunarDate(time.Date(2024, 3, 20, 18, 0, 0, 0, time.UTC), nil, nil)
	assert.Equal(t, civil(2024, 3, 21), at.Date)
}

func TestLunarDate_Sunset(t *testing.T) {
	tz, err := time.LoadLocation("Asia/Jerusalem")
	require.NoError(t, err)
	jerusalem := &Location{Latitude: 31.7683, Longitude: 35.2137}

	afternoon := LunarDate(time.Date(2024, 3, 20, 17, 0, 0, 0, tz), tz, jerusalem)
	assert.False(t, afternoon.Fallback)
	assert.Equal(t, civil(2024, 3, 20), afternoon.Date)

	// Equinox sunset in Jerusalem is a little before 18:00 local.
	lo := time.Date(2024, 3, 20, 17, 30, 0, 0, tz)
	hi := time.Date(2024, 3, 20, 18, 15, 0, 0, tz)
	assert.True(t, afternoon.Boundary.After(lo) && afternoon.Boundary.Before(hi), "boundary %s", afternoon.Boundary)

	evening := LunarDate(time.Date(2024, 3, 20, 18, 30, 0, 0, tz), tz, jerusalem)
	assert.Equal(t, civil(2024, 3, 21), evening.Date)
}

func TestLunarDate_PolarFallsBack(t *testing.T) {
	arctic := &Location{Latitude: 75, Longitude: 25}

	got := LunarDate(time.Date(2024, 6, 21, 19, 0, 0, 0, time.UTC), time.UTC, arctic)
	assert.True(t, got.Fallback)
	assert.Equal(t, civil(2024, 6, 22), got.Date)
}

func TestChooseLocation(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	fallback := &Location{Latitude: 1, Longitude: 2}

	assert.Equal(t, fallback, ChooseLocation(nil, fallback, time.Hour, now, quietLogger()))
	assert.Nil(t, ChooseLocation(nil, nil, time.Hour, now, quietLogger()))

	stale := &database.CachedLocation{Latitude: 31.7, Longitude: 35.2, CachedAt: now.Add(-48 * time.Hour)}
	got := ChooseLocation(stale, fallback, time.Hour, now, quietLogger())
	require.NotNil(t, got)
	assert.Equal(t, 31.7, got.Latitude)
}
