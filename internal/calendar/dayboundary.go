package calendar

import (
	"log/slog"
	"time"

	"github.com/zapponejosh/lunar-calendar-api/internal/astro"
	"github.com/zapponejosh/lunar-calendar-api/internal/database"
)

// fallbackBoundaryHour is the local hour used as the day boundary when
// sunset cannot be computed.
const fallbackBoundaryHour = 18

// Location is a resolved observer position.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DayBoundary says which civil date "now" belongs to for lunar purposes.
type DayBoundary struct {
	// Date is the civil date to resolve.
	Date time.Time `json:"date"`

	// Boundary is the instant today's lunar day changed or will change.
	Boundary time.Time `json:"boundary"`

	// Fallback is true when Boundary is the fixed 18:00 local time rather
	// than a computed sunset.
	Fallback bool `json:"fallback"`
}

// LunarDate applies the sunset day boundary. At or after the local sunset of
// its civil date, now belongs to the next civil date.
//
// A nil loc, or a sunset that cannot be computed (polar day or night), uses
// 18:00 local time instead.
func LunarDate(now time.Time, tz *time.Location, loc *Location) DayBoundary {
	if tz == nil {
		tz = time.UTC
	}
	local := now.In(tz)
	y, m, d := local.Date()
	civil := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	boundary := time.Date(y, m, d, fallbackBoundaryHour, 0, 0, 0, tz)
	fallback := true
	if loc != nil {
		noon := time.Date(y, m, d, 12, 0, 0, 0, tz)
		if sunset, err := astro.Sunset(noon, loc.Latitude, loc.Longitude, tz); err == nil {
			boundary, fallback = sunset, false
		}
	}

	date := civil
	if !local.Before(boundary) {
		date = civil.AddDate(0, 0, 1)
	}
	return DayBoundary{Date: date, Boundary: boundary, Fallback: fallback}
}

// ChooseLocation picks the observer position: the cached device location
// when present, otherwise fallback (which may be nil). A cached location
// older than maxAge is still used but logged as stale.
func ChooseLocation(cached *database.CachedLocation, fallback *Location, maxAge time.Duration, now time.Time, logger *slog.Logger) *Location {
	if cached == nil {
		return fallback
	}
	if logger == nil {
		logger = slog.Default()
	}
	if maxAge > 0 && now.Sub(cached.CachedAt) > maxAge {
		logger.Warn("using stale cached location",
			slog.Time("cached_at", cached.CachedAt),
			slog.Duration("age", now.Sub(cached.CachedAt)),
		)
	}
	return &Location{Latitude: cached.Latitude, Longitude: cached.Longitude}
}
