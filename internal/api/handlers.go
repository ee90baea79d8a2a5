package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zapponejosh/lunar-calendar-api/internal/astro"
	"github.com/zapponejosh/lunar-calendar-api/internal/calendar"
	"github.com/zapponejosh/lunar-calendar-api/internal/config"
	"github.com/zapponejosh/lunar-calendar-api/internal/database"
	"github.com/zapponejosh/lunar-calendar-api/internal/logger"
)

// maxRangeDays is the longest span GET /api/v1/range resolves in one call.
const maxRangeDays = 90

// Handlers contains all HTTP handlers and their dependencies.
type Handlers struct {
	db     *database.DB
	engine *calendar.Engine
	cfg    *config.Config
	logger *slog.Logger
	now    func() time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *database.DB, cfg *config.Config, logger *slog.Logger) *Handlers {
	engine := calendar.NewEngine(db, calendar.Options{Strict: cfg.LedgerStrict}, logger)
	return &Handlers{
		db:     db,
		engine: engine,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// DayResponse is a resolved day with display names.
type DayResponse struct {
	calendar.ResolvedDay
	MonthName string `json:"month_name"`
	Weekday   string `json:"weekday"`
}

// MonthResponse is a month definition with its display name and last day.
type MonthResponse struct {
	calendar.MonthDefinition
	Name    string    `json:"name"`
	LastDay time.Time `json:"last_day"`
}

// TodayResponse is the lunar date for the current instant.
type TodayResponse struct {
	Date     time.Time          `json:"date"`
	Boundary time.Time          `json:"boundary"`
	Fallback bool               `json:"fallback"`
	Location *calendar.Location `json:"location,omitempty"`
	Day      DayResponse        `json:"day"`
}

// FeastResponse is a feast with the weekday it falls on.
type FeastResponse struct {
	calendar.FeastDay
	Weekday string `json:"weekday"`
}

func dayResponse(day calendar.ResolvedDay, mode calendar.NamingMode) DayResponse {
	return DayResponse{
		ResolvedDay: day,
		MonthName:   calendar.MonthName(mode, day.Month),
		Weekday:     calendar.DayName(day.Date),
	}
}

func monthResponse(m calendar.MonthDefinition, mode calendar.NamingMode) MonthResponse {
	return MonthResponse{
		MonthDefinition: m,
		Name:            calendar.MonthName(mode, m.Month),
		LastDay:         m.Day(m.LengthDays),
	}
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Check database health
	if err := h.db.Health(ctx); err != nil {
		h.logger.Warn("health check failed", slog.Any("error", err))
		WriteError(w, http.StatusServiceUnavailable, "Database unhealthy", "HEALTH_CHECK_FAILED")
		return
	}

	stats, err := h.db.GetLedgerStats(ctx)
	if err != nil {
		h.logger.Warn("health check failed", slog.Any("error", err))
		WriteError(w, http.StatusServiceUnavailable, "Database unhealthy", "HEALTH_CHECK_FAILED")
		return
	}

	WriteSuccess(w, map[string]interface{}{
		"status": "healthy",
		"ledger": stats,
	})
}

// =============================================================================
// Resolution
// =============================================================================

// GetToday handles GET /api/v1/today
func (h *Handlers) GetToday(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.now()

	loc, err := h.observerLocation(ctx, now)
	if err != nil {
		logger.Error(ctx, "failed to load location", err)
		WriteInternalError(w, "Failed to load location")
		return
	}

	settings, err := h.engine.Settings(ctx)
	if err != nil {
		WriteCalendarError(w, h.logger, err, "Failed to load preferences")
		return
	}

	today, err := h.engine.Today(ctx, now, h.cfg.Location(), loc)
	if err != nil {
		WriteCalendarError(w, h.logger, err, "Failed to resolve today")
		return
	}

	WriteSuccess(w, TodayResponse{
		Date:     today.Date,
		Boundary: today.Boundary,
		Fallback: today.Fallback,
		Location: loc,
		Day:      dayResponse(*today.Day, settings.NamingMode),
	})
}

// GetDate handles GET /api/v1/dates/{date}
func (h *Handlers) GetDate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	date, ok := pathDate(w, r, "date")
	if !ok {
		return
	}

	resolver, settings, err := h.engine.Resolver(ctx)
	if err != nil {
		WriteCalendarError(w, h.logger, err, "Failed to load ledger")
		return
	}

	day, err := resolver.ResolveFor(ctx, date)
	if err != nil {
		WriteCalendarError(w, h.logger, err, "Failed to resolve date")
		return
	}

	WriteSuccess(w, dayResponse(*day, settings.NamingMode))
}

// GetRange handles GET /api/v1/range?start=YYYY-MM-DD&end=YYYY-MM-DD
//
// Dates before the first anchor, or beyond the projection ceiling, are left
// out rather than failing the whole range.
func (h *Handlers) GetRange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")
	if startStr == "" || endStr == "" {
		WriteBadRequest(w, "Both start and end query parameters are required")
		return
	}

	start, err := calendar.ParseDate(startStr)
	if err != nil {
		WriteBadRequest(w, fmt.Sprintf("Invalid start date: %s. Use YYYY-MM-DD", startStr))
		return
	}
	end, err := calendar.ParseDate(endStr)
	if err != nil {
		WriteBadRequest(w, fmt.Sprintf("Invalid end date: %s. Use YYYY-MM-DD", endStr))
		return
	}

	if end.Before(start) {
		WriteBadRequest(w, "End date must be on or after start date")
		return
	}
	if end.Sub(start) > maxRangeDays*24*time.Hour {
		WriteBadRequest(w, fmt.Sprintf("Date range cannot exceed %d days", maxRangeDays))
		return
	}

	settings, err := h.engine.Settings(ctx)
	if err != nil {
		WriteCalendarError(w, h.logger, err, "Failed to load preferences")
		return
	}

	days, err := h.engine.ResolveRange(ctx, start, end)
	if err != nil {
		WriteCalendarError(w, h.logger, err, "Failed to resolve range")
		return
	}

	results := make([]DayResponse, 0, len(days))
	for _, day := range days {
		results = append(results, dayResponse(day, settings.NamingMode))
	}

	WriteSuccess(w, map[string]interface{}{
		"start": start,
		"end":   end,
		"count": len(results),
		"days":  results,
	})
}

// GetMonthsForYear handles GET /api/v1/months/{year}
func (h *Handlers) GetMonthsForYear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	year, ok := pathInt(w, r, "year")
	if !ok {
		return
	}

	resolver, settings, err := h.engine.Resolver(ctx)
	if err != nil {
		WriteCalendarError(w, h.logger, err, "Failed to load ledger")
		return
	}

	months, err := resolver.MonthsForYear(ctx, year)
	if err != nil {
		WriteCalendarError(w, h.logger, err, "Failed to resolve months")
		return
	}

	results := make([]MonthResponse, 0, len(months))
	for _, m := range months {
		results = append(results, monthResponse(m, settings.NamingMode))
	}

	WriteSuccess(w, map[string]interface{}{
		"year":   year,
		"months": results,
	})
}

// GetMonth handles GET /api/v1/months/{year}/{month}
func (h *Handlers) GetMonth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	year, ok := pathInt(w, r, "year")
	if !ok {
		return
	}
	month, ok := pathInt(w, r, "month")
	if !ok {
		return
	}
	if month < 1 || month > 13 {
		WriteBadRequest(w, "Month must be between 1 and 13")
		return
	}

	resolver, settings, err := h.engine.Resolver(ctx)
	if err != nil {
		WriteCalendarError(w, h.logger, err, "Failed to load ledger")
		return
	}

	m, err := resolver.GetMonth(ctx, year, month)
	if err != nil {
		WriteCalendarError(w, h.logger, err, "Failed to resolve month")
		return
	}

	WriteSuccess(w, monthResponse(*m, settings.NamingMode))
}

// GetFeasts handles GET /api/v1/feasts/{year}
//
// Feasts counted from another feast (Shavuot, weekday-rule Firstfruits,
// Hanukkah days past month 9) carry no lunar day of their own; those are
// filled in by resolving their solar date.
func (h *Handlers) GetFeasts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	year, ok := pathInt(w, r, "year")
	if !ok {
		return
	}

	feasts, err := h.engine.FeastDaysForYear(ctx, year)
	if err != nil {
		WriteCalendarError(w, h.logger, err, "Failed to compute feasts")
		return
	}

	resolver, _, err := h.engine.Resolver(ctx)
	if err != nil {
		WriteCalendarError(w, h.logger, err, "Failed to load ledger")
		return
	}

	results := make([]FeastResponse, 0, len(feasts))
	for _, f := range feasts {
		if f.DayOfMonth == 0 {
			day, err := resolver.ResolveFor(ctx, f.Date)
			switch {
			case err == nil:
				f.Month = day.Month
				f.DayOfMonth = day.DayOfMonth
			case !calendar.IsNotFound(err):
				WriteCalendarError(w, h.logger, err, "Failed to compute feasts")
				return
			}
		}
		results = append(results, FeastResponse{FeastDay: f, Weekday: calendar.DayName(f.Date)})
	}

	WriteSuccess(w, map[string]interface{}{
		"year":   year,
		"feasts": results,
	})
}

// =============================================================================
// Ledger
// =============================================================================

// ListAnchors handles GET /api/v1/anchors
func (h *Handlers) ListAnchors(w http.ResponseWriter, r *http.Request) {
	anchors, err := h.db.ListAnchors(r.Context())
	if err != nil {
		h.logger.Error("failed to list anchors", slog.Any("error", err))
		WriteInternalError(w, "Failed to retrieve anchors")
		return
	}

	WriteSuccess(w, map[string]interface{}{
		"count":   len(anchors),
		"anchors": anchors,
	})
}

// GetCoverage handles GET /api/v1/coverage
func (h *Handlers) GetCoverage(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.Coverage(r.Context())
	if err != nil {
		WriteCalendarError(w, h.logger, err, "Failed to build coverage report")
		return
	}

	WriteSuccess(w, map[string]interface{}{
		"healthy": report.Healthy(),
		"report":  report,
	})
}

// SetAnchor handles PUT /api/v1/anchors
func (h *Handlers) SetAnchor(w http.ResponseWriter, r *http.Request) {
	var req SetAnchorRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	date, err := calendar.ParseDate(req.StartDate)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	anchor, err := h.engine.SetAnchor(r.Context(), req.Year, req.Month, date)
	if err != nil {
		WriteCalendarError(w, h.logger, err, "Failed to save anchor")
		return
	}

	WriteSuccess(w, anchor)
}

// StartNextMonth handles POST /api/v1/anchors/next
func (h *Handlers) StartNextMonth(w http.ResponseWriter, r *http.Request) {
	var req NextAnchorRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	date, err := calendar.ParseDate(req.StartDate)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	anchor, err := h.engine.StartNextMonthOn(r.Context(), date)
	if err != nil {
		WriteCalendarError(w, h.logger, err, "Failed to start next month")
		return
	}

	WriteJSON(w, http.StatusCreated, Response{Success: true, Data: anchor})
}

// SetLeapDecision handles PUT /api/v1/years/{year}/leap
func (h *Handlers) SetLeapDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	year, ok := pathInt(w, r, "year")
	if !ok {
		return
	}

	var req LeapRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	var decidedOn *time.Time
	if req.DecidedOn != "" {
		d, err := calendar.ParseDate(req.DecidedOn)
		if err != nil {
			WriteBadRequest(w, err.Error())
			return
		}
		decidedOn = &d
	}

	if err := h.engine.SetLeapDecision(ctx, year, req.IsAviv, decidedOn); err != nil {
		WriteCalendarError(w, h.logger, err, "Failed to save leap decision")
		return
	}

	decision, err := h.db.GetLeapDecision(ctx, year)
	if err != nil {
		h.logger.Error("failed to read back leap decision", slog.Any("error", err))
		WriteInternalError(w, "Failed to save leap decision")
		return
	}

	WriteSuccess(w, map[string]interface{}{
		"decision": decision,
		"status":   calendar.LeapFromRecord(decision).String(),
	})
}

// SetProjection handles PUT /api/v1/projections
func (h *Handlers) SetProjection(w http.ResponseWriter, r *http.Request) {
	var req ProjectionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.engine.SetProjectedLength(r.Context(), req.Year, req.Month, req.LengthDays); err != nil {
		WriteCalendarError(w, h.logger, err, "Failed to save projection")
		return
	}

	WriteSuccess(w, req)
}

// =============================================================================
// Settings
// =============================================================================

// SetLocation handles PUT /api/v1/location
func (h *Handlers) SetLocation(w http.ResponseWriter, r *http.Request) {
	var req LocationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	loc := &database.CachedLocation{
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		CachedAt:  h.now().UTC().Truncate(time.Second),
	}
	if err := h.db.SaveCachedLocation(r.Context(), loc); err != nil {
		h.logger.Error("failed to save location", slog.Any("error", err))
		WriteInternalError(w, "Failed to save location")
		return
	}

	WriteSuccess(w, loc)
}

// GetPreferences handles GET /api/v1/preferences
func (h *Handlers) GetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.db.GetPreferences(r.Context())
	if err != nil {
		h.logger.Error("failed to get preferences", slog.Any("error", err))
		WriteInternalError(w, "Failed to retrieve preferences")
		return
	}

	WriteSuccess(w, prefs)
}

// SetPreferences handles PUT /api/v1/preferences
func (h *Handlers) SetPreferences(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req PreferencesRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	prefs := &database.Preferences{
		MonthNamingMode:   req.MonthNamingMode,
		FirstfruitsRule:   req.FirstfruitsRule,
		IncludeHanukkah:   req.IncludeHanukkah,
		IncludePurim:      req.IncludePurim,
		ProjectExtraMonth: req.ProjectExtraMonth,
	}
	if err := h.db.SavePreferences(ctx, prefs); err != nil {
		h.logger.Error("failed to save preferences", slog.Any("error", err))
		WriteInternalError(w, "Failed to save preferences")
		return
	}

	saved, err := h.db.GetPreferences(ctx)
	if err != nil {
		h.logger.Error("failed to get preferences", slog.Any("error", err))
		WriteInternalError(w, "Failed to retrieve preferences")
		return
	}

	WriteSuccess(w, saved)
}

// =============================================================================
// Astronomy
// =============================================================================

// GetSunset handles GET /api/v1/astro/sunset?date&lat&lon
//
// Missing coordinates fall back to the cached or configured location.
func (h *Handlers) GetSunset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tz := h.cfg.Location()

	date, ok := queryDate(w, r, h.now().In(tz))
	if !ok {
		return
	}

	lat, err := queryFloat(r, "lat")
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}
	lon, err := queryFloat(r, "lon")
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	if lat == nil || lon == nil {
		loc, err := h.observerLocation(ctx, h.now())
		if err != nil {
			logger.Error(ctx, "failed to load location", err)
			WriteInternalError(w, "Failed to load location")
			return
		}
		if loc == nil {
			WriteBadRequest(w, "lat and lon are required when no location is cached or configured")
			return
		}
		lat, lon = &loc.Latitude, &loc.Longitude
	}
	if *lat < -90 || *lat > 90 || *lon < -180 || *lon > 180 {
		WriteBadRequest(w, "lat must be within ±90 and lon within ±180")
		return
	}

	noon := time.Date(date.Year(), date.Month(), date.Day(), 12, 0, 0, 0, tz)
	sunset, err := astro.Sunset(noon, *lat, *lon, tz)
	if err != nil {
		WriteCalendarError(w, h.logger, err, "Failed to compute sunset")
		return
	}

	WriteSuccess(w, map[string]interface{}{
		"date":      date,
		"latitude":  *lat,
		"longitude": *lon,
		"timezone":  tz.String(),
		"sunset":    sunset,
	})
}

// GetConjunction handles GET /api/v1/astro/conjunction?date&lat
func (h *Handlers) GetConjunction(w http.ResponseWriter, r *http.Request) {
	date, ok := queryDate(w, r, h.now())
	if !ok {
		return
	}

	lat, err := queryFloat(r, "lat")
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}
	latitude := 0.0
	if lat != nil {
		latitude = *lat
	}

	c, err := astro.MostRecentConjunction(date)
	if err != nil {
		WriteCalendarError(w, h.logger, err, "Failed to compute conjunction")
		return
	}

	WriteSuccess(w, map[string]interface{}{
		"target":       date,
		"lunation":     c.K,
		"jde":          c.JDE,
		"conjunction":  c.Date,
		"first_sliver": astro.FirstSliverVisibility(c.Date, latitude),
	})
}

// =============================================================================
// Helper Functions
// =============================================================================

// observerLocation picks the cached location, else the configured default.
// It returns nil when neither exists.
func (h *Handlers) observerLocation(ctx context.Context, now time.Time) (*calendar.Location, error) {
	cached, err := h.db.GetCachedLocation(ctx)
	if err != nil && !database.IsNotFound(err) {
		return nil, err
	}

	var fallback *calendar.Location
	if h.cfg.HasDefaultLocation() {
		fallback = &calendar.Location{
			Latitude:  *h.cfg.DefaultLatitude,
			Longitude: *h.cfg.DefaultLongitude,
		}
	}

	return calendar.ChooseLocation(cached, fallback, h.cfg.LocationMaxAge, now, h.logger), nil
}

// pathDate parses a YYYY-MM-DD path parameter, writing a 400 on failure.
func pathDate(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		WriteBadRequest(w, fmt.Sprintf("%s parameter is required", name))
		return time.Time{}, false
	}
	date, err := calendar.ParseDate(raw)
	if err != nil {
		WriteBadRequest(w, fmt.Sprintf("Invalid date format: %s. Use YYYY-MM-DD", raw))
		return time.Time{}, false
	}
	return date, true
}

// pathInt parses an integer path parameter, writing a 400 on failure.
func pathInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := chi.URLParam(r, name)
	n, err := strconv.Atoi(raw)
	if err != nil {
		WriteBadRequest(w, fmt.Sprintf("Invalid %s: %q", name, raw))
		return 0, false
	}
	return n, true
}

// queryDate reads the optional date query parameter, defaulting to the
// civil date of fallback.
func queryDate(w http.ResponseWriter, r *http.Request, fallback time.Time) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return calendar.CivilDate(fallback), true
	}
	date, err := calendar.ParseDate(raw)
	if err != nil {
		WriteBadRequest(w, fmt.Sprintf("Invalid date format: %s. Use YYYY-MM-DD", raw))
		return time.Time{}, false
	}
	return date, true
}

// queryFloat reads an optional float query parameter.
func queryFloat(r *http.Request, name string) (*float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number, got %q", name, raw)
	}
	return &f, nil
}
