package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapponejosh/lunar-calendar-api/internal/config"
	"github.com/zapponejosh/lunar-calendar-api/internal/database"
	"github.com/zapponejosh/lunar-calendar-api/internal/logger"
)

// =============================================================================
// TEST SETUP HELPERS
// =============================================================================

// testEnv sets up a complete test environment with database, config, and router
type testEnv struct {
	db       *database.DB
	cfg      *config.Config
	handlers *Handlers
	router   http.Handler
	apiKey   string
}

// setupTest creates a fresh test environment
func setupTest(t *testing.T) *testEnv {
	t.Helper()

	log := logger.Discard()

	db, err := database.Open(database.DefaultConfig(":memory:"), log)
	require.NoError(t, err, "open test database")
	t.Cleanup(func() { db.Close() })

	_, err = db.Migrate(context.Background())
	require.NoError(t, err, "migrate test database")

	apiKey := "test-key-32-characters-minimum-length"
	cfg := &config.Config{
		Port:           8080,
		Env:            config.EnvDevelopment,
		DatabasePath:   ":memory:",
		APIKey:         apiKey,
		LogLevel:       "error",
		LogFormat:      "text",
		Timezone:       "UTC",
		LedgerStrict:   true,
		LocationMaxAge: 720 * time.Hour,
	}

	handlers := NewHandlers(db, cfg, log)
	handlers.now = func() time.Time { return time.Date(2024, 4, 9, 19, 0, 0, 0, time.UTC) }

	return &testEnv{
		db:       db,
		cfg:      cfg,
		handlers: handlers,
		router:   SetupRoutes(handlers, cfg, log),
		apiKey:   apiKey,
	}
}

// envelope mirrors Response with the payload left raw.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *ErrorInfo      `json:"error"`
}

// do sends a request through the full router and decodes the envelope.
func (env *testEnv) do(t *testing.T, method, path string, body interface{}, authed bool) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		require.NoError(t, err)
		bodyReader = bytes.NewReader(jsonData)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("X-API-Key", env.apiKey)
	}

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	var resp envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), "body: %s", rec.Body.String())
	return rec, resp
}

// setAnchor records an anchor through the API.
func (env *testEnv) setAnchor(t *testing.T, year, month int, start string) {
	t.Helper()
	rec, resp := env.do(t, http.MethodPut, "/api/v1/anchors", map[string]interface{}{
		"year": year, "month": month, "start_date": start,
	}, true)
	require.Equal(t, http.StatusOK, rec.Code, "set anchor: %+v", resp.Error)
}

func decodeData(t *testing.T, resp envelope, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

// =============================================================================
// TESTS
// =============================================================================

func TestHealthCheck(t *testing.T) {
	env := setupTest(t)

	rec, resp := env.do(t, http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	env := setupTest(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestUnknownRoute(t *testing.T) {
	env := setupTest(t)

	rec, resp := env.do(t, http.MethodGet, "/api/v1/nope", nil, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestGetDate_EmptyLedger(t *testing.T) {
	env := setupTest(t)

	rec, resp := env.do(t, http.MethodGet, "/api/v1/dates/2024-04-10", nil, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestGetDate_InvalidDate(t *testing.T) {
	env := setupTest(t)

	rec, resp := env.do(t, http.MethodGet, "/api/v1/dates/2024-13-40", nil, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BAD_REQUEST", resp.Error.Code)
}

func TestSetAnchor_RequiresAPIKey(t *testing.T) {
	env := setupTest(t)

	body := map[string]interface{}{"year": 1, "month": 1, "start_date": "2024-04-09"}

	rec, resp := env.do(t, http.MethodPut, "/api/v1/anchors", body, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", resp.Error.Code)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/anchors", nil)
	req.Header.Set("X-API-Key", "wrong")
	wrong := httptest.NewRecorder()
	env.router.ServeHTTP(wrong, req)
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
}

func TestSetAnchorAndResolve(t *testing.T) {
	env := setupTest(t)
	env.setAnchor(t, 1, 1, "2024-04-09")

	rec, resp := env.do(t, http.MethodGet, "/api/v1/dates/2024-04-10", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)

	var day DayResponse
	decodeData(t, resp, &day)
	assert.Equal(t, 1, day.Year)
	assert.Equal(t, 1, day.Month)
	assert.Equal(t, 2, day.DayOfMonth)
	assert.Equal(t, "projected", string(day.Status))
	assert.True(t, day.StartFixed)
	assert.Equal(t, "Month 1", day.MonthName)
	assert.Equal(t, "Wednesday", day.Weekday)

	rec, resp = env.do(t, http.MethodGet, "/api/v1/anchors", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Count   int                    `json:"count"`
		Anchors []database.MonthAnchor `json:"anchors"`
	}
	decodeData(t, resp, &list)
	assert.Equal(t, 1, list.Count)
}

func TestSetAnchor_Validation(t *testing.T) {
	env := setupTest(t)

	tests := []struct {
		name string
		body interface{}
	}{
		{"month too large", map[string]interface{}{"year": 1, "month": 14, "start_date": "2024-04-09"}},
		{"month missing", map[string]interface{}{"year": 1, "start_date": "2024-04-09"}},
		{"bad date", map[string]interface{}{"year": 1, "month": 1, "start_date": "04/09/2024"}},
		{"unknown field", map[string]interface{}{"year": 1, "month": 1, "start_date": "2024-04-09", "extra": true}},
		{"negative year", map[string]interface{}{"year": -1, "month": 1, "start_date": "2024-04-09"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := env.do(t, http.MethodPut, "/api/v1/anchors", tt.body, true)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "BAD_REQUEST", resp.Error.Code)
		})
	}
}

func TestSetAnchor_DuplicateStartDate(t *testing.T) {
	env := setupTest(t)
	env.setAnchor(t, 1, 1, "2024-04-09")

	rec, resp := env.do(t, http.MethodPut, "/api/v1/anchors", map[string]interface{}{
		"year": 1, "month": 2, "start_date": "2024-04-09",
	}, true)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUPLICATE", resp.Error.Code)
}

func TestStartNextMonth(t *testing.T) {
	env := setupTest(t)
	env.setAnchor(t, 1, 1, "2024-04-09")

	rec, resp := env.do(t, http.MethodPost, "/api/v1/anchors/next", map[string]string{
		"start_date": "2024-05-08",
	}, true)
	require.Equal(t, http.StatusCreated, rec.Code, "%+v", resp.Error)

	var anchor database.MonthAnchor
	decodeData(t, resp, &anchor)
	assert.Equal(t, 1, anchor.YearNumber)
	assert.Equal(t, 2, anchor.MonthNumber)

	rec, resp = env.do(t, http.MethodGet, "/api/v1/months/1/1", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	var month MonthResponse
	decodeData(t, resp, &month)
	assert.Equal(t, 29, month.LengthDays)
	assert.Equal(t, "confirmed", string(month.Status))
	assert.Equal(t, time.Date(2024, 5, 7, 0, 0, 0, 0, time.UTC), month.LastDay)
}

func TestMalformedLedger(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()

	// Written straight to the store: sixty days apart.
	require.NoError(t, env.db.UpsertAnchor(ctx, &database.MonthAnchor{
		YearNumber: 1, MonthNumber: 1, StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Confirmed: true,
	}))
	require.NoError(t, env.db.UpsertAnchor(ctx, &database.MonthAnchor{
		YearNumber: 1, MonthNumber: 2, StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Confirmed: true,
	}))

	rec, resp := env.do(t, http.MethodGet, "/api/v1/dates/2024-01-15", nil, false)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "MALFORMED_LEDGER", resp.Error.Code)
}

func TestGetRange(t *testing.T) {
	env := setupTest(t)
	env.setAnchor(t, 1, 1, "2024-04-09")

	// The first two days precede the anchor and are skipped.
	rec, resp := env.do(t, http.MethodGet, "/api/v1/range?start=2024-04-07&end=2024-04-13", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count int           `json:"count"`
		Days  []DayResponse `json:"days"`
	}
	decodeData(t, resp, &body)
	assert.Equal(t, 5, body.Count)
	require.Len(t, body.Days, 5)
	assert.Equal(t, 1, body.Days[0].DayOfMonth)
	assert.Equal(t, 5, body.Days[4].DayOfMonth)
}

func TestGetRange_Validation(t *testing.T) {
	env := setupTest(t)

	paths := []string{
		"/api/v1/range",
		"/api/v1/range?start=2024-04-07",
		"/api/v1/range?start=2024-04-07&end=bogus",
		"/api/v1/range?start=2024-04-07&end=2024-04-01",
		"/api/v1/range?start=2024-01-01&end=2024-06-01",
	}
	for _, path := range paths {
		rec, _ := env.do(t, http.MethodGet, path, nil, false)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestGetMonthsForYear(t *testing.T) {
	env := setupTest(t)
	env.setAnchor(t, 1, 1, "2024-04-09")

	rec, resp := env.do(t, http.MethodGet, "/api/v1/months/1", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Year   int             `json:"year"`
		Months []MonthResponse `json:"months"`
	}
	decodeData(t, resp, &body)
	assert.Equal(t, 1, body.Year)
	// Month 13 is unknown until the leap decision is made.
	assert.Len(t, body.Months, 12)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/months/1/14", nil, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/months/x/1", nil, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreferences_NamingMode(t *testing.T) {
	env := setupTest(t)
	env.setAnchor(t, 1, 1, "2024-04-09")

	rec, resp := env.do(t, http.MethodGet, "/api/v1/preferences", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var prefs database.Preferences
	decodeData(t, resp, &prefs)
	assert.Equal(t, "numeric", prefs.MonthNamingMode)

	rec, _ = env.do(t, http.MethodPut, "/api/v1/preferences", map[string]interface{}{
		"month_naming_mode": "traditional",
		"firstfruits_rule":  "fixed16",
	}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp = env.do(t, http.MethodGet, "/api/v1/months/1/1", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	var month MonthResponse
	decodeData(t, resp, &month)
	assert.Equal(t, "Aviv", month.Name)

	rec, resp = env.do(t, http.MethodPut, "/api/v1/preferences", map[string]interface{}{
		"month_naming_mode": "roman",
		"firstfruits_rule":  "fixed16",
	}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Error.Message, "month_naming_mode")
}

func TestGetFeasts_BackCalculatesLunarDay(t *testing.T) {
	env := setupTest(t)
	env.setAnchor(t, 1, 1, "2024-04-09")

	rec, resp := env.do(t, http.MethodGet, "/api/v1/feasts/1", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Feasts []FeastResponse `json:"feasts"`
	}
	decodeData(t, resp, &body)
	require.Len(t, body.Feasts, 9)

	var shavuot *FeastResponse
	for i := range body.Feasts {
		if body.Feasts[i].Title == "Shavuot" {
			shavuot = &body.Feasts[i]
		}
	}
	require.NotNil(t, shavuot)
	// Months 1 and 2 are projected at 30 and 29 days, so month 3 opens
	// on 2024-06-07.
	assert.Equal(t, time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC), shavuot.Date)
	assert.Equal(t, 3, shavuot.Month)
	assert.Equal(t, 10, shavuot.DayOfMonth)
	assert.Equal(t, "Sunday", shavuot.Weekday)
}

func TestSetLeapDecision(t *testing.T) {
	env := setupTest(t)
	env.setAnchor(t, 1, 12, "2024-03-10")

	rec, resp := env.do(t, http.MethodPut, "/api/v1/years/1/leap", map[string]interface{}{
		"is_aviv":    false,
		"decided_on": "2024-04-07",
	}, true)
	require.Equal(t, http.StatusOK, rec.Code, "%+v", resp.Error)

	var body struct {
		Status string `json:"status"`
	}
	decodeData(t, resp, &body)
	assert.Equal(t, "not_aviv", body.Status)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/months/1/13", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp = env.do(t, http.MethodPut, "/api/v1/years/1/leap", map[string]interface{}{"is_aviv": nil}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, resp, &body)
	assert.Equal(t, "unknown", body.Status)
}

func TestSetProjection(t *testing.T) {
	env := setupTest(t)
	env.setAnchor(t, 1, 1, "2024-04-09")

	rec, _ := env.do(t, http.MethodPut, "/api/v1/projections", map[string]int{
		"year": 1, "month": 1, "length_days": 29,
	}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := env.do(t, http.MethodGet, "/api/v1/months/1/1", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	var month MonthResponse
	decodeData(t, resp, &month)
	assert.Equal(t, 29, month.LengthDays)
	assert.Equal(t, "projected", string(month.Status))

	rec, _ = env.do(t, http.MethodPut, "/api/v1/projections", map[string]int{
		"year": 1, "month": 1, "length_days": 31,
	}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetToday_FallbackBoundary(t *testing.T) {
	env := setupTest(t)
	env.setAnchor(t, 1, 1, "2024-04-09")

	// 19:00 UTC with no location is past the 18:00 fallback.
	rec, resp := env.do(t, http.MethodGet, "/api/v1/today", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)

	var today TodayResponse
	decodeData(t, resp, &today)
	assert.True(t, today.Fallback)
	assert.Nil(t, today.Location)
	assert.Equal(t, time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC), today.Date)
	assert.Equal(t, 2, today.Day.DayOfMonth)
}

func TestSetLocation_UsedForSunset(t *testing.T) {
	env := setupTest(t)

	rec, _ := env.do(t, http.MethodGet, "/api/v1/astro/sunset?date=2024-03-20", nil, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodPut, "/api/v1/location", map[string]float64{
		"latitude": 31.7683, "longitude": 35.2137,
	}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := env.do(t, http.MethodGet, "/api/v1/astro/sunset?date=2024-03-20", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Latitude float64   `json:"latitude"`
		Sunset   time.Time `json:"sunset"`
	}
	decodeData(t, resp, &body)
	assert.Equal(t, 31.7683, body.Latitude)
	// Jerusalem equinox sunset is around 15:50 UTC.
	lo := time.Date(2024, 3, 20, 15, 30, 0, 0, time.UTC)
	hi := time.Date(2024, 3, 20, 16, 15, 0, 0, time.UTC)
	assert.True(t, body.Sunset.After(lo) && body.Sunset.Before(hi), "sunset %s", body.Sunset)

	rec, _ = env.do(t, http.MethodPut, "/api/v1/location", map[string]float64{
		"latitude": 91, "longitude": 0,
	}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSunset_Polar(t *testing.T) {
	env := setupTest(t)

	rec, resp := env.do(t, http.MethodGet, "/api/v1/astro/sunset?date=2024-06-21&lat=75&lon=25", nil, false)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "CALCULATION_FAILED", resp.Error.Code)
}

func TestGetConjunction(t *testing.T) {
	env := setupTest(t)

	rec, resp := env.do(t, http.MethodGet, "/api/v1/astro/conjunction?date=2024-04-10&lat=31.7", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Conjunction time.Time `json:"conjunction"`
		FirstSliver time.Time `json:"first_sliver"`
	}
	decodeData(t, resp, &body)
	// New moon of 2024-04-08 18:21 UTC.
	assert.Equal(t, time.Date(2024, 4, 8, 0, 0, 0, 0, time.UTC), body.Conjunction)
	assert.True(t, body.FirstSliver.After(body.Conjunction))
}

func TestGetCoverage(t *testing.T) {
	env := setupTest(t)
	env.setAnchor(t, 1, 1, "2024-04-09")
	env.setAnchor(t, 1, 2, "2024-05-08")

	rec, resp := env.do(t, http.MethodGet, "/api/v1/coverage", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Healthy bool `json:"healthy"`
		Report  struct {
			TotalAnchors    int `json:"total_anchors"`
			ConfirmedMonths int `json:"confirmed_months"`
		} `json:"report"`
	}
	decodeData(t, resp, &body)
	assert.True(t, body.Healthy)
	assert.Equal(t, 2, body.Report.TotalAnchors)
	assert.Equal(t, 1, body.Report.ConfirmedMonths)
}
