package database

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"
)

// testDB creates a temporary in-memory database for testing.
func testDB(t *testing.T) *DB {
	t.Helper()

	cfg := Config{
		Path:            ":memory:",
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
	}

	// Quiet logger for tests
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))

	db, err := Open(cfg, logger)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	ctx := context.Background()
	if _, err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func boolPtr(b bool) *bool {
	return &b
}

// -----------------------------------------------------------------
// DB tests
// -----------------------------------------------------------------

func TestOpen(t *testing.T) {
	db := testDB(t)

	if err := db.Health(context.Background()); err != nil {
		t.Errorf("Health() error = %v", err)
	}
}

func TestMigrate(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	// Running again should be a no-op
	count, err := db.Migrate(ctx)
	if err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if count != 0 {
		t.Errorf("Migrate() count = %d, want 0 (already applied)", count)
	}
}

// -----------------------------------------------------------------
// Anchor tests
// -----------------------------------------------------------------

func TestUpsertAnchor(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	anchor := &MonthAnchor{YearNumber: 6000, MonthNumber: 1, StartDate: date(2024, 4, 9), Confirmed: true}
	if err := db.UpsertAnchor(ctx, anchor); err != nil {
		t.Fatalf("UpsertAnchor() error = %v", err)
	}

	got, err := db.GetAnchor(ctx, 6000, 1)
	if err != nil {
		t.Fatalf("GetAnchor() error = %v", err)
	}
	if !got.StartDate.Equal(anchor.StartDate) {
		t.Errorf("StartDate = %v, want %v", got.StartDate, anchor.StartDate)
	}
	if !got.Confirmed {
		t.Error("Confirmed = false, want true")
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestUpsertAnchor_ReplacesByKey(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	first := &MonthAnchor{YearNumber: 6000, MonthNumber: 1, StartDate: date(2024, 4, 9), Confirmed: true}
	second := &MonthAnchor{YearNumber: 6000, MonthNumber: 1, StartDate: date(2024, 4, 10), Confirmed: true}

	for _, a := range []*MonthAnchor{first, second} {
		if err := db.UpsertAnchor(ctx, a); err != nil {
			t.Fatalf("UpsertAnchor() error = %v", err)
		}
	}

	anchors, err := db.ListAnchors(ctx)
	if err != nil {
		t.Fatalf("ListAnchors() error = %v", err)
	}
	if len(anchors) != 1 {
		t.Fatalf("got %d anchors, want 1", len(anchors))
	}
	if !anchors[0].StartDate.Equal(second.StartDate) {
		t.Errorf("StartDate = %v, want %v", anchors[0].StartDate, second.StartDate)
	}
}

func TestUpsertAnchor_DuplicateStartDate(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.UpsertAnchor(ctx, &MonthAnchor{YearNumber: 6000, MonthNumber: 1, StartDate: date(2024, 4, 9)}); err != nil {
		t.Fatalf("UpsertAnchor() error = %v", err)
	}

	err := db.UpsertAnchor(ctx, &MonthAnchor{YearNumber: 6000, MonthNumber: 2, StartDate: date(2024, 4, 9)})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("UpsertAnchor() error = %v, want ErrDuplicate", err)
	}
}

func TestUpsertAnchor_MonthOutOfRange(t *testing.T) {
	db := testDB(t)

	err := db.UpsertAnchor(context.Background(), &MonthAnchor{YearNumber: 6000, MonthNumber: 14, StartDate: date(2024, 4, 9)})
	if err == nil {
		t.Error("UpsertAnchor() expected CHECK constraint error for month 14")
	}
}

func TestListAnchors_SortedByStartDate(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	// Inserted out of order on purpose
	anchors := []MonthAnchor{
		{YearNumber: 6000, MonthNumber: 3, StartDate: date(2024, 6, 7)},
		{YearNumber: 6000, MonthNumber: 1, StartDate: date(2024, 4, 9)},
		{YearNumber: 6000, MonthNumber: 2, StartDate: date(2024, 5, 9)},
	}
	for i := range anchors {
		if err := db.UpsertAnchor(ctx, &anchors[i]); err != nil {
			t.Fatalf("UpsertAnchor() error = %v", err)
		}
	}

	got, err := db.ListAnchors(ctx)
	if err != nil {
		t.Fatalf("ListAnchors() error = %v", err)
	}
	for i, want := range []int{1, 2, 3} {
		if got[i].MonthNumber != want {
			t.Errorf("anchor[%d].MonthNumber = %d, want %d", i, got[i].MonthNumber, want)
		}
	}
}

func TestGetAnchor_NotFound(t *testing.T) {
	db := testDB(t)

	_, err := db.GetAnchor(context.Background(), 1, 1)
	if !IsNotFound(err) {
		t.Errorf("GetAnchor() error = %v, want not found", err)
	}
}

// -----------------------------------------------------------------
// Leap decision tests
// -----------------------------------------------------------------

func TestLeapDecision(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if _, err := db.GetLeapDecision(ctx, 6000); !IsNotFound(err) {
		t.Fatalf("GetLeapDecision() error = %v, want not found", err)
	}

	decided := date(2025, 3, 29)
	if err := db.SetLeapDecision(ctx, &YearLeapDecision{YearNumber: 6000, IsAviv: boolPtr(false), DecidedOn: &decided}); err != nil {
		t.Fatalf("SetLeapDecision() error = %v", err)
	}

	got, err := db.GetLeapDecision(ctx, 6000)
	if err != nil {
		t.Fatalf("GetLeapDecision() error = %v", err)
	}
	if got.IsAviv == nil || *got.IsAviv {
		t.Errorf("IsAviv = %v, want false", got.IsAviv)
	}
	if got.DecidedOn == nil || !got.DecidedOn.Equal(decided) {
		t.Errorf("DecidedOn = %v, want %v", got.DecidedOn, decided)
	}

	// Reset to unknown
	if err := db.SetLeapDecision(ctx, &YearLeapDecision{YearNumber: 6000}); err != nil {
		t.Fatalf("SetLeapDecision() error = %v", err)
	}
	got, err = db.GetLeapDecision(ctx, 6000)
	if err != nil {
		t.Fatalf("GetLeapDecision() error = %v", err)
	}
	if got.IsAviv != nil {
		t.Errorf("IsAviv = %v, want nil", *got.IsAviv)
	}
	if got.DecidedOn != nil {
		t.Errorf("DecidedOn = %v, want nil", got.DecidedOn)
	}

	list, err := db.ListLeapDecisions(ctx)
	if err != nil {
		t.Fatalf("ListLeapDecisions() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("got %d decisions, want 1", len(list))
	}
}

// -----------------------------------------------------------------
// Projection cache tests
// -----------------------------------------------------------------

func TestProjectedLength(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if _, err := db.GetProjectedLength(ctx, 6000, 2); !IsNotFound(err) {
		t.Fatalf("GetProjectedLength() error = %v, want not found", err)
	}

	if err := db.SetProjectedLength(ctx, 6000, 2, 29); err != nil {
		t.Fatalf("SetProjectedLength() error = %v", err)
	}
	if err := db.SetProjectedLength(ctx, 6000, 2, 30); err != nil {
		t.Fatalf("SetProjectedLength() overwrite error = %v", err)
	}

	got, err := db.GetProjectedLength(ctx, 6000, 2)
	if err != nil {
		t.Fatalf("GetProjectedLength() error = %v", err)
	}
	if got != 30 {
		t.Errorf("length = %d, want 30", got)
	}

	entries, err := db.ListProjectedLengths(ctx)
	if err != nil {
		t.Fatalf("ListProjectedLengths() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("got %d entries, want 1", len(entries))
	}

	if err := db.DeleteProjectedLength(ctx, 6000, 2); err != nil {
		t.Fatalf("DeleteProjectedLength() error = %v", err)
	}
	if _, err := db.GetProjectedLength(ctx, 6000, 2); !IsNotFound(err) {
		t.Errorf("after delete error = %v, want not found", err)
	}

	// Deleting a missing entry is fine
	if err := db.DeleteProjectedLength(ctx, 6000, 2); err != nil {
		t.Errorf("DeleteProjectedLength() on missing entry error = %v", err)
	}
}

func TestProjectedLength_RejectsInvalidLength(t *testing.T) {
	db := testDB(t)

	if err := db.SetProjectedLength(context.Background(), 6000, 2, 31); err == nil {
		t.Error("SetProjectedLength() expected CHECK constraint error for 31")
	}
}

// -----------------------------------------------------------------
// Singleton tests
// -----------------------------------------------------------------

func TestCachedLocation(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if _, err := db.GetCachedLocation(ctx); !IsNotFound(err) {
		t.Fatalf("GetCachedLocation() error = %v, want not found", err)
	}

	cachedAt := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, lat := range []float64{31.77, 40.71} {
		loc := &CachedLocation{Latitude: lat, Longitude: -74.0, CachedAt: cachedAt}
		if err := db.SaveCachedLocation(ctx, loc); err != nil {
			t.Fatalf("SaveCachedLocation() error = %v", err)
		}
	}

	got, err := db.GetCachedLocation(ctx)
	if err != nil {
		t.Fatalf("GetCachedLocation() error = %v", err)
	}
	if got.Latitude != 40.71 {
		t.Errorf("Latitude = %v, want 40.71", got.Latitude)
	}
	if !got.CachedAt.Equal(cachedAt) {
		t.Errorf("CachedAt = %v, want %v", got.CachedAt, cachedAt)
	}
}

func TestPreferences(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	got, err := db.GetPreferences(ctx)
	if err != nil {
		t.Fatalf("GetPreferences() error = %v", err)
	}
	if got.MonthNamingMode != "numeric" || got.FirstfruitsRule != "after_saturday" {
		t.Errorf("defaults = %+v", got)
	}

	want := &Preferences{
		MonthNamingMode:   "traditional",
		FirstfruitsRule:   "fixed16",
		IncludeHanukkah:   true,
		IncludePurim:      false,
		ProjectExtraMonth: true,
	}
	if err := db.SavePreferences(ctx, want); err != nil {
		t.Fatalf("SavePreferences() error = %v", err)
	}

	got, err = db.GetPreferences(ctx)
	if err != nil {
		t.Fatalf("GetPreferences() error = %v", err)
	}
	if got.MonthNamingMode != want.MonthNamingMode ||
		got.FirstfruitsRule != want.FirstfruitsRule ||
		got.IncludeHanukkah != want.IncludeHanukkah ||
		got.IncludePurim != want.IncludePurim ||
		got.ProjectExtraMonth != want.ProjectExtraMonth {
		t.Errorf("GetPreferences() = %+v, want %+v", got, want)
	}
}

// -----------------------------------------------------------------
// Transaction and stats tests
// -----------------------------------------------------------------

func TestWithTx_Rollback(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	sentinel := errors.New("boom")
	err := db.WithTx(ctx, func(tx *Tx) error {
		if err := tx.UpsertAnchor(ctx, &MonthAnchor{YearNumber: 6000, MonthNumber: 1, StartDate: date(2024, 4, 9)}); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("WithTx() error = %v, want sentinel", err)
	}

	anchors, err := db.ListAnchors(ctx)
	if err != nil {
		t.Fatalf("ListAnchors() error = %v", err)
	}
	if len(anchors) != 0 {
		t.Errorf("got %d anchors after rollback, want 0", len(anchors))
	}
}

func TestGetLedgerStats(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	stats, err := db.GetLedgerStats(ctx)
	if err != nil {
		t.Fatalf("GetLedgerStats() error = %v", err)
	}
	if stats.TotalAnchors != 0 || stats.EarliestStart != nil {
		t.Errorf("empty stats = %+v", stats)
	}

	err = db.WithTx(ctx, func(tx *Tx) error {
		for i, d := range []time.Time{date(2024, 4, 9), date(2024, 5, 9)} {
			if err := tx.UpsertAnchor(ctx, &MonthAnchor{YearNumber: 6000, MonthNumber: i + 1, StartDate: d, Confirmed: true}); err != nil {
				return err
			}
		}
		return tx.SetProjectedLength(ctx, 6000, 2, 29)
	})
	if err != nil {
		t.Fatalf("WithTx() error = %v", err)
	}

	stats, err = db.GetLedgerStats(ctx)
	if err != nil {
		t.Fatalf("GetLedgerStats() error = %v", err)
	}
	if stats.TotalAnchors != 2 {
		t.Errorf("TotalAnchors = %d, want 2", stats.TotalAnchors)
	}
	if stats.Projections != 1 {
		t.Errorf("Projections = %d, want 1", stats.Projections)
	}
	if stats.LatestStart == nil || !stats.LatestStart.Equal(date(2024, 5, 9)) {
		t.Errorf("LatestStart = %v, want 2024-05-09", stats.LatestStart)
	}
}
