package calendar

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zapponejosh/lunar-calendar-api/internal/database"
)

// memStore is an in-memory Store.
type memStore struct {
	anchors     map[MonthKey]database.MonthAnchor
	leaps       map[int]database.YearLeapDecision
	projections map[MonthKey]int
	prefs       *database.Preferences
}

func newMemStore() *memStore {
	return &memStore{
		anchors:     map[MonthKey]database.MonthAnchor{},
		leaps:       map[int]database.YearLeapDecision{},
		projections: map[MonthKey]int{},
	}
}

func (s *memStore) ListAnchors(ctx context.Context) ([]database.MonthAnchor, error) {
	out := make([]database.MonthAnchor, 0, len(s.anchors))
	for _, a := range s.anchors {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (s *memStore) UpsertAnchor(ctx context.Context, anchor *database.MonthAnchor) error {
	key := MonthKey{Year: anchor.YearNumber, Month: anchor.MonthNumber}
	for k, a := range s.anchors {
		if k != key && a.StartDate.Equal(anchor.StartDate) {
			return database.ErrDuplicate
		}
	}
	s.anchors[key] = *anchor
	return nil
}

func (s *memStore) ListLeapDecisions(ctx context.Context) ([]database.YearLeapDecision, error) {
	out := make([]database.YearLeapDecision, 0, len(s.leaps))
	for _, d := range s.leaps {
		out = append(out, d)
	}
	return out, nil
}

func (s *memStore) SetLeapDecision(ctx context.Context, decision *database.YearLeapDecision) error {
	s.leaps[decision.YearNumber] = *decision
	return nil
}

func (s *memStore) GetPreferences(ctx context.Context) (*database.Preferences, error) {
	if s.prefs == nil {
		p := database.DefaultPreferences()
		return &p, nil
	}
	return s.prefs, nil
}

func (s *memStore) GetProjectedLength(ctx context.Context, year, month int) (int, error) {
	l, ok := s.projections[MonthKey{Year: year, Month: month}]
	if !ok {
		return 0, database.ErrNotFound
	}
	return l, nil
}

func (s *memStore) SetProjectedLength(ctx context.Context, year, month, length int) error {
	s.projections[MonthKey{Year: year, Month: month}] = length
	return nil
}

func (s *memStore) DeleteProjectedLength(ctx context.Context, year, month int) error {
	delete(s.projections, MonthKey{Year: year, Month: month})
	return nil
}

// anchor seeds an anchor directly, bypassing the engine.
func (s *memStore) anchor(year, month int, start time.Time) {
	s.anchors[MonthKey{Year: year, Month: month}] = database.MonthAnchor{
		YearNumber: year, MonthNumber: month, StartDate: start, Confirmed: true,
	}
}

func (s *memStore) leap(year int, isAviv bool) {
	s.leaps[year] = database.YearLeapDecision{YearNumber: year, IsAviv: &isAviv}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(store Store, strict bool) *Engine {
	return NewEngine(store, Options{Strict: strict}, quietLogger())
}

// dayN is Day N of the test calendar, counted from 2024-01-01.
func dayN(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func civil(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// sqliteStore opens a migrated in-memory database.
func sqliteStore(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.DefaultConfig(":memory:"), quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Migrate(context.Background())
	require.NoError(t, err)
	return db
}

var (
	_ Store = (*memStore)(nil)
	_ Store = (*database.DB)(nil)
	_ Store = (*database.Tx)(nil)
)
