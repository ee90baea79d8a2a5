package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zapponejosh/lunar-calendar-api/internal/database"
)

// Store is what the engine needs from persistence.
// This allows us to use either *database.DB or *database.Tx.
type Store interface {
	ProjectionCache
	ListAnchors(ctx context.Context) ([]database.MonthAnchor, error)
	UpsertAnchor(ctx context.Context, anchor *database.MonthAnchor) error
	ListLeapDecisions(ctx context.Context) ([]database.YearLeapDecision, error)
	SetLeapDecision(ctx context.Context, decision *database.YearLeapDecision) error
	GetPreferences(ctx context.Context) (*database.Preferences, error)
}

// Options configure an Engine.
type Options struct {
	// Strict reports malformed anchor gaps instead of projecting over them.
	Strict bool
}

// Engine is the entry point collaborators call. Every call reads a fresh
// view of the ledger, so there is no state to invalidate between calls.
type Engine struct {
	store     Store
	predictor *Predictor
	opts      Options
	logger    *slog.Logger
}

// NewEngine creates an engine over store.
func NewEngine(store Store, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:     store,
		predictor: NewPredictor(store, logger),
		opts:      opts,
		logger:    logger,
	}
}

// Settings returns the user's preferences with typed fields.
type Settings struct {
	NamingMode        NamingMode
	Feasts            FeastOptions
	ProjectExtraMonth bool
}

// SettingsFrom converts stored preferences, replacing unknown values with
// defaults.
func SettingsFrom(p *database.Preferences) Settings {
	defaults := database.DefaultPreferences()
	if p == nil {
		p = &defaults
	}

	s := Settings{
		NamingMode: NamingMode(p.MonthNamingMode),
		Feasts: FeastOptions{
			FirstfruitsRule: FirstfruitsRule(p.FirstfruitsRule),
			IncludeHanukkah: p.IncludeHanukkah,
			IncludePurim:    p.IncludePurim,
		},
		ProjectExtraMonth: p.ProjectExtraMonth,
	}
	if !s.NamingMode.Valid() {
		s.NamingMode = NamingMode(defaults.MonthNamingMode)
	}
	if !s.Feasts.FirstfruitsRule.Valid() {
		s.Feasts.FirstfruitsRule = FirstfruitsRule(defaults.FirstfruitsRule)
	}
	return s
}

// Settings loads the current preferences.
func (e *Engine) Settings(ctx context.Context) (Settings, error) {
	prefs, err := e.store.GetPreferences(ctx)
	if err != nil {
		return Settings{}, fmt.Errorf("load preferences: %w", err)
	}
	return SettingsFrom(prefs), nil
}

// Ledger loads the current anchors and leap decisions.
func (e *Engine) Ledger(ctx context.Context) (*Ledger, error) {
	anchors, err := e.store.ListAnchors(ctx)
	if err != nil {
		return nil, fmt.Errorf("load anchors: %w", err)
	}
	decisions, err := e.store.ListLeapDecisions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load leap decisions: %w", err)
	}
	return NewLedger(anchors, decisions), nil
}

// Resolver loads a ledger view and returns a resolver over it.
func (e *Engine) Resolver(ctx context.Context) (*Resolver, Settings, error) {
	settings, err := e.Settings(ctx)
	if err != nil {
		return nil, Settings{}, err
	}
	ledger, err := e.Ledger(ctx)
	if err != nil {
		return nil, Settings{}, err
	}
	r := NewResolver(ledger, e.predictor, ResolverOptions{
		Strict:            e.opts.Strict,
		ProjectExtraMonth: settings.ProjectExtraMonth,
	}, e.logger)
	return r, settings, nil
}

// ResolveFor returns the lunar date of a civil date.
func (e *Engine) ResolveFor(ctx context.Context, date time.Time) (*ResolvedDay, error) {
	r, _, err := e.Resolver(ctx)
	if err != nil {
		return nil, err
	}
	return r.ResolveFor(ctx, date)
}

// ResolveRange resolves each civil date from start to end inclusive on one
// ledger view. Dates before the first anchor are skipped.
func (e *Engine) ResolveRange(ctx context.Context, start, end time.Time) ([]ResolvedDay, error) {
	r, _, err := e.Resolver(ctx)
	if err != nil {
		return nil, err
	}

	days := []ResolvedDay{}
	for d := CivilDate(start); !d.After(CivilDate(end)); d = d.AddDate(0, 0, 1) {
		day, err := r.ResolveFor(ctx, d)
		if IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		days = append(days, *day)
	}
	return days, nil
}

// GetMonth returns the definition of a lunar month.
func (e *Engine) GetMonth(ctx context.Context, year, month int) (*MonthDefinition, error) {
	r, _, err := e.Resolver(ctx)
	if err != nil {
		return nil, err
	}
	return r.GetMonth(ctx, year, month)
}

// MonthsForYear returns the resolvable months of a lunar year.
func (e *Engine) MonthsForYear(ctx context.Context, year int) ([]MonthDefinition, error) {
	r, _, err := e.Resolver(ctx)
	if err != nil {
		return nil, err
	}
	return r.MonthsForYear(ctx, year)
}

// FeastDaysForYear derives the year's observances. Months that cannot be
// resolved contribute nothing.
func (e *Engine) FeastDaysForYear(ctx context.Context, year int) ([]FeastDay, error) {
	r, settings, err := e.Resolver(ctx)
	if err != nil {
		return nil, err
	}

	var months YearMonths
	for _, slot := range []struct {
		month int
		dst   **MonthDefinition
	}{
		{1, &months.Month1},
		{7, &months.Month7},
		{9, &months.Month9},
		{12, &months.Month12},
	} {
		m, err := r.GetMonth(ctx, year, slot.month)
		if IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		*slot.dst = m
	}

	return FeastDays(year, months, settings.Feasts), nil
}

// SetAnchor confirms that (year, month) began on date.
//
// The month that ended the day before date becomes confirmed, so its cache
// entry is dropped. When the new anchor is the latest one, projections are
// cascaded forward from it seeded by that confirmed length.
func (e *Engine) SetAnchor(ctx context.Context, year, month int, date time.Time) (*database.MonthAnchor, error) {
	if month < 1 || month > 13 {
		return nil, fmt.Errorf("%w: month %d out of range 1-13", ErrInvalidAnchor, month)
	}
	if date.IsZero() {
		return nil, fmt.Errorf("%w: missing start date", ErrInvalidAnchor)
	}
	date = CivilDate(date)
	key := MonthKey{Year: year, Month: month}

	before, _, err := e.Resolver(ctx)
	if err != nil {
		return nil, err
	}
	if owner, ok := before.Ledger().AnchorOn(date); ok && anchorKey(owner) != key {
		return nil, fmt.Errorf("%w: %s is already the start of %s",
			ErrDuplicateStartDate, date.Format(dateLayout), anchorKey(owner))
	}

	anchor := &database.MonthAnchor{YearNumber: year, MonthNumber: month, StartDate: date, Confirmed: true}
	if err := e.store.UpsertAnchor(ctx, anchor); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateStartDate, err)
		}
		return nil, fmt.Errorf("save anchor: %w", err)
	}
	e.logger.Info("anchor set",
		slog.String("month", key.String()),
		slog.String("start_date", date.Format(dateLayout)),
	)

	if err := e.predictor.Forget(ctx, key); err != nil {
		return nil, err
	}

	after, _, err := e.Resolver(ctx)
	if err != nil {
		return nil, err
	}

	// The month this anchor closes, read from the ledger that now holds it.
	prev, err := after.ResolveFor(ctx, date.AddDate(0, 0, -1))
	switch {
	case err == nil:
	case IsNotFound(err):
		return anchor, nil
	case errors.Is(err, ErrMalformedLedger):
		e.logger.Warn("previous month unreadable, skipping cascade", slog.Any("error", err))
		return anchor, nil
	default:
		return nil, err
	}
	if prev.Key() == key || prev.Status != StatusConfirmed {
		return anchor, nil
	}
	if err := e.predictor.Forget(ctx, prev.Key()); err != nil {
		return nil, err
	}

	if latest, ok := after.Ledger().Latest(); ok && anchorKey(latest) == key {
		if _, err := e.predictor.CascadeFrom(ctx, key, prev.MonthDays, after.Next, after.Ledger().HasAnchor); err != nil {
			return nil, err
		}
	}

	return anchor, nil
}

// StartNextMonthOn confirms that the month after the one containing
// date - 1 begins on date. The closed month must reach the minimum lunar
// month length, and an anchor already recorded for the next month is never
// moved; SetAnchor does that explicitly.
func (e *Engine) StartNextMonthOn(ctx context.Context, date time.Time) (*database.MonthAnchor, error) {
	date = CivilDate(date)

	r, _, err := e.Resolver(ctx)
	if err != nil {
		return nil, err
	}
	prev, err := r.ResolveFor(ctx, date.AddDate(0, 0, -1))
	if err != nil {
		return nil, err
	}

	next := r.Next(prev.Key())
	if a, ok := r.Ledger().AnchorOn(date); ok {
		next = anchorKey(a)
	} else if prev.DayOfMonth < MinLunarMonth {
		return nil, fmt.Errorf("%w: %s would last only %d days",
			ErrInvalidAnchor, prev.Key(), prev.DayOfMonth)
	}
	if a, ok := r.Ledger().AnchorFor(next); ok && !a.StartDate.Equal(date) {
		return nil, fmt.Errorf("%w: %s already begins on %s",
			ErrInvalidAnchor, next, a.StartDate.Format(dateLayout))
	}
	return e.SetAnchor(ctx, next.Year, next.Month, date)
}

// SetLeapDecision records the aviv judgement for a year. A nil isAviv
// resets it to unknown.
func (e *Engine) SetLeapDecision(ctx context.Context, year int, isAviv *bool, decidedOn *time.Time) error {
	decision := &database.YearLeapDecision{YearNumber: year, IsAviv: isAviv}
	if decidedOn != nil {
		d := CivilDate(*decidedOn)
		decision.DecidedOn = &d
	}
	if err := e.store.SetLeapDecision(ctx, decision); err != nil {
		return fmt.Errorf("save leap decision: %w", err)
	}

	e.logger.Info("leap decision set",
		slog.Int("year", year),
		slog.String("decision", LeapFromRecord(decision).String()),
	)
	return nil
}

// SetProjectedLength overrides the projected length of a month.
func (e *Engine) SetProjectedLength(ctx context.Context, year, month, length int) error {
	if month < 1 || month > 13 {
		return fmt.Errorf("%w: month %d out of range 1-13", ErrInvalidAnchor, month)
	}
	_, err := e.predictor.Predict(ctx, MonthKey{Year: year, Month: month}, nil, &length)
	return err
}

// Today is the lunar date for the current instant.
type Today struct {
	DayBoundary
	Day *ResolvedDay `json:"day"`
}

// Today resolves now under the sunset day boundary.
func (e *Engine) Today(ctx context.Context, now time.Time, tz *time.Location, loc *Location) (*Today, error) {
	boundary := LunarDate(now, tz, loc)
	day, err := e.ResolveFor(ctx, boundary.Date)
	if err != nil {
		return nil, err
	}
	return &Today{DayBoundary: boundary, Day: day}, nil
}
