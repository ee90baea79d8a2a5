package calendar

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/zapponejosh/lunar-calendar-api/internal/database"
)

// Ledger is a point-in-time view of the anchors and leap decisions.
type Ledger struct {
	anchors []database.MonthAnchor // by start date
	byKey   map[MonthKey]int
	byDate  map[time.Time]int
	leaps   map[int]LeapDecision
}

// NewLedger indexes anchors and decisions. Anchors are sorted by start date;
// the input slice is not modified.
func NewLedger(anchors []database.MonthAnchor, decisions []database.YearLeapDecision) *Ledger {
	l := &Ledger{
		anchors: make([]database.MonthAnchor, len(anchors)),
		byKey:   make(map[MonthKey]int, len(anchors)),
		byDate:  make(map[time.Time]int, len(anchors)),
		leaps:   make(map[int]LeapDecision, len(decisions)),
	}
	copy(l.anchors, anchors)
	for i := range l.anchors {
		l.anchors[i].StartDate = CivilDate(l.anchors[i].StartDate)
	}
	sort.SliceStable(l.anchors, func(i, j int) bool {
		return l.anchors[i].StartDate.Before(l.anchors[j].StartDate)
	})
	for i, a := range l.anchors {
		l.byKey[MonthKey{Year: a.YearNumber, Month: a.MonthNumber}] = i
		l.byDate[a.StartDate] = i
	}
	for i := range decisions {
		l.leaps[decisions[i].YearNumber] = LeapFromRecord(&decisions[i])
	}
	return l
}

// Anchors returns the anchors ordered by start date.
func (l *Ledger) Anchors() []database.MonthAnchor {
	return l.anchors
}

// Len returns the number of anchors.
func (l *Ledger) Len() int {
	return len(l.anchors)
}

// Latest returns the anchor with the greatest start date.
func (l *Ledger) Latest() (database.MonthAnchor, bool) {
	if len(l.anchors) == 0 {
		return database.MonthAnchor{}, false
	}
	return l.anchors[len(l.anchors)-1], true
}

// AnchorFor returns the anchor owning key.
func (l *Ledger) AnchorFor(key MonthKey) (database.MonthAnchor, bool) {
	i, ok := l.byKey[key]
	if !ok {
		return database.MonthAnchor{}, false
	}
	return l.anchors[i], true
}

// AnchorOn returns the anchor starting on date.
func (l *Ledger) AnchorOn(date time.Time) (database.MonthAnchor, bool) {
	i, ok := l.byDate[CivilDate(date)]
	if !ok {
		return database.MonthAnchor{}, false
	}
	return l.anchors[i], true
}

// HasAnchor reports whether key owns an anchor.
func (l *Ledger) HasAnchor(key MonthKey) bool {
	_, ok := l.byKey[key]
	return ok
}

// Leap returns the decision for year.
func (l *Ledger) Leap(year int) LeapDecision {
	return l.leaps[year]
}

// latestOnOrBefore returns the last anchor with start date <= date.
func (l *Ledger) latestOnOrBefore(date time.Time) (database.MonthAnchor, bool) {
	i := sort.Search(len(l.anchors), func(i int) bool {
		return l.anchors[i].StartDate.After(date)
	})
	if i == 0 {
		return database.MonthAnchor{}, false
	}
	return l.anchors[i-1], true
}

// nextAfter returns the first anchor with start date > date.
func (l *Ledger) nextAfter(date time.Time) (database.MonthAnchor, bool) {
	i := sort.Search(len(l.anchors), func(i int) bool {
		return l.anchors[i].StartDate.After(date)
	})
	if i == len(l.anchors) {
		return database.MonthAnchor{}, false
	}
	return l.anchors[i], true
}

// nearestEarlierKey returns the anchor with the greatest key below target.
func (l *Ledger) nearestEarlierKey(target MonthKey) (database.MonthAnchor, bool) {
	var best database.MonthAnchor
	found := false
	for _, a := range l.anchors {
		k := anchorKey(a)
		if !k.Less(target) {
			continue
		}
		if !found || anchorKey(best).Less(k) {
			best, found = a, true
		}
	}
	return best, found
}

// history returns confirmed lengths of months that ended on or before date,
// oldest first, at most historyWindow of them.
func (l *Ledger) history(date time.Time) []int {
	var lengths []int
	for i := 1; i < len(l.anchors) && !l.anchors[i].StartDate.After(date); i++ {
		delta := daysBetween(l.anchors[i-1].StartDate, l.anchors[i].StartDate)
		if delta >= 1 && delta <= MaxMonthLength {
			lengths = append(lengths, delta)
		}
	}
	if len(lengths) > historyWindow {
		lengths = lengths[len(lengths)-historyWindow:]
	}
	return lengths
}

func anchorKey(a database.MonthAnchor) MonthKey {
	return MonthKey{Year: a.YearNumber, Month: a.MonthNumber}
}

// ResolverOptions are the settings a resolver reads.
type ResolverOptions struct {
	// Strict reports anchor gaps outside [1,30] days as
	// *MalformedLedgerError. When false they are logged and the month is
	// projected instead.
	Strict bool

	// ProjectExtraMonth sends month 12 of the year in progress (the year of
	// the latest anchor) to month 13 even without a leap decision.
	ProjectExtraMonth bool
}

// Resolver maps civil dates to lunar dates over one Ledger view.
type Resolver struct {
	ledger    *Ledger
	predictor *Predictor
	opts      ResolverOptions
	logger    *slog.Logger
}

// NewResolver creates a resolver.
func NewResolver(ledger *Ledger, predictor *Predictor, opts ResolverOptions, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{ledger: ledger, predictor: predictor, opts: opts, logger: logger}
}

// Ledger returns the view the resolver works on.
func (r *Resolver) Ledger() *Ledger {
	return r.ledger
}

// Next applies the successor rule with this resolver's leap decisions and
// extra-month scope.
func (r *Resolver) Next(key MonthKey) MonthKey {
	return NextMonth(key, r.ledger.Leap(key.Year), r.projectExtra(key.Year))
}

// projectExtra is true only for the year of the latest anchor.
func (r *Resolver) projectExtra(year int) bool {
	if !r.opts.ProjectExtraMonth {
		return false
	}
	latest, ok := r.ledger.Latest()
	return ok && latest.YearNumber == year
}

// advance moves past a month that ended the day before start. An anchor on
// start owns its key; otherwise the successor rule decides.
func (r *Resolver) advance(key MonthKey, start time.Time) MonthKey {
	if a, ok := r.ledger.AnchorOn(start); ok {
		return anchorKey(a)
	}
	return r.Next(key)
}

// lengthAndStatus returns how long the month beginning on start lasts.
func (r *Resolver) lengthAndStatus(ctx context.Context, key MonthKey, start time.Time) (int, Status, error) {
	if next, ok := r.ledger.nextAfter(start); ok {
		delta := daysBetween(start, next.StartDate)
		if delta >= 1 && delta <= MaxMonthLength {
			return delta, StatusConfirmed, nil
		}

		malformed := &MalformedLedgerError{Key: key, Start: start, Next: next.StartDate, Delta: delta}
		if r.opts.Strict {
			return 0, "", malformed
		}
		r.logger.Warn("anchor gap treated as projected month",
			slog.String("month", key.String()),
			slog.Any("error", malformed),
		)
	}

	length, err := r.predictor.Predict(ctx, key, r.ledger.history(start), nil)
	if err != nil {
		return 0, "", err
	}
	return length, StatusProjected, nil
}

// ResolveFor returns the lunar date of a civil date.
//
// The walk starts at the latest anchor on or before date and moves forward
// one month at a time for at most ResolveCeiling months.
func (r *Resolver) ResolveFor(ctx context.Context, date time.Time) (*ResolvedDay, error) {
	date = CivilDate(date)

	anchor, ok := r.ledger.latestOnOrBefore(date)
	if !ok {
		return nil, ErrNotFound
	}

	key, start := anchorKey(anchor), anchor.StartDate
	for i := 0; i < ResolveCeiling; i++ {
		length, status, err := r.lengthAndStatus(ctx, key, start)
		if err != nil {
			return nil, err
		}

		end := start.AddDate(0, 0, length)
		if date.Before(end) {
			day := daysBetween(start, date) + 1
			_, anchored := r.ledger.AnchorOn(start)
			return &ResolvedDay{
				Date:       date,
				Year:       key.Year,
				Month:      key.Month,
				DayOfMonth: day,
				Status:     status,
				StartFixed: anchored && day <= MinLunarMonth,
				MonthStart: start,
				MonthDays:  length,
			}, nil
		}

		start = end
		key = r.advance(key, start)
	}

	return nil, ErrNotFound
}

// GetMonth returns the definition of a lunar month.
//
// An anchored month is computed directly. Otherwise the walk is seeded from
// the anchor with the nearest earlier key, or the latest anchor when no key
// is earlier, and runs for at most MonthLookupCeiling months.
func (r *Resolver) GetMonth(ctx context.Context, year, month int) (*MonthDefinition, error) {
	target := MonthKey{Year: year, Month: month}
	if month < 1 || month > 13 {
		return nil, ErrNotFound
	}

	if a, ok := r.ledger.AnchorFor(target); ok {
		length, status, err := r.lengthAndStatus(ctx, target, a.StartDate)
		if err != nil {
			return nil, err
		}
		return &MonthDefinition{Year: year, Month: month, StartDate: a.StartDate, LengthDays: length, Status: status}, nil
	}

	seed, ok := r.ledger.nearestEarlierKey(target)
	if !ok {
		seed, ok = r.ledger.Latest()
	}
	if !ok {
		return nil, ErrNotFound
	}

	key, start := anchorKey(seed), seed.StartDate
	for i := 0; i < MonthLookupCeiling; i++ {
		length, status, err := r.lengthAndStatus(ctx, key, start)
		if err != nil {
			return nil, err
		}
		if key == target {
			return &MonthDefinition{Year: year, Month: month, StartDate: start, LengthDays: length, Status: status}, nil
		}
		if target.Less(key) {
			// Walked past, e.g. month 13 of a twelve-month year.
			return nil, ErrNotFound
		}

		start = start.AddDate(0, 0, length)
		key = r.advance(key, start)
	}

	return nil, ErrNotFound
}

// MonthsForYear returns every month of a lunar year that can be resolved,
// in order. Month 13 is included only when the year has one.
func (r *Resolver) MonthsForYear(ctx context.Context, year int) ([]MonthDefinition, error) {
	first, err := r.GetMonth(ctx, year, 1)
	if err != nil {
		return nil, err
	}

	months := []MonthDefinition{*first}
	key, start := first.Key(), first.EndDate()
	for len(months) < 13 {
		key = r.advance(key, start)
		if key.Year != year {
			break
		}
		length, status, err := r.lengthAndStatus(ctx, key, start)
		if err != nil {
			return months, err
		}
		months = append(months, MonthDefinition{Year: key.Year, Month: key.Month, StartDate: start, LengthDays: length, Status: status})
		start = start.AddDate(0, 0, length)
	}
	return months, nil
}

// IsNotFound reports whether err means nothing could be resolved.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
