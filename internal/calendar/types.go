// Package calendar resolves solar dates against a lunar-month, solar-year
// calendar whose months are fixed by observed anchors.
//
// Confirmed anchors are the only durable truth. Everything else (month
// definitions, resolved days, feasts) is recomputed from them on every call,
// with a projection cache keeping estimated future month lengths stable.
package calendar

import (
	"errors"
	"fmt"
	"time"
)

// Iteration ceilings. Each one is how many months into the unconfirmed
// future the resolver is willing to extrapolate before giving up with
// ErrNotFound.
const (
	// ResolveCeiling bounds the forward walk when resolving a single date.
	ResolveCeiling = 48

	// MonthLookupCeiling bounds the walk when a month lookup is seeded from
	// a distant anchor.
	MonthLookupCeiling = 120

	// CascadeHorizon is how many months a cascade rewrites at most.
	CascadeHorizon = 24

	// MaxMonthLength is the longest delta between adjacent anchors that
	// counts as a confirmed month.
	MaxMonthLength = 30

	// MinLunarMonth is the shortest real lunar month.
	MinLunarMonth = 29
)

var (
	// ErrNotFound means no anchor covers the request, or the forward walk
	// hit its ceiling. Callers should ask for an anchor.
	ErrNotFound = errors.New("no lunar date could be resolved")

	// ErrMalformedLedger means two adjacent anchors are more than a month
	// apart (or out of order).
	ErrMalformedLedger = errors.New("malformed ledger")

	// ErrInvalidAnchor covers out-of-range months and unusable dates.
	ErrInvalidAnchor = errors.New("invalid anchor")

	// ErrDuplicateStartDate is returned when a start date already belongs
	// to a different month.
	ErrDuplicateStartDate = errors.New("start date already anchors another month")

	// ErrInvalidLength is returned for a projected length other than 29 or 30.
	ErrInvalidLength = errors.New("projected length must be 29 or 30")
)

// MalformedLedgerError describes the anchor gap that could not be read as a
// month length.
type MalformedLedgerError struct {
	Key   MonthKey
	Start time.Time
	Next  time.Time
	Delta int
}

func (e *MalformedLedgerError) Error() string {
	return fmt.Sprintf("%s: month %s starting %s is followed by an anchor on %s (%d days)",
		ErrMalformedLedger, e.Key, e.Start.Format(dateLayout), e.Next.Format(dateLayout), e.Delta)
}

// Is lets errors.Is(err, ErrMalformedLedger) match.
func (e *MalformedLedgerError) Is(target error) bool {
	return target == ErrMalformedLedger
}

const dateLayout = "2006-01-02"

// MonthKey identifies a lunar month.
type MonthKey struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// Less orders keys by year, then month.
func (k MonthKey) Less(other MonthKey) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	return k.Month < other.Month
}

func (k MonthKey) String() string {
	return fmt.Sprintf("%d/%d", k.Year, k.Month)
}

// Status tells whether a month's length comes from two anchors or from the
// predictor.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusProjected Status = "projected"
)

// MonthDefinition is a derived view of one lunar month.
type MonthDefinition struct {
	Year       int       `json:"year"`
	Month      int       `json:"month"`
	StartDate  time.Time `json:"start_date"`
	LengthDays int       `json:"length_days"`
	Status     Status    `json:"status"`
}

// Key returns the month's key.
func (m MonthDefinition) Key() MonthKey {
	return MonthKey{Year: m.Year, Month: m.Month}
}

// Day returns the civil date of day n (1-based) of the month.
func (m MonthDefinition) Day(n int) time.Time {
	return m.StartDate.AddDate(0, 0, n-1)
}

// EndDate returns the first civil date after the month.
func (m MonthDefinition) EndDate() time.Time {
	return m.StartDate.AddDate(0, 0, m.LengthDays)
}

// Contains reports whether date falls inside the month.
func (m MonthDefinition) Contains(date time.Time) bool {
	d := CivilDate(date)
	return !d.Before(m.StartDate) && d.Before(m.EndDate())
}

// ResolvedDay is the lunar date for one civil date.
//
// Status is the status of the containing month's length. StartFixed is set
// when the month starts on an anchor and the day is within the first 29, so
// its place cannot move whatever the month's final length turns out to be.
type ResolvedDay struct {
	Date       time.Time `json:"date"`
	Year       int       `json:"year"`
	Month      int       `json:"month"`
	DayOfMonth int       `json:"day_of_month"`
	Status     Status    `json:"status"`
	StartFixed bool      `json:"start_fixed"`
	MonthStart time.Time `json:"month_start"`
	MonthDays  int       `json:"month_days"`
}

// Key returns the key of the month containing the day.
func (r ResolvedDay) Key() MonthKey {
	return MonthKey{Year: r.Year, Month: r.Month}
}

// FeastDay is one observance. DayOfMonth 0 marks a date derived by an offset
// rule; callers resolve the date to find which lunar day it lands on.
type FeastDay struct {
	Title      string    `json:"title"`
	Date       time.Time `json:"date"`
	Year       int       `json:"year"`
	Month      int       `json:"month"`
	DayOfMonth int       `json:"day_of_month"`
}

// CivilDate truncates t to its calendar date at 00:00 UTC. All ledger
// arithmetic happens on these values.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween returns b - a in whole days for civil dates.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a) / (24 * time.Hour))
}

// ParseDate parses a YYYY-MM-DD civil date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}
