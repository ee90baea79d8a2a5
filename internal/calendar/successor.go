package calendar

import "github.com/zapponejosh/lunar-calendar-api/internal/database"

// LeapDecision is the per-year aviv judgement.
type LeapDecision int

const (
	LeapUnknown LeapDecision = iota
	LeapAviv
	LeapNotAviv
)

func (d LeapDecision) String() string {
	switch d {
	case LeapAviv:
		return "aviv"
	case LeapNotAviv:
		return "not_aviv"
	default:
		return "unknown"
	}
}

// LeapFromRecord converts a stored decision. A nil record or a nil IsAviv is
// unknown.
func LeapFromRecord(rec *database.YearLeapDecision) LeapDecision {
	if rec == nil || rec.IsAviv == nil {
		return LeapUnknown
	}
	if *rec.IsAviv {
		return LeapAviv
	}
	return LeapNotAviv
}

// NextMonth returns the month after key.
//
// Month 12 is the only branch point: it goes to month 13 when the year was
// judged not aviv, or when projectExtra is set for this call. projectExtra
// applies to this call only; callers decide per year whether to pass it.
func NextMonth(key MonthKey, leap LeapDecision, projectExtra bool) MonthKey {
	switch {
	case key.Month == 12 && (leap == LeapNotAviv || projectExtra):
		return MonthKey{Year: key.Year, Month: 13}
	case key.Month >= 12:
		return MonthKey{Year: key.Year + 1, Month: 1}
	default:
		return MonthKey{Year: key.Year, Month: key.Month + 1}
	}
}
