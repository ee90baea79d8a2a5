package database

import (
	"time"
)

// DateLayout is how civil dates are stored in TEXT columns.
const DateLayout = "2006-01-02"

// MonthAnchor is a confirmed first day of a lunar month.
// (YearNumber, MonthNumber) is unique, and so is StartDate.
type MonthAnchor struct {
	YearNumber  int       `json:"year_number"`
	MonthNumber int       `json:"month_number"` // 1..13
	StartDate   time.Time `json:"start_date"`   // civil date, 00:00 UTC
	Confirmed   bool      `json:"confirmed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// YearLeapDecision records whether a year was judged aviv at the end of
// month 12. IsAviv nil means not decided yet.
type YearLeapDecision struct {
	YearNumber int        `json:"year_number"`
	IsAviv     *bool      `json:"is_aviv"`
	DecidedOn  *time.Time `json:"decided_on"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ProjectedLength is a cached estimate for a month that has no confirmed
// successor yet.
type ProjectedLength struct {
	YearNumber  int       `json:"year_number"`
	MonthNumber int       `json:"month_number"`
	LengthDays  int       `json:"length_days"` // 29 or 30
	UpdatedAt   time.Time `json:"updated_at"`
}

// CachedLocation is the last known device position. There is at most one.
type CachedLocation struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	CachedAt  time.Time `json:"cached_at"`
}

// Preferences are the user's calendar settings. There is at most one row;
// DefaultPreferences applies when it has never been saved.
type Preferences struct {
	MonthNamingMode   string    `json:"month_naming_mode"`
	FirstfruitsRule   string    `json:"firstfruits_rule"`
	IncludeHanukkah   bool      `json:"include_hanukkah"`
	IncludePurim      bool      `json:"include_purim"`
	ProjectExtraMonth bool      `json:"project_extra_month"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// DefaultPreferences returns the settings used before any are saved.
func DefaultPreferences() Preferences {
	return Preferences{
		MonthNamingMode: "numeric",
		FirstfruitsRule: "after_saturday",
	}
}

// LedgerStats summarizes the anchor table.
type LedgerStats struct {
	TotalAnchors  int        `json:"total_anchors"`
	EarliestStart *time.Time `json:"earliest_start"`
	LatestStart   *time.Time `json:"latest_start"`
	LeapDecisions int        `json:"leap_decisions"`
	Projections   int        `json:"projections"`
}
