package calendar

import (
	"fmt"
	"sort"
	"time"
)

// FirstfruitsRule picks how Firstfruits is placed in month 1.
type FirstfruitsRule string

const (
	// FirstfruitsFixed16 puts Firstfruits on day 16.
	FirstfruitsFixed16 FirstfruitsRule = "fixed16"

	// FirstfruitsAfterSaturday puts it the day after the first Saturday in
	// days 15-22.
	FirstfruitsAfterSaturday FirstfruitsRule = "after_saturday"

	// FirstfruitsAfterSunday puts it the day after the first Sunday in
	// days 15-22.
	FirstfruitsAfterSunday FirstfruitsRule = "after_sunday"
)

// Valid reports whether r is a known rule.
func (r FirstfruitsRule) Valid() bool {
	switch r {
	case FirstfruitsFixed16, FirstfruitsAfterSaturday, FirstfruitsAfterSunday:
		return true
	}
	return false
}

const (
	firstfruitsWindowStart = 15
	firstfruitsWindowEnd   = 22
	firstfruitsFallbackDay = 16
	shavuotOffsetDays      = 49
	hanukkahStartDay       = 25
	hanukkahDays           = 8
)

// FeastOptions are the user's feast preferences.
type FeastOptions struct {
	FirstfruitsRule FirstfruitsRule
	IncludeHanukkah bool
	IncludePurim    bool
}

// YearMonths holds the months a year's feasts are derived from. Any of them
// may be nil when the month could not be resolved.
type YearMonths struct {
	Month1  *MonthDefinition
	Month7  *MonthDefinition
	Month9  *MonthDefinition
	Month12 *MonthDefinition
}

// FeastDays derives the observances of one year, sorted by date.
func FeastDays(year int, months YearMonths, opts FeastOptions) []FeastDay {
	feasts := []FeastDay{}

	on := func(m *MonthDefinition, day int, title string) {
		feasts = append(feasts, FeastDay{
			Title:      title,
			Date:       m.Day(day),
			Year:       year,
			Month:      m.Month,
			DayOfMonth: day,
		})
	}

	if m1 := months.Month1; m1 != nil {
		on(m1, 14, "Passover")
		on(m1, 15, "Feast of Unleavened Bread Begins")
		on(m1, 21, "Feast of Unleavened Bread Ends")

		firstfruits, day := firstfruitsDate(*m1, opts.FirstfruitsRule)
		feasts = append(feasts,
			FeastDay{Title: "Firstfruits", Date: firstfruits, Year: year, Month: 1, DayOfMonth: day},
			FeastDay{Title: "Shavuot", Date: firstfruits.AddDate(0, 0, shavuotOffsetDays), Year: year},
		)
	}

	if m7 := months.Month7; m7 != nil {
		on(m7, 1, "Feast of Trumpets")
		on(m7, 10, "Day of Atonement")
		on(m7, 15, "Feast of Tabernacles Begins")
		on(m7, 22, "Feast of Tabernacles Ends")
	}

	if m9 := months.Month9; m9 != nil && opts.IncludeHanukkah {
		for i := 0; i < hanukkahDays; i++ {
			day := hanukkahStartDay + i
			f := FeastDay{
				Title: fmt.Sprintf("Hanukkah (Day %d)", i+1),
				Date:  m9.Day(day),
				Year:  year,
			}
			// Days that spill into month 10 are left for back-calculation.
			if day <= m9.LengthDays {
				f.Month, f.DayOfMonth = m9.Month, day
			}
			feasts = append(feasts, f)
		}
	}

	if m12 := months.Month12; m12 != nil && opts.IncludePurim {
		on(m12, 14, "Purim")
	}

	sort.SliceStable(feasts, func(i, j int) bool {
		return feasts[i].Date.Before(feasts[j].Date)
	})
	return feasts
}

// firstfruitsDate returns the Firstfruits date and its day of month. The day
// is 0 when a weekday rule placed it.
func firstfruitsDate(m1 MonthDefinition, rule FirstfruitsRule) (time.Time, int) {
	var rest time.Weekday
	switch rule {
	case FirstfruitsAfterSaturday:
		rest = time.Saturday
	case FirstfruitsAfterSunday:
		rest = time.Sunday
	default:
		return m1.Day(firstfruitsFallbackDay), firstfruitsFallbackDay
	}

	if day := FindWeekdayBetween(m1, firstfruitsWindowStart, firstfruitsWindowEnd, rest); day > 0 {
		return m1.Day(day + 1), 0
	}
	return m1.Day(firstfruitsFallbackDay), 0
}
