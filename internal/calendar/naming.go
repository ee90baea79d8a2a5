package calendar

import (
	"fmt"
	"time"
)

// NamingMode selects how month numbers are displayed.
type NamingMode string

const (
	NamingNumeric     NamingMode = "numeric"     // "Month 7"
	NamingOrdinal     NamingMode = "ordinal"     // "7th Month"
	NamingTraditional NamingMode = "traditional" // "Ethanim"
)

// Valid reports whether m is a known mode.
func (m NamingMode) Valid() bool {
	switch m {
	case NamingNumeric, NamingOrdinal, NamingTraditional:
		return true
	}
	return false
}

var traditionalNames = [...]string{
	1:  "Aviv",
	2:  "Ziv",
	3:  "Sivan",
	4:  "Tammuz",
	5:  "Av",
	6:  "Elul",
	7:  "Ethanim",
	8:  "Bul",
	9:  "Kislev",
	10: "Tevet",
	11: "Shevat",
	12: "Adar",
	13: "Adar II",
}

// MonthName returns the display name of month under mode. Unknown modes fall
// back to numeric.
func MonthName(mode NamingMode, month int) string {
	switch mode {
	case NamingOrdinal:
		return Ordinal(month) + " Month"
	case NamingTraditional:
		if month >= 1 && month <= 13 {
			return traditionalNames[month]
		}
	}
	return fmt.Sprintf("Month %d", month)
}

// DayName returns the day of week name (Sunday, Monday, etc.)
func DayName(date time.Time) string {
	days := []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}
	return days[date.Weekday()]
}

// Ordinal returns the ordinal form of a number (1st, 2nd, 3rd, 4th, etc.)
func Ordinal(n int) string {
	switch {
	case n%100 >= 11 && n%100 <= 13:
		return fmt.Sprintf("%dth", n)
	case n%10 == 1:
		return fmt.Sprintf("%dst", n)
	case n%10 == 2:
		return fmt.Sprintf("%dnd", n)
	case n%10 == 3:
		return fmt.Sprintf("%drd", n)
	}
	return fmt.Sprintf("%dth", n)
}

// FindWeekdayBetween finds the first day of month m, between fromDay and
// toDay inclusive, that falls on weekday. Returns the day number, or 0 if no
// such day exists in the range.
func FindWeekdayBetween(m MonthDefinition, fromDay, toDay int, weekday time.Weekday) int {
	for n := fromDay; n <= toDay; n++ {
		if m.Day(n).Weekday() == weekday {
			return n
		}
	}
	return 0
}
