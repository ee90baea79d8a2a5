package calendar

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feastByTitle(t *testing.T, feasts []FeastDay, title string) FeastDay {
	t.Helper()
	for _, f := range feasts {
		if f.Title == title {
			return f
		}
	}
	t.Fatalf("feast %q not found", title)
	return FeastDay{}
}

// month1 starts on Tuesday 2024-04-09; day 15 is Tuesday 2024-04-23.
var month1 = &MonthDefinition{Year: 1, Month: 1, StartDate: civil(2024, 4, 9), LengthDays: 30, Status: StatusConfirmed}

func TestFeastDays_Month1(t *testing.T) {
	feasts := FeastDays(1, YearMonths{Month1: month1}, FeastOptions{FirstfruitsRule: FirstfruitsAfterSaturday})

	passover := feastByTitle(t, feasts, "Passover")
	assert.Equal(t, civil(2024, 4, 22), passover.Date)
	assert.Equal(t, 14, passover.DayOfMonth)
	assert.Equal(t, 1, passover.Month)

	assert.Equal(t, civil(2024, 4, 23), feastByTitle(t, feasts, "Feast of Unleavened Bread Begins").Date)
	assert.Equal(t, civil(2024, 4, 29), feastByTitle(t, feasts, "Feast of Unleavened Bread Ends").Date)

	// No month 7: nothing from it.
	for _, f := range feasts {
		assert.NotEqual(t, "Feast of Trumpets", f.Title)
	}
}

func TestFeastDays_Firstfruits(t *testing.T) {
	tests := []struct {
		rule    FirstfruitsRule
		date    time.Time
		day     int
		shavuot time.Time
	}{
		{FirstfruitsFixed16, civil(2024, 4, 24), 16, civil(2024, 6, 12)},
		// First Saturday in days 15-22 is 2024-04-27 (day 19).
		{FirstfruitsAfterSaturday, civil(2024, 4, 28), 0, civil(2024, 6, 16)},
		// First Sunday in days 15-22 is 2024-04-28 (day 20).
		{FirstfruitsAfterSunday, civil(2024, 4, 29), 0, civil(2024, 6, 17)},
	}
	for _, tt := range tests {
		t.Run(string(tt.rule), func(t *testing.T) {
			feasts := FeastDays(1, YearMonths{Month1: month1}, FeastOptions{FirstfruitsRule: tt.rule})

			ff := feastByTitle(t, feasts, "Firstfruits")
			assert.Equal(t, tt.date, ff.Date)
			assert.Equal(t, tt.day, ff.DayOfMonth)

			shavuot := feastByTitle(t, feasts, "Shavuot")
			assert.Equal(t, tt.shavuot, shavuot.Date)
			assert.Equal(t, 0, shavuot.DayOfMonth)
			assert.Equal(t, 49, daysBetween(ff.Date, shavuot.Date))
		})
	}
}

func TestFeastDays_Month7(t *testing.T) {
	m7 := &MonthDefinition{Year: 1, Month: 7, StartDate: civil(2024, 10, 3), LengthDays: 29, Status: StatusProjected}
	feasts := FeastDays(1, YearMonths{Month7: m7}, FeastOptions{})

	require.Len(t, feasts, 4)
	assert.Equal(t, civil(2024, 10, 3), feastByTitle(t, feasts, "Feast of Trumpets").Date)
	assert.Equal(t, civil(2024, 10, 12), feastByTitle(t, feasts, "Day of Atonement").Date)
	assert.Equal(t, civil(2024, 10, 17), feastByTitle(t, feasts, "Feast of Tabernacles Begins").Date)
	assert.Equal(t, civil(2024, 10, 24), feastByTitle(t, feasts, "Feast of Tabernacles Ends").Date)
}

func TestFeastDays_Optional(t *testing.T) {
	m9 := &MonthDefinition{Year: 1, Month: 9, StartDate: civil(2024, 12, 2), LengthDays: 29}
	m12 := &MonthDefinition{Year: 1, Month: 12, StartDate: civil(2025, 2, 28), LengthDays: 30}
	months := YearMonths{Month9: m9, Month12: m12}

	assert.Empty(t, FeastDays(1, months, FeastOptions{}))

	feasts := FeastDays(1, months, FeastOptions{IncludeHanukkah: true, IncludePurim: true})
	require.Len(t, feasts, 9)

	spilled := 0
	for i, f := range feasts[:8] {
		assert.Equal(t, m9.Day(25+i), f.Date)
		if f.DayOfMonth == 0 {
			spilled++
		}
	}
	// Days 30, 31 and 32 of a 29-day month fall in month 10.
	assert.Equal(t, 3, spilled)

	purim := feastByTitle(t, feasts, "Purim")
	assert.Equal(t, civil(2025, 3, 13), purim.Date)
	assert.Equal(t, 14, purim.DayOfMonth)
}

func TestFeastDays_Sorted(t *testing.T) {
	m7 := &MonthDefinition{Year: 1, Month: 7, StartDate: civil(2024, 10, 3), LengthDays: 29}
	m9 := &MonthDefinition{Year: 1, Month: 9, StartDate: civil(2024, 12, 2), LengthDays: 30}
	feasts := FeastDays(1, YearMonths{Month1: month1, Month7: m7, Month9: m9}, FeastOptions{
		FirstfruitsRule: FirstfruitsAfterSaturday,
		IncludeHanukkah: true,
	})

	assert.True(t, sort.SliceIsSorted(feasts, func(i, j int) bool {
		return feasts[i].Date.Before(feasts[j].Date)
	}))
	assert.Len(t, feasts, 5+4+8)
}
