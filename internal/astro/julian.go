// Package astro provides the approximate astronomical calculations the
// calendar needs: local sunset and the date of the most recent new moon.
//
// Nothing here is ephemeris grade. Sunset is good to a few minutes, the
// conjunction to well under a day, which is what month-start estimation
// and the sunset day boundary require.
package astro

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrCalculation is the parent of every astronomical failure.
	ErrCalculation = errors.New("astronomical calculation failed")

	// ErrImplausibleDate is returned when a Julian Day converts to
	// something that is not a real calendar date.
	ErrImplausibleDate = fmt.Errorf("%w: implausible calendar date", ErrCalculation)
)

const (
	minPlausibleYear = 1
	maxPlausibleYear = 9999
)

// JulianDayNumber returns the integer Julian Day Number of a Gregorian
// civil date using the Fliegel-Van Flandern algorithm.
func JulianDayNumber(year, month, day int) int {
	return day - 32075 +
		1461*(year+4800+(month-14)/12)/4 +
		367*(month-2-(month-14)/12*12)/12 -
		3*((year+4900+(month-14)/12)/100)/4
}

// CivilFromJDN inverts JulianDayNumber. The result is checked by converting
// it back and by range; anything that fails is ErrImplausibleDate.
func CivilFromJDN(jdn int) (year, month, day int, err error) {
	l := jdn + 68569
	n := 4 * l / 146097
	l = l - (146097*n+3)/4
	i := 4000 * (l + 1) / 1461001
	l = l - 1461*i/4 + 31
	j := 80 * l / 2447
	k := l - 2447*j/80
	l = j / 11
	j = j + 2 - 12*l
	i = 100*(n-49) + i + l

	year, month, day = i, j, k
	if year < minPlausibleYear || year > maxPlausibleYear ||
		month < 1 || month > 12 || day < 1 || day > 31 {
		return 0, 0, 0, fmt.Errorf("%w: jdn %d gave %04d-%02d-%02d", ErrImplausibleDate, jdn, year, month, day)
	}
	if JulianDayNumber(year, month, day) != jdn {
		return 0, 0, 0, fmt.Errorf("%w: jdn %d does not round trip", ErrImplausibleDate, jdn)
	}
	return year, month, day, nil
}

// DateFromJD returns the UTC civil date containing the instant jd.
func DateFromJD(jd float64) (time.Time, error) {
	if math.IsNaN(jd) || math.IsInf(jd, 0) {
		return time.Time{}, fmt.Errorf("%w: jd %v", ErrImplausibleDate, jd)
	}
	y, m, d, err := CivilFromJDN(int(math.Floor(jd + 0.5)))
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC), nil
}

// JDFromDate returns the Julian Day at 00:00 UTC of the civil date of t.
func JDFromDate(t time.Time) float64 {
	return float64(JulianDayNumber(t.Year(), int(t.Month()), t.Day())) - 0.5
}
