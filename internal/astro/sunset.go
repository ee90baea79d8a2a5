package astro

import (
	"fmt"
	"math"
	"time"
)

// ErrPolar is returned when the sun does not set (or rise) at all on the
// requested date and latitude.
var ErrPolar = fmt.Errorf("%w: no sunset at this latitude and date", ErrCalculation)

// dstProbeHour is the local hour whose UTC offset seeds the first pass.
const dstProbeHour = 18

// Sunset returns the local sunset on the civil date of date (read in loc) for
// the given position. It is the geometric sunset of the NOAA approximate
// solar position formulas, without refraction, and usually lands within five
// minutes of an almanac.
//
// The longitude correction depends on the zone's offset at the moment of
// sunset, which on transition days is not the offset at noon. The first pass
// uses the offset in force at 18:00 local, the second the offset in force at
// the first estimate.
func Sunset(date time.Time, latitude, longitude float64, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	local := date.In(loc)
	y, m, d := local.Date()

	ha, eot, err := sunsetHourAngle(local.YearDay(), latitude)
	if err != nil {
		return time.Time{}, err
	}

	_, offset := time.Date(y, m, d, dstProbeHour, 0, 0, 0, loc).Zone()
	first := sunsetAt(y, m, d, offset, longitude, ha, eot)

	_, offset = first.In(loc).Zone()
	second := sunsetAt(y, m, d, offset, longitude, ha, eot)

	return second.In(loc), nil
}

// NextSunset returns today's sunset if it is still ahead of now, otherwise
// tomorrow's.
func NextSunset(now time.Time, latitude, longitude float64, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	today, err := Sunset(now, latitude, longitude, loc)
	if err != nil {
		return time.Time{}, err
	}
	if now.Before(today) {
		return today, nil
	}
	return Sunset(now.In(loc).AddDate(0, 0, 1), latitude, longitude, loc)
}

// sunsetHourAngle returns the sunset hour angle in degrees and the equation
// of time in minutes for the given day of year.
func sunsetHourAngle(dayOfYear int, latitude float64) (haDeg, eotMinutes float64, err error) {
	gamma := 2 * math.Pi / 365 * (float64(dayOfYear-1) + float64(dstProbeHour-12)/24)

	decl := 0.006918 -
		0.399912*math.Cos(gamma) + 0.070257*math.Sin(gamma) -
		0.006758*math.Cos(2*gamma) + 0.000907*math.Sin(2*gamma) -
		0.002697*math.Cos(3*gamma) + 0.00148*math.Sin(3*gamma)

	eotMinutes = 229.18 * (0.000075 +
		0.001868*math.Cos(gamma) - 0.032077*math.Sin(gamma) -
		0.014615*math.Cos(2*gamma) - 0.040849*math.Sin(2*gamma))

	product := math.Tan(rad(latitude)) * math.Tan(decl)
	if math.Abs(product) > 1 {
		return 0, 0, fmt.Errorf("%w (lat %.2f, day %d)", ErrPolar, latitude, dayOfYear)
	}
	return deg(math.Acos(-product)), eotMinutes, nil
}

// sunsetAt builds the sunset instant for one assumed UTC offset (seconds).
func sunsetAt(y int, m time.Month, d int, offset int, longitude, haDeg, eotMinutes float64) time.Time {
	meridian := float64(offset) / 3600 * 15
	minutes := 720 + 4*(meridian-longitude) - eotMinutes + 4*haDeg

	zone := time.FixedZone("", offset)
	midnight := time.Date(y, m, d, 0, 0, 0, 0, zone)
	return midnight.Add(time.Duration(minutes * float64(time.Minute)))
}
