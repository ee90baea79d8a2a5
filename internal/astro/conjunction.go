package astro

import (
	"math"
	"time"
)

const (
	// SynodicMonth is the mean length of a lunation in days.
	SynodicMonth = 29.530588861

	// referenceNewMoonJDE is lunation k=0 in Meeus' numbering, 2000-01-06.
	referenceNewMoonJDE = 2451550.09766

	// conjunctionLookback is how many lunations before the estimate are tried.
	conjunctionLookback = 10
)

// Conjunction is one new moon: its lunation index and the UTC civil date
// on which it falls.
type Conjunction struct {
	K    int
	JDE  float64
	Date time.Time
}

// ConjunctionJDE returns the Julian Ephemeris Day of new moon number k,
// using the twelve largest periodic terms of Meeus, Astronomical
// Algorithms ch. 49. The truncation costs a few minutes at most.
func ConjunctionJDE(k int) float64 {
	kf := float64(k)
	t := kf / 1236.85
	t2 := t * t
	t3 := t2 * t
	t4 := t3 * t

	jde := referenceNewMoonJDE + SynodicMonth*kf +
		0.00015437*t2 - 0.000000150*t3 + 0.00000000073*t4

	e := 1 - 0.002516*t - 0.0000074*t2

	// Sun's mean anomaly, Moon's mean anomaly, Moon's argument of latitude.
	m := rad(2.5534 + 29.10535670*kf - 0.0000014*t2 - 0.00000011*t3)
	mp := rad(201.5643 + 385.81693528*kf + 0.0107582*t2 + 0.00001238*t3 - 0.000000058*t4)
	f := rad(160.7108 + 390.67050284*kf - 0.0016118*t2 - 0.00000227*t3 + 0.000000011*t4)

	jde += -0.40720*math.Sin(mp) +
		0.17241*e*math.Sin(m) +
		0.01608*math.Sin(2*mp) +
		0.01039*math.Sin(2*f) +
		0.00739*e*math.Sin(mp-m) -
		0.00514*e*math.Sin(mp+m) +
		0.00208*e*e*math.Sin(2*m) -
		0.00111*math.Sin(mp-2*f) -
		0.00057*math.Sin(mp+2*f) +
		0.00056*e*math.Sin(2*mp+m) -
		0.00042*math.Sin(3*mp) +
		0.00042*e*math.Sin(m+2*f)

	return jde
}

// ConjunctionFor returns new moon number k with its civil date.
func ConjunctionFor(k int) (Conjunction, error) {
	jde := ConjunctionJDE(k)
	date, err := DateFromJD(jde)
	if err != nil {
		return Conjunction{}, err
	}
	return Conjunction{K: k, JDE: jde, Date: date}, nil
}

// MostRecentConjunction returns the latest new moon whose civil date is not
// after the civil date of target.
func MostRecentConjunction(target time.Time) (Conjunction, error) {
	day := civilDate(target)
	elapsed := JDFromDate(day) - referenceNewMoonJDE
	k := int(math.Floor(elapsed/SynodicMonth)) + 1

	var last error
	for i := 0; i <= conjunctionLookback+1; i++ {
		c, err := ConjunctionFor(k - i)
		if err != nil {
			last = err
			continue
		}
		if !c.Date.After(day) {
			return c, nil
		}
	}
	if last == nil {
		last = ErrCalculation
	}
	return Conjunction{}, last
}

// FirstSliverVisibility estimates the civil date the first crescent can be
// seen after a conjunction: the next day, or two days later poleward of 40
// degrees. It is a rule of thumb, not a visibility model.
func FirstSliverVisibility(conjunction time.Time, latitude float64) time.Time {
	days := 1
	if math.Abs(latitude) > 40 {
		days = 2
	}
	return civilDate(conjunction).AddDate(0, 0, days)
}

func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func rad(deg float64) float64 {
	return deg * math.Pi / 180
}

func deg(r float64) float64 {
	return r * 180 / math.Pi
}
