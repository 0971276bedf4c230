// Package jalali converts dates between the Gregorian and the Persian (Jalali)
// calendars and parses the free-text date arguments used by forecast requests.
//
// The conversion is the classic closed-form approximation (33-year cycle on the
// Jalali side, 400/100/4-year cycles on the Gregorian side). It is not the
// astronomical Iranian calendar, and results must match the formula below exactly.
package jalali

import (
	"fmt"
	"time"
)

// GregorianDate is a proleptic Gregorian calendar date.
type GregorianDate struct {
	Year  int
	Month int // 1-12
	Day   int // 1-31
}

// JalaliDate is a Persian (solar Hijri) calendar date.
type JalaliDate struct {
	Year  int
	Month int // 1-12
	Day   int // 1-31
}

// String returns the date as YYYY-MM-DD.
func (g GregorianDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", g.Year, g.Month, g.Day)
}

// Time returns midnight of the date in loc.
func (g GregorianDate) Time(loc *time.Location) time.Time {
	return time.Date(g.Year, time.Month(g.Month), g.Day, 0, 0, 0, 0, loc)
}

// String returns the date as YYYY/MM/DD.
func (j JalaliDate) String() string {
	return fmt.Sprintf("%04d/%02d/%02d", j.Year, j.Month, j.Day)
}

// FromTime returns the Gregorian date of t in t's location.
func FromTime(t time.Time) GregorianDate {
	y, m, d := t.Date()
	return GregorianDate{Year: y, Month: int(m), Day: d}
}

// ParseGregorian parses a YYYY-MM-DD string.
func ParseGregorian(s string) (GregorianDate, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return GregorianDate{}, fmt.Errorf("parse gregorian date %q: %w", s, err)
	}
	return FromTime(t), nil
}

// daysBeforeMonth holds the day offsets of each month in a non-leap Gregorian year.
var daysBeforeMonth = [12]int{0, 31, 59, 90, 120, 151, 181, 212, 243, 273, 304, 334}

// gregorianMonthDays is indexed 1..12; February is patched for leap years.
var gregorianMonthDays = [13]int{0, 31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// GregorianToJalali converts a Gregorian date to its Jalali equivalent.
// Inputs must form a valid date with year >= 622; other inputs yield unspecified output.
func GregorianToJalali(g GregorianDate) JalaliDate {
	gy, gm, gd := g.Year, g.Month, g.Day

	var jy int
	if gy > 1600 {
		jy = 979
		gy -= 1600
	} else {
		jy = 0
		gy -= 621
	}

	gy2 := gy
	if gm > 2 {
		gy2 = gy + 1
	}

	days := 365*gy + (gy2+3)/4 - (gy2+99)/100 + (gy2+399)/400 - 80 + gd + daysBeforeMonth[gm-1]

	jy += 33 * (days / 12053)
	days %= 12053

	jy += 4 * (days / 1461)
	days %= 1461

	if days > 365 {
		jy += (days - 1) / 365
		days = (days - 1) % 365
	}

	var jm, jd int
	if days < 186 {
		jm = 1 + days/31
		jd = 1 + days%31
	} else {
		jm = 7 + (days-186)/30
		jd = 1 + (days-186)%30
	}

	return JalaliDate{Year: jy, Month: jm, Day: jd}
}

// JalaliToGregorian converts a Jalali date to its Gregorian equivalent.
// Inputs must form a valid Jalali date; other inputs yield unspecified output.
func JalaliToGregorian(j JalaliDate) GregorianDate {
	jy, jm, jd := j.Year, j.Month, j.Day

	var gy int
	if jy > 979 {
		gy = 1600
		jy -= 979
	} else {
		gy = 621
	}

	days := 365*jy + (jy/33)*8 + ((jy%33)+3)/4 + 78 + jd
	if jm < 7 {
		days += (jm - 1) * 31
	} else {
		days += (jm-7)*30 + 186
	}

	gy += 400 * (days / 146097)
	days %= 146097

	if days > 36524 {
		gy += 100 * ((days - 1) / 36524)
		days = (days - 1) % 36524
		if days >= 365 {
			days++
		}
	}

	gy += 4 * (days / 1461)
	days %= 1461

	if days > 365 {
		gy += (days - 1) / 365
		days = (days - 1) % 365
	}

	gd := days + 1
	gm := 1
	for gm <= 12 {
		n := gregorianMonthDays[gm]
		if gm == 2 && isGregorianLeap(gy) {
			n = 29
		}
		if gd <= n {
			break
		}
		gd -= n
		gm++
	}

	return GregorianDate{Year: gy, Month: gm, Day: gd}
}

func isGregorianLeap(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}

// MonthLength returns the number of days of a Jalali month as the converter sees it.
// Esfand has 30 days only when day 30 survives a round trip through the Gregorian side.
func MonthLength(year, month int) int {
	switch {
	case month >= 1 && month <= 6:
		return 31
	case month >= 7 && month <= 11:
		return 30
	case month == 12:
		probe := JalaliDate{Year: year, Month: 12, Day: 30}
		if GregorianToJalali(JalaliToGregorian(probe)) == probe {
			return 30
		}
		return 29
	default:
		return 0
	}
}

// Today returns the Jalali date of t in t's location.
func Today(t time.Time) JalaliDate {
	return GregorianToJalali(FromTime(t))
}
