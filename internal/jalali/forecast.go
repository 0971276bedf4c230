package jalali

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	apperrors "github.com/kiarash-bot/kiarash/internal/errors"
)

// MonthNames lists the canonical Persian month names; index+1 is the month number.
var MonthNames = [12]string{
	"فروردین",
	"اردیبهشت",
	"خرداد",
	"تیر",
	"مرداد",
	"شهریور",
	"مهر",
	"آبان",
	"آذر",
	"دی",
	"بهمن",
	"اسفند",
}

// ForecastRequest is a city plus the absolute date a forecast is wanted for.
// The city is passed through verbatim; alias resolution belongs to the weather provider.
type ForecastRequest struct {
	City string
	Date GregorianDate
}

// MonthByName returns the month number (1-12) for an exact canonical month name.
func MonthByName(name string) (int, bool) {
	for i, n := range MonthNames {
		if n == name {
			return i + 1, true
		}
	}
	return 0, false
}

// MonthName returns the canonical name of month m, or "" when m is out of range.
func MonthName(m int) string {
	if m < 1 || m > 12 {
		return ""
	}
	return MonthNames[m-1]
}

// digitMapper folds Persian (U+06F0..) and Arabic-Indic (U+0660..) digits to ASCII.
var digitMapper = runes.Map(func(r rune) rune {
	switch {
	case r >= '۰' && r <= '۹':
		return '0' + (r - '۰')
	case r >= '٠' && r <= '٩':
		return '0' + (r - '٠')
	}
	return r
})

// NormalizeDigits replaces Persian and Arabic-Indic digits with ASCII digits.
func NormalizeDigits(s string) string {
	out, _, err := transform.String(digitMapper, s)
	if err != nil {
		return s
	}
	return out
}

// PersianDigits renders ASCII digits in s with Persian digits.
func PersianDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 2)
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune('۰' + (r - '0'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ParseForecastArgs turns "city day month [year]" tokens into a ForecastRequest.
// When the year is omitted the current Jalali year (relative to now) is used.
// Every failure wraps errors.ErrNotParseable.
func ParseForecastArgs(tokens []string, now time.Time) (ForecastRequest, error) {
	if len(tokens) < 3 {
		return ForecastRequest{}, notParseable("expected city, day and month, got %d tokens", len(tokens))
	}

	city := strings.TrimSpace(tokens[0])
	if city == "" {
		return ForecastRequest{}, notParseable("empty city")
	}

	day, err := strconv.Atoi(NormalizeDigits(tokens[1]))
	if err != nil {
		return ForecastRequest{}, notParseable("day %q is not a number", tokens[1])
	}

	month, ok := MonthByName(tokens[2])
	if !ok {
		return ForecastRequest{}, notParseable("unknown month %q", tokens[2])
	}

	year := Today(now).Year
	if len(tokens) > 3 {
		year, err = strconv.Atoi(NormalizeDigits(tokens[3]))
		if err != nil {
			return ForecastRequest{}, notParseable("year %q is not a number", tokens[3])
		}
	}

	// Reject instead of clamping: a day past the month end would silently roll
	// into the next month (or year) on the Gregorian side.
	if year < 1 || day < 1 || day > MonthLength(year, month) {
		return ForecastRequest{}, notParseable("%d/%d/%d is not a valid date", year, month, day)
	}

	return ForecastRequest{
		City: city,
		Date: JalaliToGregorian(JalaliDate{Year: year, Month: month, Day: day}),
	}, nil
}

func notParseable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrNotParseable, fmt.Sprintf(format, args...))
}
