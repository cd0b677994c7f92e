package types

import (
	"fmt"
	"time"
)

// DateLayout is the text layout of birth dates: four-digit year, month, day,
// dash separated. Month and day may be written with or without a leading zero.
const DateLayout = "2006-1-2"

// ParseBirthDate parses s using DateLayout. Out-of-range calendar dates such
// as 2001-02-30 are rejected.
func ParseBirthDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidDate, s, err)
	}
	return t, nil
}

// FormatDate formats t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

// Age returns the number of whole years between birth and asOf. The year
// difference is decremented when asOf's month/day precedes birth's month/day.
func Age(birth, asOf time.Time) int {
	age := asOf.Year() - birth.Year()
	if asOf.Month() < birth.Month() || (asOf.Month() == birth.Month() && asOf.Day() < birth.Day()) {
		age--
	}
	return age
}
