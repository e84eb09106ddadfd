// Package timeutil provides calendar helpers for the center's local timezone
// and the Russian month labels used in reports.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// AlmatyTZ is the default center timezone (UTC+5, no DST).
var AlmatyTZ = time.FixedZone("Asia/Almaty", 5*60*60)

// FormatMonth is the month key format (YYYY-MM).
const FormatMonth = "2006-01"

// LoadLocation resolves an IANA zone name. An empty name yields AlmatyTZ;
// a lookup failure yields AlmatyTZ together with the error, so callers can
// decide whether to continue.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return AlmatyTZ, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return AlmatyTZ, fmt.Errorf("load location %q: %w", name, err)
	}
	return loc, nil
}

// ParseMonthKey parses a YYYY-MM key.
func ParseMonthKey(key string) (time.Time, error) {
	return time.Parse(FormatMonth, key)
}

// MonthAbbrRu returns the short Russian month label used in report columns.
func MonthAbbrRu(m time.Month) string {
	names := []string{
		"", "Янв", "Фев", "Мар", "Апр", "Май", "Июн",
		"Июл", "Авг", "Сен", "Окт", "Ноя", "Дек",
	}
	if int(m) >= 1 && int(m) <= 12 {
		return names[m]
	}
	return ""
}

// MonthLabel returns the short Russian label for a YYYY-MM key, or the key itself
// when it cannot be parsed.
func MonthLabel(key string) string {
	t, err := ParseMonthKey(key)
	if err != nil {
		return key
	}
	return MonthAbbrRu(t.Month())
}
