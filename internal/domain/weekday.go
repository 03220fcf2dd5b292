package domain

import (
	"fmt"
	"strings"
	"time"
)

// Weekday is the full English weekday name, as stored in medication_times.
type Weekday string

const (
	Monday    Weekday = "Monday"
	Tuesday   Weekday = "Tuesday"
	Wednesday Weekday = "Wednesday"
	Thursday  Weekday = "Thursday"
	Friday    Weekday = "Friday"
	Saturday  Weekday = "Saturday"
	Sunday    Weekday = "Sunday"
)

// WeekdayFrom converts a time.Weekday into its stored name.
func WeekdayFrom(d time.Weekday) Weekday {
	return Weekday(d.String())
}

// ParseWeekday accepts a weekday name in any letter case.
func ParseWeekday(s string) (Weekday, error) {
	s = strings.TrimSpace(s)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(s, d.String()) {
			return WeekdayFrom(d), nil
		}
	}
	return "", fmt.Errorf("%w: invalid weekday %q", ErrValidation, s)
}
