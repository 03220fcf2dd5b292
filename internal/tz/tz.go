// Package tz converts between a recipient's local wall-clock time and UTC
// instants using the IANA timezone database.
//
// The tzdata is embedded into the binary so conversions do not depend on the
// zoneinfo files of the host the service happens to run on.
package tz

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/medtrack/backend/internal/domain"
)

const (
	// DateLayout formats a local calendar date.
	DateLayout = "2006-01-02"
	// DateTimeLayout is the local wall-clock form accepted by ToUTC.
	DateTimeLayout = "2006-01-02T15:04:05"
	// ClockLayout is the time-of-day form stored on medication times.
	ClockLayout = "15:04"
)

// Load resolves an IANA zone name. Empty names and "Local" are rejected so a
// recipient's schedule never silently follows the host's zone.
func Load(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "Local" {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidTimezone, name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", domain.ErrInvalidTimezone, name, err)
	}
	return loc, nil
}

// WeekdayOf returns the local weekday name of instant in timezone.
func WeekdayOf(timezone string, instant time.Time) (domain.Weekday, error) {
	loc, err := Load(timezone)
	if err != nil {
		return "", err
	}
	return WeekdayIn(loc, instant), nil
}

// WeekdayIn is WeekdayOf for an already resolved location.
func WeekdayIn(loc *time.Location, instant time.Time) domain.Weekday {
	return domain.WeekdayFrom(instant.In(loc).Weekday())
}

// LocalDate formats instant as local time in timezone using a Go layout,
// typically DateLayout or DateTimeLayout.
func LocalDate(instant time.Time, timezone, layout string) (string, error) {
	loc, err := Load(timezone)
	if err != nil {
		return "", err
	}
	return DateIn(loc, instant, layout), nil
}

// DateIn is LocalDate for an already resolved location.
func DateIn(loc *time.Location, instant time.Time, layout string) string {
	return instant.In(loc).Format(layout)
}

// ToUTC interprets local ("2006-01-02T15:04:05") as wall-clock time in
// timezone and returns the equivalent UTC instant.
//
// A wall time that occurs twice (clocks falling back) resolves to the earlier
// instant. A wall time that never occurs (clocks springing forward) is read
// with the offset in effect before the transition, which lands it after the
// gap: 02:30 on a US spring-forward day becomes 03:30 daylight time.
func ToUTC(local, timezone string) (time.Time, error) {
	loc, err := Load(timezone)
	if err != nil {
		return time.Time{}, err
	}
	return ToUTCIn(local, loc)
}

// ToUTCIn is ToUTC for an already resolved location.
func ToUTCIn(local string, loc *time.Location) (time.Time, error) {
	wall, err := time.Parse(DateTimeLayout, local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: local datetime %q must be YYYY-MM-DDTHH:MM:SS", domain.ErrValidation, local)
	}
	return resolve(wall, loc), nil
}

// resolve maps a wall clock (carried in a UTC time.Time) onto loc.
// A transition is never closer than a day to another one, so the offsets in
// effect a day either side cover every candidate reading of the wall clock.
func resolve(wall time.Time, loc *time.Location) time.Time {
	_, before := wall.Add(-24 * time.Hour).In(loc).Zone()
	_, after := wall.Add(24 * time.Hour).In(loc).Zone()

	var best time.Time
	for _, off := range []int{before, after} {
		cand := wall.Add(-time.Duration(off) * time.Second)
		if !sameWall(cand.In(loc), wall) {
			continue
		}
		if best.IsZero() || cand.Before(best) {
			best = cand
		}
	}
	if best.IsZero() {
		best = wall.Add(-time.Duration(before) * time.Second)
	}
	return best.UTC()
}

func sameWall(t, wall time.Time) bool {
	y1, m1, d1 := t.Date()
	y2, m2, d2 := wall.Date()
	return y1 == y2 && m1 == m2 && d1 == d2 &&
		t.Hour() == wall.Hour() && t.Minute() == wall.Minute() && t.Second() == wall.Second()
}
