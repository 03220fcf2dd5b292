package domain

import (
	"fmt"
	"strings"
	"time"
)

// Recurrence describes how a medication's times map onto calendar days.
type Recurrence string

const (
	// RecurrenceDaily applies every medication time on every day.
	RecurrenceDaily Recurrence = "daily"
	// RecurrenceWeekly applies a medication time only on its stated weekday.
	RecurrenceWeekly Recurrence = "weekly"
	// RecurrenceNone is accepted for compatibility; times are matched by
	// weekday exactly as for weekly.
	RecurrenceNone Recurrence = "none"
)

// ParseRecurrence validates s. An empty string defaults to daily.
func ParseRecurrence(s string) (Recurrence, error) {
	switch r := Recurrence(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RecurrenceDaily, nil
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceNone:
		return r, nil
	default:
		return "", fmt.Errorf("%w: recurrence must be one of daily, weekly, none", ErrValidation)
	}
}

// Medication belongs to exactly one Recipient. It is never physically
// deleted; archiving sets InactiveAt.
type Medication struct {
	ID           int64      `json:"id"`
	RecipientID  int64      `json:"recipient_id"`
	Name         string     `json:"name"`
	Dosage       string     `json:"dosage"`
	Instructions string     `json:"instructions,omitempty"`
	Recurrence   Recurrence `json:"recurrence"`
	StartAt      time.Time  `json:"start_at"`
	EndAt        *time.Time `json:"end_at,omitempty"`      // nil when open-ended
	InactiveAt   *time.Time `json:"inactive_at,omitempty"` // nil while active
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Active reports whether the medication has not been archived.
func (m Medication) Active() bool {
	return m.InactiveAt == nil
}

// MedicationTime is one schedule entry: a local time of day on a weekday.
// For daily medications the weekday is informational only.
type MedicationTime struct {
	ID           int64   `json:"id"`
	MedicationID int64   `json:"medication_id"`
	Weekday      Weekday `json:"weekday"`
	Time         string  `json:"time"` // "15:04"
}

// ScheduleEntry is a requested MedicationTime before it is persisted.
type ScheduleEntry struct {
	Weekday Weekday
	Time    string
}

// Day is a calendar day as a client sent it: either a bare date, or an
// instant whose day is the one it falls on in the recipient's timezone.
type Day struct {
	At      time.Time
	Instant bool
}

// Date returns a bare calendar date.
func Date(year int, month time.Month, day int) Day {
	return Day{At: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// InstantDay returns the day t falls on, resolved later in the recipient's
// timezone.
func InstantDay(t time.Time) Day {
	return Day{At: t, Instant: true}
}

// IsZero reports whether no day was given.
func (d Day) IsZero() bool { return d.At.IsZero() }

// In returns the calendar day as midnight UTC. Instants are converted to loc
// first; bare dates ignore it.
func (d Day) In(loc *time.Location) time.Time {
	t := d.At
	if d.Instant {
		t = t.In(loc)
	}
	y, m, day := t.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

// NewMedication carries everything needed to create a medication and its
// schedule in one operation. A zero StartAt means the recipient's today.
type NewMedication struct {
	RecipientID  int64
	Name         string
	Dosage       string
	Instructions string
	Recurrence   Recurrence
	StartAt      Day
	EndAt        *Day
	Schedule     []ScheduleEntry
}
