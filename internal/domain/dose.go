package domain

import (
	"fmt"
	"strings"
	"time"
)

// Dose is one concrete, timezone-resolved instance of "take this medication
// at this local time on this local date". ScheduledAt is always UTC.
// Doses are created in batch by the generator and only ever updated to set
// TakenAt.
type Dose struct {
	ID               int64      `json:"id"`
	MedicationID     int64      `json:"medication_id"`
	MedicationTimeID int64      `json:"medication_time_id"`
	ScheduledAt      time.Time  `json:"scheduled_at"`
	Date             string     `json:"date"` // recipient-local "2006-01-02"
	Time             string     `json:"time"` // recipient-local "15:04"
	TakenAt          *time.Time `json:"taken_at,omitempty"` // nil while pending
	CreatedAt        time.Time  `json:"created_at"`
}

// Taken reports whether the dose has been marked as taken.
func (d Dose) Taken() bool {
	return d.TakenAt != nil
}

// DoseView is a Dose joined with the display fields of its medication and
// the weekday of the schedule entry that produced it.
// LocalScheduledAt is ScheduledAt rendered as recipient-local wall-clock time
// ("2006-01-02T15:04:05"); it is filled in by the service layer.
type DoseView struct {
	Dose
	MedicationName   string  `json:"medication_name"`
	Dosage           string  `json:"dosage"`
	Weekday          Weekday `json:"weekday"`
	LocalScheduledAt string  `json:"local_scheduled_at,omitempty"`
}

// Window selects the range of upcoming doses.
type Window string

const (
	// WindowToday is local [00:00:00, 23:59:59] of the recipient's current date.
	WindowToday Window = "today"
	// WindowNext7Days is local [00:00:00 today, 23:59:59 today+7].
	WindowNext7Days Window = "next7days"
)

// ParseWindow accepts the window names plus the "daily"/"weekly" period
// values older clients send. An empty string means today.
func ParseWindow(s string) (Window, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "today", "daily":
		return WindowToday, nil
	case "next7days", "weekly", "week":
		return WindowNext7Days, nil
	default:
		return "", fmt.Errorf("%w: unknown window %q", ErrValidation, s)
	}
}
