package domain

import "time"

// ExportRow is a single row in a recipient's dose history export.
// It is a flat, denormalized view: one row per dose, with medication fields
// repeated for every dose of that medication.
type ExportRow struct {
	// Medication fields, repeated for every dose of the medication.
	MedicationID   int64
	MedicationName string
	Dosage         string
	Recurrence     Recurrence
	Archived       bool

	// Dose fields.
	DoseID           int64
	Date             string // recipient-local "2006-01-02"
	Time             string // recipient-local "15:04"
	Weekday          Weekday
	ScheduledAt      time.Time // UTC
	LocalScheduledAt string    // recipient-local "2006-01-02T15:04:05"
	TakenAt          *time.Time
}
