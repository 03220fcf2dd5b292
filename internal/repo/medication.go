package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/medtrack/backend/internal/domain"
)

// MedicationRepo defines the persistence operations for medications and
// their schedule entries (medication_times).
type MedicationRepo interface {
	// Create inserts a medication. Returns domain.ErrDuplicateActiveMedication
	// if the recipient already has an active medication with the same name.
	Create(ctx context.Context, m domain.Medication) (domain.Medication, error)

	// GetByID retrieves a medication by id regardless of owner.
	GetByID(ctx context.Context, id int64) (domain.Medication, error)

	// GetForRecipient retrieves a medication only if it belongs to recipientID.
	// Returns domain.ErrNotFound otherwise.
	GetForRecipient(ctx context.Context, recipientID, id int64) (domain.Medication, error)

	// FindActiveByName returns the recipient's active medication with name.
	// Returns domain.ErrNotFound when there is none.
	FindActiveByName(ctx context.Context, recipientID int64, name string) (domain.Medication, error)

	// ListByRecipient returns every medication of the recipient, active and
	// archived, ordered by name.
	ListByRecipient(ctx context.Context, recipientID int64) ([]domain.Medication, error)

	// ListActive returns the recipient's active medications.
	ListActive(ctx context.Context, recipientID int64) ([]domain.Medication, error)

	// SetInactive sets inactive_at to at, or clears it when at is nil.
	// Returns domain.ErrNotFound if the medication does not belong to the
	// recipient, and domain.ErrDuplicateActiveMedication if reactivating
	// would collide with another active medication's name.
	SetInactive(ctx context.Context, recipientID, id int64, at *time.Time) (domain.Medication, error)

	// CreateTimes bulk-inserts schedule entries. The caller guarantees that
	// medicationID exists.
	CreateTimes(ctx context.Context, medicationID int64, entries []domain.ScheduleEntry) ([]domain.MedicationTime, error)

	// ListTimes returns the medication's schedule entries ordered by weekday
	// (Monday first), then time of day.
	ListTimes(ctx context.Context, medicationID int64) ([]domain.MedicationTime, error)
}

type sqliteMedicationRepo struct {
	db db
}

// NewMedicationRepo constructs a MedicationRepo over conn.
func NewMedicationRepo(conn db) MedicationRepo {
	return &sqliteMedicationRepo{db: conn}
}

const medicationColumns = `id, recipient_id, name, dosage, instructions, recurrence,
	start_at, end_at, inactive_at, created_at, updated_at`

func (r *sqliteMedicationRepo) Create(ctx context.Context, m domain.Medication) (domain.Medication, error) {
	const q = `
		INSERT INTO medications (recipient_id, name, dosage, instructions, recurrence, start_at, end_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + medicationColumns

	row := r.db.QueryRowContext(ctx, q,
		m.RecipientID, m.Name, m.Dosage, m.Instructions, string(m.Recurrence),
		m.StartAt.Format(dateLayout), nullDate(m.EndAt),
	)
	result, err := scanMedication(row)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Medication{}, fmt.Errorf("repo.MedicationRepo.Create: %w", domain.ErrDuplicateActiveMedication)
		}
		return domain.Medication{}, fmt.Errorf("repo.MedicationRepo.Create: %w", err)
	}
	return result, nil
}

func (r *sqliteMedicationRepo) GetByID(ctx context.Context, id int64) (domain.Medication, error) {
	const q = `SELECT ` + medicationColumns + ` FROM medications WHERE id = ?`

	result, err := scanMedication(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return domain.Medication{}, fmt.Errorf("repo.MedicationRepo.GetByID: %w", err)
	}
	return result, nil
}

func (r *sqliteMedicationRepo) GetForRecipient(ctx context.Context, recipientID, id int64) (domain.Medication, error) {
	const q = `SELECT ` + medicationColumns + ` FROM medications WHERE id = ? AND recipient_id = ?`

	result, err := scanMedication(r.db.QueryRowContext(ctx, q, id, recipientID))
	if err != nil {
		return domain.Medication{}, fmt.Errorf("repo.MedicationRepo.GetForRecipient: %w", err)
	}
	return result, nil
}

func (r *sqliteMedicationRepo) FindActiveByName(ctx context.Context, recipientID int64, name string) (domain.Medication, error) {
	const q = `
		SELECT ` + medicationColumns + `
		FROM medications
		WHERE recipient_id = ? AND name = ? AND inactive_at IS NULL`

	result, err := scanMedication(r.db.QueryRowContext(ctx, q, recipientID, name))
	if err != nil {
		return domain.Medication{}, fmt.Errorf("repo.MedicationRepo.FindActiveByName: %w", err)
	}
	return result, nil
}

func (r *sqliteMedicationRepo) ListByRecipient(ctx context.Context, recipientID int64) ([]domain.Medication, error) {
	const q = `
		SELECT ` + medicationColumns + `
		FROM medications
		WHERE recipient_id = ?
		ORDER BY name, id`

	return r.list(ctx, "ListByRecipient", q, recipientID)
}

func (r *sqliteMedicationRepo) ListActive(ctx context.Context, recipientID int64) ([]domain.Medication, error) {
	const q = `
		SELECT ` + medicationColumns + `
		FROM medications
		WHERE recipient_id = ? AND inactive_at IS NULL
		ORDER BY id`

	return r.list(ctx, "ListActive", q, recipientID)
}

func (r *sqliteMedicationRepo) list(ctx context.Context, op, q string, args ...any) ([]domain.Medication, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("repo.MedicationRepo.%s: %w", op, err)
	}
	defer rows.Close()

	var out []domain.Medication
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.MedicationRepo.%s: scan: %w", op, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.MedicationRepo.%s: rows: %w", op, err)
	}
	return out, nil
}

func (r *sqliteMedicationRepo) SetInactive(ctx context.Context, recipientID, id int64, at *time.Time) (domain.Medication, error) {
	const q = `
		UPDATE medications
		SET inactive_at = ?,
		    updated_at  = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE id = ? AND recipient_id = ?
		RETURNING ` + medicationColumns

	result, err := scanMedication(r.db.QueryRowContext(ctx, q, nullInstant(at), id, recipientID))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Medication{}, fmt.Errorf("repo.MedicationRepo.SetInactive: %w", domain.ErrDuplicateActiveMedication)
		}
		return domain.Medication{}, fmt.Errorf("repo.MedicationRepo.SetInactive: %w", err)
	}
	return result, nil
}

func (r *sqliteMedicationRepo) CreateTimes(ctx context.Context, medicationID int64, entries []domain.ScheduleEntry) ([]domain.MedicationTime, error) {
	const q = `
		INSERT INTO medication_times (medication_id, weekday, time)
		VALUES (?, ?, ?)
		RETURNING id, medication_id, weekday, time`

	out := make([]domain.MedicationTime, 0, len(entries))
	for _, e := range entries {
		mt, err := scanMedicationTime(r.db.QueryRowContext(ctx, q, medicationID, string(e.Weekday), e.Time))
		if err != nil {
			return nil, fmt.Errorf("repo.MedicationRepo.CreateTimes: %w", err)
		}
		out = append(out, mt)
	}
	return out, nil
}

func (r *sqliteMedicationRepo) ListTimes(ctx context.Context, medicationID int64) ([]domain.MedicationTime, error) {
	const q = `
		SELECT id, medication_id, weekday, time
		FROM medication_times
		WHERE medication_id = ?
		ORDER BY CASE weekday
			WHEN 'Monday' THEN 1 WHEN 'Tuesday' THEN 2 WHEN 'Wednesday' THEN 3
			WHEN 'Thursday' THEN 4 WHEN 'Friday' THEN 5 WHEN 'Saturday' THEN 6
			ELSE 7 END,
			time, id`

	rows, err := r.db.QueryContext(ctx, q, medicationID)
	if err != nil {
		return nil, fmt.Errorf("repo.MedicationRepo.ListTimes: %w", err)
	}
	defer rows.Close()

	var out []domain.MedicationTime
	for rows.Next() {
		mt, err := scanMedicationTime(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.MedicationRepo.ListTimes: scan: %w", err)
		}
		out = append(out, mt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.MedicationRepo.ListTimes: rows: %w", err)
	}
	return out, nil
}

// scanMedication maps a row into a domain.Medication, converting the TEXT
// date and timestamp columns.
func scanMedication(s scanner) (domain.Medication, error) {
	var (
		m                    domain.Medication
		recurrence, startAt  string
		endAt, inactiveAt    sql.NullString
		createdAt, updatedAt string
	)
	err := s.Scan(&m.ID, &m.RecipientID, &m.Name, &m.Dosage, &m.Instructions, &recurrence,
		&startAt, &endAt, &inactiveAt, &createdAt, &updatedAt)
	if err != nil {
		return domain.Medication{}, notFound(err)
	}

	m.Recurrence = domain.Recurrence(recurrence)
	if m.StartAt, err = time.Parse(dateLayout, startAt); err != nil {
		return domain.Medication{}, fmt.Errorf("parse start_at %q: %w", startAt, err)
	}
	if m.EndAt, err = parseNullDate(endAt); err != nil {
		return domain.Medication{}, err
	}
	if m.InactiveAt, err = parseNullInstant(inactiveAt); err != nil {
		return domain.Medication{}, err
	}
	if m.CreatedAt, err = parseInstant(createdAt); err != nil {
		return domain.Medication{}, err
	}
	if m.UpdatedAt, err = parseInstant(updatedAt); err != nil {
		return domain.Medication{}, err
	}
	return m, nil
}

func scanMedicationTime(s scanner) (domain.MedicationTime, error) {
	var (
		mt      domain.MedicationTime
		weekday string
	)
	if err := s.Scan(&mt.ID, &mt.MedicationID, &weekday, &mt.Time); err != nil {
		return domain.MedicationTime{}, notFound(err)
	}
	mt.Weekday = domain.Weekday(weekday)
	return mt, nil
}
