package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/medtrack/backend/internal/domain"
)

// DoseRepo defines the persistence operations for materialized doses.
type DoseRepo interface {
	// InsertBatch inserts doses, skipping any whose (medication_time_id, date)
	// already exists. Returns how many rows were actually inserted.
	InsertBatch(ctx context.Context, doses []domain.Dose) (int, error)

	// GetByID retrieves a dose with its display fields.
	// Returns domain.ErrNotFound if no dose with that id exists.
	GetByID(ctx context.Context, id int64) (domain.DoseView, error)

	// ListByMedication returns every dose of a medication ordered by
	// scheduled_at ascending.
	ListByMedication(ctx context.Context, medicationID int64) ([]domain.DoseView, error)

	// ListByMedicationPaged returns one page of ListByMedication plus the
	// total number of doses the medication has.
	ListByMedicationPaged(ctx context.Context, medicationID int64, p domain.PaginationParams) ([]domain.DoseView, int64, error)

	// ListByRecipient returns every dose of every medication of the
	// recipient, archived medications included, ordered by scheduled_at.
	ListByRecipient(ctx context.Context, recipientID int64) ([]domain.DoseView, error)

	// ListInRange returns the recipient's doses with scheduled_at in
	// [from, to], ordered by scheduled_at ascending. Doses of archived
	// medications are excluded.
	ListInRange(ctx context.Context, recipientID int64, from, to time.Time) ([]domain.DoseView, error)

	// MarkTaken sets taken_at on a pending dose. A dose that is already taken
	// keeps its original taken_at; that is not an error.
	// Returns domain.ErrNotFound if no dose with that id exists.
	MarkTaken(ctx context.Context, id int64, at time.Time) (domain.DoseView, error)
}

type sqliteDoseRepo struct {
	db db
}

// NewDoseRepo constructs a DoseRepo over conn.
func NewDoseRepo(conn db) DoseRepo {
	return &sqliteDoseRepo{db: conn}
}

// doseViewSelect joins each dose with the medication and schedule entry that
// produced it.
const doseViewSelect = `
	SELECT d.id, d.medication_id, d.medication_time_id, d.scheduled_at, d.date, d.time,
	       d.taken_at, d.created_at, m.name, m.dosage, mt.weekday
	FROM medication_doses d
	JOIN medications m       ON m.id = d.medication_id
	JOIN medication_times mt ON mt.id = d.medication_time_id`

func (r *sqliteDoseRepo) InsertBatch(ctx context.Context, doses []domain.Dose) (int, error) {
	const q = `
		INSERT INTO medication_doses (medication_id, medication_time_id, scheduled_at, date, time)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (medication_time_id, date) DO NOTHING`

	inserted := 0
	for _, d := range doses {
		res, err := r.db.ExecContext(ctx, q,
			d.MedicationID, d.MedicationTimeID, formatInstant(d.ScheduledAt), d.Date, d.Time)
		if err != nil {
			return inserted, fmt.Errorf("repo.DoseRepo.InsertBatch: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("repo.DoseRepo.InsertBatch: rows affected: %w", err)
		}
		inserted += int(n)
	}
	return inserted, nil
}

func (r *sqliteDoseRepo) GetByID(ctx context.Context, id int64) (domain.DoseView, error) {
	const q = doseViewSelect + ` WHERE d.id = ?`

	result, err := scanDoseView(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return domain.DoseView{}, fmt.Errorf("repo.DoseRepo.GetByID: %w", err)
	}
	return result, nil
}

func (r *sqliteDoseRepo) ListByMedication(ctx context.Context, medicationID int64) ([]domain.DoseView, error) {
	const q = doseViewSelect + `
		WHERE d.medication_id = ?
		ORDER BY d.scheduled_at, d.id`

	return r.list(ctx, "ListByMedication", q, medicationID)
}

func (r *sqliteDoseRepo) ListByMedicationPaged(ctx context.Context, medicationID int64, p domain.PaginationParams) ([]domain.DoseView, int64, error) {
	const countQ = `SELECT COUNT(*) FROM medication_doses WHERE medication_id = ?`
	const q = doseViewSelect + `
		WHERE d.medication_id = ?
		ORDER BY d.scheduled_at, d.id
		LIMIT ? OFFSET ?`

	var total int64
	if err := r.db.QueryRowContext(ctx, countQ, medicationID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repo.DoseRepo.ListByMedicationPaged: count: %w", err)
	}

	doses, err := r.list(ctx, "ListByMedicationPaged", q, medicationID, p.Limit, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	return doses, total, nil
}

func (r *sqliteDoseRepo) ListByRecipient(ctx context.Context, recipientID int64) ([]domain.DoseView, error) {
	const q = doseViewSelect + `
		WHERE m.recipient_id = ?
		ORDER BY d.scheduled_at, d.id`

	return r.list(ctx, "ListByRecipient", q, recipientID)
}

func (r *sqliteDoseRepo) ListInRange(ctx context.Context, recipientID int64, from, to time.Time) ([]domain.DoseView, error) {
	const q = doseViewSelect + `
		WHERE m.recipient_id = ?
		  AND m.inactive_at IS NULL
		  AND d.scheduled_at BETWEEN ? AND ?
		ORDER BY d.scheduled_at, d.id`

	return r.list(ctx, "ListInRange", q, recipientID, formatInstant(from), formatInstant(to))
}

func (r *sqliteDoseRepo) list(ctx context.Context, op, q string, args ...any) ([]domain.DoseView, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("repo.DoseRepo.%s: %w", op, err)
	}
	defer rows.Close()

	var out []domain.DoseView
	for rows.Next() {
		d, err := scanDoseView(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.DoseRepo.%s: scan: %w", op, err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.DoseRepo.%s: rows: %w", op, err)
	}
	return out, nil
}

func (r *sqliteDoseRepo) MarkTaken(ctx context.Context, id int64, at time.Time) (domain.DoseView, error) {
	const q = `UPDATE medication_doses SET taken_at = ? WHERE id = ? AND taken_at IS NULL`

	if _, err := r.db.ExecContext(ctx, q, formatInstant(at), id); err != nil {
		return domain.DoseView{}, fmt.Errorf("repo.DoseRepo.MarkTaken: %w", err)
	}

	// Zero rows affected means either unknown id or already taken; the read
	// tells the two apart.
	result, err := r.GetByID(ctx, id)
	if err != nil {
		return domain.DoseView{}, fmt.Errorf("repo.DoseRepo.MarkTaken: %w", err)
	}
	return result, nil
}

func scanDoseView(s scanner) (domain.DoseView, error) {
	var (
		v                      domain.DoseView
		scheduledAt, createdAt string
		takenAt                sql.NullString
		weekday                string
	)
	err := s.Scan(&v.ID, &v.MedicationID, &v.MedicationTimeID, &scheduledAt, &v.Date, &v.Time,
		&takenAt, &createdAt, &v.MedicationName, &v.Dosage, &weekday)
	if err != nil {
		return domain.DoseView{}, notFound(err)
	}

	v.Weekday = domain.Weekday(weekday)
	if v.ScheduledAt, err = parseInstant(scheduledAt); err != nil {
		return domain.DoseView{}, err
	}
	if v.TakenAt, err = parseNullInstant(takenAt); err != nil {
		return domain.DoseView{}, err
	}
	if v.CreatedAt, err = parseInstant(createdAt); err != nil {
		return domain.DoseView{}, err
	}
	return v, nil
}
