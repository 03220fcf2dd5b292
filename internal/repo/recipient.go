package repo

import (
	"context"
	"fmt"

	"github.com/medtrack/backend/internal/domain"
)

// RecipientRepo defines the persistence operations for care recipients.
type RecipientRepo interface {
	// Create inserts a new recipient and returns the persisted record
	// (with DB-assigned id and timestamps populated).
	Create(ctx context.Context, r domain.Recipient) (domain.Recipient, error)

	// GetByID retrieves a recipient by id.
	// Returns domain.ErrNotFound if no recipient with that id exists.
	GetByID(ctx context.Context, id int64) (domain.Recipient, error)

	// List returns all recipients ordered by name, then id.
	List(ctx context.Context) ([]domain.Recipient, error)
}

type sqliteRecipientRepo struct {
	db db
}

// NewRecipientRepo constructs a RecipientRepo over conn.
func NewRecipientRepo(conn db) RecipientRepo {
	return &sqliteRecipientRepo{db: conn}
}

const recipientColumns = `id, name, timezone, created_at, updated_at`

func (r *sqliteRecipientRepo) Create(ctx context.Context, rec domain.Recipient) (domain.Recipient, error) {
	const q = `
		INSERT INTO care_recipients (name, timezone)
		VALUES (?, ?)
		RETURNING ` + recipientColumns

	result, err := scanRecipient(r.db.QueryRowContext(ctx, q, rec.Name, rec.Timezone))
	if err != nil {
		return domain.Recipient{}, fmt.Errorf("repo.RecipientRepo.Create: %w", err)
	}
	return result, nil
}

func (r *sqliteRecipientRepo) GetByID(ctx context.Context, id int64) (domain.Recipient, error) {
	const q = `SELECT ` + recipientColumns + ` FROM care_recipients WHERE id = ?`

	result, err := scanRecipient(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return domain.Recipient{}, fmt.Errorf("repo.RecipientRepo.GetByID: %w", err)
	}
	return result, nil
}

func (r *sqliteRecipientRepo) List(ctx context.Context) ([]domain.Recipient, error) {
	const q = `SELECT ` + recipientColumns + ` FROM care_recipients ORDER BY name, id`

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("repo.RecipientRepo.List: %w", err)
	}
	defer rows.Close()

	var out []domain.Recipient
	for rows.Next() {
		rec, err := scanRecipient(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.RecipientRepo.List: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.RecipientRepo.List: rows: %w", err)
	}
	return out, nil
}

func scanRecipient(s scanner) (domain.Recipient, error) {
	var (
		rec                  domain.Recipient
		createdAt, updatedAt string
	)
	if err := s.Scan(&rec.ID, &rec.Name, &rec.Timezone, &createdAt, &updatedAt); err != nil {
		return domain.Recipient{}, notFound(err)
	}

	var err error
	if rec.CreatedAt, err = parseInstant(createdAt); err != nil {
		return domain.Recipient{}, err
	}
	if rec.UpdatedAt, err = parseInstant(updatedAt); err != nil {
		return domain.Recipient{}, err
	}
	return rec, nil
}
