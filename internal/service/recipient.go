// Package service implements the business rules of the medication tracker:
// input validation, active-name uniqueness, dose generation and the
// upcoming-dose windows. Services depend on repo interfaces only.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/medtrack/backend/internal/domain"
	"github.com/medtrack/backend/internal/repo"
	"github.com/medtrack/backend/internal/tz"
)

// DefaultTimezone is assigned to recipients created without one.
const DefaultTimezone = "America/Denver"

// RecipientService implements business logic for care recipients.
type RecipientService struct {
	recipients      repo.RecipientRepo
	defaultTimezone string
}

// NewRecipientService constructs a RecipientService. An empty
// defaultTimezone selects DefaultTimezone.
func NewRecipientService(r repo.RecipientRepo, defaultTimezone string) *RecipientService {
	if defaultTimezone == "" {
		defaultTimezone = DefaultTimezone
	}
	return &RecipientService{recipients: r, defaultTimezone: defaultTimezone}
}

// List returns all recipients ordered by name.
// Always returns a non-nil slice so callers can safely range over it.
func (s *RecipientService) List(ctx context.Context) ([]domain.Recipient, error) {
	out, err := s.recipients.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.RecipientService.List: %w", err)
	}
	if out == nil {
		return []domain.Recipient{}, nil
	}
	return out, nil
}

// Get returns a single recipient.
// Returns domain.ErrNotFound if it does not exist.
func (s *RecipientService) Get(ctx context.Context, id int64) (domain.Recipient, error) {
	r, err := s.recipients.GetByID(ctx, id)
	if err != nil {
		return domain.Recipient{}, fmt.Errorf("service.RecipientService.Get: %w", err)
	}
	return r, nil
}

// Create validates and persists a new recipient. An empty timezone gets the
// service default. The timezone is fixed from then on: doses already
// materialized were computed against it.
// Returns domain.ErrValidation for a blank name and domain.ErrInvalidTimezone
// for an unresolvable zone.
func (s *RecipientService) Create(ctx context.Context, name, timezone string) (domain.Recipient, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Recipient{}, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}

	timezone = strings.TrimSpace(timezone)
	if timezone == "" {
		timezone = s.defaultTimezone
	}
	loc, err := tz.Load(timezone)
	if err != nil {
		return domain.Recipient{}, fmt.Errorf("service.RecipientService.Create: %w", err)
	}

	r, err := s.recipients.Create(ctx, domain.Recipient{Name: name, Timezone: loc.String()})
	if err != nil {
		return domain.Recipient{}, fmt.Errorf("service.RecipientService.Create: %w", err)
	}
	return r, nil
}
