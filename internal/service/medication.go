package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/medtrack/backend/internal/domain"
	"github.com/medtrack/backend/internal/repo"
	"github.com/medtrack/backend/internal/tz"
)

// MedicationService implements business logic for medications and their
// schedules. It holds the whole Store because creating a medication writes
// the medication, its times and its first doses in one transaction.
type MedicationService struct {
	store repo.Store
	gen   *DoseGenerator
	now   func() time.Time
}

// NewMedicationService constructs a MedicationService. A nil now selects
// time.Now.
func NewMedicationService(store repo.Store, gen *DoseGenerator, now func() time.Time) *MedicationService {
	if now == nil {
		now = time.Now
	}
	return &MedicationService{store: store, gen: gen, now: now}
}

// List returns the recipient's medications, active and archived, by name.
// Returns domain.ErrNotFound if the recipient does not exist.
func (s *MedicationService) List(ctx context.Context, recipientID int64) ([]domain.Medication, error) {
	if _, err := s.store.Recipients().GetByID(ctx, recipientID); err != nil {
		return nil, fmt.Errorf("service.MedicationService.List: %w", err)
	}
	out, err := s.store.Medications().ListByRecipient(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("service.MedicationService.List: %w", err)
	}
	if out == nil {
		return []domain.Medication{}, nil
	}
	return out, nil
}

// Get returns one medication scoped to its recipient.
func (s *MedicationService) Get(ctx context.Context, recipientID, id int64) (domain.Medication, error) {
	m, err := s.store.Medications().GetForRecipient(ctx, recipientID, id)
	if err != nil {
		return domain.Medication{}, fmt.Errorf("service.MedicationService.Get: %w", err)
	}
	return m, nil
}

// Schedule returns the medication's schedule entries.
func (s *MedicationService) Schedule(ctx context.Context, recipientID, id int64) ([]domain.MedicationTime, error) {
	if _, err := s.store.Medications().GetForRecipient(ctx, recipientID, id); err != nil {
		return nil, fmt.Errorf("service.MedicationService.Schedule: %w", err)
	}
	out, err := s.store.Medications().ListTimes(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service.MedicationService.Schedule: %w", err)
	}
	if out == nil {
		return []domain.MedicationTime{}, nil
	}
	return out, nil
}

// Create validates in, then in one transaction checks active-name
// uniqueness, inserts the medication and its schedule entries, and
// materializes the doses of the look-ahead window.
// Returns domain.ErrValidation, domain.ErrNotFound (unknown recipient) or
// domain.ErrDuplicateActiveMedication.
func (s *MedicationService) Create(ctx context.Context, in domain.NewMedication) (domain.Medication, error) {
	in, err := normalizeNewMedication(in)
	if err != nil {
		return domain.Medication{}, err
	}

	var created domain.Medication
	err = s.store.WithinTx(ctx, func(tx repo.Store) error {
		rec, err := tx.Recipients().GetByID(ctx, in.RecipientID)
		if err != nil {
			return err
		}
		loc, err := tz.Load(rec.Timezone)
		if err != nil {
			return err
		}
		start, end, schedule, err := resolveDays(in, loc, s.now())
		if err != nil {
			return err
		}
		if err := ensureNameAvailable(ctx, tx.Medications(), in.RecipientID, in.Name, 0); err != nil {
			return err
		}

		created, err = tx.Medications().Create(ctx, domain.Medication{
			RecipientID:  in.RecipientID,
			Name:         in.Name,
			Dosage:       in.Dosage,
			Instructions: in.Instructions,
			Recurrence:   in.Recurrence,
			StartAt:      start,
			EndAt:        end,
		})
		if err != nil {
			return err
		}

		times, err := tx.Medications().CreateTimes(ctx, created.ID, schedule)
		if err != nil {
			return err
		}
		_, err = s.gen.generate(ctx, tx.Doses(), rec, created, times)
		return err
	})
	if err != nil {
		return domain.Medication{}, fmt.Errorf("service.MedicationService.Create: %w", err)
	}
	return created, nil
}

// SetActive archives (active=false) or restores (active=true) a medication.
// Archiving an archived medication keeps its original inactivation time.
// Restoring re-checks name uniqueness and tops up the dose window, since no
// doses were generated while it was archived.
func (s *MedicationService) SetActive(ctx context.Context, recipientID, id int64, active bool) (domain.Medication, error) {
	var result domain.Medication
	err := s.store.WithinTx(ctx, func(tx repo.Store) error {
		m, err := tx.Medications().GetForRecipient(ctx, recipientID, id)
		if err != nil {
			return err
		}
		if m.Active() == active {
			result = m
			return nil
		}

		if !active {
			now := s.now()
			result, err = tx.Medications().SetInactive(ctx, recipientID, id, &now)
			return err
		}

		if err := ensureNameAvailable(ctx, tx.Medications(), recipientID, m.Name, m.ID); err != nil {
			return err
		}
		if result, err = tx.Medications().SetInactive(ctx, recipientID, id, nil); err != nil {
			return err
		}
		_, err = s.gen.Generate(ctx, tx, id)
		return err
	})
	if err != nil {
		return domain.Medication{}, fmt.Errorf("service.MedicationService.SetActive: %w", err)
	}
	return result, nil
}

// ensureNameAvailable fails with domain.ErrDuplicateActiveMedication when
// another active medication of the recipient (other than exceptID) already
// uses name. The partial unique index is the backstop for the narrow race
// between this check and the write.
func ensureNameAvailable(ctx context.Context, meds repo.MedicationRepo, recipientID int64, name string, exceptID int64) error {
	existing, err := meds.FindActiveByName(ctx, recipientID, name)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID == exceptID:
		return nil
	default:
		return fmt.Errorf("%w: %q", domain.ErrDuplicateActiveMedication, name)
	}
}

// normalizeNewMedication trims and validates a create request as far as
// possible without the recipient's timezone.
//   - Name and dosage must be non-empty.
//   - Recurrence defaults to daily.
//   - A bare end date must not precede a bare start date.
//   - The schedule must be non-empty; each time must be HH:MM. Weekly entries
//     need a weekday; daily entries may omit it.
func normalizeNewMedication(in domain.NewMedication) (domain.NewMedication, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Dosage = strings.TrimSpace(in.Dosage)
	in.Instructions = strings.TrimSpace(in.Instructions)

	if in.Name == "" {
		return in, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if in.Dosage == "" {
		return in, fmt.Errorf("%w: dosage is required", domain.ErrValidation)
	}

	rec, err := domain.ParseRecurrence(string(in.Recurrence))
	if err != nil {
		return in, err
	}
	in.Recurrence = rec

	if in.EndAt != nil && !in.EndAt.Instant && !in.StartAt.IsZero() && !in.StartAt.Instant &&
		in.EndAt.At.Before(in.StartAt.At) {
		return in, errEndBeforeStart
	}

	if len(in.Schedule) == 0 {
		return in, fmt.Errorf("%w: schedule must contain at least one time", domain.ErrValidation)
	}
	schedule := make([]domain.ScheduleEntry, 0, len(in.Schedule))
	for i, e := range in.Schedule {
		clock, err := time.Parse(tz.ClockLayout, strings.TrimSpace(e.Time))
		if err != nil {
			return in, fmt.Errorf("%w: schedule[%d].time must be HH:MM", domain.ErrValidation, i)
		}
		e.Time = clock.Format(tz.ClockLayout)

		switch {
		case e.Weekday != "":
			wd, err := domain.ParseWeekday(string(e.Weekday))
			if err != nil {
				return in, fmt.Errorf("schedule[%d]: %w", i, err)
			}
			e.Weekday = wd
		case in.Recurrence != domain.RecurrenceDaily:
			return in, fmt.Errorf("%w: schedule[%d].weekday is required for %s recurrence", domain.ErrValidation, i, in.Recurrence)
		}
		schedule = append(schedule, e)
	}
	in.Schedule = schedule
	return in, nil
}

var errEndBeforeStart = fmt.Errorf("%w: end_at must not be before start_at", domain.ErrValidation)

// resolveDays turns the requested start and end into calendar dates in loc.
// A missing start is the local date of now. Daily entries without a weekday
// take the start date's weekday.
func resolveDays(in domain.NewMedication, loc *time.Location, now time.Time) (time.Time, *time.Time, []domain.ScheduleEntry, error) {
	startDay := in.StartAt
	if startDay.IsZero() {
		startDay = domain.InstantDay(now)
	}
	start := startDay.In(loc)

	var end *time.Time
	if in.EndAt != nil && !in.EndAt.IsZero() {
		e := in.EndAt.In(loc)
		if e.Before(start) {
			return time.Time{}, nil, nil, errEndBeforeStart
		}
		end = &e
	}

	schedule := make([]domain.ScheduleEntry, len(in.Schedule))
	for i, e := range in.Schedule {
		if e.Weekday == "" {
			e.Weekday = domain.WeekdayFrom(start.Weekday())
		}
		schedule[i] = e
	}
	return start, end, schedule, nil
}
