package service

import (
	"context"
	"fmt"
	"time"

	"github.com/medtrack/backend/internal/domain"
	"github.com/medtrack/backend/internal/repo"
	"github.com/medtrack/backend/internal/tz"
)

// DoseService implements the dose queries and the take/refresh mutations.
type DoseService struct {
	store repo.Store
	gen   *DoseGenerator
	now   func() time.Time
}

// NewDoseService constructs a DoseService. A nil now selects time.Now.
func NewDoseService(store repo.Store, gen *DoseGenerator, now func() time.Time) *DoseService {
	if now == nil {
		now = time.Now
	}
	return &DoseService{store: store, gen: gen, now: now}
}

// Upcoming returns the recipient's doses in window, ordered by scheduled
// instant, excluding archived medications. The window is computed on the
// recipient's local calendar:
//   - today: local [00:00:00, 23:59:59] of the current local date
//   - next7days: local [00:00:00 today, 23:59:59 today+7]
func (s *DoseService) Upcoming(ctx context.Context, recipientID int64, window domain.Window) ([]domain.DoseView, error) {
	rec, err := s.store.Recipients().GetByID(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("service.DoseService.Upcoming: %w", err)
	}
	loc, err := tz.Load(rec.Timezone)
	if err != nil {
		return nil, fmt.Errorf("service.DoseService.Upcoming: %w", err)
	}

	from, to, err := windowBounds(loc, s.now(), window)
	if err != nil {
		return nil, fmt.Errorf("service.DoseService.Upcoming: %w", err)
	}

	doses, err := s.store.Doses().ListInRange(ctx, recipientID, from, to)
	if err != nil {
		return nil, fmt.Errorf("service.DoseService.Upcoming: %w", err)
	}
	return localize(loc, doses), nil
}

// ForMedication returns every dose of the medication, oldest first.
func (s *DoseService) ForMedication(ctx context.Context, recipientID, medicationID int64) ([]domain.DoseView, error) {
	loc, err := s.medicationLocation(ctx, recipientID, medicationID)
	if err != nil {
		return nil, fmt.Errorf("service.DoseService.ForMedication: %w", err)
	}
	doses, err := s.store.Doses().ListByMedication(ctx, medicationID)
	if err != nil {
		return nil, fmt.Errorf("service.DoseService.ForMedication: %w", err)
	}
	return localize(loc, doses), nil
}

// ForMedicationPaged returns one page of ForMedication and the total count.
func (s *DoseService) ForMedicationPaged(ctx context.Context, recipientID, medicationID int64, p domain.PaginationParams) ([]domain.DoseView, int64, error) {
	loc, err := s.medicationLocation(ctx, recipientID, medicationID)
	if err != nil {
		return nil, 0, fmt.Errorf("service.DoseService.ForMedicationPaged: %w", err)
	}
	doses, total, err := s.store.Doses().ListByMedicationPaged(ctx, medicationID, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.DoseService.ForMedicationPaged: %w", err)
	}
	return localize(loc, doses), total, nil
}

// MarkTaken records that the dose was taken now. Marking a dose that is
// already taken succeeds and keeps the first taken_at.
// Returns domain.ErrNotFound if the dose does not exist or belongs to a
// medication of another recipient.
func (s *DoseService) MarkTaken(ctx context.Context, recipientID, doseID int64) (domain.DoseView, error) {
	var result domain.DoseView
	err := s.store.WithinTx(ctx, func(tx repo.Store) error {
		d, err := tx.Doses().GetByID(ctx, doseID)
		if err != nil {
			return err
		}
		if _, err := tx.Medications().GetForRecipient(ctx, recipientID, d.MedicationID); err != nil {
			return err
		}
		result, err = tx.Doses().MarkTaken(ctx, doseID, s.now())
		return err
	})
	if err != nil {
		return domain.DoseView{}, fmt.Errorf("service.DoseService.MarkTaken: %w", err)
	}
	return result, nil
}

// Refresh tops up the look-ahead window for every active medication of the
// recipient and returns how many doses were added. Existing doses are left
// alone, so Refresh may run as often as needed.
func (s *DoseService) Refresh(ctx context.Context, recipientID int64) (int, error) {
	total := 0
	err := s.store.WithinTx(ctx, func(tx repo.Store) error {
		rec, err := tx.Recipients().GetByID(ctx, recipientID)
		if err != nil {
			return err
		}
		meds, err := tx.Medications().ListActive(ctx, recipientID)
		if err != nil {
			return err
		}
		for _, m := range meds {
			times, err := tx.Medications().ListTimes(ctx, m.ID)
			if err != nil {
				return err
			}
			n, err := s.gen.generate(ctx, tx.Doses(), rec, m, times)
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("service.DoseService.Refresh: %w", err)
	}
	return total, nil
}

func (s *DoseService) medicationLocation(ctx context.Context, recipientID, medicationID int64) (*time.Location, error) {
	rec, err := s.store.Recipients().GetByID(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Medications().GetForRecipient(ctx, recipientID, medicationID); err != nil {
		return nil, err
	}
	return tz.Load(rec.Timezone)
}

// windowBounds converts a window on the local calendar of loc into the UTC
// range [from, to] used by the range query.
func windowBounds(loc *time.Location, now time.Time, window domain.Window) (time.Time, time.Time, error) {
	today := tz.DateIn(loc, now, tz.DateLayout)

	var lastDay string
	switch window {
	case domain.WindowToday:
		lastDay = today
	case domain.WindowNext7Days:
		y, m, d := now.In(loc).Date()
		lastDay = tz.DateIn(loc, time.Date(y, m, d+7, 12, 0, 0, 0, loc), tz.DateLayout)
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("%w: unknown window %q", domain.ErrValidation, window)
	}

	from, err := tz.ToUTCIn(today+"T00:00:00", loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := tz.ToUTCIn(lastDay+"T23:59:59", loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

// localize fills LocalScheduledAt with the recipient-local wall clock and
// guarantees a non-nil slice.
func localize(loc *time.Location, doses []domain.DoseView) []domain.DoseView {
	if doses == nil {
		return []domain.DoseView{}
	}
	for i := range doses {
		doses[i].LocalScheduledAt = tz.DateIn(loc, doses[i].ScheduledAt, tz.DateTimeLayout)
	}
	return doses
}
