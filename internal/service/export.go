package service

import (
	"context"
	"fmt"

	"github.com/medtrack/backend/internal/domain"
	"github.com/medtrack/backend/internal/repo"
	"github.com/medtrack/backend/internal/tz"
)

// ExportService assembles a flat export of a recipient's dose history.
type ExportService struct {
	store repo.Store
}

// NewExportService constructs an ExportService backed by the provided store.
func NewExportService(store repo.Store) *ExportService {
	return &ExportService{store: store}
}

// Export returns one ExportRow per dose across all of the recipient's
// medications, archived ones included, ordered by scheduled instant.
// Returns domain.ErrNotFound if the recipient does not exist.
func (s *ExportService) Export(ctx context.Context, recipientID int64) ([]domain.ExportRow, error) {
	rec, err := s.store.Recipients().GetByID(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("service.ExportService.Export: %w", err)
	}
	loc, err := tz.Load(rec.Timezone)
	if err != nil {
		return nil, fmt.Errorf("service.ExportService.Export: %w", err)
	}

	meds, err := s.store.Medications().ListByRecipient(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("service.ExportService.Export: %w", err)
	}
	byID := make(map[int64]domain.Medication, len(meds))
	for _, m := range meds {
		byID[m.ID] = m
	}

	doses, err := s.store.Doses().ListByRecipient(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("service.ExportService.Export: %w", err)
	}

	rows := make([]domain.ExportRow, 0, len(doses))
	for _, d := range doses {
		m := byID[d.MedicationID]
		rows = append(rows, domain.ExportRow{
			MedicationID:     d.MedicationID,
			MedicationName:   d.MedicationName,
			Dosage:           d.Dosage,
			Recurrence:       m.Recurrence,
			Archived:         !m.Active(),
			DoseID:           d.ID,
			Date:             d.Date,
			Time:             d.Time,
			Weekday:          d.Weekday,
			ScheduledAt:      d.ScheduledAt,
			LocalScheduledAt: tz.DateIn(loc, d.ScheduledAt, tz.DateTimeLayout),
			TakenAt:          d.TakenAt,
		})
	}
	return rows, nil
}
