package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/medtrack/backend/internal/domain"
	"github.com/medtrack/backend/internal/repo"
	"github.com/medtrack/backend/internal/tz"
)

// DefaultLookaheadDays is how many local calendar days of doses are
// materialized when a medication is created.
const DefaultLookaheadDays = 7

// DoseGenerator expands a medication's schedule into concrete dose rows for
// the look-ahead window, anchored to the recipient's local calendar.
type DoseGenerator struct {
	days int
	now  func() time.Time
}

// NewDoseGenerator returns a generator covering days local calendar days
// starting at the recipient's today. days <= 0 selects DefaultLookaheadDays;
// a nil now selects time.Now.
func NewDoseGenerator(days int, now func() time.Time) *DoseGenerator {
	if days <= 0 {
		days = DefaultLookaheadDays
	}
	if now == nil {
		now = time.Now
	}
	return &DoseGenerator{days: days, now: now}
}

// Days returns the look-ahead length.
func (g *DoseGenerator) Days() int { return g.days }

// Generate resolves the medication, its recipient and its schedule, then
// persists the doses of the current window. Doses that already exist are
// skipped, so calling Generate repeatedly for overlapping windows never
// duplicates a (medication time, date) pair. Returns the number inserted.
func (g *DoseGenerator) Generate(ctx context.Context, s repo.Store, medicationID int64) (int, error) {
	m, err := s.Medications().GetByID(ctx, medicationID)
	if err != nil {
		return 0, fmt.Errorf("service.DoseGenerator.Generate: %w", err)
	}
	rec, err := s.Recipients().GetByID(ctx, m.RecipientID)
	if err != nil {
		return 0, fmt.Errorf("service.DoseGenerator.Generate: %w", err)
	}
	times, err := s.Medications().ListTimes(ctx, m.ID)
	if err != nil {
		return 0, fmt.Errorf("service.DoseGenerator.Generate: %w", err)
	}
	return g.generate(ctx, s.Doses(), rec, m, times)
}

func (g *DoseGenerator) generate(ctx context.Context, doses repo.DoseRepo, rec domain.Recipient, m domain.Medication, times []domain.MedicationTime) (int, error) {
	loc, err := tz.Load(rec.Timezone)
	if err != nil {
		return 0, fmt.Errorf("service.DoseGenerator.Generate: recipient %d: %w", rec.ID, err)
	}

	planned, err := g.Plan(loc, m, times, g.now())
	if err != nil {
		return 0, fmt.Errorf("service.DoseGenerator.Generate: %w", err)
	}
	if len(planned) == 0 {
		return 0, nil
	}

	n, err := doses.InsertBatch(ctx, planned)
	if err != nil {
		return 0, fmt.Errorf("service.DoseGenerator.Generate: %w", err)
	}
	return n, nil
}

// Plan computes, without touching storage, the doses of m for the window
// that starts on the local date of from in loc.
//
// Days are stepped on the local calendar (noon plus d days), never by adding
// 24h to an instant, so a DST change inside the window cannot skip or repeat
// a weekday. A daily medication gets one dose per distinct time of day on
// every day, linked to the entry for that day's weekday when there is one;
// weekly (and none) take the times whose weekday matches the day. Days
// before the medication's start date or after its end date are skipped.
func (g *DoseGenerator) Plan(loc *time.Location, m domain.Medication, times []domain.MedicationTime, from time.Time) ([]domain.Dose, error) {
	var slots [][]domain.MedicationTime
	if m.Recurrence == domain.RecurrenceDaily {
		slots = timesOfDay(times)
	}

	startDate := m.StartAt.Format(tz.DateLayout)
	endDate := ""
	if m.EndAt != nil {
		endDate = m.EndAt.Format(tz.DateLayout)
	}

	y, mo, d := from.In(loc).Date()
	anchor := time.Date(y, mo, d, 12, 0, 0, 0, loc)

	var out []domain.Dose
	for i := 0; i < g.days; i++ {
		day := anchor.AddDate(0, 0, i)
		date := tz.DateIn(loc, day, tz.DateLayout)
		if date < startDate || (endDate != "" && date > endDate) {
			continue
		}
		weekday := tz.WeekdayIn(loc, day)

		var due []domain.MedicationTime
		if slots != nil {
			for _, slot := range slots {
				due = append(due, entryFor(slot, weekday))
			}
		} else {
			for _, mt := range times {
				if mt.Weekday == weekday {
					due = append(due, mt)
				}
			}
		}

		for _, mt := range due {
			at, err := tz.ToUTCIn(date+"T"+mt.Time+":00", loc)
			if err != nil {
				return nil, fmt.Errorf("medication time %d: %w", mt.ID, err)
			}
			out = append(out, domain.Dose{
				MedicationID:     m.ID,
				MedicationTimeID: mt.ID,
				ScheduledAt:      at,
				Date:             date,
				Time:             mt.Time,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

// timesOfDay groups entries by time of day, ordered by time and, within a
// time, by id.
func timesOfDay(times []domain.MedicationTime) [][]domain.MedicationTime {
	byTime := make(map[string][]domain.MedicationTime, len(times))
	for _, mt := range times {
		byTime[mt.Time] = append(byTime[mt.Time], mt)
	}
	out := make([][]domain.MedicationTime, 0, len(byTime))
	for _, slot := range byTime {
		sort.Slice(slot, func(i, j int) bool { return slot[i].ID < slot[j].ID })
		out = append(out, slot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0].Time < out[j][0].Time })
	return out
}

// entryFor picks the entry of slot scheduled on weekday, or the lowest id
// when none is.
func entryFor(slot []domain.MedicationTime, weekday domain.Weekday) domain.MedicationTime {
	for _, mt := range slot {
		if mt.Weekday == weekday {
			return mt
		}
	}
	return slot[0]
}
