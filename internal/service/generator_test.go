package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medtrack/backend/internal/domain"
	"github.com/medtrack/backend/internal/service"
	"github.com/medtrack/backend/internal/tz"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := tz.Load(name)
	require.NoError(t, err)
	return loc
}

func planMedication(rec domain.Recurrence) domain.Medication {
	return domain.Medication{
		ID:         10,
		Recurrence: rec,
		StartAt:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// ---- Plan ----

func TestDoseGenerator_Plan_DailyTwoTimes_FourteenDoses(t *testing.T) {
	loc := mustLoad(t, chicago)
	gen := service.NewDoseGenerator(7, nil)
	times := []domain.MedicationTime{
		{ID: 1, Weekday: domain.Wednesday, Time: "08:00"},
		{ID: 2, Weekday: domain.Wednesday, Time: "20:00"},
	}

	got, err := gen.Plan(loc, planMedication(domain.RecurrenceDaily), times, wednesdayMorning)

	require.NoError(t, err)
	require.Len(t, got, 14)

	perDay := map[string]int{}
	for _, d := range got {
		perDay[d.Date]++
		local := d.Date + "T" + d.Time + ":00"
		want, err := tz.ToUTCIn(local, loc)
		require.NoError(t, err)
		assert.True(t, want.Equal(d.ScheduledAt), "dose %s", local)
		assert.Equal(t, local, tz.DateIn(loc, d.ScheduledAt, tz.DateTimeLayout))
	}
	assert.Len(t, perDay, 7)
	for date, n := range perDay {
		assert.Equal(t, 2, n, date)
	}

	assert.Equal(t, "2025-07-23", got[0].Date)
	assert.Equal(t, time.Date(2025, 7, 23, 13, 0, 0, 0, time.UTC), got[0].ScheduledAt)
	assert.Equal(t, "2025-07-29", got[13].Date)
	assert.Equal(t, "20:00", got[13].Time)
}

func TestDoseGenerator_Plan_WeeklyMonday_OnlyMondays(t *testing.T) {
	loc := mustLoad(t, chicago)
	gen := service.NewDoseGenerator(7, nil)
	times := []domain.MedicationTime{{ID: 1, Weekday: domain.Monday, Time: "09:00"}}

	got, err := gen.Plan(loc, planMedication(domain.RecurrenceWeekly), times, wednesdayMorning)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2025-07-28", got[0].Date)
	assert.Equal(t, time.Date(2025, 7, 28, 14, 0, 0, 0, time.UTC), got[0].ScheduledAt)
}

func TestDoseGenerator_Plan_WeeklyMonday_WindowSpanningTwoMondays(t *testing.T) {
	loc := mustLoad(t, chicago)
	gen := service.NewDoseGenerator(8, nil)
	times := []domain.MedicationTime{{ID: 1, Weekday: domain.Monday, Time: "09:00"}}
	monday := time.Date(2025, 7, 21, 15, 0, 0, 0, time.UTC)

	got, err := gen.Plan(loc, planMedication(domain.RecurrenceWeekly), times, monday)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2025-07-21", got[0].Date)
	assert.Equal(t, "2025-07-28", got[1].Date)
}

func TestDoseGenerator_Plan_RecurrenceNoneMatchesWeekday(t *testing.T) {
	loc := mustLoad(t, chicago)
	gen := service.NewDoseGenerator(7, nil)
	times := []domain.MedicationTime{{ID: 1, Weekday: domain.Friday, Time: "07:30"}}

	got, err := gen.Plan(loc, planMedication(domain.RecurrenceNone), times, wednesdayMorning)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2025-07-25", got[0].Date)
}

func TestDoseGenerator_Plan_UsesRecipientLocalDate(t *testing.T) {
	// 03:00Z Thursday is Wednesday evening in Chicago, so the window starts
	// on Wednesday there.
	loc := mustLoad(t, chicago)
	gen := service.NewDoseGenerator(1, nil)
	times := []domain.MedicationTime{{ID: 1, Weekday: domain.Wednesday, Time: "08:00"}}

	got, err := gen.Plan(loc, planMedication(domain.RecurrenceWeekly), times, time.Date(2025, 7, 24, 3, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2025-07-23", got[0].Date)
}

func TestDoseGenerator_Plan_AcrossSpringForward(t *testing.T) {
	loc := mustLoad(t, chicago)
	gen := service.NewDoseGenerator(7, nil)
	times := []domain.MedicationTime{{ID: 1, Weekday: domain.Friday, Time: "08:00"}}
	friday := time.Date(2025, 3, 7, 18, 0, 0, 0, time.UTC)

	got, err := gen.Plan(loc, planMedication(domain.RecurrenceDaily), times, friday)

	require.NoError(t, err)
	require.Len(t, got, 7)
	wantDates := []string{"2025-03-07", "2025-03-08", "2025-03-09", "2025-03-10", "2025-03-11", "2025-03-12", "2025-03-13"}
	for i, d := range got {
		assert.Equal(t, wantDates[i], d.Date)
	}
	// 08:00 CST before the change, 08:00 CDT after.
	assert.Equal(t, time.Date(2025, 3, 8, 14, 0, 0, 0, time.UTC), got[1].ScheduledAt)
	assert.Equal(t, time.Date(2025, 3, 9, 13, 0, 0, 0, time.UTC), got[2].ScheduledAt)
}

func TestDoseGenerator_Plan_RespectsStartAndEndDates(t *testing.T) {
	loc := mustLoad(t, chicago)
	gen := service.NewDoseGenerator(7, nil)
	m := planMedication(domain.RecurrenceDaily)
	m.StartAt = time.Date(2025, 7, 25, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 7, 27, 0, 0, 0, 0, time.UTC)
	m.EndAt = &end
	times := []domain.MedicationTime{{ID: 1, Weekday: domain.Friday, Time: "08:00"}}

	got, err := gen.Plan(loc, m, times, wednesdayMorning)

	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "2025-07-25", got[0].Date)
	assert.Equal(t, "2025-07-27", got[2].Date)
}

func TestDoseGenerator_Plan_DailyDeduplicatesTimeOfDay(t *testing.T) {
	loc := mustLoad(t, chicago)
	gen := service.NewDoseGenerator(2, nil)
	times := []domain.MedicationTime{
		{ID: 5, Weekday: domain.Tuesday, Time: "08:00"},
		{ID: 3, Weekday: domain.Monday, Time: "08:00"},
	}

	got, err := gen.Plan(loc, planMedication(domain.RecurrenceDaily), times, wednesdayMorning)

	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, d := range got {
		assert.Equal(t, int64(3), d.MedicationTimeID)
	}
}

func TestDoseGenerator_Plan_DailyLinksEachDayToItsWeekdayEntry(t *testing.T) {
	loc := mustLoad(t, chicago)
	gen := service.NewDoseGenerator(7, nil)
	week := []domain.Weekday{
		domain.Monday, domain.Tuesday, domain.Wednesday, domain.Thursday,
		domain.Friday, domain.Saturday, domain.Sunday,
	}
	var times []domain.MedicationTime
	byID := map[int64]domain.Weekday{}
	for i, wd := range week {
		id := int64(i + 1)
		times = append(times, domain.MedicationTime{ID: id, Weekday: wd, Time: "08:00"})
		byID[id] = wd
	}

	got, err := gen.Plan(loc, planMedication(domain.RecurrenceDaily), times, wednesdayMorning)

	require.NoError(t, err)
	require.Len(t, got, 7)
	for _, d := range got {
		assert.Equal(t, tz.WeekdayIn(loc, d.ScheduledAt), byID[d.MedicationTimeID], "dose on %s", d.Date)
	}
}

func TestDoseGenerator_Plan_NoTimes(t *testing.T) {
	gen := service.NewDoseGenerator(7, nil)

	got, err := gen.Plan(mustLoad(t, chicago), planMedication(domain.RecurrenceDaily), nil, wednesdayMorning)

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNewDoseGenerator_DefaultDays(t *testing.T) {
	assert.Equal(t, service.DefaultLookaheadDays, service.NewDoseGenerator(0, nil).Days())
}

// ---- Generate (SQLite) ----

func TestDoseGenerator_Generate_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.recipient(t)
	m, err := f.medications.Create(ctx, dailyMedication(rec.ID, "08:00", "20:00"))
	require.NoError(t, err)

	gen := service.NewDoseGenerator(7, fixedClock(wednesdayMorning))
	n, err := gen.Generate(ctx, f.store, m.ID)
	require.NoError(t, err)
	assert.Zero(t, n, "window was already materialized on create")

	// A day later only the new last day is added.
	gen = service.NewDoseGenerator(7, fixedClock(wednesdayMorning.Add(24*time.Hour)))
	n, err = gen.Generate(ctx, f.store, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	doses, err := f.store.Doses().ListByMedication(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, doses, 16)
}

func TestDoseGenerator_Generate_DailyDoseReportsItsOwnWeekday(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.recipient(t)
	in := dailyMedication(rec.ID)
	for _, wd := range []domain.Weekday{
		domain.Monday, domain.Tuesday, domain.Wednesday, domain.Thursday,
		domain.Friday, domain.Saturday, domain.Sunday,
	} {
		in.Schedule = append(in.Schedule, domain.ScheduleEntry{Weekday: wd, Time: "08:00"})
	}
	_, err := f.medications.Create(ctx, in)
	require.NoError(t, err)

	got, err := f.doses.Upcoming(ctx, rec.ID, domain.WindowToday)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.Wednesday, got[0].Weekday)
}

func TestDoseGenerator_Generate_UnknownMedication(t *testing.T) {
	f := newFixture(t)
	gen := service.NewDoseGenerator(7, nil)

	_, err := gen.Generate(context.Background(), f.store, 999)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}
