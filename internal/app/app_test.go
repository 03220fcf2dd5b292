package app_test

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medtrack/backend/internal/app"
	"github.com/medtrack/backend/internal/domain"
	"github.com/medtrack/backend/internal/objectstore"
	"github.com/medtrack/backend/internal/snapshot"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// wednesdayMorning is 09:00 on Wednesday 2025-07-23 in America/Chicago.
var wednesdayMorning = time.Date(2025, 7, 23, 14, 0, 0, 0, time.UTC)

// mockRunner is a hand-written Runner; run is called for every session.
type mockRunner struct {
	run func(ctx context.Context, fn func(ctx context.Context, db *sql.DB) error) error
}

func (m *mockRunner) Run(ctx context.Context, fn func(ctx context.Context, db *sql.DB) error) error {
	return m.run(ctx, fn)
}

var _ app.Runner = (*mockRunner)(nil)

type harness struct {
	store *objectstore.MemoryStore
	clock *time.Time
}

func newHarness() *harness {
	now := wednesdayMorning
	return &harness{store: objectstore.NewMemoryStore(), clock: &now}
}

// newApp returns an App over the shared store with its own local cache, as a
// separate process would have.
func (h *harness) newApp(t *testing.T, seed func(context.Context, *sql.DB) error) *app.App {
	t.Helper()
	runner := snapshot.NewRunner(h.store, snapshot.Options{
		Path:   filepath.Join(t.TempDir(), "medtrack.sqlite"),
		Seed:   seed,
		Logger: quiet,
	}, 1)
	return app.New(runner, app.Options{
		DefaultTimezone: "America/Chicago",
		LookaheadDays:   7,
		Now:             func() time.Time { return *h.clock },
		Logger:          quiet,
	})
}

func newMedication(recipientID int64, name string, times ...string) domain.NewMedication {
	in := domain.NewMedication{
		RecipientID: recipientID,
		Name:        name,
		Dosage:      "5mg",
		Recurrence:  domain.RecurrenceDaily,
		StartAt:     domain.Date(2025, time.July, 1),
	}
	for _, tm := range times {
		in.Schedule = append(in.Schedule, domain.ScheduleEntry{Time: tm})
	}
	return in
}

func TestApp_MedicationLifecycle(t *testing.T) {
	ctx := context.Background()
	a := newHarness().newApp(t, nil)

	rec, err := a.CreateRecipient(ctx, "Ann", "")
	require.NoError(t, err)
	assert.Equal(t, "America/Chicago", rec.Timezone)

	med, err := a.CreateMedication(ctx, newMedication(rec.ID, "Warfarin", "08:00", "20:00"))
	require.NoError(t, err)

	today, err := a.GetUpcomingDoses(ctx, rec.ID, domain.WindowToday)
	require.NoError(t, err)
	require.Len(t, today, 2)
	assert.Equal(t, "Warfarin", today[0].MedicationName)

	week, err := a.GetUpcomingDoses(ctx, rec.ID, domain.WindowNext7Days)
	require.NoError(t, err)
	assert.Len(t, week, 14)

	taken, err := a.MarkDoseTaken(ctx, rec.ID, today[0].ID)
	require.NoError(t, err)
	assert.True(t, taken.Taken())

	_, err = a.SetMedicationActive(ctx, rec.ID, med.ID, false)
	require.NoError(t, err)

	today, err = a.GetUpcomingDoses(ctx, rec.ID, domain.WindowToday)
	require.NoError(t, err)
	assert.Empty(t, today, "archived medications have no upcoming doses")

	history, err := a.GetDosesForMedication(ctx, rec.ID, med.ID)
	require.NoError(t, err)
	assert.Len(t, history, 14, "history survives archiving")

	sched, err := a.GetMedicationSchedule(ctx, rec.ID, med.ID)
	require.NoError(t, err)
	assert.Len(t, sched, 2)

	meds, err := a.ListMedications(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, meds, 1)
	assert.False(t, meds[0].Active())
}

func TestApp_WritesAreVisibleToAnotherInstance(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	rec, err := h.newApp(t, nil).CreateRecipient(ctx, "Ann", "Europe/Berlin")
	require.NoError(t, err)

	got, err := h.newApp(t, nil).GetRecipient(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.Name)
	assert.Equal(t, "Europe/Berlin", got.Timezone)
}

func TestApp_ReadsDoNotUploadSnapshot(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	a := h.newApp(t, nil)
	_, err := a.CreateRecipient(ctx, "Ann", "")
	require.NoError(t, err)
	before, err := h.store.Stat(ctx, snapshot.DefaultKey)
	require.NoError(t, err)

	_, err = a.ListRecipients(ctx)
	require.NoError(t, err)
	_, err = h.newApp(t, nil).ListRecipients(ctx)
	require.NoError(t, err)

	after, err := h.store.Stat(ctx, snapshot.DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestApp_SeedsFreshDatabase(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	list, err := h.newApp(t, app.Seeder("Jane Doe", "America/Denver")).ListRecipients(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Jane Doe", list[0].Name)
	assert.Equal(t, "America/Denver", list[0].Timezone)

	// Seeding only happens when the snapshot is created.
	list, err = h.newApp(t, app.Seeder("Jane Doe", "America/Denver")).ListRecipients(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestApp_SeederDisabledByEmptyName(t *testing.T) {
	list, err := newHarness().newApp(t, app.Seeder("", "")).ListRecipients(context.Background())

	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestApp_RefreshAll(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	a := h.newApp(t, nil)
	for i, name := range []string{"Ann", "Bob"} {
		rec, err := a.CreateRecipient(ctx, name, "")
		require.NoError(t, err)
		_, err = a.CreateMedication(ctx, newMedication(rec.ID, fmt.Sprintf("Med%d", i), "08:00"))
		require.NoError(t, err)
	}

	n, err := a.RefreshAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	*h.clock = h.clock.AddDate(0, 0, 3)
	n, err = a.RefreshAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}

func TestApp_ExportAndPagedHistory(t *testing.T) {
	ctx := context.Background()
	a := newHarness().newApp(t, nil)
	rec, err := a.CreateRecipient(ctx, "Ann", "")
	require.NoError(t, err)
	med, err := a.CreateMedication(ctx, newMedication(rec.ID, "Warfarin", "08:00"))
	require.NoError(t, err)

	rows, err := a.Export(ctx, rec.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 7)

	page, limit := 2, 5
	doses, total, err := a.GetDosesForMedicationPage(ctx, rec.ID, med.ID, domain.NewPaginationParams(&page, &limit))
	require.NoError(t, err)
	assert.Equal(t, int64(7), total)
	assert.Len(t, doses, 2)
}

func TestApp_ErrorsPassThrough(t *testing.T) {
	ctx := context.Background()
	a := newHarness().newApp(t, nil)

	_, err := a.GetRecipient(ctx, 42)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = a.CreateRecipient(ctx, "Ann", "Mars/Olympus")
	assert.ErrorIs(t, err, domain.ErrInvalidTimezone)

	rec, err := a.CreateRecipient(ctx, "Ann", "")
	require.NoError(t, err)
	_, err = a.CreateMedication(ctx, newMedication(rec.ID, "Warfarin", "08:00"))
	require.NoError(t, err)
	_, err = a.CreateMedication(ctx, newMedication(rec.ID, "Warfarin", "09:00"))
	assert.ErrorIs(t, err, domain.ErrDuplicateActiveMedication)
}

func TestApp_StorageUnavailable(t *testing.T) {
	a := app.New(&mockRunner{
		run: func(context.Context, func(context.Context, *sql.DB) error) error {
			return fmt.Errorf("snapshot: %w", domain.ErrStorageUnavailable)
		},
	}, app.Options{Logger: quiet})

	_, err := a.ListRecipients(context.Background())

	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}
