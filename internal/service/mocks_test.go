package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/medtrack/backend/internal/domain"
	"github.com/medtrack/backend/internal/repo"
	"github.com/medtrack/backend/internal/service"
	"github.com/medtrack/backend/testutil"
)

// ---- mock repos ------------------------------------------------------------

// mockRecipientRepo is a hand-written test double for repo.RecipientRepo.
// Each method is a function field; set only the ones a test needs.
type mockRecipientRepo struct {
	create  func(ctx context.Context, r domain.Recipient) (domain.Recipient, error)
	getByID func(ctx context.Context, id int64) (domain.Recipient, error)
	list    func(ctx context.Context) ([]domain.Recipient, error)
}

func (m *mockRecipientRepo) Create(ctx context.Context, r domain.Recipient) (domain.Recipient, error) {
	return m.create(ctx, r)
}
func (m *mockRecipientRepo) GetByID(ctx context.Context, id int64) (domain.Recipient, error) {
	return m.getByID(ctx, id)
}
func (m *mockRecipientRepo) List(ctx context.Context) ([]domain.Recipient, error) {
	return m.list(ctx)
}

// compile-time check: mockRecipientRepo must satisfy repo.RecipientRepo.
var _ repo.RecipientRepo = (*mockRecipientRepo)(nil)

// untouchedStore fails the test if any repository is requested. Use it to
// prove that validation rejects input before storage is consulted.
type untouchedStore struct{ t *testing.T }

func (s untouchedStore) Recipients() repo.RecipientRepo {
	s.t.Fatal("store must not be used")
	return nil
}
func (s untouchedStore) Medications() repo.MedicationRepo {
	s.t.Fatal("store must not be used")
	return nil
}
func (s untouchedStore) Doses() repo.DoseRepo {
	s.t.Fatal("store must not be used")
	return nil
}
func (s untouchedStore) WithinTx(context.Context, func(repo.Store) error) error {
	s.t.Fatal("store must not be used")
	return nil
}

var _ repo.Store = untouchedStore{}

// ---- helpers ---------------------------------------------------------------

// wednesdayMorning is 09:00 on Wednesday 2025-07-23 in America/Chicago.
var wednesdayMorning = time.Date(2025, 7, 23, 14, 0, 0, 0, time.UTC)

const chicago = "America/Chicago"

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// newSQLiteStore returns a Store over a fresh, migrated SQLite file.
func newSQLiteStore(t *testing.T) repo.Store {
	t.Helper()
	return repo.NewStore(testutil.NewSQLiteDB(t))
}

// fixture bundles the services used by the integration-style tests, all
// sharing one store and one clock.
type fixture struct {
	store       repo.Store
	recipients  *service.RecipientService
	medications *service.MedicationService
	doses       *service.DoseService
	exports     *service.ExportService
	clock       *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: newSQLiteStore(t)}
	now := wednesdayMorning
	f.clock = &now
	clock := func() time.Time { return *f.clock }

	gen := service.NewDoseGenerator(service.DefaultLookaheadDays, clock)
	f.recipients = service.NewRecipientService(f.store.Recipients(), chicago)
	f.medications = service.NewMedicationService(f.store, gen, clock)
	f.doses = service.NewDoseService(f.store, gen, clock)
	f.exports = service.NewExportService(f.store)
	return f
}

func (f *fixture) recipient(t *testing.T) domain.Recipient {
	t.Helper()
	r, err := f.recipients.Create(context.Background(), "Jane Doe", chicago)
	require.NoError(t, err)
	return r
}

func dailyMedication(recipientID int64, times ...string) domain.NewMedication {
	in := domain.NewMedication{
		RecipientID: recipientID,
		Name:        "Lisinopril",
		Dosage:      "10mg",
		Recurrence:  domain.RecurrenceDaily,
		StartAt:     domain.Date(2025, time.July, 1),
	}
	for _, tm := range times {
		in.Schedule = append(in.Schedule, domain.ScheduleEntry{Time: tm})
	}
	return in
}
