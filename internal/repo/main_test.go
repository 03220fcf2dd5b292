package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/medtrack/backend/internal/domain"
	"github.com/medtrack/backend/internal/repo"
	"github.com/medtrack/backend/testutil"
)

// newTestStore returns a Store over a fresh, migrated SQLite file. Each test
// gets its own file, which gives per-test isolation without cleanup SQL.
func newTestStore(t *testing.T) repo.Store {
	t.Helper()
	return repo.NewStore(testutil.NewSQLiteDB(t))
}

// seedRecipient inserts a recipient in America/Chicago.
func seedRecipient(t *testing.T, s repo.Store) domain.Recipient {
	t.Helper()
	r, err := s.Recipients().Create(context.Background(), domain.Recipient{Name: "Jane Doe", Timezone: "America/Chicago"})
	require.NoError(t, err)
	return r
}

// medicationFixture returns a daily medication starting 2025-07-01 for the
// given recipient. Callers can override fields after calling this function.
func medicationFixture(recipientID int64) domain.Medication {
	return domain.Medication{
		RecipientID: recipientID,
		Name:        "Lisinopril",
		Dosage:      "10mg",
		Recurrence:  domain.RecurrenceDaily,
		StartAt:     time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	}
}

// seedMedication inserts a medication with one 08:00 Monday schedule entry.
func seedMedication(t *testing.T, s repo.Store, m domain.Medication) (domain.Medication, domain.MedicationTime) {
	t.Helper()
	ctx := context.Background()

	created, err := s.Medications().Create(ctx, m)
	require.NoError(t, err)
	times, err := s.Medications().CreateTimes(ctx, created.ID, []domain.ScheduleEntry{{Weekday: domain.Monday, Time: "08:00"}})
	require.NoError(t, err)
	return created, times[0]
}
