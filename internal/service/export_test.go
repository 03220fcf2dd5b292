package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medtrack/backend/internal/domain"
)

func TestExportService_Export_IncludesArchivedAndTaken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.recipient(t)
	m, err := f.medications.Create(ctx, dailyMedication(rec.ID, "08:00"))
	require.NoError(t, err)
	doses, err := f.doses.ForMedication(ctx, rec.ID, m.ID)
	require.NoError(t, err)
	_, err = f.doses.MarkTaken(ctx, rec.ID, doses[0].ID)
	require.NoError(t, err)
	_, err = f.medications.SetActive(ctx, rec.ID, m.ID, false)
	require.NoError(t, err)

	rows, err := f.exports.Export(ctx, rec.ID)

	require.NoError(t, err)
	require.Len(t, rows, 7)
	first := rows[0]
	assert.Equal(t, m.ID, first.MedicationID)
	assert.Equal(t, "Lisinopril", first.MedicationName)
	assert.Equal(t, domain.RecurrenceDaily, first.Recurrence)
	assert.True(t, first.Archived)
	assert.Equal(t, "2025-07-23", first.Date)
	assert.Equal(t, "2025-07-23T08:00:00", first.LocalScheduledAt)
	assert.NotNil(t, first.TakenAt)
	assert.Nil(t, rows[1].TakenAt)
}

func TestExportService_Export_NoDoses(t *testing.T) {
	f := newFixture(t)
	rec := f.recipient(t)

	rows, err := f.exports.Export(context.Background(), rec.ID)

	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestExportService_Export_UnknownRecipient(t *testing.T) {
	f := newFixture(t)

	_, err := f.exports.Export(context.Background(), 404)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}
