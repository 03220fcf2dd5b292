package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/medtrack/backend/internal/domain"
	"github.com/medtrack/backend/internal/handler"
)

// ---- mock servicers --------------------------------------------------------
// Each method is a function field; set only the ones the test needs.

type mockRecipients struct {
	list   func(ctx context.Context) ([]domain.Recipient, error)
	get    func(ctx context.Context, id int64) (domain.Recipient, error)
	create func(ctx context.Context, name, timezone string) (domain.Recipient, error)
}

func (m *mockRecipients) ListRecipients(ctx context.Context) ([]domain.Recipient, error) {
	return m.list(ctx)
}
func (m *mockRecipients) GetRecipient(ctx context.Context, id int64) (domain.Recipient, error) {
	return m.get(ctx, id)
}
func (m *mockRecipients) CreateRecipient(ctx context.Context, name, timezone string) (domain.Recipient, error) {
	return m.create(ctx, name, timezone)
}

var _ handler.RecipientServicer = (*mockRecipients)(nil)

type mockMedications struct {
	list      func(ctx context.Context, recipientID int64) ([]domain.Medication, error)
	get       func(ctx context.Context, recipientID, id int64) (domain.Medication, error)
	create    func(ctx context.Context, in domain.NewMedication) (domain.Medication, error)
	setActive func(ctx context.Context, recipientID, id int64, active bool) (domain.Medication, error)
	schedule  func(ctx context.Context, recipientID, id int64) ([]domain.MedicationTime, error)
}

func (m *mockMedications) ListMedications(ctx context.Context, recipientID int64) ([]domain.Medication, error) {
	return m.list(ctx, recipientID)
}
func (m *mockMedications) GetMedication(ctx context.Context, recipientID, id int64) (domain.Medication, error) {
	return m.get(ctx, recipientID, id)
}
func (m *mockMedications) CreateMedication(ctx context.Context, in domain.NewMedication) (domain.Medication, error) {
	return m.create(ctx, in)
}
func (m *mockMedications) SetMedicationActive(ctx context.Context, recipientID, id int64, active bool) (domain.Medication, error) {
	return m.setActive(ctx, recipientID, id, active)
}
func (m *mockMedications) GetMedicationSchedule(ctx context.Context, recipientID, id int64) ([]domain.MedicationTime, error) {
	return m.schedule(ctx, recipientID, id)
}

var _ handler.MedicationServicer = (*mockMedications)(nil)

type mockDoses struct {
	upcoming func(ctx context.Context, recipientID int64, window domain.Window) ([]domain.DoseView, error)
	forMed   func(ctx context.Context, recipientID, medicationID int64) ([]domain.DoseView, error)
	forPage  func(ctx context.Context, recipientID, medicationID int64, p domain.PaginationParams) ([]domain.DoseView, int64, error)
	take     func(ctx context.Context, recipientID, doseID int64) (domain.DoseView, error)
	refresh  func(ctx context.Context, recipientID int64) (int, error)
}

func (m *mockDoses) GetUpcomingDoses(ctx context.Context, recipientID int64, window domain.Window) ([]domain.DoseView, error) {
	return m.upcoming(ctx, recipientID, window)
}
func (m *mockDoses) GetDosesForMedication(ctx context.Context, recipientID, medicationID int64) ([]domain.DoseView, error) {
	return m.forMed(ctx, recipientID, medicationID)
}
func (m *mockDoses) GetDosesForMedicationPage(ctx context.Context, recipientID, medicationID int64, p domain.PaginationParams) ([]domain.DoseView, int64, error) {
	return m.forPage(ctx, recipientID, medicationID, p)
}
func (m *mockDoses) MarkDoseTaken(ctx context.Context, recipientID, doseID int64) (domain.DoseView, error) {
	return m.take(ctx, recipientID, doseID)
}
func (m *mockDoses) RefreshDoses(ctx context.Context, recipientID int64) (int, error) {
	return m.refresh(ctx, recipientID)
}

var _ handler.DoseServicer = (*mockDoses)(nil)

type mockExport struct {
	export func(ctx context.Context, recipientID int64) ([]domain.ExportRow, error)
}

func (m *mockExport) Export(ctx context.Context, recipientID int64) ([]domain.ExportRow, error) {
	return m.export(ctx, recipientID)
}

var _ handler.ExportServicer = (*mockExport)(nil)

// ---- helpers ---------------------------------------------------------------

type deps struct {
	recipients  *mockRecipients
	medications *mockMedications
	doses       *mockDoses
	export      *mockExport
}

// newHTTPHandler wires a Server the way main.go does, minus middleware.
func newHTTPHandler(d deps) http.Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	var (
		r handler.RecipientServicer
		m handler.MedicationServicer
		s handler.DoseServicer
		e handler.ExportServicer
	)
	if d.recipients != nil {
		r = d.recipients
	}
	if d.medications != nil {
		m = d.medications
	}
	if d.doses != nil {
		s = d.doses
	}
	if d.export != nil {
		e = d.export
	}
	return handler.NewServer(r, m, s, e, log).Routes()
}

func serve(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewBuffer(raw)
	}
	req := httptest.NewRequest(method, target, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handler.ErrorDetail {
	t.Helper()
	var body handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error
}
