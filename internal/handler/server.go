// Package handler implements the HTTP transport of the medtrack API.
// All handlers are methods on Server; they are split into one file per
// resource (recipient.go, medication.go, dose.go, ...) but share the same
// dependencies. Routes are registered on a chi router by Server.Routes.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medtrack/backend/internal/domain"
)

// RecipientServicer defines the recipient operations the handlers depend on.
// Defining it here, in the consumer package, lets handler tests inject a
// mock without a database or snapshot store.
type RecipientServicer interface {
	ListRecipients(ctx context.Context) ([]domain.Recipient, error)
	GetRecipient(ctx context.Context, id int64) (domain.Recipient, error)
	CreateRecipient(ctx context.Context, name, timezone string) (domain.Recipient, error)
}

// MedicationServicer defines the medication operations.
type MedicationServicer interface {
	ListMedications(ctx context.Context, recipientID int64) ([]domain.Medication, error)
	GetMedication(ctx context.Context, recipientID, id int64) (domain.Medication, error)
	CreateMedication(ctx context.Context, in domain.NewMedication) (domain.Medication, error)
	SetMedicationActive(ctx context.Context, recipientID, id int64, active bool) (domain.Medication, error)
	GetMedicationSchedule(ctx context.Context, recipientID, id int64) ([]domain.MedicationTime, error)
}

// DoseServicer defines the dose queries and mutations.
type DoseServicer interface {
	GetUpcomingDoses(ctx context.Context, recipientID int64, window domain.Window) ([]domain.DoseView, error)
	GetDosesForMedication(ctx context.Context, recipientID, medicationID int64) ([]domain.DoseView, error)
	GetDosesForMedicationPage(ctx context.Context, recipientID, medicationID int64, p domain.PaginationParams) ([]domain.DoseView, int64, error)
	MarkDoseTaken(ctx context.Context, recipientID, doseID int64) (domain.DoseView, error)
	RefreshDoses(ctx context.Context, recipientID int64) (int, error)
}

// ExportServicer defines the dose history export.
type ExportServicer interface {
	Export(ctx context.Context, recipientID int64) ([]domain.ExportRow, error)
}

// Server holds the handlers' dependencies. *app.App satisfies every
// servicer interface; tests pass separate mocks.
type Server struct {
	recipients  RecipientServicer
	medications MedicationServicer
	doses       DoseServicer
	export      ExportServicer
	log         *slog.Logger
}

// NewServer constructs the Server with all its dependencies. A nil logger
// selects slog.Default.
func NewServer(recipients RecipientServicer, medications MedicationServicer, doses DoseServicer, export ExportServicer, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		recipients:  recipients,
		medications: medications,
		doses:       doses,
		export:      export,
		log:         log,
	}
}

// NewHealthHandler returns a Server for health-check-only use.
func NewHealthHandler() *Server {
	return NewServer(nil, nil, nil, nil, nil)
}

// Routes returns the API router. Middleware is applied by the caller.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody("not_found", "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method_not_allowed", "method not allowed"))
	})

	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)

	r.Route("/recipients", func(r chi.Router) {
		r.Get("/", s.ListRecipients)
		r.Post("/", s.CreateRecipient)

		r.Route("/{recipient_id}", func(r chi.Router) {
			r.Get("/", s.GetRecipient)
			r.Get("/export", s.GetExport)

			r.Get("/medications", s.ListMedications)
			r.Post("/medications", s.CreateMedication)
			r.Route("/medications/{medication_id}", func(r chi.Router) {
				r.Get("/", s.GetMedication)
				r.Put("/", s.UpdateMedication)
				r.Get("/schedule", s.GetMedicationSchedule)
				r.Get("/doses", s.ListMedicationDoses)
			})

			r.Get("/doses", s.ListUpcomingDoses)
			r.Post("/doses/refresh", s.RefreshDoses)
			r.Put("/doses/{dose_id}/take", s.TakeDose)
		})
	})
	return r
}
