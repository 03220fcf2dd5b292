// Package app runs each API operation as one snapshot session: the embedded
// database is activated, the service call runs against it, and the session
// is released (uploading the snapshot only when something changed).
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/medtrack/backend/internal/domain"
	"github.com/medtrack/backend/internal/repo"
	"github.com/medtrack/backend/internal/service"
)

// Runner runs fn against an activated database. *snapshot.Runner satisfies it.
type Runner interface {
	Run(ctx context.Context, fn func(ctx context.Context, db *sql.DB) error) error
}

// Options tunes the services built for every session.
type Options struct {
	DefaultTimezone string
	LookaheadDays   int
	Now             func() time.Time
	Logger          *slog.Logger
}

// App is the invocation facade used by the HTTP handlers and the refresh job.
type App struct {
	runner Runner
	opts   Options
	log    *slog.Logger
}

// New constructs an App.
func New(runner Runner, opts Options) *App {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DefaultTimezone == "" {
		opts.DefaultTimezone = service.DefaultTimezone
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &App{runner: runner, opts: opts, log: log}
}

// services is the per-session set of services, all bound to one database.
type services struct {
	recipients  *service.RecipientService
	medications *service.MedicationService
	doses       *service.DoseService
	exports     *service.ExportService
}

func (a *App) session(ctx context.Context, fn func(ctx context.Context, s services) error) error {
	return a.runner.Run(ctx, func(ctx context.Context, db *sql.DB) error {
		store := repo.NewStore(db)
		gen := service.NewDoseGenerator(a.opts.LookaheadDays, a.opts.Now)
		return fn(ctx, services{
			recipients:  service.NewRecipientService(store.Recipients(), a.opts.DefaultTimezone),
			medications: service.NewMedicationService(store, gen, a.opts.Now),
			doses:       service.NewDoseService(store, gen, a.opts.Now),
			exports:     service.NewExportService(store),
		})
	})
}

// ---- recipients ----

func (a *App) ListRecipients(ctx context.Context) (out []domain.Recipient, err error) {
	err = a.session(ctx, func(ctx context.Context, s services) error {
		out, err = s.recipients.List(ctx)
		return err
	})
	return out, err
}

func (a *App) GetRecipient(ctx context.Context, id int64) (out domain.Recipient, err error) {
	err = a.session(ctx, func(ctx context.Context, s services) error {
		out, err = s.recipients.Get(ctx, id)
		return err
	})
	return out, err
}

func (a *App) CreateRecipient(ctx context.Context, name, timezone string) (out domain.Recipient, err error) {
	err = a.session(ctx, func(ctx context.Context, s services) error {
		out, err = s.recipients.Create(ctx, name, timezone)
		return err
	})
	return out, err
}

// ---- medications ----

func (a *App) ListMedications(ctx context.Context, recipientID int64) (out []domain.Medication, err error) {
	err = a.session(ctx, func(ctx context.Context, s services) error {
		out, err = s.medications.List(ctx, recipientID)
		return err
	})
	return out, err
}

func (a *App) GetMedication(ctx context.Context, recipientID, id int64) (out domain.Medication, err error) {
	err = a.session(ctx, func(ctx context.Context, s services) error {
		out, err = s.medications.Get(ctx, recipientID, id)
		return err
	})
	return out, err
}

// CreateMedication stores the medication with its schedule and materializes
// the look-ahead doses, all in one snapshot session.
func (a *App) CreateMedication(ctx context.Context, in domain.NewMedication) (out domain.Medication, err error) {
	err = a.session(ctx, func(ctx context.Context, s services) error {
		out, err = s.medications.Create(ctx, in)
		return err
	})
	return out, err
}

func (a *App) SetMedicationActive(ctx context.Context, recipientID, id int64, active bool) (out domain.Medication, err error) {
	err = a.session(ctx, func(ctx context.Context, s services) error {
		out, err = s.medications.SetActive(ctx, recipientID, id, active)
		return err
	})
	return out, err
}

func (a *App) GetMedicationSchedule(ctx context.Context, recipientID, id int64) (out []domain.MedicationTime, err error) {
	err = a.session(ctx, func(ctx context.Context, s services) error {
		out, err = s.medications.Schedule(ctx, recipientID, id)
		return err
	})
	return out, err
}

// ---- doses ----

func (a *App) GetUpcomingDoses(ctx context.Context, recipientID int64, window domain.Window) (out []domain.DoseView, err error) {
	err = a.session(ctx, func(ctx context.Context, s services) error {
		out, err = s.doses.Upcoming(ctx, recipientID, window)
		return err
	})
	return out, err
}

func (a *App) GetDosesForMedication(ctx context.Context, recipientID, medicationID int64) (out []domain.DoseView, err error) {
	err = a.session(ctx, func(ctx context.Context, s services) error {
		out, err = s.doses.ForMedication(ctx, recipientID, medicationID)
		return err
	})
	return out, err
}

// GetDosesForMedicationPage is GetDosesForMedication limited to one page.
func (a *App) GetDosesForMedicationPage(ctx context.Context, recipientID, medicationID int64, p domain.PaginationParams) (out []domain.DoseView, total int64, err error) {
	err = a.session(ctx, func(ctx context.Context, s services) error {
		out, total, err = s.doses.ForMedicationPaged(ctx, recipientID, medicationID, p)
		return err
	})
	return out, total, err
}

func (a *App) MarkDoseTaken(ctx context.Context, recipientID, doseID int64) (out domain.DoseView, err error) {
	err = a.session(ctx, func(ctx context.Context, s services) error {
		out, err = s.doses.MarkTaken(ctx, recipientID, doseID)
		return err
	})
	return out, err
}

// RefreshDoses tops up the look-ahead window of every active medication of
// the recipient and returns the number of doses added.
func (a *App) RefreshDoses(ctx context.Context, recipientID int64) (n int, err error) {
	err = a.session(ctx, func(ctx context.Context, s services) error {
		n, err = s.doses.Refresh(ctx, recipientID)
		return err
	})
	return n, err
}

// RefreshAll runs RefreshDoses for every recipient inside a single session,
// so the snapshot is uploaded at most once.
func (a *App) RefreshAll(ctx context.Context) (int, error) {
	total := 0
	err := a.session(ctx, func(ctx context.Context, s services) error {
		total = 0
		recipients, err := s.recipients.List(ctx)
		if err != nil {
			return err
		}
		for _, r := range recipients {
			n, err := s.doses.Refresh(ctx, r.ID)
			if err != nil {
				return fmt.Errorf("app.App.RefreshAll: recipient %d: %w", r.ID, err)
			}
			if n > 0 {
				a.log.Info("doses generated", "recipient_id", r.ID, "count", n)
			}
			total += n
		}
		return nil
	})
	return total, err
}

// ---- export ----

func (a *App) Export(ctx context.Context, recipientID int64) (out []domain.ExportRow, err error) {
	err = a.session(ctx, func(ctx context.Context, s services) error {
		out, err = s.exports.Export(ctx, recipientID)
		return err
	})
	return out, err
}
