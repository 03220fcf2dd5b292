package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/medtrack/backend/internal/domain"
)

type scheduleEntryRequest struct {
	Weekday string `json:"weekday"`
	Time    string `json:"time"`
}

type createMedicationRequest struct {
	Name         string                 `json:"name"`
	Dosage       string                 `json:"dosage"`
	Instructions string                 `json:"instructions"`
	Recurrence   string                 `json:"recurrence"`
	StartAt      string                 `json:"start_at"`
	EndAt        *string                `json:"end_at"`
	Schedule     []scheduleEntryRequest `json:"schedule"`
}

type updateMedicationRequest struct {
	MarkInactive *bool `json:"mark_inactive"`
}

// medicationResponse renders start and end as calendar dates.
type medicationResponse struct {
	ID           int64               `json:"id"`
	RecipientID  int64               `json:"recipient_id"`
	Name         string              `json:"name"`
	Dosage       string              `json:"dosage"`
	Instructions string              `json:"instructions,omitempty"`
	Recurrence   domain.Recurrence   `json:"recurrence"`
	StartAt      openapi_types.Date  `json:"start_at"`
	EndAt        *openapi_types.Date `json:"end_at,omitempty"`
	Active       bool                `json:"active"`
	InactiveAt   *time.Time          `json:"inactive_at,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

func medicationToResponse(m domain.Medication) medicationResponse {
	out := medicationResponse{
		ID:           m.ID,
		RecipientID:  m.RecipientID,
		Name:         m.Name,
		Dosage:       m.Dosage,
		Instructions: m.Instructions,
		Recurrence:   m.Recurrence,
		StartAt:      openapi_types.Date{Time: m.StartAt},
		Active:       m.Active(),
		InactiveAt:   m.InactiveAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.EndAt != nil {
		out.EndAt = &openapi_types.Date{Time: *m.EndAt}
	}
	return out
}

// requestToNewMedication converts the request body. Dates may be sent as
// YYYY-MM-DD or as a full RFC 3339 timestamp; a timestamp's calendar date is
// taken in the recipient's timezone.
func requestToNewMedication(recipientID int64, req createMedicationRequest) (domain.NewMedication, error) {
	in := domain.NewMedication{
		RecipientID:  recipientID,
		Name:         req.Name,
		Dosage:       req.Dosage,
		Instructions: req.Instructions,
		Recurrence:   domain.Recurrence(req.Recurrence),
	}
	if req.StartAt != "" {
		d, err := parseDay("start_at", req.StartAt)
		if err != nil {
			return domain.NewMedication{}, err
		}
		in.StartAt = d
	}
	if req.EndAt != nil && *req.EndAt != "" {
		d, err := parseDay("end_at", *req.EndAt)
		if err != nil {
			return domain.NewMedication{}, err
		}
		in.EndAt = &d
	}
	for _, e := range req.Schedule {
		in.Schedule = append(in.Schedule, domain.ScheduleEntry{Weekday: domain.Weekday(e.Weekday), Time: e.Time})
	}
	return in, nil
}

func parseDay(field, s string) (domain.Day, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(openapi_types.DateFormat, s); err == nil {
		return domain.Date(t.Date()), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return domain.InstantDay(t), nil
	}
	return domain.Day{}, fmt.Errorf("%w: %s must be a date (YYYY-MM-DD)", domain.ErrValidation, field)
}

// ListMedications handles GET /recipients/{recipient_id}/medications.
// Archived medications are included; clients filter on "active".
func (s *Server) ListMedications(w http.ResponseWriter, r *http.Request) {
	recipientID, err := pathID(r, "recipient_id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	meds, err := s.medications.ListMedications(r.Context(), recipientID)
	if err != nil {
		s.writeError(w, r, err, "recipient not found")
		return
	}
	out := make([]medicationResponse, len(meds))
	for i, m := range meds {
		out[i] = medicationToResponse(m)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetMedication handles GET /recipients/{recipient_id}/medications/{medication_id}.
func (s *Server) GetMedication(w http.ResponseWriter, r *http.Request) {
	recipientID, medicationID, ok := medicationPath(w, r)
	if !ok {
		return
	}
	m, err := s.medications.GetMedication(r.Context(), recipientID, medicationID)
	if err != nil {
		s.writeError(w, r, err, "medication not found")
		return
	}
	writeJSON(w, http.StatusOK, medicationToResponse(m))
}

// CreateMedication handles POST /recipients/{recipient_id}/medications.
// The look-ahead doses are generated before the response is sent.
func (s *Server) CreateMedication(w http.ResponseWriter, r *http.Request) {
	recipientID, err := pathID(r, "recipient_id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req createMedicationRequest
	if err := decodeJSON(r, &req); err != nil {
		s.bodyError(w, r, err)
		return
	}
	in, err := requestToNewMedication(recipientID, req)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	m, err := s.medications.CreateMedication(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err, "recipient not found")
		return
	}
	writeJSON(w, http.StatusCreated, medicationToResponse(m))
}

// UpdateMedication handles PUT /recipients/{recipient_id}/medications/{medication_id}.
// Only {"mark_inactive": bool} is supported: true archives, false restores.
func (s *Server) UpdateMedication(w http.ResponseWriter, r *http.Request) {
	recipientID, medicationID, ok := medicationPath(w, r)
	if !ok {
		return
	}
	var req updateMedicationRequest
	if err := decodeJSON(r, &req); err != nil {
		s.bodyError(w, r, err)
		return
	}
	if req.MarkInactive == nil {
		s.writeError(w, r, fmt.Errorf("%w: mark_inactive is required", domain.ErrValidation), "")
		return
	}
	m, err := s.medications.SetMedicationActive(r.Context(), recipientID, medicationID, !*req.MarkInactive)
	if err != nil {
		s.writeError(w, r, err, "medication not found")
		return
	}
	writeJSON(w, http.StatusOK, medicationToResponse(m))
}

// GetMedicationSchedule handles GET .../medications/{medication_id}/schedule.
func (s *Server) GetMedicationSchedule(w http.ResponseWriter, r *http.Request) {
	recipientID, medicationID, ok := medicationPath(w, r)
	if !ok {
		return
	}
	times, err := s.medications.GetMedicationSchedule(r.Context(), recipientID, medicationID)
	if err != nil {
		s.writeError(w, r, err, "medication not found")
		return
	}
	if times == nil {
		times = []domain.MedicationTime{}
	}
	writeJSON(w, http.StatusOK, times)
}

func medicationPath(w http.ResponseWriter, r *http.Request) (recipientID, medicationID int64, ok bool) {
	recipientID, err := pathID(r, "recipient_id")
	if err != nil {
		badRequest(w, err.Error())
		return 0, 0, false
	}
	medicationID, err = pathID(r, "medication_id")
	if err != nil {
		badRequest(w, err.Error())
		return 0, 0, false
	}
	return recipientID, medicationID, true
}
