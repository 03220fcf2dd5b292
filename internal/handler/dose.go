package handler

import (
	"net/http"

	"github.com/medtrack/backend/internal/domain"
)

// dosePage is the paged form of a medication's dose history.
type dosePage struct {
	Data       []domain.DoseView `json:"data"`
	Pagination domain.Pagination `json:"pagination"`
}

// ListUpcomingDoses handles GET /recipients/{recipient_id}/doses.
// ?period= (or ?window=) selects today (default) or next7days; the older
// daily/weekly values are accepted.
func (s *Server) ListUpcomingDoses(w http.ResponseWriter, r *http.Request) {
	recipientID, err := pathID(r, "recipient_id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var period, window *string
	if err := queryParam(r, "period", &period); err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := queryParam(r, "window", &window); err != nil {
		badRequest(w, err.Error())
		return
	}
	raw := ""
	switch {
	case window != nil:
		raw = *window
	case period != nil:
		raw = *period
	}
	win, err := domain.ParseWindow(raw)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}

	doses, err := s.doses.GetUpcomingDoses(r.Context(), recipientID, win)
	if err != nil {
		s.writeError(w, r, err, "recipient not found")
		return
	}
	writeJSON(w, http.StatusOK, doses)
}

// ListMedicationDoses handles GET .../medications/{medication_id}/doses.
// Without paging parameters it returns the full history as an array; with
// ?page= or ?limit= it returns {"data": [...], "pagination": {...}}.
func (s *Server) ListMedicationDoses(w http.ResponseWriter, r *http.Request) {
	recipientID, medicationID, ok := medicationPath(w, r)
	if !ok {
		return
	}
	var page, limit *int
	if err := queryParam(r, "page", &page); err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := queryParam(r, "limit", &limit); err != nil {
		badRequest(w, err.Error())
		return
	}

	if page == nil && limit == nil {
		doses, err := s.doses.GetDosesForMedication(r.Context(), recipientID, medicationID)
		if err != nil {
			s.writeError(w, r, err, "medication not found")
			return
		}
		writeJSON(w, http.StatusOK, doses)
		return
	}

	params := domain.NewPaginationParams(page, limit)
	doses, total, err := s.doses.GetDosesForMedicationPage(r.Context(), recipientID, medicationID, params)
	if err != nil {
		s.writeError(w, r, err, "medication not found")
		return
	}
	writeJSON(w, http.StatusOK, dosePage{Data: doses, Pagination: params.Meta(total)})
}

// TakeDose handles PUT /recipients/{recipient_id}/doses/{dose_id}/take.
// Taking an already-taken dose succeeds and keeps the first taken_at.
func (s *Server) TakeDose(w http.ResponseWriter, r *http.Request) {
	recipientID, err := pathID(r, "recipient_id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	doseID, err := pathID(r, "dose_id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	dose, err := s.doses.MarkDoseTaken(r.Context(), recipientID, doseID)
	if err != nil {
		s.writeError(w, r, err, "dose not found")
		return
	}
	writeJSON(w, http.StatusOK, dose)
}

// RefreshDoses handles POST /recipients/{recipient_id}/doses/refresh.
func (s *Server) RefreshDoses(w http.ResponseWriter, r *http.Request) {
	recipientID, err := pathID(r, "recipient_id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	n, err := s.doses.RefreshDoses(r.Context(), recipientID)
	if err != nil {
		s.writeError(w, r, err, "recipient not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"generated": n})
}
