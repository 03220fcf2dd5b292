package handler

import (
	"net/http"
)

type createRecipientRequest struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

// ListRecipients handles GET /recipients.
func (s *Server) ListRecipients(w http.ResponseWriter, r *http.Request) {
	list, err := s.recipients.ListRecipients(r.Context())
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetRecipient handles GET /recipients/{recipient_id}.
func (s *Server) GetRecipient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "recipient_id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	rec, err := s.recipients.GetRecipient(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, "recipient not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// CreateRecipient handles POST /recipients. An empty timezone selects the
// configured default.
func (s *Server) CreateRecipient(w http.ResponseWriter, r *http.Request) {
	var req createRecipientRequest
	if err := decodeJSON(r, &req); err != nil {
		s.bodyError(w, r, err)
		return
	}
	rec, err := s.recipients.CreateRecipient(r.Context(), req.Name, req.Timezone)
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}
