package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/medtrack/backend/internal/domain"
)

// ErrorDetail is the body of every error response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps ErrorDetail as {"error":{...}}.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

func errorBody(code, message string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Code: code, Message: message}}
}

// badRequest answers 400 for a request rejected before reaching the app
// layer (malformed JSON, unparsable path or query parameter).
func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorBody("bad_request", message))
}

// writeError maps err onto a status code and envelope. notFoundMsg names
// what was being looked up, since only the handler knows that.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, notFoundMsg string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not_found", notFoundMsg))
	case errors.Is(err, domain.ErrInvalidTimezone):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("invalid_timezone", unwrapMessage(err, domain.ErrInvalidTimezone)))
	case errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("validation_error", unwrapMessage(err, domain.ErrValidation)))
	case errors.Is(err, domain.ErrDuplicateActiveMedication):
		writeJSON(w, http.StatusConflict, errorBody("duplicate_active_medication", domain.ErrDuplicateActiveMedication.Error()))
	case errors.Is(err, domain.ErrSnapshotConflict):
		writeJSON(w, http.StatusConflict, errorBody("conflict", "the data changed while the request ran; retry"))
	case errors.Is(err, domain.ErrStorageUnavailable):
		s.log.ErrorContext(r.Context(), "storage unavailable", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorBody("storage_unavailable", "storage is temporarily unavailable"))
	case errors.As(err, &tooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("payload_too_large", "request body too large"))
	default:
		s.log.ErrorContext(r.Context(), "unhandled error", "error", err, "path", r.URL.Path)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal_error", "internal server error"))
	}
}

// unwrapMessage extracts the human-readable part after the sentinel text of
// a wrapped error.
// e.g. "service.MedicationService.Create: validation error: name is required" -> "name is required"
func unwrapMessage(err, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if i := strings.LastIndex(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	return sentinel.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
