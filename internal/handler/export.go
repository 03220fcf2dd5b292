package handler

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/medtrack/backend/internal/domain"
)

// csvHeaders is the first row of a CSV export.
var csvHeaders = []string{
	"medication_id", "medication_name", "dosage", "recurrence", "archived",
	"dose_id", "date", "time", "weekday", "scheduled_at", "local_scheduled_at", "taken_at",
}

// exportRow is the JSON form of domain.ExportRow.
type exportRow struct {
	MedicationID     int64             `json:"medication_id"`
	MedicationName   string            `json:"medication_name"`
	Dosage           string            `json:"dosage"`
	Recurrence       domain.Recurrence `json:"recurrence"`
	Archived         bool              `json:"archived"`
	DoseID           int64             `json:"dose_id"`
	Date             string            `json:"date"`
	Time             string            `json:"time"`
	Weekday          domain.Weekday    `json:"weekday"`
	ScheduledAt      time.Time         `json:"scheduled_at"`
	LocalScheduledAt string            `json:"local_scheduled_at"`
	TakenAt          *time.Time        `json:"taken_at"`
}

// GetExport handles GET /recipients/{recipient_id}/export: the recipient's
// full dose history, archived medications included, one row per dose.
// ?format=csv returns CSV; the default is JSON.
func (s *Server) GetExport(w http.ResponseWriter, r *http.Request) {
	recipientID, err := pathID(r, "recipient_id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var format *string
	if err := queryParam(r, "format", &format); err != nil {
		badRequest(w, err.Error())
		return
	}
	if format != nil && *format != "csv" && *format != "json" {
		badRequest(w, "format must be csv or json")
		return
	}

	rows, err := s.export.Export(r.Context(), recipientID)
	if err != nil {
		s.writeError(w, r, err, "recipient not found")
		return
	}

	if format != nil && *format == "csv" {
		writeCSV(w, rows)
		return
	}
	out := make([]exportRow, len(rows))
	for i, row := range rows {
		out[i] = exportRow(row)
	}
	writeJSON(w, http.StatusOK, out)
}

func writeCSV(w http.ResponseWriter, rows []domain.ExportRow) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	//nolint:errcheck // bytes.Buffer writes cannot fail.
	cw.Write(csvHeaders)
	for _, r := range rows {
		//nolint:errcheck
		cw.Write(exportRowToCSVRecord(r))
	}
	cw.Flush()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="doses.csv"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func exportRowToCSVRecord(r domain.ExportRow) []string {
	return []string{
		strconv.FormatInt(r.MedicationID, 10),
		r.MedicationName,
		r.Dosage,
		string(r.Recurrence),
		strconv.FormatBool(r.Archived),
		strconv.FormatInt(r.DoseID, 10),
		r.Date,
		r.Time,
		string(r.Weekday),
		r.ScheduledAt.UTC().Format(time.RFC3339),
		r.LocalScheduledAt,
		formatOptionalTime(r.TakenAt),
	}
}

// formatOptionalTime returns the RFC3339 form of t, or "" if t is nil.
func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
