package handler_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medtrack/backend/internal/handler"
)

func TestGetHealth_Returns200WithOKStatus(t *testing.T) {
	rec := serve(t, handler.NewHealthHandler().Routes(), http.MethodGet, "/healthz", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestGetOpenAPI_ServesDocument(t *testing.T) {
	rec := serve(t, handler.NewHealthHandler().Routes(), http.MethodGet, "/openapi.yaml", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "openapi: 3.0.3")
	assert.Contains(t, rec.Body.String(), "/recipients/{recipient_id}/doses/{dose_id}/take")
}

func TestUnknownRoute_JSON404(t *testing.T) {
	rec := serve(t, handler.NewHealthHandler().Routes(), http.MethodGet, "/nope", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Code)
}

func TestWrongMethod_JSON405(t *testing.T) {
	rec := serve(t, handler.NewHealthHandler().Routes(), http.MethodDelete, "/healthz", nil)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "method_not_allowed", decodeError(t, rec).Code)
}
