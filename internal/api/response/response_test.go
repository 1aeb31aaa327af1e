package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	payload := map[string]string{"hello": "world"}

	WriteJSON(w, http.StatusOK, payload)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &body)
	require.NoError(t, err)
	assert.Equal(t, "world", body["hello"])
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteError(w, http.StatusNotFound, "backup not found")

	assert.Equal(t, http.StatusNotFound, w.Code)

	var body map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &body)
	require.NoError(t, err)
	assert.Equal(t, "backup not found", body["error"])
	_, hasField := body["field"]
	assert.False(t, hasField)
}

func TestWriteFieldError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteFieldError(w, http.StatusBadRequest, "retention_days", "must be between 1 and 365")

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &body)
	require.NoError(t, err)
	assert.Equal(t, "retention_days", body.Field)
	assert.Equal(t, "must be between 1 and 365", body.Error)
}

func TestWriteMessage(t *testing.T) {
	w := httptest.NewRecorder()

	WriteMessage(w, "backup deleted")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"backup deleted"}`, w.Body.String())
}
