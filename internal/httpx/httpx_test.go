package httpx

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name" validate:"required"`
	Currency    string `json:"currency" validate:"omitempty,len=3"`
}

func TestBind(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.com","display_name":"A"}`))
		w := httptest.NewRecorder()

		var dst sampleRequest
		assert.True(t, Bind(w, req, &dst))
		assert.Equal(t, "a@b.com", dst.Email)
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":`))
		w := httptest.NewRecorder()

		var dst sampleRequest
		assert.False(t, Bind(w, req, &dst))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("FieldErrorsUseJSONNames", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope","currency":"USDT"}`))
		w := httptest.NewRecorder()

		var dst sampleRequest
		assert.False(t, Bind(w, req, &dst))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

		var envelope Envelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
		assert.False(t, envelope.Success)

		fields := envelope.Errors.(map[string]interface{})
		assert.Contains(t, fields, "email")
		assert.Contains(t, fields, "display_name")
		assert.Contains(t, fields, "currency")
		assert.Equal(t, "The currency must be 3 characters.", fields["currency"])
	})
}

func TestRespond(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		w := httptest.NewRecorder()
		Success(w, http.StatusCreated, "Created", map[string]int{"id": 1})

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Body.String(), `"success":true`)
		assert.Contains(t, w.Body.String(), `"id":1`)
	})

	t.Run("ErrorOmitsData", func(t *testing.T) {
		w := httptest.NewRecorder()
		Error(w, http.StatusNotFound, "Not found")

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NotContains(t, w.Body.String(), `"data"`)
		assert.Contains(t, w.Body.String(), `"success":false`)
	})
}
