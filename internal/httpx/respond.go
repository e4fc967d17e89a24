package httpx

import (
	"net/http"

	json "github.com/goccy/go-json"
)

// Envelope is the response shape every JSON endpoint returns.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

func Success(w http.ResponseWriter, code int, message string, data interface{}) {
	writeJSON(w, code, Envelope{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func Error(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, Envelope{
		Success: false,
		Message: message,
	})
}

// ValidationFailed renders a 422 with per-field messages.
func ValidationFailed(w http.ResponseWriter, fields map[string]string) {
	writeJSON(w, http.StatusUnprocessableEntity, Envelope{
		Success: false,
		Message: "The given data was invalid.",
		Errors:  fields,
	})
}

func writeJSON(w http.ResponseWriter, code int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
