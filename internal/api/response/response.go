package response

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every error reply. Details carry per-field
// or per-quota messages when there are any.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

// WriteErrorDetails writes an error with structured details.
func WriteErrorDetails(w http.ResponseWriter, status int, message string, details any) {
	WriteJSON(w, status, ErrorResponse{Error: message, Details: details})
}

// WriteStatus acknowledges an accepted asynchronous operation.
func WriteStatus(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"status": message})
}
