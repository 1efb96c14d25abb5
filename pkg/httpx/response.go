// Package httpx holds the JSON response helpers shared by every handler.
package httpx

import (
	"encoding/json"
	"log"
	"net/http"
)

// RespondJSON writes data as a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode JSON response: %v", err)
	}
}

// ErrorResponse is the JSON shape of every error the API returns.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// RespondError writes err as a JSON error response with the given status code.
func RespondError(w http.ResponseWriter, status int, err error) {
	RespondErrorString(w, status, err.Error())
}

// RespondErrorString writes a JSON error response with the given status code
// and message.
func RespondErrorString(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}
