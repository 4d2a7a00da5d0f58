// Package httpx writes the API's JSON envelopes. Every error response uses
// the {error, code, details?} shape: code is the machine-readable constant
// clients switch on (INSUFFICIENT_BALANCE, ALREADY_RESOLVED, ...), error is
// the human-readable message, and details carries structured context such as
// the available/required token counts on a rejected commit.
package httpx

import (
	"encoding/json"
	"net/http"
)

type APIError struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError sends the error envelope. Pass nil details when there is no
// structured context to attach.
func WriteError(w http.ResponseWriter, status int, code, msg string, details any) {
	WriteJSON(w, status, APIError{
		Error:   msg,
		Code:    code,
		Details: details,
	})
}
