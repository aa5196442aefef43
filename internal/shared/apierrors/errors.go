package apierrors

import (
	"encoding/json"
	"net/http"
	"strings"
)

// ErrorResponse represents the canonical error envelope returned by the API.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// CodeFor derives the envelope code from an HTTP status ("Not Found" -> "not_found").
func CodeFor(status int) string {
	return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
}

// Write encodes an ErrorResponse with the given status.
func Write(w http.ResponseWriter, status int, message, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Code: CodeFor(status), Message: message, RequestID: requestID})
}
