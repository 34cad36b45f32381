package httputil

import (
	"context"
	"encoding/json"
	"net/http"
)

type contextKey string

const requestIDContextKey contextKey = "request_id"

// WithRequestID stores the request ID for response envelopes.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}

// RequestIDFromContext returns the request ID, or "" when unset.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

// ErrorBody is the error object inside the response envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Envelope is the standard JSON response body for every endpoint.
type Envelope struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorBody  `json:"error,omitempty"`
	RequestID string      `json:"request_id"`
}

// RespondJSON writes a success envelope with the given status code.
func RespondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeEnvelope(w, status, Envelope{
		Success:   true,
		Data:      data,
		RequestID: RequestIDFromContext(r.Context()),
	})
}

// RespondError writes an error envelope.
func RespondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeEnvelope(w, status, Envelope{
		Success:   false,
		Error:     &ErrorBody{Code: code, Message: message},
		RequestID: RequestIDFromContext(r.Context()),
	})
}

func writeEnvelope(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}
