// Package http serves the dashboard: local manual-data and demo routes,
// the runtime config, health, the embedded single-page app, and a reverse
// proxy for every other /api call.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"finboard/internal/middleware/trace"
)

// APIError is the JSON body of every error response.
type APIError struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Code      string `json:"code,omitempty"`
	Hint      string `json:"hint,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// JSONResponseBuilder provides a fluent API for JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewJSONResponse creates a builder with a 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write encodes the body. An *APIError body is stamped with the request id.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter, r *http.Request) {
	if apiErr, ok := b.body.(*APIError); ok && apiErr.RequestID == "" && r != nil {
		apiErr.RequestID = trace.GetRequestID(r.Context())
	}

	payload, err := json.Marshal(b.body)
	if err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
		b.statusCode = http.StatusInternalServerError
		payload = []byte(`{"error":"encoding_failed"}`)
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(payload)
}

// ErrorResponse creates an error response with the given status and code.
func ErrorResponse(statusCode int, code string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(&APIError{Error: code})
}

// ErrorWithMessage is ErrorResponse with a detail message.
func ErrorWithMessage(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(&APIError{Error: code, Message: message})
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	NewJSONResponse().Body(v).Write(w, r)
}
