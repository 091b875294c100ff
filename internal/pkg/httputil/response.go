// Package httputil holds the HTTP middleware and the JSON envelope helpers
// shared by every handler.
package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// ErrorBody is the payload of every error response.
type ErrorBody struct {
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// FieldError describes one failed validation rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func write(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "status", status, "error", err)
	}
}

// JSON writes data as is. Use Success for enveloped resources.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, data)
}

// Success writes {"data": data}.
func Success(w http.ResponseWriter, status int, data any) {
	write(w, status, map[string]any{"data": data})
}

// NoContent writes an empty 204 response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Text writes a plain text response.
func Text(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(text)); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// Error writes {"error": {"message": message}}.
func Error(w http.ResponseWriter, status int, message string) {
	write(w, status, map[string]ErrorBody{"error": {Message: message}})
}

// ValidationError writes a 400 with one FieldError per failed rule, or the
// error text when err is not a validator error.
func ValidationError(w http.ResponseWriter, err error) {
	body := ErrorBody{Message: "validation error", Details: err.Error()}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details := make([]FieldError, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			details = append(details, FieldError{Field: fe.Namespace(), Message: fe.Tag()})
		}
		body.Details = details
	}

	write(w, http.StatusBadRequest, map[string]ErrorBody{"error": body})
}
