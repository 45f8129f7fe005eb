// Package api provides the shared JSON response envelope used by all handlers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/domain"
)

// Envelope is the response shape shared by every endpoint:
// {success, data?, message?, error?}
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	// Details carries per-field validation messages when Error is VALIDATION_ERROR
	Details map[string]string `json:"details,omitempty"`
}

// WriteSuccess writes a success envelope with the given status code
func WriteSuccess(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, Envelope{Success: true, Data: data})
}

// WriteMessage writes a success envelope carrying a message instead of data
func WriteMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Envelope{Success: true, Message: message})
}

// WriteError maps a domain error to its HTTP status and stable code.
// Unrecognized errors become a 500 INTERNAL_ERROR with a generic message so
// internals never leak to clients; callers log the original error themselves.
func WriteError(w http.ResponseWriter, err error, log zerolog.Logger) {
	code := domain.CodeOf(err)
	status := statusFor(code)

	env := Envelope{Success: false, Error: code}
	if code == domain.CodeInternal {
		log.Error().Err(err).Msg("Request failed")
		env.Message = "internal error"
	} else {
		env.Message = err.Error()
	}

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		env.Details = ve.Fields
	}

	writeJSON(w, status, env)
}

// WriteValidation is a shortcut for rejecting malformed input before any
// service call, e.g. unparseable path parameters.
func WriteValidation(w http.ResponseWriter, field, msg string) {
	writeJSON(w, http.StatusBadRequest, Envelope{
		Success: false,
		Error:   domain.CodeValidation,
		Message: field + ": " + msg,
		Details: map[string]string{field: msg},
	})
}

func statusFor(code string) int {
	switch code {
	case domain.CodePortfolioNotFound, domain.CodeItemNotFound, domain.CodeTransactionNotFound:
		return http.StatusNotFound
	case domain.CodeValidation, domain.CodeInsufficientQuantity, domain.CodePortfolioItemNotFound:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
