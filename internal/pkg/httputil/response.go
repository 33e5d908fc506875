package httputil

import (
	"encoding/json"
	"log"
	"net/http"
)

// Envelope is the uniform response wrapper for all API endpoints.
// Status is "success" or "error"; Data carries the payload on success,
// Errors carries detail on failure.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Errors  any    `json:"errors,omitempty"`
}

// JSON writes a JSON response with the given status code. If encoding
// fails there is nothing useful left to send; the failure is only logged.
func JSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[httputil] JSON encode error: %v", err)
	}
}

// Success writes a 200 envelope with the given message and data.
func Success(w http.ResponseWriter, message string, data any) {
	JSON(w, http.StatusOK, Envelope{Status: "success", Message: message, Data: data})
}

// Error writes an error envelope with the given HTTP status.
func Error(w http.ResponseWriter, status int, message string, errs ...any) {
	env := Envelope{Status: "error", Message: message}
	if len(errs) == 1 {
		env.Errors = errs[0]
	} else if len(errs) > 1 {
		env.Errors = errs
	}
	JSON(w, status, env)
}

// BadRequest writes a 400 error envelope.
func BadRequest(w http.ResponseWriter, message string, errs ...any) {
	Error(w, http.StatusBadRequest, message, errs...)
}

// Unauthorized writes a 401 error envelope.
func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnauthorized, message)
}

// NotFound writes a 404 error envelope.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, message)
}

// InternalError writes a 500 envelope. The real error is logged but the
// client gets only the safe message (never leak internals).
func InternalError(w http.ResponseWriter, message string, err error) {
	log.Printf("[httputil] internal error: %v", err)
	Error(w, http.StatusInternalServerError, message)
}

// Decode reads JSON from the request body into dst.
// Returns false and writes a 400 envelope if parsing fails.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		BadRequest(w, "invalid JSON: "+err.Error())
		return false
	}
	return true
}
