package api

import (
	"encoding/json"
	"net/http"
)

// Error represents a structured error response. Redirect, when set, tells
// the UI where to send the user instead of rendering the blocked screen.
type Error struct {
	Status   int    `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Redirect string `json:"redirect,omitempty"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeConflict     = "conflict"
	ErrCodeInternal     = "internal_error"
)

// Redirect targets handed to the UI.
const (
	redirectLogin     = "/login"
	redirectDashboard = "/dashboard"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // best-effort write; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response with an inline message.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeConflict writes a 409 error response.
func writeConflict(w http.ResponseWriter, message string) {
	writeError(w, http.StatusConflict, ErrCodeConflict, message)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeLoginRedirect rejects an unauthenticated request and points the UI
// at the login entry point. Protected content is never flashed first.
func writeLoginRedirect(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, Error{
		Status:   http.StatusUnauthorized,
		Code:     ErrCodeUnauthorized,
		Message:  "authentication required",
		Redirect: redirectLogin,
	})
}

// writeAccessDenied rejects a navigation attempt to an ungranted module and
// points the UI at the dashboard. The denial is a redirect, never a stack
// trace.
func writeAccessDenied(w http.ResponseWriter) {
	writeJSON(w, http.StatusForbidden, Error{
		Status:   http.StatusForbidden,
		Code:     ErrCodeForbidden,
		Message:  "module not granted",
		Redirect: redirectDashboard,
	})
}
