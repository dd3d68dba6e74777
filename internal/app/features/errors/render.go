// internal/app/features/errors/render.go
package errors

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dalemusser/tutorhub/internal/app/system/auth"
)

// Body is the JSON shape of every error and degraded view.
type Body struct {
	State         string `json:"state"`
	Message       string `json:"message,omitempty"`
	Role          string `json:"role,omitempty"`
	RequestedRole string `json:"requested_role,omitempty"`
	Next          string `json:"next,omitempty"`
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// RenderUnauthorized tells an API caller to sign in at loginURL.
func RenderUnauthorized(w http.ResponseWriter, r *http.Request, loginURL string) {
	if loginURL == "" {
		loginURL = "/login"
	}
	WriteJSON(w, http.StatusUnauthorized, Body{
		State:   "not_authenticated",
		Message: "Please sign in to continue.",
		Next:    loginURL,
	})
}

// RenderForbidden reports an access error with a message.
func RenderForbidden(w http.ResponseWriter, r *http.Request, msg, backURL string) {
	if backURL == "" {
		backURL = "/dashboard"
	}
	WriteJSON(w, http.StatusForbidden, Body{
		State:   "forbidden",
		Message: msg,
		Role:    string(auth.CurrentSession(r).Role()),
		Next:    backURL,
	})
}

// RenderUnverified is the verification-required view.
func RenderUnverified(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusForbidden, Body{
		State:   "email_unverified",
		Message: "Confirm your email address to continue. Check your inbox for the verification link.",
		Role:    string(auth.CurrentSession(r).Role()),
		Next:    "/verify/resend",
	})
}

// RenderDeactivated is shown to a signed-in user whose account an admin
// switched off.
func RenderDeactivated(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusForbidden, Body{
		State:   "account_deactivated",
		Message: "Your account has been deactivated. Contact an administrator.",
		Next:    "/logout",
	})
}

// RenderPending is the read-only view shown while a role request waits
// for an admin.
func RenderPending(w http.ResponseWriter, r *http.Request) {
	s := auth.CurrentSession(r)
	b := Body{
		State:   "pending_approval",
		Message: "Your account is waiting for approval.",
		Role:    string(s.Role()),
	}
	if s.Record != nil && s.Record.RequestedRole != nil {
		b.RequestedRole = string(*s.Record.RequestedRole)
	}
	WriteJSON(w, http.StatusOK, b)
}

// RenderResolving asks the client to retry once the session has settled.
func RenderResolving(w http.ResponseWriter, r *http.Request, retryAfterSeconds int) {
	if retryAfterSeconds <= 0 {
		retryAfterSeconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	WriteJSON(w, http.StatusServiceUnavailable, Body{
		State:   "resolving",
		Message: "Your session is still loading. Try again shortly.",
	})
}

// RenderBadRequest reports invalid input.
func RenderBadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	WriteJSON(w, http.StatusBadRequest, Body{State: "bad_request", Message: msg})
}

// RenderNotFound reports a missing resource.
func RenderNotFound(w http.ResponseWriter, r *http.Request, msg string) {
	WriteJSON(w, http.StatusNotFound, Body{State: "not_found", Message: msg})
}

// RenderServerError reports a failure the caller cannot fix.
func RenderServerError(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusInternalServerError, Body{
		State:   "error",
		Message: "Something went wrong. Please try again.",
	})
}

// ValidationBody is Body plus the failing form fields.
type ValidationBody struct {
	Body
	Fields map[string]string `json:"fields"`
}

// RenderValidation reports failed form rules: msg is the first failure,
// fields maps each failing form key to its message.
func RenderValidation(w http.ResponseWriter, r *http.Request, msg string, fields map[string]string) {
	WriteJSON(w, http.StatusBadRequest, ValidationBody{Body: Body{State: "bad_request", Message: msg}, Fields: fields})
}
