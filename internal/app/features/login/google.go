// internal/app/features/login/google.go
package login

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/tutorhub/internal/app/features/errors"
	"github.com/dalemusser/tutorhub/internal/app/store/oauthstate"
	"github.com/dalemusser/tutorhub/internal/app/system/auth"
	"github.com/dalemusser/tutorhub/internal/app/system/identity"
	"github.com/dalemusser/tutorhub/internal/app/system/navigation"
	"github.com/dalemusser/tutorhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| GET /login/google                                                            |
| Stores a one-time state and sends the browser to Google's consent screen.   |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeGoogleStart(w http.ResponseWriter, r *http.Request) {
	ex, ok := h.Dir.Exchanger(identity.ProviderGoogle)
	if !ok {
		h.Log.Warn("google sign-in not configured")
		navigation.Redirect(w, r, "/login?error=google_not_configured")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	state := uuid.NewString()
	ret := navigation.SafeBackURL(r, navigation.AfterLogin)
	if err := h.States.Save(ctx, state, ret, oauthstate.DefaultTTL); err != nil {
		h.ErrLog.LogServerError(w, r, "save oauth state", err, "Google sign-in is unavailable right now.", "/login")
		return
	}
	http.Redirect(w, r, ex.AuthCodeURL(state), http.StatusFound)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /login/google/callback                                                   |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeGoogleCallback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if reason := query.Get(r, "error"); reason != "" {
		h.AuditLog.LoginFailed(ctx, r, "", "google: "+reason)
		navigation.Redirect(w, r, "/login?error=google_denied")
		return
	}

	ret, ok, err := h.States.Consume(ctx, query.Get(r, "state"))
	if err != nil {
		h.ErrLog.LogServerError(w, r, "consume oauth state", err, "Google sign-in failed. Please try again.", "/login")
		return
	}
	if !ok {
		h.ErrLog.LogBadRequest(w, r, "unknown or expired oauth state", nil,
			"That sign-in attempt expired. Please try again.", "/login")
		return
	}

	tracker := auth.TrackerFrom(r.Context())
	if tracker == nil {
		h.ErrLog.LogServerError(w, r, "google callback outside session loader", nil, "Google sign-in failed. Please try again.", "/login")
		return
	}

	id, err := tracker.Provider().SignInFederated(ctx, identity.ProviderGoogle, query.Get(r, "code"))
	if err != nil {
		if !identity.IsAuthFailure(err) {
			h.ErrLog.LogServerError(w, r, "google exchange failed", err, "Google sign-in failed. Please try again.", "/login")
			return
		}
		h.AuditLog.LoginFailed(ctx, r, "", identity.Reason(err))
		uierrors.WriteJSON(w, http.StatusUnauthorized, uierrors.Body{
			State:   "invalid_credentials",
			Message: identity.Reason(err),
			Next:    "/login",
		})
		return
	}

	if err := h.SessionMgr.Persist(w, r, id.ID); err != nil {
		h.ErrLog.LogServerError(w, r, "persist session", err, "Google sign-in failed. Please try again.", "/login")
		return
	}
	h.AuditLog.FederatedLoginSuccess(ctx, r, id.ID, identity.ProviderGoogle, id.Email)
	h.Log.Info("google sign-in", zap.String("user_id", id.ID))

	navigation.Redirect(w, r, urlutil.SafeReturn(ret, "", "/dashboard"))
}
