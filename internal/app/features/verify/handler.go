// internal/app/features/verify/handler.go
package verify

import (
	"context"
	"net/http"
	"time"

	uierrors "github.com/dalemusser/tutorhub/internal/app/features/errors"
	"github.com/dalemusser/tutorhub/internal/app/system/auditlog"
	"github.com/dalemusser/tutorhub/internal/app/system/auth"
	"github.com/dalemusser/tutorhub/internal/app/system/identity"
	"github.com/dalemusser/tutorhub/internal/app/system/navigation"
	"github.com/dalemusser/tutorhub/internal/app/system/ratelimit"
	"github.com/dalemusser/tutorhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"go.uber.org/zap"
)

// Resends allowed per user per window.
const (
	resendBurst  = 3
	resendWindow = 10 * time.Minute
)

type Handler struct {
	Log      *zap.Logger
	ErrLog   *uierrors.ErrorLogger
	Dir      *identity.Directory
	AuditLog *auditlog.Logger
	resends  *ratelimit.Limiter
}

func NewHandler(dir *identity.Directory, audit *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Log:      logger,
		ErrLog:   errLog,
		Dir:      dir,
		AuditLog: audit,
		resends:  ratelimit.New(resendBurst, resendWindow),
	}
}

// ServeConfirm handles GET /verify?token=. The link works whether or not
// the visitor is signed in; a signed-in owner has their session
// re-resolved so the new flag applies at once.
func (h *Handler) ServeConfirm(w http.ResponseWriter, r *http.Request) {
	token := query.Get(r, "token")
	if token == "" {
		uierrors.RenderBadRequest(w, r, "The verification link is missing its token.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	id, err := h.Dir.ConfirmVerification(ctx, token)
	if err != nil {
		if !identity.IsAuthFailure(err) {
			h.ErrLog.LogServerError(w, r, "confirm verification", err, "Verification failed. Please try again.", "/dashboard")
			return
		}
		h.AuditLog.VerificationFailed(ctx, r, identity.Reason(err))
		uierrors.WriteJSON(w, http.StatusBadRequest, uierrors.Body{
			State:   "verification_failed",
			Message: identity.Reason(err),
			Next:    "/verify/resend",
		})
		return
	}
	h.AuditLog.VerificationConfirmed(ctx, r, id.ID)

	if t := auth.TrackerFrom(r.Context()); t != nil && t.Session().UserID() == id.ID {
		if err := t.Refresh(ctx); err != nil {
			h.Log.Warn("session not refreshed after verification", zap.String("user_id", id.ID), zap.Error(err))
		}
	}
	navigation.Redirect(w, r, "/dashboard?verified=1")
}

// HandleResend handles POST /verify/resend for the signed-in user.
func (h *Handler) HandleResend(w http.ResponseWriter, r *http.Request) {
	s := auth.CurrentSession(r)
	if s.EmailVerified() {
		uierrors.WriteJSON(w, http.StatusOK, uierrors.Body{State: "already_verified", Next: "/dashboard"})
		return
	}
	if !h.resends.Allow(s.UserID()) {
		uierrors.WriteJSON(w, http.StatusTooManyRequests, uierrors.Body{
			State:   "rate_limited",
			Message: "Too many verification emails. Please wait before asking again.",
		})
		return
	}

	t := auth.TrackerFrom(r.Context())
	if t == nil {
		h.ErrLog.LogServerError(w, r, "resend outside session loader", nil, "Could not send the email. Please try again.", "/dashboard")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := t.Provider().SendVerificationEmail(ctx); err != nil {
		h.ErrLog.LogServerError(w, r, "resend verification", err, "Could not send the email. Please try again.", "/dashboard")
		return
	}
	h.AuditLog.VerificationSent(ctx, r, s.UserID(), s.Identity.Email)
	uierrors.WriteJSON(w, http.StatusAccepted, uierrors.Body{
		State:   "verification_sent",
		Message: "Check your inbox for a new verification link.",
	})
}
