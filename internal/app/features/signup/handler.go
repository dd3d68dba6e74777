// internal/app/features/signup/handler.go
package signup

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/tutorhub/internal/app/features/errors"
	userstore "github.com/dalemusser/tutorhub/internal/app/store/users"
	"github.com/dalemusser/tutorhub/internal/app/system/auditlog"
	"github.com/dalemusser/tutorhub/internal/app/system/auth"
	"github.com/dalemusser/tutorhub/internal/app/system/identity"
	"github.com/dalemusser/tutorhub/internal/app/system/inputval"
	"github.com/dalemusser/tutorhub/internal/app/system/navigation"
	"github.com/dalemusser/tutorhub/internal/app/system/normalize"
	"github.com/dalemusser/tutorhub/internal/app/system/ratelimit"
	"github.com/dalemusser/tutorhub/internal/app/system/timeouts"
	"github.com/dalemusser/tutorhub/internal/domain/models"
	"go.uber.org/zap"
)

type Handler struct {
	Log        *zap.Logger
	ErrLog     *uierrors.ErrorLogger
	SessionMgr *auth.SessionManager
	Auth       *auth.Authenticator
	Users      *userstore.Store
	AuditLog   *auditlog.Logger
	Limiter    *ratelimit.LoginLimiter
}

func NewHandler(
	sessionMgr *auth.SessionManager,
	authn *auth.Authenticator,
	users *userstore.Store,
	audit *auditlog.Logger,
	limiter *ratelimit.LoginLimiter,
	errLog *uierrors.ErrorLogger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Log:        logger,
		ErrLog:     errLog,
		SessionMgr: sessionMgr,
		Auth:       authn,
		Users:      users,
		AuditLog:   audit,
		Limiter:    limiter,
	}
}

type registerInput struct {
	Email       string `form:"email" validate:"required,email,max=254" label:"Email"`
	Password    string `form:"password" validate:"required,min=6,max=128" label:"Password"`
	DisplayName string `form:"display_name" validate:"required,max=80" label:"Name"`
	Role        string `form:"role" validate:"required,requestable" label:"Role"`
}

// HandleRegister handles POST /register. The new account is pending until
// an admin approves the requested role.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse register form", err, "Invalid form submission.", "/register")
		return
	}
	in := registerInput{
		Email:       normalize.Email(r.FormValue("email")),
		Password:    r.FormValue("password"),
		DisplayName: normalize.Name(r.FormValue("display_name")),
		Role:        normalize.Role(r.FormValue("role")),
	}

	if h.Limiter != nil {
		if ok, msg := h.Limiter.Check(r, in.Email); !ok {
			uierrors.WriteJSON(w, http.StatusTooManyRequests, uierrors.Body{State: "rate_limited", Message: msg, Next: "/register"})
			return
		}
	}
	if res := inputval.Validate(in); res.HasErrors() {
		uierrors.RenderValidation(w, r, res.First(), res.Fields())
		return
	}
	// Admin accounts come from the allowlist and the bootstrap secret only.
	if h.Auth.IsAdmin(in.Email) {
		uierrors.RenderForbidden(w, r, "This address cannot be registered here. Sign in instead.", "/login")
		return
	}

	tracker := auth.TrackerFrom(r.Context())
	if tracker == nil {
		h.ErrLog.LogServerError(w, r, "register outside session loader", nil, "Sign-up failed. Please try again.", "/register")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	p := tracker.Provider()
	id, err := p.CreateIdentity(ctx, in.Email, in.Password)
	if err != nil {
		if identity.IsAuthFailure(err) {
			uierrors.WriteJSON(w, http.StatusConflict, uierrors.Body{State: "sign_up_failed", Message: identity.Reason(err), Next: "/register"})
			return
		}
		h.ErrLog.LogServerError(w, r, "create identity", err, "Sign-up failed. Please try again.", "/register")
		return
	}

	// The tracker has resolved the new identity to a pending record by now.
	role := models.Role(in.Role)
	if err := h.Users.RequestRole(ctx, id.ID, role); err != nil {
		h.ErrLog.LogServerError(w, r, "record requested role", err, "Sign-up failed. Please try again.", "/register")
		return
	}
	name := in.DisplayName
	if err := h.Users.UpdateProfile(ctx, id.ID, userstore.ProfileUpdate{DisplayName: &name}); err != nil {
		h.Log.Warn("display name not saved", zap.String("user_id", id.ID), zap.Error(err))
	}

	if err := p.SendVerificationEmail(ctx); err != nil {
		h.Log.Warn("verification email not sent", zap.String("user_id", id.ID), zap.Error(err))
	} else {
		h.AuditLog.VerificationSent(ctx, r, id.ID, id.Email)
	}

	if err := h.SessionMgr.Persist(w, r, id.ID); err != nil {
		h.ErrLog.LogServerError(w, r, "persist session", err, "Your account was created. Please sign in.", "/login")
		return
	}
	h.AuditLog.SignUp(ctx, r, id.ID, id.Email, in.Role)
	navigation.Redirect(w, r, "/dashboard")
}
