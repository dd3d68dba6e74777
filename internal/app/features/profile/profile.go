// internal/app/features/profile/profile.go
package profile

import (
	"context"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/tutorhub/internal/app/features/errors"
	userstore "github.com/dalemusser/tutorhub/internal/app/store/users"
	"github.com/dalemusser/tutorhub/internal/app/system/auth"
	"github.com/dalemusser/tutorhub/internal/app/system/inputval"
	"github.com/dalemusser/tutorhub/internal/app/system/normalize"
	"github.com/dalemusser/tutorhub/internal/app/system/timeouts"
	"github.com/dalemusser/tutorhub/internal/domain/models"
	"go.uber.org/zap"
)

// profileData is the view model for the profile page.
type profileData struct {
	ID            string             `json:"id"`
	Email         string             `json:"email"`
	EmailVerified bool               `json:"email_verified"`
	Provider      string             `json:"provider"`
	DisplayName   string             `json:"display_name"`
	Role          models.Role        `json:"role"`
	RequestedRole *models.Role       `json:"requested_role,omitempty"`
	Points        int                `json:"points"`
	Level         int                `json:"level"`
	Preferences   models.Preferences `json:"preferences"`
}

// ServeProfile handles GET /profile.
func (h *Handler) ServeProfile(w http.ResponseWriter, r *http.Request) {
	s := auth.CurrentSession(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	// Read fresh; the session record may predate a change made in
	// another tab.
	u, err := h.Users.Get(ctx, s.UserID())
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load profile", err, "Could not load your profile.", "/dashboard")
		return
	}

	uierrors.WriteJSON(w, http.StatusOK, profileData{
		ID:            u.ID,
		Email:         s.Identity.Email,
		EmailVerified: s.EmailVerified(),
		Provider:      s.Identity.Provider,
		DisplayName:   u.DisplayName,
		Role:          u.EffectiveRole(),
		RequestedRole: u.RequestedRole,
		Points:        u.Points,
		Level:         u.Level,
		Preferences:   u.Preferences,
	})
}

type profileInput struct {
	DisplayName string `form:"display_name" validate:"required,max=80" label:"Name"`
}

// HandleProfile handles POST /profile. Only the display name is
// self-service; role and standing belong to admins.
func (h *Handler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/profile")
		return
	}
	in := profileInput{DisplayName: normalize.Name(r.PostFormValue("display_name"))}
	if res := inputval.Validate(in); res.HasErrors() {
		uierrors.RenderValidation(w, r, res.First(), res.Fields())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	uid := auth.CurrentSession(r).UserID()
	if err := h.Users.UpdateProfile(ctx, uid, userstore.ProfileUpdate{DisplayName: &in.DisplayName}); err != nil {
		h.ErrLog.LogServerError(w, r, "update profile", err, "Could not save your profile.", "/profile")
		return
	}
	h.Log.Info("profile updated", zap.String("user_id", uid))
	uierrors.WriteJSON(w, http.StatusOK, map[string]any{"state": "saved", "display_name": in.DisplayName})
}

type preferencesInput struct {
	Language string `form:"language" validate:"omitempty,bcp47_language_tag" label:"Language"`
}

// HandlePreferences handles POST /profile/preferences. Fields missing
// from the form keep their stored values; a checkbox field is read only
// when the form carries it or its "_present" marker.
func (h *Handler) HandlePreferences(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/profile")
		return
	}

	var upd userstore.PreferencesUpdate
	if v, ok := checkbox(r, "email_notifications"); ok {
		upd.EmailNotifications = &v
	}
	if v, ok := checkbox(r, "push_notifications"); ok {
		upd.PushNotifications = &v
	}
	if _, ok := r.PostForm["language"]; ok {
		in := preferencesInput{Language: strings.TrimSpace(r.PostFormValue("language"))}
		if res := inputval.Validate(in); res.HasErrors() {
			uierrors.RenderValidation(w, r, res.First(), res.Fields())
			return
		}
		upd.Language = &in.Language
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	uid := auth.CurrentSession(r).UserID()
	if err := h.Users.UpdatePreferences(ctx, uid, upd); err != nil {
		h.ErrLog.LogServerError(w, r, "update preferences", err, "Could not save your preferences.", "/profile")
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, map[string]any{"state": "saved"})
}

// checkbox reads a boolean form field. Unchecked boxes are not submitted,
// so forms send name+"_present" alongside to mean "false when absent".
func checkbox(r *http.Request, name string) (value, ok bool) {
	if vals, present := r.PostForm[name]; present {
		return normalize.Bool(vals[0]), true
	}
	if _, present := r.PostForm[name+"_present"]; present {
		return false, true
	}
	return false, false
}
