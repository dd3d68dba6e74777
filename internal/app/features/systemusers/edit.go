// internal/app/features/systemusers/edit.go
package systemusers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	uierrors "github.com/dalemusser/tutorhub/internal/app/features/errors"
	userstore "github.com/dalemusser/tutorhub/internal/app/store/users"
	"github.com/dalemusser/tutorhub/internal/app/system/auth"
	"github.com/dalemusser/tutorhub/internal/app/system/inputval"
	"github.com/dalemusser/tutorhub/internal/app/system/normalize"
	"github.com/dalemusser/tutorhub/internal/app/system/timeouts"
	"github.com/dalemusser/tutorhub/internal/domain/models"
)

// editUserInput defines validation rules for an admin edit. Every field
// is optional; absent fields are left unchanged.
type editUserInput struct {
	Role   string `form:"role" validate:"omitempty,role" label:"Role"`
	Status string `form:"status" validate:"omitempty,oneof=active disabled" label:"Status"`
	Points string `form:"points" validate:"omitempty,number,max=9" label:"Points"`
	Level  string `form:"level" validate:"omitempty,number,max=4" label:"Level"`
}

// HandleEdit handles POST /admin/users/{id}/edit.
func (h *Handler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse edit form", err, "Invalid form submission.", "/admin/users")
		return
	}
	in := editUserInput{
		Role:   normalize.Role(r.PostFormValue("role")),
		Status: strings.ToLower(normalize.QueryParam(r.PostFormValue("status"))),
		Points: strings.TrimSpace(r.PostFormValue("points")),
		Level:  strings.TrimSpace(r.PostFormValue("level")),
	}
	if res := inputval.Validate(in); res.HasErrors() {
		uierrors.RenderValidation(w, r, res.First(), res.Fields())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	actorID := auth.CurrentSession(r).UserID()
	isSelf := actorID == u.ID

	var (
		upd     userstore.AdminUpdate
		changed []string
	)
	if in.Role != "" {
		role := models.Role(in.Role)
		if u.IsHardcodedAdmin || isSelf {
			uierrors.RenderBadRequest(w, r, "This account's role cannot be changed here.")
			return
		}
		upd.Role = &role
		changed = append(changed, "role")
	}
	if in.Status != "" {
		active := in.Status == "active"
		if isSelf && !active {
			uierrors.RenderBadRequest(w, r, "You cannot disable your own account.")
			return
		}
		upd.IsActive = &active
		changed = append(changed, "is_active")
	}
	if in.Points != "" {
		n, _ := strconv.Atoi(in.Points)
		upd.Points = &n
		changed = append(changed, "points")
	}
	if in.Level != "" {
		n, _ := strconv.Atoi(in.Level)
		if n < 1 {
			n = 1
		}
		upd.Level = &n
		changed = append(changed, "level")
	}
	if len(changed) == 0 {
		uierrors.RenderBadRequest(w, r, "Nothing to change.")
		return
	}

	if err := h.Users.ApplyAdminUpdate(ctx, u.ID, upd); err != nil {
		h.ErrLog.LogServerError(w, r, "apply admin update", err, "Could not save the user.", "/admin/users")
		return
	}
	h.AuditLog.UserUpdated(ctx, r, actorID, u.ID, strings.Join(changed, ","))

	done(w, r, map[string]any{"state": "updated", "id": u.ID, "fields": changed})
}
