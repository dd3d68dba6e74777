// internal/app/features/systemusers/approve.go
package systemusers

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/tutorhub/internal/app/features/errors"
	userstore "github.com/dalemusser/tutorhub/internal/app/store/users"
	"github.com/dalemusser/tutorhub/internal/app/system/auth"
	"github.com/dalemusser/tutorhub/internal/app/system/docstore"
	"github.com/dalemusser/tutorhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// HandleApprove handles POST /admin/users/{id}/approve: the pending user
// gets the role they asked for at sign-up and a notification saying so.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	id := chi.URLParam(r, "id")
	u, err := h.Users.ApproveRequestedRole(ctx, id)
	switch {
	case err == nil:
	case docstore.IsNotFound(err):
		uierrors.RenderNotFound(w, r, "User not found.")
		return
	case errors.Is(err, userstore.ErrNotRequested):
		uierrors.WriteJSON(w, http.StatusConflict, uierrors.Body{
			State:   "nothing_to_approve",
			Message: "This user has no pending role request.",
			Next:    "/admin/users",
		})
		return
	default:
		h.ErrLog.LogServerError(w, r, "approve role", err, "Could not approve the user.", "/admin/users")
		return
	}

	actorID := auth.CurrentSession(r).UserID()
	h.AuditLog.RoleApproved(ctx, r, actorID, u.ID, string(u.Role))
	if _, err := h.Fanout.RoleApproved(ctx, u.ID, u.Role); err != nil {
		h.Log.Warn("role approval notification dropped", zap.String("user_id", u.ID), zap.Error(err))
	}
	h.Log.Info("role approved",
		zap.String("actor_id", actorID),
		zap.String("user_id", u.ID),
		zap.String("role", string(u.Role)))

	done(w, r, map[string]any{"state": "approved", "id": u.ID, "role": u.Role})
}
