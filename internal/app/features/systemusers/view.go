// internal/app/features/systemusers/view.go
package systemusers

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/tutorhub/internal/app/features/errors"
	"github.com/dalemusser/tutorhub/internal/app/system/docstore"
	"github.com/dalemusser/tutorhub/internal/app/system/timeouts"
	"github.com/dalemusser/tutorhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// ServeView handles GET /admin/users/{id}.
func (h *Handler) ServeView(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, struct {
		models.User
		EffectiveRole models.Role `json:"effective_role"`
	}{*u, u.EffectiveRole()})
}

// load reads the {id} user and writes the 404 or 500 itself.
func (h *Handler) load(ctx context.Context, w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	u, err := h.Users.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		if docstore.IsNotFound(err) {
			uierrors.RenderNotFound(w, r, "User not found.")
			return nil, false
		}
		h.ErrLog.LogServerError(w, r, "load user", err, "Could not load the user.", "/admin/users")
		return nil, false
	}
	return u, true
}
