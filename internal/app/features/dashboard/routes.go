// internal/app/features/dashboard/routes.go
package dashboard

import (
	"github.com/dalemusser/tutorhub/internal/app/system/gates"
	"github.com/go-chi/chi/v5"
)

// Routes wires the dashboard feature under whatever mount point
// the top-level router chooses (e.g., "/dashboard").
//
// The handler dispatches on the effective role; a pending user gets the
// read-only pending view.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.With(gates.RequireSignedIn).Get("/", h.ServeDashboard)
	return r
}
