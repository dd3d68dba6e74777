// internal/app/features/systemusers/routes.go
package systemusers

import (
	"github.com/dalemusser/tutorhub/internal/app/system/gates"
	"github.com/dalemusser/tutorhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the admin user routes under the path where this router is
// mounted (typically "/admin/users" from bootstrap).
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		// Only admins manage users; pending users are turned away, not
		// shown the pending view.
		pr.Use(gates.Guard(gates.Options{
			AllowedRoles:    []models.Role{models.RoleAdmin},
			HardDenyPending: true,
		}))

		pr.Get("/", h.ServeList)
		pr.Get("/{id}", h.ServeView)
		pr.Post("/{id}/approve", h.HandleApprove)
		pr.Post("/{id}/edit", h.HandleEdit)
	})

	return r
}
