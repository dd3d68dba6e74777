// internal/app/features/subscriptions/routes.go
package subscriptions

import (
	"github.com/dalemusser/tutorhub/internal/app/system/gates"
	"github.com/dalemusser/tutorhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /subscriptions. Students only; changing a
// subscription also needs a verified email.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(gates.RequireRole(models.RoleStudent))
	r.Get("/", h.ServeList)
	r.Get("/lecturers", h.ServeLecturers)

	r.Group(func(r chi.Router) {
		r.Use(gates.Guard(gates.Options{
			AllowedRoles:             []models.Role{models.RoleStudent},
			RequireEmailVerification: true,
		}))
		r.Post("/{lecturerID}/toggle", h.HandleToggle)
		r.Post("/{lecturerID}/unsubscribe", h.HandleUnsubscribe)
		r.Post("/{lecturerID}/notifications", h.HandleNotifications)
	})
	return r
}
