// internal/app/features/publish/routes.go
package publish

import (
	"github.com/dalemusser/tutorhub/internal/app/system/gates"
	"github.com/dalemusser/tutorhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /publish. Assignments, answers and the subscriber
// list belong to lecturers and admins; any approved, verified user may
// send a message.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(gates.Guard(gates.Options{
			AllowedRoles:             []models.Role{models.RoleLecturer, models.RoleAdmin},
			RequireEmailVerification: true,
		}))
		r.Post("/assignments", h.HandleAssignment)
		r.Post("/answers", h.HandleAnswer)
		r.Get("/subscribers", h.ServeSubscribers)
	})

	r.With(gates.Guard(gates.Options{
		AllowedRoles:             []models.Role{models.RoleAdmin, models.RoleLecturer, models.RoleStudent},
		RequireEmailVerification: true,
	})).Post("/messages", h.HandleMessage)
	return r
}
