// internal/app/features/profile/routes.go
package profile

import (
	"github.com/dalemusser/tutorhub/internal/app/system/gates"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /profile. Any signed-in user, pending included,
// may edit their own profile.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(gates.RequireSignedIn)
	r.Get("/", h.ServeProfile)
	r.Post("/", h.HandleProfile)
	r.Post("/preferences", h.HandlePreferences)
	return r
}
