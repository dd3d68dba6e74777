// internal/app/features/notifications/routes.go
package notifications

import (
	"github.com/dalemusser/tutorhub/internal/app/system/gates"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /notifications. Every route needs a signed-in user;
// pending users have an inbox too.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(gates.RequireSignedIn)
	r.Get("/", h.ServeList)
	r.Get("/stream", h.ServeStream)
	r.Post("/read-all", h.HandleMarkAllRead)
	r.Post("/{id}/read", h.HandleMarkRead)
	return r
}
