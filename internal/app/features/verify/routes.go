// internal/app/features/verify/routes.go
package verify

import (
	"github.com/dalemusser/tutorhub/internal/app/system/gates"
	"github.com/go-chi/chi/v5"
)

// Routes mounts under /verify. Confirming is public; resending needs a
// signed-in user of any role, pending included.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeConfirm)
	r.With(gates.RequireSignedIn).Post("/resend", h.HandleResend)
	return r
}
