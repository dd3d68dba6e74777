// internal/app/features/auditlog/routes.go
package auditlog

import (
	"github.com/dalemusser/tutorhub/internal/app/system/gates"
	"github.com/dalemusser/tutorhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the audit log under /admin/audit. Admins only.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(gates.Guard(gates.Options{
		AllowedRoles:    []models.Role{models.RoleAdmin},
		HardDenyPending: true,
	}))
	r.Get("/", h.ServeList)
	return r
}
