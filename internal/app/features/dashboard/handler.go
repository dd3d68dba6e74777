// internal/app/features/dashboard/handler.go
package dashboard

import (
	"net/http"
	"time"

	uierrors "github.com/dalemusser/tutorhub/internal/app/features/errors"
	"github.com/dalemusser/tutorhub/internal/app/system/authz"
	"github.com/dalemusser/tutorhub/internal/app/system/docstore"
	"github.com/dalemusser/tutorhub/internal/domain/models"
	"go.uber.org/zap"
)

const dashboardTimeout = 5 * time.Second

type Handler struct {
	DS  docstore.Store
	Log *zap.Logger
}

func NewHandler(ds docstore.Store, logger *zap.Logger) *Handler {
	return &Handler{
		DS:  ds,
		Log: logger,
	}
}

// link is one navigation entry of a dashboard.
type link struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

// baseView carries what every dashboard shows.
type baseView struct {
	State         string      `json:"state"`
	Role          models.Role `json:"role"`
	DisplayName   string      `json:"display_name"`
	EmailVerified bool        `json:"email_verified"`
	Links         []link      `json:"links"`
}

func (h *Handler) ServeDashboard(w http.ResponseWriter, r *http.Request) {
	role, _, _, ok := authz.UserCtx(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	switch role {
	case models.RoleAdmin:
		h.ServeAdmin(w, r)
	case models.RoleLecturer:
		h.ServeLecturer(w, r)
	case models.RoleStudent:
		h.ServeStudent(w, r)
	default:
		uierrors.RenderPending(w, r)
	}
}
