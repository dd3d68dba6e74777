// internal/app/features/dashboard/admin.go
package dashboard

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/tutorhub/internal/app/features/errors"
	metricsstore "github.com/dalemusser/tutorhub/internal/app/store/metrics"
	"github.com/dalemusser/tutorhub/internal/app/system/auth"
	"go.uber.org/zap"
)

type adminData struct {
	baseView
	Counts metricsstore.Counts `json:"counts"`
}

func (h *Handler) ServeAdmin(w http.ResponseWriter, r *http.Request) {
	s := auth.CurrentSession(r)

	ctx, cancel := context.WithTimeout(r.Context(), dashboardTimeout)
	defer cancel()

	data := adminData{
		baseView: newBaseView(s, []link{
			{Label: "Pending approvals", Href: "/admin/users?status=pending"},
			{Label: "Users", Href: "/admin/users"},
			{Label: "Notifications", Href: "/notifications"},
		}),
		Counts: metricsstore.FetchDashboardCounts(ctx, h.DS),
	}

	h.Log.Debug("admin dashboard served", zap.String("user_id", s.UserID()))
	uierrors.WriteJSON(w, http.StatusOK, data)
}

func newBaseView(s auth.Session, links []link) baseView {
	return baseView{
		State:         "dashboard",
		Role:          s.Role(),
		DisplayName:   s.Record.DisplayName,
		EmailVerified: s.EmailVerified(),
		Links:         links,
	}
}
