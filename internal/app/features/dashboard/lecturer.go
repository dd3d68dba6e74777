// internal/app/features/dashboard/lecturer.go
package dashboard

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/tutorhub/internal/app/features/errors"
	metricsstore "github.com/dalemusser/tutorhub/internal/app/store/metrics"
	"github.com/dalemusser/tutorhub/internal/app/system/auth"
)

type userData struct {
	baseView
	Counts metricsstore.UserCounts `json:"counts"`
}

func (h *Handler) ServeLecturer(w http.ResponseWriter, r *http.Request) {
	s := auth.CurrentSession(r)

	ctx, cancel := context.WithTimeout(r.Context(), dashboardTimeout)
	defer cancel()

	uierrors.WriteJSON(w, http.StatusOK, userData{
		baseView: newBaseView(s, []link{
			{Label: "Subscribers", Href: "/publish/subscribers"},
			{Label: "Notifications", Href: "/notifications"},
		}),
		Counts: metricsstore.FetchLecturerCounts(ctx, h.DS, s.UserID()),
	})
}
