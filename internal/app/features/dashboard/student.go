// internal/app/features/dashboard/student.go
package dashboard

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/tutorhub/internal/app/features/errors"
	metricsstore "github.com/dalemusser/tutorhub/internal/app/store/metrics"
	"github.com/dalemusser/tutorhub/internal/app/system/auth"
)

func (h *Handler) ServeStudent(w http.ResponseWriter, r *http.Request) {
	s := auth.CurrentSession(r)

	ctx, cancel := context.WithTimeout(r.Context(), dashboardTimeout)
	defer cancel()

	uierrors.WriteJSON(w, http.StatusOK, userData{
		baseView: newBaseView(s, []link{
			{Label: "My lecturers", Href: "/subscriptions"},
			{Label: "Find lecturers", Href: "/subscriptions/lecturers"},
			{Label: "Notifications", Href: "/notifications"},
		}),
		Counts: metricsstore.FetchStudentCounts(ctx, h.DS, s.UserID()),
	})
}
