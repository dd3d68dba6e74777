// internal/app/features/systemusers/list.go
package systemusers

import (
	"context"
	"net/http"
	"sort"
	"strings"

	uierrors "github.com/dalemusser/tutorhub/internal/app/features/errors"
	"github.com/dalemusser/tutorhub/internal/app/system/normalize"
	"github.com/dalemusser/tutorhub/internal/app/system/paging"
	"github.com/dalemusser/tutorhub/internal/app/system/timeouts"
	"github.com/dalemusser/tutorhub/internal/domain/models"
)

// ServeList handles GET /admin/users.
//
//	?status=pending   users waiting for approval, oldest first
//	?role=<role>      users with that role, by name
//
// Without either it lists every user grouped by role. ?start= pages
// through the result.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var (
		users []models.User
		err   error
	)
	switch {
	case strings.EqualFold(normalize.QueryParam(r.URL.Query().Get("status")), "pending"):
		users, err = h.Users.ListPending(ctx)
	case r.URL.Query().Get("role") != "":
		role := models.Role(normalize.Role(r.URL.Query().Get("role")))
		if !role.Valid() {
			uierrors.RenderBadRequest(w, r, "Unknown role.")
			return
		}
		users, err = h.Users.ListByRole(ctx, role)
	default:
		for _, role := range models.Roles {
			var part []models.User
			part, err = h.Users.ListByRole(ctx, role)
			if err != nil {
				break
			}
			users = append(users, part...)
		}
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list users", err, "Could not load users.", "/dashboard")
		return
	}

	if users == nil {
		users = []models.User{}
	}
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].IsHardcodedAdmin && !users[j].IsHardcodedAdmin
	})
	page, rng := paging.Page(users, paging.ParseStart(r), paging.PageSize)
	uierrors.WriteJSON(w, http.StatusOK, map[string]any{"users": page, "count": len(users), "page": rng})
}
