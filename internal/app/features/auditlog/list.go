// internal/app/features/auditlog/list.go
package auditlog

import (
	"net/http"
	"strings"
	"time"

	uierrors "github.com/dalemusser/tutorhub/internal/app/features/errors"
	"github.com/dalemusser/tutorhub/internal/app/store/audit"
	"github.com/dalemusser/tutorhub/internal/app/system/paging"
	"github.com/dalemusser/tutorhub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// maxEvents bounds how many events one listing scans.
const maxEvents = 1000

// ServeList handles GET /admin/audit, newest first.
//
//	?category=auth|admin  ?event_type=…  ?user_id=…
//	?start_date=YYYY-MM-DD  ?end_date=YYYY-MM-DD  ?start=N
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "audit log list")
	defer cancel()

	q := r.URL.Query()
	category := strings.TrimSpace(q.Get("category"))
	eventType := strings.TrimSpace(q.Get("event_type"))
	userID := strings.TrimSpace(q.Get("user_id"))
	startDate := strings.TrimSpace(q.Get("start_date"))
	endDate := strings.TrimSpace(q.Get("end_date"))

	if category != "" && eventTypesForCategory(category) == nil {
		uierrors.RenderBadRequest(w, r, "Unknown category.")
		return
	}

	var from, to time.Time
	if startDate != "" {
		t, err := time.Parse("2006-01-02", startDate)
		if err != nil {
			uierrors.RenderBadRequest(w, r, "start_date must be YYYY-MM-DD.")
			return
		}
		from = t
	}
	if endDate != "" {
		t, err := time.Parse("2006-01-02", endDate)
		if err != nil {
			uierrors.RenderBadRequest(w, r, "end_date must be YYYY-MM-DD.")
			return
		}
		// End of day
		to = t.Add(24*time.Hour - time.Nanosecond)
	}

	events, err := h.Events.Query(ctx, audit.QueryFilter{
		UserID:    userID,
		Category:  category,
		EventType: eventType,
		Limit:     maxEvents,
	})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "query audit events", err, "A database error occurred.", "/dashboard")
		return
	}

	kept := events[:0]
	for _, e := range events {
		if !from.IsZero() && e.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && e.Timestamp.After(to) {
			continue
		}
		kept = append(kept, e)
	}

	page, rng := paging.Page(kept, paging.ParseStart(r), paging.PageSize)

	names := h.resolveNames(r, page)
	items := make([]listItem, 0, len(page))
	for _, e := range page {
		items = append(items, listItem{
			ID:            e.ID,
			Timestamp:     e.Timestamp,
			Category:      e.Category,
			EventType:     e.EventType,
			ActorID:       e.ActorID,
			ActorName:     names[e.ActorID],
			UserID:        e.UserID,
			TargetName:    names[e.UserID],
			IP:            e.IP,
			Success:       e.Success,
			FailureReason: e.FailureReason,
			Details:       e.Details,
		})
	}

	uierrors.WriteJSON(w, http.StatusOK, listData{
		Items:      items,
		Category:   category,
		EventType:  eventType,
		UserID:     userID,
		StartDate:  startDate,
		EndDate:    endDate,
		Categories: allCategories(),
		EventTypes: eventTypesForCategory(category),
		Page:       rng,
	})
}

// resolveNames looks up display names for every actor and target on the
// page. Missing users are left out of the map.
func (h *Handler) resolveNames(r *http.Request, events []audit.Event) map[string]string {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "audit name lookup")
	defer cancel()

	names := make(map[string]string)
	tried := make(map[string]bool)
	for _, e := range events {
		for _, id := range []string{e.ActorID, e.UserID} {
			if id == "" || tried[id] {
				continue
			}
			tried[id] = true
			u, err := h.Users.Get(ctx, id)
			if err != nil {
				h.Log.Debug("audit name lookup failed", zap.String("user_id", id), zap.Error(err))
				continue
			}
			names[id] = u.DisplayName
		}
	}
	return names
}
