package logout_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/dalemusser/tutorhub/internal/app/features/logout"
	"github.com/dalemusser/tutorhub/internal/app/store/audit"
	"github.com/dalemusser/tutorhub/internal/app/system/docstore"
	"github.com/dalemusser/tutorhub/internal/domain/models"
	"github.com/dalemusser/tutorhub/internal/testutil"
)

func TestServeLogout_ExpiresCookie(t *testing.T) {
	app := testutil.NewApp(t, nil)
	acct := app.NewAccount("Ada", "ada@example.com", models.RoleStudent, true)
	h := logout.Routes(logout.NewHandler(app.Sessions, app.Audit, app.Log))

	rec := app.Serve(h, testutil.NewRequest(http.MethodPost, "/"), acct.Cookie)

	rec.AssertRedirect(t, "/")
	c := testutil.SessionCookie(t, rec.ResponseRecorder)
	if c.MaxAge >= 0 {
		t.Errorf("cookie MaxAge = %d, want negative", c.MaxAge)
	}

	snap, _ := app.DS.Query(context.Background(), docstore.Query{
		Collection: audit.Collection,
		Filters:    []docstore.Filter{docstore.Where("event_type", audit.EventLogout)},
	})
	if snap.Len() != 1 {
		t.Errorf("logout events = %d, want 1", snap.Len())
	}
}

func TestServeLogout_HTMX(t *testing.T) {
	app := testutil.NewApp(t, nil)
	h := logout.Routes(logout.NewHandler(app.Sessions, app.Audit, app.Log))

	req := testutil.NewRequest(http.MethodGet, "/")
	req.Header.Set("HX-Request", "true")
	rec := app.Serve(h, req, nil)

	rec.AssertStatus(t, http.StatusOK)
	if got := rec.Header().Get("HX-Redirect"); got != "/" {
		t.Errorf("HX-Redirect = %q, want /", got)
	}
}

func TestServeLogout_SignedOutIsNoop(t *testing.T) {
	app := testutil.NewApp(t, nil)
	h := logout.Routes(logout.NewHandler(app.Sessions, app.Audit, app.Log))

	rec := app.Serve(h, testutil.NewRequest(http.MethodGet, "/"), nil)

	rec.AssertRedirect(t, "/")
	snap, _ := app.DS.Query(context.Background(), docstore.Query{Collection: audit.Collection})
	if snap.Len() != 0 {
		t.Errorf("audit events = %d, want 0", snap.Len())
	}
}
