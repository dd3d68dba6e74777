package dashboard_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/tutorhub/internal/app/features/dashboard"
	"github.com/dalemusser/tutorhub/internal/domain/models"
	"github.com/dalemusser/tutorhub/internal/testutil"
)

func newHandler(app *testutil.App) http.Handler {
	return dashboard.Routes(dashboard.NewHandler(app.DS, app.Log))
}

type view struct {
	State  string         `json:"state"`
	Role   string         `json:"role"`
	Counts map[string]int `json:"counts"`
}

func get(t *testing.T, app *testutil.App, acct testutil.Account) view {
	t.Helper()
	rec := app.Serve(newHandler(app), testutil.NewRequest(http.MethodGet, "/"), acct.Cookie)
	rec.AssertStatus(t, http.StatusOK)
	var v view
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestServeDashboard_Unauthenticated(t *testing.T) {
	app := testutil.NewApp(t, nil)
	rec := app.Serve(newHandler(app), testutil.NewRequest(http.MethodGet, "/"), nil)
	rec.AssertRedirect(t, "/login?return=%2F")
}

func TestServeDashboard_ByRole(t *testing.T) {
	app := testutil.NewApp(t, nil)
	admin := app.NewAccount("Root", "root@example.com", models.RoleAdmin, true)
	lec := app.NewAccount("Lin", "lin@example.com", models.RoleLecturer, true)
	st := app.NewAccount("Ada", "ada@example.com", models.RoleStudent, true)
	app.NewAccount("Pat", "pat@example.com", models.RolePending, true)
	fx := testutil.NewFixtures(t, app.DS)
	ctx := context.Background()
	fx.CreateSubscription(ctx, st.User.ID, lec.User.ID, true)
	fx.CreateNotification(ctx, st.User.ID, "hello", time.Now())

	v := get(t, app, admin)
	if v.Role != "admin" || v.Counts["students"] != 1 || v.Counts["pending"] != 1 || v.Counts["subscriptions"] != 1 {
		t.Errorf("admin view = %+v", v)
	}

	v = get(t, app, lec)
	if v.Role != "lecturer" || v.Counts["subscribers"] != 1 {
		t.Errorf("lecturer view = %+v", v)
	}

	v = get(t, app, st)
	if v.Role != "student" || v.Counts["subscriptions"] != 1 || v.Counts["unread"] != 1 {
		t.Errorf("student view = %+v", v)
	}
}

func TestServeDashboard_Pending(t *testing.T) {
	app := testutil.NewApp(t, nil)
	pending := app.NewAccount("Pat", "pat@example.com", models.RolePending, true)

	v := get(t, app, pending)
	if v.State != "pending_approval" {
		t.Errorf("state = %q, want pending_approval", v.State)
	}
}
