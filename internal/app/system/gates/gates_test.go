package gates_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	userstore "github.com/dalemusser/tutorhub/internal/app/store/users"
	"github.com/dalemusser/tutorhub/internal/app/system/auth"
	"github.com/dalemusser/tutorhub/internal/app/system/gates"
	"github.com/dalemusser/tutorhub/internal/app/system/identity"
	"github.com/dalemusser/tutorhub/internal/domain/models"
	"github.com/dalemusser/tutorhub/internal/testutil"
)

// session builds a settled session for role.
func session(role models.Role, verified bool) auth.Session {
	s := auth.Session{
		Identity: &identity.Identity{ID: "u-1", Email: "u@tutorhub.test", EmailVerified: verified},
		Record:   &models.User{ID: "u-1", Role: role, IsActive: true},
	}
	switch role {
	case models.RoleAdmin:
		s.IsAdmin = true
	case models.RoleLecturer:
		s.IsLecturer = true
	case models.RoleStudent:
		s.IsStudent = true
	case models.RolePending:
		s.IsPending = true
	}
	return s
}

func TestEvaluate(t *testing.T) {
	lecturerOnly := gates.Roles(models.RoleLecturer)
	verifiedLecturer := gates.Options{
		AllowedRoles:             []models.Role{models.RoleLecturer},
		RequireEmailVerification: true,
	}

	tests := []struct {
		name     string
		opts     gates.Options
		sess     auth.Session
		want     gates.State
		redirect string
	}{
		{"loading", lecturerOnly, auth.LoadingSession(nil), gates.Resolving, ""},
		{"loading with identity", gates.Options{}, auth.LoadingSession(&identity.Identity{ID: "u-1"}), gates.Resolving, ""},
		{"signed out", gates.Options{}, auth.Session{}, gates.DeniedNotAuthenticated, "/login"},
		{"signed out, custom login", gates.Options{LoginURL: "/signin"}, auth.Session{}, gates.DeniedNotAuthenticated, "/signin"},
		{"anonymous allowed", gates.Options{Anonymous: true}, auth.Session{}, gates.Granted, ""},
		{"anonymous with roles", gates.Options{Anonymous: true, AllowedRoles: []models.Role{models.RoleStudent}}, auth.Session{}, gates.DeniedNotAuthenticated, "/login"},
		{"any role", gates.Options{}, session(models.RoleStudent, false), gates.Granted, ""},
		{"right role", lecturerOnly, session(models.RoleLecturer, false), gates.Granted, ""},
		{"wrong role", lecturerOnly, session(models.RoleStudent, true), gates.DeniedWrongRole, "/dashboard"},
		{"pending", lecturerOnly, session(models.RolePending, true), gates.PendingApproval, ""},
		{"pending hard deny", gates.Options{AllowedRoles: []models.Role{models.RoleLecturer}, HardDenyPending: true}, session(models.RolePending, true), gates.DeniedWrongRole, "/dashboard"},
		{"pending allowed", gates.Roles(models.RolePending), session(models.RolePending, false), gates.Granted, ""},
		{"unverified", verifiedLecturer, session(models.RoleLecturer, false), gates.DeniedUnverified, ""},
		{"verified", verifiedLecturer, session(models.RoleLecturer, true), gates.Granted, ""},
		{"wrong role beats unverified", verifiedLecturer, session(models.RoleStudent, false), gates.DeniedWrongRole, "/dashboard"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := gates.Evaluate(tt.opts, tt.sess)
			if d.State != tt.want {
				t.Errorf("State: got %s, want %s", d.State, tt.want)
			}
			if d.Redirect != tt.redirect {
				t.Errorf("Redirect: got %q, want %q", d.Redirect, tt.redirect)
			}
		})
	}
}

func TestEvaluate_HardcodedAdminPassesAdminGate(t *testing.T) {
	s := session(models.RoleAdmin, true)
	s.Record.Role = models.RoleStudent
	s.Record.IsHardcodedAdmin = true
	if d := gates.Evaluate(gates.Roles(models.RoleAdmin), s); d.State != gates.Granted {
		t.Errorf("got %s, want granted", d.State)
	}
}

func TestEvaluate_Deactivated(t *testing.T) {
	inactive := func(role models.Role) auth.Session {
		s := session(role, true)
		s.Record.IsActive = false
		return s
	}
	rootAdmin := inactive(models.RoleAdmin)
	rootAdmin.Record.IsHardcodedAdmin = true

	tests := []struct {
		name string
		opts gates.Options
		sess auth.Session
		want gates.State
	}{
		{"any role", gates.Options{}, inactive(models.RoleStudent), gates.DeniedDeactivated},
		{"right role", gates.Roles(models.RoleLecturer), inactive(models.RoleLecturer), gates.DeniedDeactivated},
		{"admin gate", gates.Roles(models.RoleAdmin), inactive(models.RoleAdmin), gates.DeniedDeactivated},
		{"anonymous route", gates.Options{Anonymous: true}, inactive(models.RoleStudent), gates.Granted},
		{"hardcoded admin stays active", gates.Roles(models.RoleAdmin), rootAdmin, gates.Granted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if d := gates.Evaluate(tt.opts, tt.sess); d.State != tt.want {
				t.Errorf("State: got %s, want %s", d.State, tt.want)
			}
		})
	}
}

func TestGuard_DeactivatedAccount(t *testing.T) {
	app := testutil.NewApp(t, nil)
	acct := app.NewAccount("Ada", "ada@example.com", models.RoleStudent, true)
	h := gates.RequireSignedIn(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("protected content"))
	}))

	app.Serve(h, testutil.NewRequest(http.MethodGet, "/subscriptions"), acct.Cookie).AssertStatus(t, http.StatusOK)

	off := false
	if err := app.Users.ApplyAdminUpdate(context.Background(), acct.User.ID, userstore.AdminUpdate{IsActive: &off}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	rec := app.Serve(h, testutil.NewRequest(http.MethodGet, "/subscriptions"), acct.Cookie)
	rec.AssertStatus(t, http.StatusForbidden)
	rec.AssertContains(t, "account_deactivated")
	if strings.Contains(rec.Body.String(), "protected content") {
		t.Error("deactivated user reached the handler")
	}
}

func serve(opts gates.Options, s auth.Session, target string) *httptest.ResponseRecorder {
	h := gates.Guard(opts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("protected content"))
	}))
	req := httptest.NewRequest("GET", target, nil)
	req = req.WithContext(auth.WithSession(req.Context(), s))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGuard_SignedOutRedirectsToLogin(t *testing.T) {
	rec := serve(gates.Options{}, auth.Session{}, "/subscriptions?tab=all")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status: got %d, want %d", rec.Code, http.StatusSeeOther)
	}
	want := "/login?return=%2Fsubscriptions%3Ftab%3Dall"
	if got := rec.Header().Get("Location"); got != want {
		t.Errorf("Location: got %q, want %q", got, want)
	}
}

func TestGuard_WrongRoleRedirectsToDashboard(t *testing.T) {
	rec := serve(gates.Roles(models.RoleAdmin), session(models.RoleStudent, true), "/admin/users")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status: got %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/dashboard" {
		t.Errorf("Location: got %q", got)
	}
}

func TestGuard_UnverifiedView(t *testing.T) {
	opts := gates.Options{RequireEmailVerification: true}
	rec := serve(opts, session(models.RoleStudent, false), "/subscriptions")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status: got %d", rec.Code)
	}
	var body struct {
		State string `json:"state"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.State != "email_unverified" {
		t.Errorf("state: got %q", body.State)
	}
}

func TestGuard_PendingView(t *testing.T) {
	s := session(models.RolePending, true)
	requested := models.RoleLecturer
	s.Record.RequestedRole = &requested

	rec := serve(gates.Roles(models.RoleLecturer), s, "/lecturer")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var body struct {
		State         string `json:"state"`
		RequestedRole string `json:"requested_role"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.State != "pending_approval" || body.RequestedRole != "lecturer" {
		t.Errorf("body: got %+v", body)
	}
}

func TestGuard_ResolvingIsRetryable(t *testing.T) {
	rec := serve(gates.Options{}, auth.LoadingSession(nil), "/dashboard")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestGuard_Granted(t *testing.T) {
	rec := serve(gates.Roles(models.RoleLecturer), session(models.RoleLecturer, true), "/lecturer")
	if rec.Code != http.StatusOK || rec.Body.String() != "protected content" {
		t.Errorf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestGuard_HTMXRedirectHeader(t *testing.T) {
	h := gates.RequireSignedIn(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest("GET", "/dashboard", nil)
	req.Header.Set("HX-Request", "true")
	req = req.WithContext(auth.WithSession(req.Context(), auth.Session{}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("HX-Redirect") == "" {
		t.Error("expected HX-Redirect header")
	}
}
