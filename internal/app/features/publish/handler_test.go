package publish_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	uierrors "github.com/dalemusser/tutorhub/internal/app/features/errors"
	"github.com/dalemusser/tutorhub/internal/app/features/publish"
	"github.com/dalemusser/tutorhub/internal/domain/models"
	"github.com/dalemusser/tutorhub/internal/testutil"
)

func newHandler(app *testutil.App) http.Handler {
	return publish.Routes(publish.NewHandler(app.Fanout, app.Users, uierrors.NewErrorLogger(app.Log), app.Log))
}

func form(target string, v url.Values) *http.Request {
	return testutil.NewFormRequest(target, v.Encode())
}

func TestAssignment_FansOutToNotifiableSubscribers(t *testing.T) {
	app := testutil.NewApp(t, nil)
	lec := app.NewAccount("Prof Lin", "lin@example.com", models.RoleLecturer, true)
	on := app.NewAccount("Ada", "ada@example.com", models.RoleStudent, true)
	off := app.NewAccount("Bob", "bob@example.com", models.RoleStudent, true)
	none := app.NewAccount("Cy", "cy@example.com", models.RoleStudent, true)
	fx := testutil.NewFixtures(t, app.DS)
	ctx := context.Background()
	fx.CreateSubscription(ctx, on.User.ID, lec.User.ID, true)
	fx.CreateSubscription(ctx, on.User.ID, lec.User.ID, true) // duplicate edge
	fx.CreateSubscription(ctx, off.User.ID, lec.User.ID, false)

	due := time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)
	rec := app.Serve(newHandler(app), form("/assignments", url.Values{"title": {"Problem set 3"}, "due_at": {due}}), lec.Cookie)

	rec.AssertStatus(t, http.StatusCreated)
	rec.AssertContains(t, `"notified":1`)

	in, _ := app.Fanout.Inbox(ctx, on.User.ID)
	if len(in.Items) != 1 || in.Items[0].Priority != models.PriorityHigh {
		t.Errorf("subscriber inbox = %+v", in.Items)
	}
	for _, acct := range []testutil.Account{off, none} {
		in, _ := app.Fanout.Inbox(ctx, acct.User.ID)
		if len(in.Items) != 0 {
			t.Errorf("%s got %d notifications, want 0", acct.User.DisplayName, len(in.Items))
		}
	}
}

func TestAssignment_Validation(t *testing.T) {
	app := testutil.NewApp(t, nil)
	lec := app.NewAccount("Prof Lin", "lin@example.com", models.RoleLecturer, true)
	h := newHandler(app)

	tests := []struct {
		name string
		v    url.Values
	}{
		{"missing title", url.Values{"title": {"  "}}},
		{"bad due date", url.Values{"title": {"PS3"}, "due_at": {"next tuesday"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.Serve(h, form("/assignments", tt.v), lec.Cookie)
			rec.AssertStatus(t, http.StatusBadRequest)
		})
	}
}

func TestAssignment_StudentRedirected(t *testing.T) {
	app := testutil.NewApp(t, nil)
	st := app.NewAccount("Ada", "ada@example.com", models.RoleStudent, true)

	rec := app.Serve(newHandler(app), form("/assignments", url.Values{"title": {"PS3"}}), st.Cookie)
	rec.AssertRedirect(t, "/dashboard")
}

func TestAnswer(t *testing.T) {
	app := testutil.NewApp(t, nil)
	lec := app.NewAccount("Prof Lin", "lin@example.com", models.RoleLecturer, true)
	st := app.NewAccount("Ada", "ada@example.com", models.RoleStudent, true)
	h := newHandler(app)

	rec := app.Serve(h, form("/answers", url.Values{
		"student_id":     {st.User.ID},
		"question_id":    {"q1"},
		"question_title": {"What is a monad?"},
	}), lec.Cookie)
	rec.AssertStatus(t, http.StatusCreated)

	in, _ := app.Fanout.Inbox(context.Background(), st.User.ID)
	if len(in.Items) != 1 || in.Items[0].Type != models.NotificationQuestionAnswered {
		t.Fatalf("inbox = %+v", in.Items)
	}
	if want := `Prof Lin answered "What is a monad?".`; in.Items[0].Message != want {
		t.Errorf("message = %q, want %q", in.Items[0].Message, want)
	}

	// Answers go to students only.
	rec = app.Serve(h, form("/answers", url.Values{
		"student_id":     {lec.User.ID},
		"question_id":    {"q1"},
		"question_title": {"x"},
	}), lec.Cookie)
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestMessage(t *testing.T) {
	app := testutil.NewApp(t, nil)
	lec := app.NewAccount("Prof Lin", "lin@example.com", models.RoleLecturer, true)
	st := app.NewAccount("Ada", "ada@example.com", models.RoleStudent, true)
	h := newHandler(app)

	rec := app.Serve(h, form("/messages", url.Values{"to_id": {lec.User.ID}, "body": {"<b>Office hours?</b>"}}), st.Cookie)
	rec.AssertStatus(t, http.StatusCreated)

	in, _ := app.Fanout.Inbox(context.Background(), lec.User.ID)
	if len(in.Items) != 1 {
		t.Fatalf("inbox = %+v", in.Items)
	}
	if in.Items[0].Title != "New message from Ada" || in.Items[0].Message != "Office hours?" {
		t.Errorf("notification = %+v", in.Items[0])
	}

	rec = app.Serve(h, form("/messages", url.Values{"to_id": {st.User.ID}, "body": {"hi"}}), st.Cookie)
	rec.AssertStatus(t, http.StatusBadRequest)

	rec = app.Serve(h, form("/messages", url.Values{"to_id": {"missing"}, "body": {"hi"}}), st.Cookie)
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestSubscribers(t *testing.T) {
	app := testutil.NewApp(t, nil)
	lec := app.NewAccount("Prof Lin", "lin@example.com", models.RoleLecturer, true)
	st := app.NewAccount("Ada", "ada@example.com", models.RoleStudent, true)
	testutil.NewFixtures(t, app.DS).CreateSubscription(context.Background(), st.User.ID, lec.User.ID, true)

	rec := app.Serve(newHandler(app), testutil.NewRequest(http.MethodGet, "/subscribers"), lec.Cookie)

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"count":1`)
	rec.AssertContains(t, `"display_name":"Ada"`)
}
