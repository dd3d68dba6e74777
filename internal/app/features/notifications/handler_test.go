package notifications_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	uierrors "github.com/dalemusser/tutorhub/internal/app/features/errors"
	"github.com/dalemusser/tutorhub/internal/app/features/notifications"
	"github.com/dalemusser/tutorhub/internal/app/system/auth"
	"github.com/dalemusser/tutorhub/internal/app/system/fanout"
	"github.com/dalemusser/tutorhub/internal/domain/models"
	"github.com/dalemusser/tutorhub/internal/testutil"
)

func newHandler(app *testutil.App) *notifications.Handler {
	return notifications.NewHandler(app.Fanout, uierrors.NewErrorLogger(app.Log), app.Log)
}

func decodeInbox(t *testing.T, body []byte) fanout.Inbox {
	t.Helper()
	var in fanout.Inbox
	if err := json.Unmarshal(body, &in); err != nil {
		t.Fatalf("decode inbox: %v (%s)", err, body)
	}
	return in
}

func TestServeList(t *testing.T) {
	app := testutil.NewApp(t, nil)
	acct := app.NewAccount("Ada", "ada@example.com", models.RoleStudent, true)
	other := app.NewAccount("Bob", "bob@example.com", models.RoleStudent, true)
	fx := testutil.NewFixtures(t, app.DS)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	fx.CreateNotification(ctx, acct.User.ID, "first", base)
	fx.CreateNotification(ctx, acct.User.ID, "second", base.Add(time.Minute))
	fx.CreateNotification(ctx, other.User.ID, "not yours", base)

	rec := app.Serve(notifications.Routes(newHandler(app)), testutil.NewRequest(http.MethodGet, "/"), acct.Cookie)

	rec.AssertStatus(t, http.StatusOK)
	in := decodeInbox(t, rec.Body.Bytes())
	if len(in.Items) != 2 || in.Unread != 2 {
		t.Fatalf("inbox = %+v", in)
	}
	if in.Items[0].Title != "second" {
		t.Errorf("first item = %q, want newest first", in.Items[0].Title)
	}
}

func TestServeList_Empty(t *testing.T) {
	app := testutil.NewApp(t, nil)
	acct := app.NewAccount("Ada", "ada@example.com", models.RoleStudent, true)

	rec := app.Serve(notifications.Routes(newHandler(app)), testutil.NewRequest(http.MethodGet, "/"), acct.Cookie)

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"items":[]`)
}

func TestServeList_RequiresSignIn(t *testing.T) {
	app := testutil.NewApp(t, nil)
	rec := app.Serve(notifications.Routes(newHandler(app)), testutil.NewRequest(http.MethodGet, "/"), nil)
	rec.AssertRedirect(t, "/login?return=%2F")
}

func TestMarkRead(t *testing.T) {
	app := testutil.NewApp(t, nil)
	acct := app.NewAccount("Ada", "ada@example.com", models.RoleStudent, true)
	other := app.NewAccount("Bob", "bob@example.com", models.RoleStudent, true)
	fx := testutil.NewFixtures(t, app.DS)
	ctx := context.Background()
	mine := fx.CreateNotification(ctx, acct.User.ID, "mine", time.Now())
	theirs := fx.CreateNotification(ctx, other.User.ID, "theirs", time.Now())
	h := notifications.Routes(newHandler(app))

	tests := []struct {
		name   string
		id     string
		status int
	}{
		{"own", mine.ID, http.StatusOK},
		{"own again", mine.ID, http.StatusOK},
		{"someone else's", theirs.ID, http.StatusForbidden},
		{"missing", "nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.Serve(h, testutil.NewFormRequest("/"+tt.id+"/read", ""), acct.Cookie)
			rec.AssertStatus(t, tt.status)
		})
	}

	n, _ := app.Fanout.Inbox(ctx, other.User.ID)
	if n.Unread != 1 {
		t.Errorf("other user's unread = %d, want 1", n.Unread)
	}
}

func TestMarkRead_FormRedirects(t *testing.T) {
	app := testutil.NewApp(t, nil)
	acct := app.NewAccount("Ada", "ada@example.com", models.RoleStudent, true)
	n := testutil.NewFixtures(t, app.DS).CreateNotification(context.Background(), acct.User.ID, "hi", time.Now())

	rec := app.Serve(notifications.Routes(newHandler(app)),
		testutil.NewFormRequest("/"+n.ID+"/read", "return=%2Fnotifications%3Fpage%3D2"), acct.Cookie)

	rec.AssertRedirect(t, "/notifications?page=2")
}

func TestMarkAllRead(t *testing.T) {
	app := testutil.NewApp(t, nil)
	acct := app.NewAccount("Ada", "ada@example.com", models.RoleStudent, true)
	fx := testutil.NewFixtures(t, app.DS)
	ctx := context.Background()
	for _, title := range []string{"a", "b", "c"} {
		fx.CreateNotification(ctx, acct.User.ID, title, time.Now())
	}

	rec := app.Serve(notifications.Routes(newHandler(app)), testutil.NewFormRequest("/read-all", ""), acct.Cookie)

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"marked":3`)
	in, _ := app.Fanout.Inbox(ctx, acct.User.ID)
	if in.Unread != 0 {
		t.Errorf("unread = %d, want 0", in.Unread)
	}
}

// readEvent returns the data of the next SSE event named "inbox".
func readEvent(t *testing.T, br *bufio.Reader) fanout.Inbox {
	t.Helper()
	event := ""
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: ") && event == "inbox":
			return decodeInbox(t, []byte(strings.TrimPrefix(line, "data: ")))
		}
	}
}

func TestServeStream(t *testing.T) {
	app := testutil.NewApp(t, nil)
	acct := app.NewAccount("Ada", "ada@example.com", models.RoleStudent, true)
	srv := httptest.NewServer(app.Sessions.Load(notifications.Routes(newHandler(app))))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/stream", nil)
	req.AddCookie(acct.Cookie)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}
	br := bufio.NewReader(resp.Body)

	if in := readEvent(t, br); len(in.Items) != 0 {
		t.Fatalf("initial inbox = %+v", in)
	}

	if _, err := app.Fanout.Notify(context.Background(), models.Notification{
		UserID:  acct.User.ID,
		Type:    models.NotificationMessageSent,
		Title:   "Hello",
		Message: "there",
	}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	in := readEvent(t, br)
	if in.Unread != 1 || in.Items[0].Title != "Hello" {
		t.Fatalf("inbox after notify = %+v", in)
	}

	cancel()
	resp.Body.Close()

	deadline := time.Now().Add(2 * time.Second)
	for app.DS.Stats().Active() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("listener not released: %+v", app.DS.Stats())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServeStream_EndsWhenSessionSignsOut(t *testing.T) {
	app := testutil.NewApp(t, nil)
	acct := app.NewAccount("Ada", "ada@example.com", models.RoleStudent, true)

	trackers := make(chan *auth.Tracker, 1)
	inner := notifications.Routes(newHandler(app))
	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trackers <- auth.TrackerFrom(r.Context())
		inner.ServeHTTP(w, r)
	})
	srv := httptest.NewServer(app.Sessions.Load(capture))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/stream", nil)
	req.AddCookie(acct.Cookie)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	br := bufio.NewReader(resp.Body)
	readEvent(t, br)

	tracker := <-trackers
	if tracker == nil {
		t.Fatal("no tracker on the stream request")
	}
	if err := tracker.SignOut(context.Background()); err != nil {
		t.Fatalf("sign out: %v", err)
	}

	// The server ends the response; the body drains to EOF.
	if _, err := io.ReadAll(br); err != nil {
		t.Fatalf("read after sign-out: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("stream stayed open after sign-out")
	}

	deadline := time.Now().Add(2 * time.Second)
	for app.DS.Stats().Active() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("listener not released: %+v", app.DS.Stats())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
