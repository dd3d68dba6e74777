package fanout_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	notificationstore "github.com/dalemusser/tutorhub/internal/app/store/notifications"
	subscriptionstore "github.com/dalemusser/tutorhub/internal/app/store/subscriptions"
	"github.com/dalemusser/tutorhub/internal/app/system/docstore"
	"github.com/dalemusser/tutorhub/internal/app/system/docstore/memstore"
	"github.com/dalemusser/tutorhub/internal/app/system/fanout"
	"github.com/dalemusser/tutorhub/internal/domain/models"
	"github.com/dalemusser/tutorhub/internal/testutil"
	"go.uber.org/zap"
)

type harness struct {
	ds  *memstore.Store
	svc *fanout.Service
	fx  *testutil.Fixtures
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ds := testutil.NewMemStore()
	return &harness{
		ds:  ds,
		svc: fanout.New(ds, fanout.Options{InboxLimit: 10}, zap.NewNop()),
		fx:  testutil.NewFixtures(t, ds),
	}
}

// inboxes records deliveries.
type inboxes struct {
	mu  sync.Mutex
	got []fanout.Inbox
}

func (b *inboxes) add(in fanout.Inbox) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.got = append(b.got, in)
}

func (b *inboxes) last(t *testing.T) fanout.Inbox {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.got) == 0 {
		t.Fatal("no inbox delivered")
	}
	return b.got[len(b.got)-1]
}

func (b *inboxes) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.got)
}

func TestSubscribe_ToggleLaw(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	student := h.fx.CreateStudent(ctx, "Sam Student", "sam@tutorhub.test")
	lecturer := h.fx.CreateLecturer(ctx, "Lee Lecturer", "lee@tutorhub.test")

	want := []struct {
		toggle fanout.Toggle
		edges  int
	}{
		{fanout.Subscribed, 1},
		{fanout.Unsubscribed, 0},
		{fanout.Subscribed, 1},
		{fanout.Unsubscribed, 0},
	}
	for i, w := range want {
		got, err := h.svc.Subscribe(ctx, student.ID, lecturer.ID)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if got != w.toggle {
			t.Errorf("step %d: got %s, want %s", i, got, w.toggle)
		}
		if n := h.ds.Count(subscriptionstore.Collection); n != w.edges {
			t.Errorf("step %d: %d edges, want %d", i, n, w.edges)
		}
	}

	// One NewSubscriber notification per subscribe.
	notes, err := notificationstore.New(h.ds).List(ctx, lecturer.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(notes))
	}
	for _, n := range notes {
		if n.Type != models.NotificationNewSubscriber {
			t.Errorf("type: got %q", n.Type)
		}
		if n.Message != "Sam Student subscribed to your updates." {
			t.Errorf("message: got %q", n.Message)
		}
	}
}

func TestSubscribe_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.svc.Subscribe(ctx, "", "l"); !errors.Is(err, fanout.ErrMissingUser) {
		t.Errorf("got %v, want ErrMissingUser", err)
	}
	if _, err := h.svc.Subscribe(ctx, "u", "u"); !errors.Is(err, fanout.ErrSelfSubscription) {
		t.Errorf("got %v, want ErrSelfSubscription", err)
	}
}

func TestSubscribe_NotificationFailureKeepsEdge(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.ds.SetFault(func(op memstore.Operation, coll string) error {
		if op == memstore.OpSet && coll == notificationstore.Collection {
			return errors.New("inbox unavailable")
		}
		return nil
	})

	got, err := h.svc.Subscribe(ctx, "s-1", "l-1")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if got != fanout.Subscribed {
		t.Errorf("got %s", got)
	}
	if n := h.ds.Count(subscriptionstore.Collection); n != 1 {
		t.Errorf("expected the edge to persist, got %d", n)
	}
	if n := h.ds.Count(notificationstore.Collection); n != 0 {
		t.Errorf("expected no notification, got %d", n)
	}
}

func TestSubscribe_DuplicateEdgesAllRemoved(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	h.fx.CreateSubscription(ctx, "s-1", "l-1", true)
	h.fx.CreateSubscription(ctx, "s-1", "l-1", true)

	got, err := h.svc.Subscribe(ctx, "s-1", "l-1")
	if err != nil {
		t.Fatal(err)
	}
	if got != fanout.Unsubscribed {
		t.Errorf("got %s, want unsubscribed", got)
	}
	if n := h.ds.Count(subscriptionstore.Collection); n != 0 {
		t.Errorf("expected no edges, got %d", n)
	}
}

func TestUnsubscribe(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	removed, err := h.svc.Unsubscribe(ctx, "s-1", "l-1")
	if err != nil || removed {
		t.Fatalf("no edge: got %v, %v", removed, err)
	}
	if _, err := h.svc.Subscribe(ctx, "s-1", "l-1"); err != nil {
		t.Fatal(err)
	}
	removed, err = h.svc.Unsubscribe(ctx, "s-1", "l-1")
	if err != nil || !removed {
		t.Fatalf("edge: got %v, %v", removed, err)
	}
	if ok, _ := h.svc.IsSubscribed(ctx, "s-1", "l-1"); ok {
		t.Error("expected no subscription")
	}
}

func TestSubscribe_PermissionDeniedOnFirstTouch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var once sync.Once
	h.ds.SetFault(func(op memstore.Operation, coll string) error {
		var err error
		if op == memstore.OpQuery && coll == subscriptionstore.Collection {
			once.Do(func() { err = docstore.ErrPermissionDenied })
		}
		return err
	})

	got, err := h.svc.Subscribe(ctx, "s-1", "l-1")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if got != fanout.Subscribed {
		t.Errorf("got %s", got)
	}
	if n := h.ds.Count(subscriptionstore.Collection); n != 1 {
		t.Errorf("expected 1 edge after the probe, got %d", n)
	}
}

func TestAssignmentCreated_OnlyNotifiableSubscribers(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	lecturer := h.fx.CreateLecturer(ctx, "Dr. Lee", "lee@tutorhub.test")
	h.fx.CreateSubscription(ctx, "s-on", lecturer.ID, true)
	h.fx.CreateSubscription(ctx, "s-off", lecturer.ID, false)
	h.fx.CreateSubscription(ctx, "s-other", "l-other", true)

	n, err := h.svc.AssignmentCreated(ctx, fanout.AssignmentCreated{
		LecturerID:   lecturer.ID,
		AssignmentID: "a-1",
		Title:        "Essay <b>one</b>",
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 notification, got %d", n)
	}

	in, err := h.svc.Inbox(ctx, "s-on")
	if err != nil {
		t.Fatal(err)
	}
	if len(in.Items) != 1 {
		t.Fatalf("expected 1 inbox item, got %d", len(in.Items))
	}
	got := in.Items[0]
	if got.Type != models.NotificationAssignmentCreated || got.Data["assignment_id"] != "a-1" {
		t.Errorf("item: %+v", got)
	}
	if got.Message != `Dr. Lee posted "Essay one".` {
		t.Errorf("message: got %q", got.Message)
	}
	if other, _ := h.svc.Inbox(ctx, "s-off"); len(other.Items) != 0 {
		t.Error("disabled subscriber was notified")
	}
}

func TestSetNotificationsEnabled(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.svc.SetNotificationsEnabled(ctx, "s-1", "l-1", false); !docstore.IsNotFound(err) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	if _, err := h.svc.Subscribe(ctx, "s-1", "l-1"); err != nil {
		t.Fatal(err)
	}
	if err := h.svc.SetNotificationsEnabled(ctx, "s-1", "l-1", false); err != nil {
		t.Fatal(err)
	}
	n, err := h.svc.AssignmentCreated(ctx, fanout.AssignmentCreated{LecturerID: "l-1", AssignmentID: "a", Title: "A"})
	if err != nil || n != 0 {
		t.Errorf("got %d, %v", n, err)
	}
}

func TestMarkAllRead_Idempotent(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		h.fx.CreateNotification(ctx, "u-1", "note", now.Add(time.Duration(i)*time.Second))
	}
	h.fx.CreateNotification(ctx, "u-2", "someone else", now)

	first, err := h.svc.MarkAllRead(ctx, "u-1")
	if err != nil {
		t.Fatal(err)
	}
	if first != 3 {
		t.Errorf("first pass: marked %d, want 3", first)
	}
	second, err := h.svc.MarkAllRead(ctx, "u-1")
	if err != nil {
		t.Fatal(err)
	}
	if second != 0 {
		t.Errorf("second pass: marked %d, want 0", second)
	}

	in, _ := h.svc.Inbox(ctx, "u-1")
	if in.Unread != 0 || len(in.Items) != 3 {
		t.Errorf("inbox: %d items, %d unread", len(in.Items), in.Unread)
	}
	other, _ := h.svc.Inbox(ctx, "u-2")
	if other.Unread != 1 {
		t.Errorf("other user's inbox touched: %d unread", other.Unread)
	}
}

func TestMarkReadFor(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	n := h.fx.CreateNotification(ctx, "u-1", "hello", time.Now())

	if err := h.svc.MarkReadFor(ctx, "u-2", n.ID); !errors.Is(err, fanout.ErrNotOwner) {
		t.Errorf("got %v, want ErrNotOwner", err)
	}
	for i := 0; i < 2; i++ {
		if err := h.svc.MarkReadFor(ctx, "u-1", n.ID); err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
	}
	if err := h.svc.MarkRead(ctx, "missing"); !docstore.IsNotFound(err) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestListen_DeliversFullInboxOnChange(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var rec inboxes
	l, err := h.svc.Listen(ctx, "l-1", rec.add)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Release()

	if in := rec.last(t); len(in.Items) != 0 || in.Unread != 0 {
		t.Fatalf("initial inbox: %+v", in)
	}

	if _, err := h.svc.Subscribe(ctx, "s-1", "l-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.MessageSent(ctx, fanout.MessageSent{FromID: "s-1", ToID: "l-1", Preview: "Hi there"}); err != nil {
		t.Fatal(err)
	}

	in := rec.last(t)
	if len(in.Items) != 2 || in.Unread != 2 {
		t.Fatalf("inbox: %d items, %d unread", len(in.Items), in.Unread)
	}
	if in.Items[0].CreatedAt.Before(in.Items[1].CreatedAt) {
		t.Error("inbox not newest first")
	}

	if err := h.svc.MarkRead(ctx, in.Items[0].ID); err != nil {
		t.Fatal(err)
	}
	if got := rec.last(t).Unread; got != 1 {
		t.Errorf("unread after MarkRead: got %d, want 1", got)
	}

	l.Release()
	before := rec.count()
	if _, err := h.svc.RoleApproved(ctx, "l-1", models.RoleLecturer); err != nil {
		t.Fatal(err)
	}
	if rec.count() != before {
		t.Error("released listener still receives deliveries")
	}
}

func TestListen_InboxLimit(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now().UTC()
	for i := 0; i < 12; i++ {
		h.fx.CreateNotification(ctx, "u-1", "n", now.Add(time.Duration(i)*time.Second))
	}
	var rec inboxes
	l, err := h.svc.Listen(ctx, "u-1", rec.add)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Release()
	if got := len(rec.last(t).Items); got != 10 {
		t.Errorf("expected the limit of 10 items, got %d", got)
	}
}

func TestListener_AcquireEqualsReleaseOverCycles(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	const cycles = 25
	for i := 0; i < cycles; i++ {
		l, err := h.svc.Listen(ctx, "u-1", func(fanout.Inbox) {})
		if err != nil {
			t.Fatal(err)
		}
		l.Release()
		l.Release()
	}

	st := h.ds.Stats()
	if st.Acquired != cycles || st.Released != cycles || st.Active() != 0 {
		t.Errorf("stats: %+v", st)
	}
}

func TestWithListener_ReleasesOnError(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("boom")

	err := h.svc.WithListener(context.Background(), "u-1", func(fanout.Inbox) {}, func(*fanout.Listener) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("got %v, want boom", err)
	}
	if st := h.ds.Stats(); st.Active() != 0 {
		t.Errorf("listener leaked: %+v", st)
	}
}

func TestScope_RebindReleasesOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sc := h.svc.NewScope(func(fanout.Inbox) {})
	steps := []string{"u-1", "u-1", "u-2", "", "u-3"}
	for _, key := range steps {
		if err := sc.Bind(ctx, key); err != nil {
			t.Fatal(err)
		}
		if sc.Key() != key {
			t.Errorf("Key: got %q, want %q", sc.Key(), key)
		}
		if st := h.ds.Stats(); st.Active() > 1 {
			t.Fatalf("more than one live listener: %+v", st)
		}
	}
	sc.Close()
	sc.Close()

	st := h.ds.Stats()
	if st.Acquired != 3 || st.Released != 3 {
		t.Errorf("stats: %+v, want 3 acquired and 3 released", st)
	}
	if err := sc.Bind(ctx, "u-4"); err != nil {
		t.Fatal(err)
	}
	if h.ds.Stats().Acquired != 3 {
		t.Error("closed scope opened a listener")
	}
}

func TestListen_PermissionDeniedFallsBackToEmptyInbox(t *testing.T) {
	h := newHarness(t)
	h.ds.SetFault(func(op memstore.Operation, coll string) error {
		if op == memstore.OpSubscribe {
			return docstore.ErrPermissionDenied
		}
		return nil
	})

	var rec inboxes
	l, err := h.svc.Listen(context.Background(), "u-1", rec.add)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	l.Release()
	if in := rec.last(t); len(in.Items) != 0 {
		t.Errorf("expected empty inbox, got %d items", len(in.Items))
	}
}

func TestNotify_PlainText(t *testing.T) {
	h := newHarness(t)
	n, err := h.svc.Notify(context.Background(), models.Notification{
		UserID:  "u-1",
		Type:    models.NotificationMessageSent,
		Title:   "<script>alert(1)</script>Hello",
		Message: "Tom & Jerry",
	})
	if err != nil {
		t.Fatal(err)
	}
	if n.Title != "Hello" || n.Message != "Tom & Jerry" {
		t.Errorf("got %q / %q", n.Title, n.Message)
	}
	if n.Priority != models.PriorityNormal || n.IsRead {
		t.Errorf("defaults: %+v", n)
	}
}
