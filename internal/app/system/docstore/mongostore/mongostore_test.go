package mongostore_test

import (
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/tutorhub/internal/app/system/docstore"
	"github.com/dalemusser/tutorhub/internal/app/system/docstore/mongostore"
	"github.com/dalemusser/tutorhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type rec struct {
	ID    string `bson:"_id"`
	Owner string `bson:"owner"`
	Rank  int    `bson:"rank"`
}

func TestFilterDoc(t *testing.T) {
	got := mongostore.FilterDoc([]docstore.Filter{
		docstore.Where("owner", "u1"),
		{Field: "rank", Op: docstore.Ne, Value: 3},
		{Field: "tag", Op: docstore.In, Value: []string{"a"}},
		{Field: "at", Op: docstore.Lt, Value: 10},
	})
	if got["owner"] != "u1" {
		t.Errorf("eq: %v", got["owner"])
	}
	if m, ok := got["rank"].(bson.M); !ok || m["$ne"] != 3 {
		t.Errorf("ne: %v", got["rank"])
	}
	if m, ok := got["tag"].(bson.M); !ok || m["$in"] == nil {
		t.Errorf("in: %v", got["tag"])
	}
	if m, ok := got["at"].(bson.M); !ok || m["$lt"] != 10 {
		t.Errorf("lt: %v", got["at"])
	}
}

func TestChangePipeline(t *testing.T) {
	if got := mongostore.ChangePipeline(nil); len(got) != 0 {
		t.Errorf("no filters: got %v, want an empty pipeline", got)
	}
	if got := mongostore.ChangePipeline([]docstore.Filter{{Field: "rank", Op: docstore.Lt, Value: 3}}); len(got) != 0 {
		t.Errorf("range filter only: got %v, want an empty pipeline", got)
	}

	got := mongostore.ChangePipeline([]docstore.Filter{
		docstore.Where("user_id", "u1"),
		{Field: "is_read", Op: docstore.Ne, Value: true},
	})
	if len(got) != 1 || len(got[0]) != 1 || got[0][0].Key != "$match" {
		t.Fatalf("pipeline = %v", got)
	}
	or := got[0][0].Value.(bson.D)[0]
	branches, ok := or.Value.(bson.A)
	if or.Key != "$or" || !ok || len(branches) != 2 {
		t.Fatalf("$match = %v", got[0][0].Value)
	}
	eq := branches[0].(bson.D)
	if len(eq) != 1 || eq[0].Key != "fullDocument.user_id" || eq[0].Value != "u1" {
		t.Errorf("equality branch = %v", eq)
	}
	del := branches[1].(bson.D)
	if len(del) != 1 || del[0].Key != "fullDocument" || del[0].Value != nil {
		t.Errorf("document-less branch = %v", del)
	}
}

func TestStore_CRUD(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := mongostore.New(db, zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()

	var got rec
	if err := s.Get(ctx, "recs", "a", &got); !docstore.IsNotFound(err) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if err := s.Set(ctx, "recs", "a", rec{Owner: "u1", Rank: 1}, docstore.Replace); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "recs", "a", bson.M{"rank": 2}, docstore.Merge); err != nil {
		t.Fatal(err)
	}
	if err := s.Get(ctx, "recs", "a", &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != "a" || got.Owner != "u1" || got.Rank != 2 {
		t.Errorf("got %+v", got)
	}
	if err := s.Update(ctx, "recs", "missing", bson.M{"rank": 1}); !docstore.IsNotFound(err) {
		t.Errorf("update missing: got %v", err)
	}
	if err := s.Delete(ctx, "recs", "a"); err != nil {
		t.Fatal(err)
	}
}

func TestStore_QueryAndSubscribe(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := mongostore.New(db, zap.NewNop())
	s.SetPollInterval(50 * time.Millisecond)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for i, owner := range []string{"u1", "u2", "u1"} {
		id := string(rune('a' + i))
		if err := s.Set(ctx, "recs", id, rec{Owner: owner, Rank: i}, docstore.Replace); err != nil {
			t.Fatal(err)
		}
	}

	q := docstore.Query{Collection: "recs", Filters: []docstore.Filter{docstore.Where("owner", "u1")}, OrderBy: "rank", Descending: true}
	snap, err := s.Query(ctx, q)
	if err != nil {
		t.Fatal(err)
	}
	got, _ := docstore.DecodeAll[rec](snap)
	if len(got) != 2 || got[0].ID != "c" {
		t.Fatalf("query: %+v", got)
	}

	var mu sync.Mutex
	sizes := []int{}
	sub, err := s.Subscribe(ctx, q, func(snap docstore.Snapshot) {
		mu.Lock()
		sizes = append(sizes, snap.Len())
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Release()

	if err := s.Set(ctx, "recs", "d", rec{Owner: "u1", Rank: 9}, docstore.Replace); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(sizes)
		last := 0
		if n > 0 {
			last = sizes[n-1]
		}
		mu.Unlock()
		if last == 3 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Errorf("standing query never saw the new record: %v", sizes)
}

func TestStore_Subscribe_WriteAfterInitialQueryIsDelivered(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := mongostore.New(db, zap.NewNop())
	s.SetPollInterval(time.Hour)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	stream, err := db.Collection("recs").Watch(ctx, mongo.Pipeline{})
	if err != nil {
		t.Skipf("change streams unavailable: %v", err)
	}
	_ = stream.Close(ctx)

	if err := s.Set(ctx, "recs", "a", rec{Owner: "u1", Rank: 1}, docstore.Replace); err != nil {
		t.Fatal(err)
	}

	restore := mongostore.SetAfterQueryHook(func() {
		if err := s.Set(ctx, "recs", "b", rec{Owner: "u1", Rank: 2}, docstore.Replace); err != nil {
			t.Errorf("write after query: %v", err)
		}
	})
	defer restore()

	q := docstore.Query{Collection: "recs", Filters: []docstore.Filter{docstore.Where("owner", "u1")}}
	got := make(chan int, 8)
	sub, err := s.Subscribe(ctx, q, func(snap docstore.Snapshot) { got <- snap.Len() })
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Release()
	restore()

	if n := <-got; n != 1 {
		t.Fatalf("initial delivery = %d records, want 1", n)
	}
	select {
	case n := <-got:
		if n != 2 {
			t.Errorf("second delivery = %d records, want 2", n)
		}
	case <-time.After(5 * time.Second):
		t.Error("write made after the initial query was never delivered")
	}
}
