package memstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/tutorhub/internal/app/system/docstore"
	"github.com/dalemusser/tutorhub/internal/app/system/docstore/memstore"
	"go.mongodb.org/mongo-driver/bson"
)

type doc struct {
	ID    string    `bson:"_id"`
	Owner string    `bson:"owner"`
	Rank  int       `bson:"rank"`
	Tag   string    `bson:"tag,omitempty"`
	At    time.Time `bson:"at"`
	Prefs struct {
		Email bool `bson:"email"`
	} `bson:"prefs"`
}

func TestGetSetDelete(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	var got doc
	if err := s.Get(ctx, "docs", "a", &got); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}

	if err := s.Set(ctx, "docs", "a", doc{Owner: "u1", Rank: 1, Tag: "x"}, docstore.Replace); err != nil {
		t.Fatal(err)
	}
	if err := s.Get(ctx, "docs", "a", &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != "a" || got.Owner != "u1" || got.Tag != "x" {
		t.Errorf("got %+v", got)
	}

	if err := s.Delete(ctx, "docs", "a"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "docs", "a"); err != nil {
		t.Errorf("deleting an absent record: %v", err)
	}
	if s.Count("docs") != 0 {
		t.Error("expected empty collection")
	}
}

func TestSet_MergeVersusReplace(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	if err := s.Set(ctx, "docs", "a", bson.M{"owner": "u1", "tag": "x"}, docstore.Replace); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "docs", "a", bson.M{"rank": 2}, docstore.Merge); err != nil {
		t.Fatal(err)
	}
	var got doc
	_ = s.Get(ctx, "docs", "a", &got)
	if got.Owner != "u1" || got.Rank != 2 {
		t.Errorf("merge lost fields: %+v", got)
	}

	if err := s.Set(ctx, "docs", "a", bson.M{"rank": 3}, docstore.Replace); err != nil {
		t.Fatal(err)
	}
	got = doc{}
	_ = s.Get(ctx, "docs", "a", &got)
	if got.Owner != "" || got.Rank != 3 {
		t.Errorf("replace kept old fields: %+v", got)
	}
}

func TestUpdate(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	if err := s.Update(ctx, "docs", "missing", bson.M{"rank": 1}); !docstore.IsNotFound(err) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	_ = s.Set(ctx, "docs", "a", doc{Owner: "u1"}, docstore.Replace)
	if err := s.Update(ctx, "docs", "a", bson.M{"prefs.email": true, "rank": 5}); err != nil {
		t.Fatal(err)
	}
	var got doc
	_ = s.Get(ctx, "docs", "a", &got)
	if !got.Prefs.Email || got.Rank != 5 || got.Owner != "u1" {
		t.Errorf("got %+v", got)
	}
}

func TestQuery_FiltersOrderLimit(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, owner := range []string{"u1", "u2", "u1", "u1", "u3"} {
		id := string(rune('a' + i))
		_ = s.Set(ctx, "docs", id, doc{Owner: owner, Rank: i, At: base.Add(time.Duration(i) * time.Hour)}, docstore.Replace)
	}

	tests := []struct {
		name string
		q    docstore.Query
		want []string
	}{
		{"eq", docstore.Query{Collection: "docs", Filters: []docstore.Filter{docstore.Where("owner", "u1")}, OrderBy: "rank"}, []string{"a", "c", "d"}},
		{"ne", docstore.Query{Collection: "docs", Filters: []docstore.Filter{{Field: "owner", Op: docstore.Ne, Value: "u1"}}, OrderBy: "rank"}, []string{"b", "e"}},
		{"in", docstore.Query{Collection: "docs", Filters: []docstore.Filter{{Field: "owner", Op: docstore.In, Value: []string{"u2", "u3"}}}, OrderBy: "rank"}, []string{"b", "e"}},
		{"lt time", docstore.Query{Collection: "docs", Filters: []docstore.Filter{{Field: "at", Op: docstore.Lt, Value: base.Add(2 * time.Hour)}}, OrderBy: "at"}, []string{"a", "b"}},
		{"desc limit", docstore.Query{Collection: "docs", OrderBy: "at", Descending: true, Limit: 2}, []string{"e", "d"}},
		{"no order", docstore.Query{Collection: "docs", Filters: []docstore.Filter{docstore.Where("owner", "u1")}}, []string{"a", "c", "d"}},
		{"empty collection", docstore.Query{Collection: "nothing"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := s.Query(ctx, tt.q)
			if err != nil {
				t.Fatal(err)
			}
			docs, err := docstore.DecodeAll[doc](snap)
			if err != nil {
				t.Fatal(err)
			}
			if len(docs) != len(tt.want) {
				t.Fatalf("got %d docs, want %d", len(docs), len(tt.want))
			}
			for i, d := range docs {
				if d.ID != tt.want[i] {
					t.Errorf("position %d: got %q, want %q", i, d.ID, tt.want[i])
				}
			}
		})
	}
}

func TestSubscribe_InitialThenChanges(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	q := docstore.Query{Collection: "docs", Filters: []docstore.Filter{docstore.Where("owner", "u1")}}

	var sizes []int
	var seqs []int64
	sub, err := s.Subscribe(ctx, q, func(snap docstore.Snapshot) {
		sizes = append(sizes, snap.Len())
		seqs = append(seqs, snap.Seq)
	})
	if err != nil {
		t.Fatal(err)
	}

	_ = s.Set(ctx, "docs", "a", doc{Owner: "u1"}, docstore.Replace)
	_ = s.Set(ctx, "other", "x", doc{Owner: "u1"}, docstore.Replace) // other collection: no delivery
	_ = s.Set(ctx, "docs", "b", doc{Owner: "u1"}, docstore.Replace)
	_ = s.Delete(ctx, "docs", "a")

	want := []int{0, 1, 2, 1}
	if len(sizes) != len(want) {
		t.Fatalf("deliveries: got %v, want %v", sizes, want)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Errorf("delivery %d: got %d docs, want %d", i, sizes[i], want[i])
		}
		if i > 0 && seqs[i] <= seqs[i-1] {
			t.Errorf("delivery %d: seq did not increase", i)
		}
	}

	sub.Release()
	sub.Release()
	_ = s.Set(ctx, "docs", "c", doc{Owner: "u1"}, docstore.Replace)
	if len(sizes) != len(want) {
		t.Error("released subscription received a delivery")
	}
	if st := s.Stats(); st.Acquired != 1 || st.Released != 1 || st.Active() != 0 {
		t.Errorf("stats: %+v", st)
	}
}

func TestFault(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	boom := errors.New("boom")
	s.SetFault(func(op memstore.Operation, coll string) error {
		if op == memstore.OpSet && coll == "docs" {
			return boom
		}
		return nil
	})
	if err := s.Set(ctx, "docs", "a", doc{}, docstore.Replace); !errors.Is(err, boom) {
		t.Errorf("got %v, want boom", err)
	}
	if err := s.Set(ctx, "other", "a", doc{}, docstore.Replace); err != nil {
		t.Errorf("unfaulted collection: %v", err)
	}
	s.SetFault(nil)
	if err := s.Set(ctx, "docs", "a", doc{}, docstore.Replace); err != nil {
		t.Errorf("fault not removed: %v", err)
	}
}
