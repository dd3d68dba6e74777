// Package memstore is an in-process docstore.Store.
//
// Records are kept as BSON so reads decode exactly like the MongoDB
// backend. Standing queries are re-evaluated synchronously after every
// write to their collection, on the writer's goroutine, and delivered
// outside the store lock. A Fault hook lets tests fail chosen operations.
package memstore

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dalemusser/tutorhub/internal/app/system/docstore"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Operation names a store call for fault injection.
type Operation string

const (
	OpGet       Operation = "get"
	OpSet       Operation = "set"
	OpUpdate    Operation = "update"
	OpDelete    Operation = "delete"
	OpQuery     Operation = "query"
	OpSubscribe Operation = "subscribe"
)

// Fault decides whether an operation fails. Returning nil lets it proceed.
type Fault func(op Operation, collection string) error

// Stats counts standing-query handles.
type Stats struct {
	Acquired int
	Released int
}

// Active is the number of standing queries not yet released.
func (s Stats) Active() int { return s.Acquired - s.Released }

// Store is a concurrency-safe in-memory document store.
type Store struct {
	mu     sync.Mutex
	colls  map[string]map[string]bson.M
	subs   map[int64]*subscription
	nextID int64
	seq    int64
	fault  Fault
	stats  Stats
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		colls: make(map[string]map[string]bson.M),
		subs:  make(map[int64]*subscription),
	}
}

// SetFault installs (or, with nil, removes) the fault hook.
func (s *Store) SetFault(f Fault) {
	s.mu.Lock()
	s.fault = f
	s.mu.Unlock()
}

// Stats returns the standing-query counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Count returns the number of records in a collection.
func (s *Store) Count(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.colls[collection])
}

func (s *Store) check(op Operation, collection string) error {
	s.mu.Lock()
	f := s.fault
	s.mu.Unlock()
	if f == nil {
		return nil
	}
	return f(op, collection)
}

// Get implements docstore.Store.
func (s *Store) Get(ctx context.Context, collection, id string, out any) error {
	if err := s.check(OpGet, collection); err != nil {
		return err
	}
	s.mu.Lock()
	doc, ok := s.colls[collection][id]
	var raw []byte
	var err error
	if ok {
		raw, err = bson.Marshal(doc)
	}
	s.mu.Unlock()
	if !ok {
		return docstore.ErrNotFound
	}
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, out)
}

// Set implements docstore.Store.
func (s *Store) Set(ctx context.Context, collection, id string, doc any, mode docstore.WriteMode) error {
	if err := s.check(OpSet, collection); err != nil {
		return err
	}
	m, err := toM(doc)
	if err != nil {
		return err
	}
	m["_id"] = id

	s.mu.Lock()
	c := s.collection(collection)
	if existing, ok := c[id]; ok && mode == docstore.Merge {
		for k, v := range m {
			existing[k] = v
		}
	} else {
		c[id] = m
	}
	s.mu.Unlock()

	s.notify(collection)
	return nil
}

// Update implements docstore.Store. Dotted field names address nested
// documents the way MongoDB's $set does.
func (s *Store) Update(ctx context.Context, collection, id string, fields bson.M) error {
	if err := s.check(OpUpdate, collection); err != nil {
		return err
	}
	norm, err := toM(fields)
	if err != nil {
		return err
	}

	s.mu.Lock()
	existing, ok := s.colls[collection][id]
	if ok {
		for k, v := range norm {
			setPath(existing, k, v)
		}
	}
	s.mu.Unlock()
	if !ok {
		return docstore.ErrNotFound
	}

	s.notify(collection)
	return nil
}

// Delete implements docstore.Store.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := s.check(OpDelete, collection); err != nil {
		return err
	}
	s.mu.Lock()
	_, ok := s.colls[collection][id]
	delete(s.colls[collection], id)
	s.mu.Unlock()

	if ok {
		s.notify(collection)
	}
	return nil
}

// Query implements docstore.Store.
func (s *Store) Query(ctx context.Context, q docstore.Query) (docstore.Snapshot, error) {
	if err := s.check(OpQuery, q.Collection); err != nil {
		return docstore.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(q)
}

// Subscribe implements docstore.Store. The initial result set is
// delivered before Subscribe returns.
func (s *Store) Subscribe(ctx context.Context, q docstore.Query, onChange func(docstore.Snapshot)) (docstore.Subscription, error) {
	if err := s.check(OpSubscribe, q.Collection); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.nextID++
	sub := &subscription{id: s.nextID, store: s, query: q, fn: onChange}
	s.subs[sub.id] = sub
	s.stats.Acquired++
	snap, err := s.run(q)
	if err != nil {
		s.mu.Unlock()
		sub.Release()
		return nil, err
	}
	// Hold the delivery lock before dropping the store lock so no later
	// change can be delivered ahead of the initial result set.
	sub.deliverMu.Lock()
	s.mu.Unlock()
	sub.deliverLocked(snap)
	sub.deliverMu.Unlock()
	return sub, nil
}

func (s *Store) collection(name string) map[string]bson.M {
	c, ok := s.colls[name]
	if !ok {
		c = make(map[string]bson.M)
		s.colls[name] = c
	}
	return c
}

// notify re-runs every standing query on collection and delivers the
// results outside the store lock.
func (s *Store) notify(collection string) {
	type pending struct {
		sub  *subscription
		snap docstore.Snapshot
	}
	var out []pending

	s.mu.Lock()
	ids := make([]int64, 0, len(s.subs))
	for id, sub := range s.subs {
		if sub.query.Collection == collection {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		sub := s.subs[id]
		snap, err := s.run(sub.query)
		if err != nil {
			continue
		}
		out = append(out, pending{sub: sub, snap: snap})
	}
	s.mu.Unlock()

	for _, p := range out {
		p.sub.deliver(p.snap)
	}
}

// run evaluates q. Callers hold s.mu.
func (s *Store) run(q docstore.Query) (docstore.Snapshot, error) {
	filters := make([]normalizedFilter, 0, len(q.Filters))
	for _, f := range q.Filters {
		nf, err := normalizeFilter(f)
		if err != nil {
			return docstore.Snapshot{}, err
		}
		filters = append(filters, nf)
	}

	var matched []bson.M
	for _, doc := range s.colls[q.Collection] {
		if matchAll(doc, filters) {
			matched = append(matched, doc)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if q.OrderBy != "" {
			c := compare(getPath(matched[i], q.OrderBy), getPath(matched[j], q.OrderBy))
			if c != 0 {
				if q.Descending {
					return c > 0
				}
				return c < 0
			}
		}
		return idOf(matched[i]) < idOf(matched[j])
	})

	if q.Limit > 0 && int64(len(matched)) > q.Limit {
		matched = matched[:q.Limit]
	}

	s.seq++
	snap := docstore.Snapshot{Docs: make([]bson.Raw, 0, len(matched)), Seq: s.seq}
	for _, doc := range matched {
		raw, err := bson.Marshal(doc)
		if err != nil {
			return docstore.Snapshot{}, err
		}
		snap.Docs = append(snap.Docs, raw)
	}
	return snap, nil
}

type subscription struct {
	id    int64
	store *Store
	query docstore.Query
	fn    func(docstore.Snapshot)

	deliverMu sync.Mutex
	lastSeq   int64
	once      sync.Once
	released  atomic.Bool
}

func (sub *subscription) deliver(snap docstore.Snapshot) {
	sub.deliverMu.Lock()
	defer sub.deliverMu.Unlock()
	sub.deliverLocked(snap)
}

// deliverLocked drops snapshots older than the last one delivered, so
// racing writers never make a subscriber step backwards.
func (sub *subscription) deliverLocked(snap docstore.Snapshot) {
	if sub.released.Load() || snap.Seq <= sub.lastSeq {
		return
	}
	sub.lastSeq = snap.Seq
	sub.fn(snap)
}

// Release implements docstore.Subscription.
func (sub *subscription) Release() {
	sub.once.Do(func() {
		s := sub.store
		sub.released.Store(true)
		s.mu.Lock()
		delete(s.subs, sub.id)
		s.stats.Released++
		s.mu.Unlock()
	})
}

/* -------------------------------------------------------------------------- */
/* BSON helpers                                                                */
/* -------------------------------------------------------------------------- */

func toM(v any) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = bson.M{}
	}
	return m, nil
}

type normalizedFilter struct {
	field string
	op    docstore.Op
	value any
}

// normalizeFilter round-trips the filter value through BSON so it has
// the same Go representation as stored fields (named string types become
// string, time.Time becomes primitive.DateTime, slices become primitive.A).
func normalizeFilter(f docstore.Filter) (normalizedFilter, error) {
	m, err := toM(bson.M{"v": f.Value})
	if err != nil {
		return normalizedFilter{}, err
	}
	op := f.Op
	if op == "" {
		op = docstore.Eq
	}
	return normalizedFilter{field: f.Field, op: op, value: m["v"]}, nil
}

func matchAll(doc bson.M, filters []normalizedFilter) bool {
	for _, f := range filters {
		v := getPath(doc, f.field)
		switch f.op {
		case docstore.Eq:
			if compare(v, f.value) != 0 {
				return false
			}
		case docstore.Ne:
			if compare(v, f.value) == 0 {
				return false
			}
		case docstore.Lt:
			if v == nil || rank(v) != rank(f.value) || compare(v, f.value) >= 0 {
				return false
			}
		case docstore.In:
			arr, _ := f.value.(primitive.A)
			found := false
			for _, want := range arr {
				if compare(v, want) == 0 {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func getPath(doc bson.M, path string) any {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		switch d := cur.(type) {
		case bson.M:
			cur = d[part]
		case bson.D:
			cur = d.Map()[part]
		default:
			return nil
		}
	}
	return cur
}

func setPath(doc bson.M, path string, v any) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(bson.M)
		if !ok {
			if d, isD := cur[part].(bson.D); isD {
				next = bson.M(d.Map())
			} else {
				next = bson.M{}
			}
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

func idOf(doc bson.M) string {
	s, _ := doc["_id"].(string)
	return s
}

// compare orders two BSON-decoded values. Values of unrelated kinds
// compare by kind rank so sorting stays total.
func compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch x := a.(type) {
	case nil:
		return 0
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case string:
		return strings.Compare(x, b.(string))
	case primitive.DateTime:
		return cmpInt(int64(x), int64(b.(primitive.DateTime)))
	case primitive.ObjectID:
		y := b.(primitive.ObjectID)
		return bytes.Compare(x[:], y[:])
	}
	if fa, ok := number(a); ok {
		fb, _ := number(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	ba, _ := bson.Marshal(bson.M{"v": a})
	bb, _ := bson.Marshal(bson.M{"v": b})
	return bytes.Compare(ba, bb)
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int32, int64, float64, int:
		return 2
	case string:
		return 3
	case primitive.ObjectID:
		return 4
	case primitive.DateTime:
		return 5
	}
	return 6
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
