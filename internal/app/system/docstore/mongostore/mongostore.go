// Package mongostore implements docstore.Store on MongoDB.
//
// Each docstore collection maps to a Mongo collection of the same name.
// Standing queries are served by a change stream on the collection: every
// change event triggers a re-query and the full ordered result set is
// delivered to the subscriber. Change streams need a replica set; on a
// standalone server Subscribe falls back to polling.
package mongostore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dalemusser/tutorhub/internal/app/system/docstore"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// unauthorizedCode is the server error code for a refused operation.
const unauthorizedCode = 13

// DefaultPollInterval is used when change streams are unavailable.
const DefaultPollInterval = 2 * time.Second

// Store is a docstore.Store backed by a Mongo database.
type Store struct {
	db   *mongo.Database
	log  *zap.Logger
	poll time.Duration
}

// New returns a Store on db.
func New(db *mongo.Database, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, log: logger, poll: DefaultPollInterval}
}

// SetPollInterval overrides the fallback polling interval.
func (s *Store) SetPollInterval(d time.Duration) {
	if d > 0 {
		s.poll = d
	}
}

// Database exposes the underlying database (index setup, health checks).
func (s *Store) Database() *mongo.Database { return s.db }

// Get implements docstore.Store.
func (s *Store) Get(ctx context.Context, collection, id string, out any) error {
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(out)
	return mapErr(err)
}

// Set implements docstore.Store.
func (s *Store) Set(ctx context.Context, collection, id string, doc any, mode docstore.WriteMode) error {
	c := s.db.Collection(collection)
	switch mode {
	case docstore.Merge:
		fields, err := toM(doc)
		if err != nil {
			return err
		}
		delete(fields, "_id")
		_, err = c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields}, options.Update().SetUpsert(true))
		return mapErr(err)
	default:
		fields, err := toM(doc)
		if err != nil {
			return err
		}
		fields["_id"] = id
		_, err = c.ReplaceOne(ctx, bson.M{"_id": id}, fields, options.Replace().SetUpsert(true))
		return mapErr(err)
	}
}

// Update implements docstore.Store.
func (s *Store) Update(ctx context.Context, collection, id string, fields bson.M) error {
	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

// Delete implements docstore.Store.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	return mapErr(err)
}

// Query implements docstore.Store.
func (s *Store) Query(ctx context.Context, q docstore.Query) (docstore.Snapshot, error) {
	opts := options.Find()
	if q.OrderBy != "" {
		dir := 1
		if q.Descending {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.OrderBy, Value: dir}, {Key: "_id", Value: 1}})
	} else {
		opts.SetSort(bson.D{{Key: "_id", Value: 1}})
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}

	cur, err := s.db.Collection(q.Collection).Find(ctx, FilterDoc(q.Filters), opts)
	if err != nil {
		return docstore.Snapshot{}, mapErr(err)
	}
	defer cur.Close(ctx)

	var snap docstore.Snapshot
	for cur.Next(ctx) {
		raw := make(bson.Raw, len(cur.Current))
		copy(raw, cur.Current)
		snap.Docs = append(snap.Docs, raw)
	}
	if err := cur.Err(); err != nil {
		return docstore.Snapshot{}, mapErr(err)
	}
	return snap, nil
}

// Subscribe implements docstore.Store. The change stream is opened
// before the initial query so a write landing between the two is still
// delivered. The initial result set is delivered before Subscribe
// returns; later deliveries come from a background goroutine that stops
// when the subscription is released or ctx is cancelled.
func (s *Store) Subscribe(ctx context.Context, q docstore.Query, onChange func(docstore.Snapshot)) (docstore.Subscription, error) {
	wctx, cancel := context.WithCancel(ctx)

	stream, serr := s.db.Collection(q.Collection).Watch(wctx, ChangePipeline(q.Filters),
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if serr != nil {
		s.log.Debug("change stream unavailable; polling",
			zap.String("collection", q.Collection), zap.Error(serr))
		stream = nil
	}

	snap, err := s.Query(ctx, q)
	if err != nil {
		if stream != nil {
			_ = stream.Close(context.Background())
		}
		cancel()
		return nil, err
	}
	if testHookAfterQuery != nil {
		testHookAfterQuery()
	}

	sub := &subscription{cancel: cancel}
	sub.seq++
	snap.Seq = sub.seq
	onChange(snap)

	go sub.run(wctx, s, q, stream, onChange)
	return sub, nil
}

// testHookAfterQuery runs between the initial query and the first
// delivery of Subscribe.
var testHookAfterQuery func()

// ChangePipeline narrows a change stream to the events that can change
// the result of a query with filters. Equality filters are matched
// against the looked-up document. Events without a document (deletes,
// drops) always pass, and so does everything when no equality filter
// is present.
func ChangePipeline(filters []docstore.Filter) mongo.Pipeline {
	match := bson.D{}
	for _, f := range filters {
		if f.Op != "" && f.Op != docstore.Eq {
			continue
		}
		match = append(match, bson.E{Key: "fullDocument." + f.Field, Value: f.Value})
	}
	if len(match) == 0 {
		return mongo.Pipeline{}
	}
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "$or", Value: bson.A{
			match,
			bson.D{{Key: "fullDocument", Value: nil}},
		}}}}},
	}
}

type subscription struct {
	cancel context.CancelFunc
	once   sync.Once
	seq    int64
}

// Release implements docstore.Subscription. A refresh already in flight
// is dropped once it sees the cancelled context.
func (sub *subscription) Release() {
	sub.once.Do(sub.cancel)
}

func (sub *subscription) run(ctx context.Context, s *Store, q docstore.Query, stream *mongo.ChangeStream, onChange func(docstore.Snapshot)) {
	deliver := func() {
		snap, err := s.Query(ctx, q)
		if err != nil {
			if ctx.Err() == nil {
				s.log.Warn("standing query refresh failed",
					zap.String("collection", q.Collection), zap.Error(err))
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		sub.seq++
		snap.Seq = sub.seq
		onChange(snap)
	}

	if stream != nil {
		defer stream.Close(context.Background())
		for stream.Next(ctx) {
			deliver()
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			s.log.Warn("change stream ended", zap.String("collection", q.Collection), zap.Error(err))
		}
		return
	}

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deliver()
		}
	}
}

// FilterDoc translates docstore filters into a Mongo filter document.
func FilterDoc(filters []docstore.Filter) bson.M {
	out := bson.M{}
	for _, f := range filters {
		switch f.Op {
		case docstore.Ne:
			out[f.Field] = bson.M{"$ne": f.Value}
		case docstore.In:
			out[f.Field] = bson.M{"$in": f.Value}
		case docstore.Lt:
			out[f.Field] = bson.M{"$lt": f.Value}
		default:
			out[f.Field] = f.Value
		}
	}
	return out
}

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

// mapErr converts driver errors into docstore sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return docstore.ErrNotFound
	}
	if wafflemongo.IsDup(err) {
		return docstore.ErrDuplicate
	}
	var se mongo.ServerError
	if errors.As(err, &se) && se.HasErrorCode(unauthorizedCode) {
		return errors.Join(docstore.ErrPermissionDenied, err)
	}
	return err
}
