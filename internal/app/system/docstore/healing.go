package docstore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// Healer runs queries against collections that may not exist yet.
//
// Some backends answer the first read of a missing collection with a
// permission error. On the first such failure per collection the Healer
// writes and deletes a probe record to bring the collection into being,
// then retries the query once. If the retry fails too, or the collection
// was already probed, the caller gets an empty snapshot instead of an
// error.
type Healer struct {
	store Store
	log   *zap.Logger

	mu     sync.Mutex
	probed map[string]bool
}

// NewHealer wraps store. A nil logger is replaced by a no-op logger.
func NewHealer(store Store, logger *zap.Logger) *Healer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Healer{store: store, log: logger, probed: make(map[string]bool)}
}

// Query runs q, initializing the collection on a first-touch permission
// failure. Errors other than ErrPermissionDenied are returned unchanged.
func (h *Healer) Query(ctx context.Context, q Query) (Snapshot, error) {
	snap, err := h.store.Query(ctx, q)
	if err == nil || !errors.Is(err, ErrPermissionDenied) {
		return snap, err
	}

	if !h.claimProbe(q.Collection) {
		h.log.Warn("collection still refusing reads; returning empty result",
			zap.String("collection", q.Collection), zap.Error(err))
		return Snapshot{}, nil
	}

	h.log.Info("initializing collection after permission failure",
		zap.String("collection", q.Collection))
	if perr := h.probe(ctx, q.Collection); perr != nil {
		h.log.Warn("collection probe failed", zap.String("collection", q.Collection), zap.Error(perr))
	}

	snap, err = h.store.Query(ctx, q)
	if err != nil {
		h.log.Warn("query failed after collection probe; returning empty result",
			zap.String("collection", q.Collection), zap.Error(err))
		return Snapshot{}, nil
	}
	return snap, nil
}

// Subscribe opens a standing query with the same first-touch handling
// as Query. When the collection still refuses reads, onChange receives
// one empty snapshot and the returned handle is inert.
func (h *Healer) Subscribe(ctx context.Context, q Query, onChange func(Snapshot)) (Subscription, error) {
	sub, err := h.store.Subscribe(ctx, q, onChange)
	if err == nil || !errors.Is(err, ErrPermissionDenied) {
		return sub, err
	}

	if h.claimProbe(q.Collection) {
		h.log.Info("initializing collection after permission failure",
			zap.String("collection", q.Collection))
		if perr := h.probe(ctx, q.Collection); perr != nil {
			h.log.Warn("collection probe failed", zap.String("collection", q.Collection), zap.Error(perr))
		}
		if sub, err = h.store.Subscribe(ctx, q, onChange); err == nil {
			return sub, nil
		}
	}

	h.log.Warn("standing query refused; delivering empty result",
		zap.String("collection", q.Collection), zap.Error(err))
	onChange(Snapshot{})
	return inert{}, nil
}

type inert struct{}

func (inert) Release() {}

func (h *Healer) claimProbe(collection string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.probed[collection] {
		return false
	}
	h.probed[collection] = true
	return true
}

func (h *Healer) probe(ctx context.Context, collection string) error {
	id := "_probe_" + uuid.NewString()
	doc := bson.M{"probe": true, "created_at": time.Now().UTC()}
	if err := h.store.Set(ctx, collection, id, doc, Replace); err != nil {
		return err
	}
	return h.store.Delete(ctx, collection, id)
}
