// Package docstore is the document-store boundary the core talks to.
//
// Records live in named collections and are addressed by string id
// (users/{id}, subscriptions/{id}, notifications/{id}). Besides point
// reads and writes the store offers standing queries: Subscribe delivers
// the complete, ordered result set of a query once on acquisition and
// again after every change to the collection. Consumers replace their
// local view wholesale on each delivery.
//
// Two backends implement Store: mongostore (MongoDB, change streams) and
// memstore (in-process, used by tests and local development).
package docstore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
)

var (
	// ErrNotFound is returned by Get and Update when no record has the id.
	ErrNotFound = errors.New("docstore: record not found")
	// ErrPermissionDenied is returned when the backend refuses access,
	// typically on first touch of a collection that does not exist yet.
	ErrPermissionDenied = errors.New("docstore: permission denied")
	// ErrDuplicate is returned when a write violates a unique index.
	ErrDuplicate = errors.New("docstore: duplicate key")
)

// IsNotFound reports whether err means the record is absent.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// WriteMode selects how Set treats an existing record.
type WriteMode int

const (
	// Replace overwrites the whole record.
	Replace WriteMode = iota
	// Merge overwrites only the top-level fields present in the new document.
	Merge
)

// Op is a filter comparison operator.
type Op string

const (
	Eq Op = "eq"
	Ne Op = "ne"
	In Op = "in"
	Lt Op = "lt"
)

// Filter is one field condition. All filters of a query must match.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Where is shorthand for an equality filter.
func Where(field string, value any) Filter {
	return Filter{Field: field, Op: Eq, Value: value}
}

// Query selects records from one collection.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string // empty means backend order
	Descending bool
	Limit      int64 // 0 means no limit
}

// Snapshot is a fully materialized result set.
type Snapshot struct {
	Docs []bson.Raw
	// Seq orders deliveries of a standing query; later snapshots carry
	// larger values.
	Seq int64
}

// Len returns the number of records in the snapshot.
func (s Snapshot) Len() int { return len(s.Docs) }

// Each decodes every record into a fresh T and calls fn in order.
func Each[T any](s Snapshot, fn func(T)) error {
	for _, raw := range s.Docs {
		var v T
		if err := bson.Unmarshal(raw, &v); err != nil {
			return err
		}
		fn(v)
	}
	return nil
}

// DecodeAll decodes the snapshot into a slice of T, preserving order.
func DecodeAll[T any](s Snapshot) ([]T, error) {
	out := make([]T, 0, len(s.Docs))
	err := Each(s, func(v T) { out = append(out, v) })
	return out, err
}

// Subscription is the handle of a standing query. Release stops
// deliveries; it is safe to call more than once and from any goroutine.
type Subscription interface {
	Release()
}

// Store is the document-store boundary.
type Store interface {
	// Get decodes the record into out, or returns ErrNotFound.
	Get(ctx context.Context, collection, id string, out any) error
	// Set writes doc under id using the given mode. The stored record's
	// _id is always id.
	Set(ctx context.Context, collection, id string, doc any, mode WriteMode) error
	// Update sets the given top-level fields on an existing record.
	Update(ctx context.Context, collection, id string, fields bson.M) error
	// Delete removes the record; deleting an absent record is not an error.
	Delete(ctx context.Context, collection, id string) error
	// Query runs q once.
	Query(ctx context.Context, q Query) (Snapshot, error)
	// Subscribe opens a standing query. onChange receives the initial
	// result set and one full result set per subsequent change.
	Subscribe(ctx context.Context, q Query, onChange func(Snapshot)) (Subscription, error)
}
