// Package store is the document store gateway: one typed accessor per
// collection over a pluggable document database backend.
package store

import (
	"context"

	"github.com/phillip/parenting-hub-go/apperr"
)

// Filter is an equality constraint on a top-level field.
type Filter struct {
	Field string
	Value any
}

// Order sorts results by a field.
type Order struct {
	Field string
	Desc  bool
}

// Query holds the constraints accepted by List and Subscribe. The zero value
// returns every document in the backend's native order.
type Query struct {
	Filters []Filter
	OrderBy *Order
	Limit   int
}

// Where returns a copy of q with an extra equality filter.
func (q Query) Where(field string, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Value: value})
	return q
}

// Sorted returns a copy of q ordered by field.
func (q Query) Sorted(field string, desc bool) Query {
	q.OrderBy = &Order{Field: field, Desc: desc}
	return q
}

// Limited returns a copy of q with a result cap.
func (q Query) Limited(n int) Query {
	q.Limit = n
	return q
}

// Snapshot is one stored document as returned by a backend.
type Snapshot interface {
	ID() string
	DataTo(v any) error
}

// Backend is the remote document database. Implementations stamp server
// createdAt/updatedAt timestamps themselves; every other field arrives ready
// to store.
type Backend interface {
	// Find runs q against collection.
	Find(ctx context.Context, collection string, q Query) ([]Snapshot, error)
	// Get returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, collection, id string) (Snapshot, error)
	// Insert stores doc under a new backend-assigned id.
	Insert(ctx context.Context, collection string, doc any) (string, error)
	// Update merges fields into an existing document and refreshes updatedAt.
	// Returns ErrNotFound when the document does not exist.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	// Watch calls fn with the full result set of q now and after every change,
	// blocking until ctx is done or the feed fails.
	Watch(ctx context.Context, collection string, q Query, fn func([]Snapshot)) error
	Close(ctx context.Context) error
}

// ErrNotFound is returned by backends for missing documents.
var ErrNotFound = apperr.ErrNotFound
