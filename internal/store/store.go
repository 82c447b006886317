// Package store defines the remote document store the console mirrors and
// writes to, plus an in-memory and a Redis implementation.
//
// Every entity type lives in one flat collection of documents keyed by an
// opaque id.  Subscribers always receive the complete current collection,
// never a delta.
package store

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by Get and Update for a missing document.
var ErrNotFound = errors.New("document not found")

// Document is one stored record.  Fields never contain the id.
type Document struct {
	ID     string
	Fields map[string]any
}

// OnChange receives the full ordered collection after every change.
type OnChange func([]Document)

// Subscription is released with Close.  Close is safe to call more than once.
type Subscription interface {
	Close() error
}

// Store is the collection based document store.
type Store interface {
	GetAll(ctx context.Context, collection string) ([]Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	// Create stores fields under a new id and returns it.
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)
	// CreateWithID stores fields under id, replacing any existing document.
	CreateWithID(ctx context.Context, collection, id string, fields map[string]any) error
	// Update merges fields into an existing document.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	// Delete removes a document.  Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error
	// Subscribe delivers the current collection once, then again after every
	// change until the subscription is closed or ctx is done.
	Subscribe(ctx context.Context, collection string, fn OnChange) (Subscription, error)
}

// normalize deep-copies fields through JSON so every backend hands out the
// same value shapes (numbers as float64, nested maps as map[string]any).
func normalize(fields map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, errors.Wrap(err, "marshal fields")
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, errors.Wrap(err, "unmarshal fields")
	}
	delete(out, "id")
	return out, nil
}
