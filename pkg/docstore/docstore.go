// Package docstore abstracts the schemaless document database backing the
// storefront. Documents are keyed per user and collection; a missing field
// reads as absent, never as an error. Global collections (e.g. the
// operational order index) are addressed with an empty user id.
package docstore

import (
	"context"
	"time"
)

// Document is a schemaless record with an opaque identifier.
type Document struct {
	ID     string
	Fields map[string]any
}

// ChangeFunc receives the full document set of a watched collection after
// every confirmed write. It is never invoked with a partial diff.
type ChangeFunc func(docs []Document)

// CancelFunc stops a watch. After it returns no further callbacks are made.
type CancelFunc func()

// Store is the document store capability consumed by the core services.
type Store interface {
	// ReadAll returns every document in the user's collection.
	ReadAll(ctx context.Context, userID, collection string) ([]Document, error)
	// ReadOne returns a single document or a NOT_FOUND error.
	ReadOne(ctx context.Context, userID, collection, docID string) (*Document, error)
	// Write persists the full field map. An empty docID creates a new
	// document and returns its assigned id.
	Write(ctx context.Context, userID, collection, docID string, fields map[string]any) (string, error)
	// Delete removes a document. Deleting an absent document is a no-op.
	Delete(ctx context.Context, userID, collection, docID string) error
	// Watch registers a change feed for the user's collection. Callbacks
	// fire only after a write is durable.
	Watch(ctx context.Context, userID, collection string, fn ChangeFunc) (CancelFunc, error)
}

// String reads a string field, empty when absent or mistyped.
func (d Document) String(key string) string {
	if v, ok := d.Fields[key].(string); ok {
		return v
	}
	return ""
}

// Int reads an integer field regardless of the numeric type the backend
// round-tripped it through.
func (d Document) Int(key string) int {
	return int(d.Int64(key))
}

// Int64 reads a 64-bit integer field.
func (d Document) Int64(key string) int64 {
	switch v := d.Fields[key].(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	case float32:
		return int64(v)
	}
	return 0
}

// Time reads a timestamp field. JSON backends store RFC3339 strings, native
// ones store time values; both decode here.
func (d Document) Time(key string) time.Time {
	switch v := d.Fields[key].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
