// Package docstore is the narrow document-database interface the comment
// service runs on: hierarchical collections of documents, each a generated id
// plus a field map. Backends live in the subpackages.
package docstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get and Update when the document does not exist.
var ErrNotFound = errors.New("document not found")

// Direction is the sort direction of one Order.
type Direction int

const (
	Asc Direction = iota
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "DESC"
	}
	return "ASC"
}

// Order is one orderBy clause.
type Order struct {
	Field string
	Dir   Direction
}

// Query selects a page of a collection.
//
// Documents are ordered by OrderBy and then by document id in the direction of
// the last clause (ascending when there is none). StartAfter, when set, must
// carry the values of every OrderBy field; results begin strictly after it.
// Limit <= 0 means no limit.
type Query struct {
	Collection string
	OrderBy    []Order
	StartAfter *Document
	Limit      int
}

// Document is a stored document.
//
// Field values read back are normalized: integers are int64, floats float64,
// timestamps time.Time in UTC with microsecond precision, arrays []any.
type Document struct {
	ID     string
	Path   string
	Fields map[string]any
}

// Store is a hierarchical document database.
type Store interface {
	// Query returns the ordered page described by q.
	Query(ctx context.Context, q Query) ([]Document, error)

	// Get returns the document at path, or ErrNotFound.
	Get(ctx context.Context, path string) (Document, error)

	// Add creates a document with a generated id in collection and returns the id.
	// Fields may hold ServerTimestamp.
	Add(ctx context.Context, collection string, fields map[string]any) (string, error)

	// Update merges fields into the document at path, or returns ErrNotFound.
	// Fields may hold ServerTimestamp, Increment, ArrayUnion and ArrayRemove.
	Update(ctx context.Context, path string, fields map[string]any) error

	// Delete removes the document at path. Subcollections are left in place,
	// and deleting a missing document is not an error.
	Delete(ctx context.Context, path string) error

	// Count returns the number of documents in collection, computed server-side.
	Count(ctx context.Context, collection string) (int64, error)

	// Close releases the backend's connections.
	Close() error
}
