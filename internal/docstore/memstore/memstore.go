// Package memstore is an in-process docstore.Store for tests and local runs.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"recipeshare/internal/docstore"
)

// Store keeps every collection in memory. It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	colls map[string]map[string]map[string]any // collection -> id -> fields
	clock docstore.Clock
}

// New returns an empty Store.
func New() *Store {
	return &Store{colls: make(map[string]map[string]map[string]any)}
}

// WithClock replaces the time source used for server timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.clock.Now = now
	return s
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if err := docstore.ValidateCollection(q.Collection); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	docs := make([]docstore.Document, 0, len(s.colls[q.Collection]))
	for id, fields := range s.colls[q.Collection] {
		docs = append(docs, s.document(q.Collection, id, fields))
	}
	s.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		return docstore.CompareDocs(q.OrderBy, docs[i], docs[j]) < 0
	})

	if q.StartAfter != nil {
		start := len(docs)
		for i, d := range docs {
			if docstore.CompareDocs(q.OrderBy, d, *q.StartAfter) > 0 {
				start = i
				break
			}
		}
		docs = docs[start:]
	}
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs, nil
}

func (s *Store) Get(ctx context.Context, path string) (docstore.Document, error) {
	coll, id, err := docstore.SplitDocPath(path)
	if err != nil {
		return docstore.Document{}, err
	}
	if err := ctx.Err(); err != nil {
		return docstore.Document{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	fields, ok := s.colls[coll][id]
	if !ok {
		return docstore.Document{}, docstore.ErrNotFound
	}
	return s.document(coll, id, fields), nil
}

func (s *Store) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	stored, err := docstore.Apply(nil, fields, s.clock.Next())
	if err != nil {
		return "", fmt.Errorf("add to %s: %w", collection, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := docstore.NewID()
	if s.colls[collection] == nil {
		s.colls[collection] = make(map[string]map[string]any)
	}
	s.colls[collection][id] = stored
	return id, nil
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	coll, id, err := docstore.SplitDocPath(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.colls[coll][id]
	if !ok {
		return docstore.ErrNotFound
	}
	updated, err := docstore.Apply(current, fields, s.clock.Next())
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	s.colls[coll][id] = updated
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	coll, id, err := docstore.SplitDocPath(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.colls[coll], id)
	return nil
}

func (s *Store) Count(ctx context.Context, collection string) (int64, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.colls[collection])), nil
}

func (s *Store) Close() error { return nil }

// document copies fields so callers never alias stored state.
func (s *Store) document(coll, id string, fields map[string]any) docstore.Document {
	return docstore.Document{
		ID:     id,
		Path:   docstore.Join(coll, id),
		Fields: docstore.Normalize(fields).(map[string]any),
	}
}
