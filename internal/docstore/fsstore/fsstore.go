// Package fsstore implements docstore.Store on Cloud Firestore.
package fsstore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"recipeshare/internal/docstore"
)

// Store adapts a Firestore client.
type Store struct {
	client *firestore.Client
}

func New(client *firestore.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if err := docstore.ValidateCollection(q.Collection); err != nil {
		return nil, err
	}

	fq := s.client.Collection(q.Collection).Query
	idDir := firestore.Asc
	for _, o := range q.OrderBy {
		fq = fq.OrderBy(o.Field, direction(o.Dir))
		idDir = direction(o.Dir)
	}
	fq = fq.OrderBy(firestore.DocumentID, idDir)

	if q.StartAfter != nil {
		vals := make([]any, 0, len(q.OrderBy)+1)
		for _, o := range q.OrderBy {
			vals = append(vals, q.StartAfter.Fields[o.Field])
		}
		vals = append(vals, q.StartAfter.ID)
		fq = fq.StartAfter(vals...)
	}
	if q.Limit > 0 {
		fq = fq.Limit(q.Limit)
	}

	snaps, err := fq.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	docs := make([]docstore.Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, toDocument(q.Collection, snap))
	}
	return docs, nil
}

func (s *Store) Get(ctx context.Context, path string) (docstore.Document, error) {
	coll, _, err := docstore.SplitDocPath(path)
	if err != nil {
		return docstore.Document{}, err
	}
	snap, err := s.client.Doc(path).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return docstore.Document{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("get %s: %w", path, err)
	}
	return toDocument(coll, snap), nil
}

func (s *Store) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return "", err
	}
	ref, _, err := s.client.Collection(collection).Add(ctx, toFirestore(fields))
	if err != nil {
		return "", fmt.Errorf("add to %s: %w", collection, err)
	}
	return ref.ID, nil
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	if _, _, err := docstore.SplitDocPath(path); err != nil {
		return err
	}
	updates := make([]firestore.Update, 0, len(fields))
	for k, v := range toFirestore(fields) {
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	_, err := s.client.Doc(path).Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return docstore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	if _, _, err := docstore.SplitDocPath(path); err != nil {
		return err
	}
	if _, err := s.client.Doc(path).Delete(ctx); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func (s *Store) Count(ctx context.Context, collection string) (int64, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return 0, err
	}
	res, err := s.client.Collection(collection).NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	v, ok := res["all"].(*firestorepb.Value)
	if !ok {
		return 0, errors.New("count " + collection + ": missing aggregate result")
	}
	return v.GetIntegerValue(), nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func direction(d docstore.Direction) firestore.Direction {
	if d == docstore.Desc {
		return firestore.Desc
	}
	return firestore.Asc
}

func toDocument(coll string, snap *firestore.DocumentSnapshot) docstore.Document {
	return docstore.Document{
		ID:     snap.Ref.ID,
		Path:   docstore.Join(coll, snap.Ref.ID),
		Fields: docstore.Normalize(snap.Data()).(map[string]any),
	}
}

// toFirestore swaps docstore write sentinels for their Firestore transforms.
func toFirestore(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		switch x := v.(type) {
		case docstore.Increment:
			out[k] = firestore.Increment(int64(x))
		case docstore.ArrayUnion:
			out[k] = firestore.ArrayUnion(x...)
		case docstore.ArrayRemove:
			out[k] = firestore.ArrayRemove(x...)
		default:
			if docstore.IsServerTimestamp(v) {
				out[k] = firestore.ServerTimestamp
				continue
			}
			out[k] = v
		}
	}
	return out
}
