// Package storetest is the conformance suite every docstore backend runs.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"recipeshare/internal/docstore"
)

// Factory returns a fresh store for one subtest. The store is closed by the suite.
type Factory func(t *testing.T) docstore.Store

// Run exercises store semantics the comment repositories rely on.
// Each subtest writes under its own random root so shared backends can be reused.
func Run(t *testing.T, newStore Factory) {
	t.Run("AddGetRoundTrip", func(t *testing.T) { testAddGet(t, newStore) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore) })
	t.Run("UpdateTransforms", func(t *testing.T) { testUpdateTransforms(t, newStore) })
	t.Run("UpdateMissing", func(t *testing.T) { testUpdateMissing(t, newStore) })
	t.Run("DeleteKeepsSubcollections", func(t *testing.T) { testDelete(t, newStore) })
	t.Run("Count", func(t *testing.T) { testCount(t, newStore) })
	t.Run("QueryOrderAndCursor", func(t *testing.T) { testQueryPaging(t, newStore) })
	t.Run("QueryAscending", func(t *testing.T) { testQueryAscending(t, newStore) })
	t.Run("ServerTimestampsIncrease", func(t *testing.T) { testTimestamps(t, newStore) })
}

func setup(t *testing.T, newStore Factory) (context.Context, docstore.Store, string) {
	t.Helper()
	store := newStore(t)
	t.Cleanup(func() { store.Close() })
	root := docstore.Join("runs", docstore.NewID())
	return context.Background(), store, root
}

func mustAdd(t *testing.T, ctx context.Context, s docstore.Store, coll string, fields map[string]any) string {
	t.Helper()
	id, err := s.Add(ctx, coll, fields)
	if err != nil {
		t.Fatalf("Add(%s) failed: %v", coll, err)
	}
	return id
}

func testAddGet(t *testing.T, newStore Factory) {
	ctx, s, root := setup(t, newStore)
	coll := docstore.Join(root, "comments")

	// ACT
	id := mustAdd(t, ctx, s, coll, map[string]any{
		"userId":    "u1",
		"content":   "great dish",
		"likes":     0,
		"likedBy":   []string{},
		"createdAt": docstore.ServerTimestamp,
	})
	doc, err := s.Get(ctx, docstore.Join(coll, id))

	// ASSERT
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(id) == 0 || doc.ID != id {
		t.Errorf("expected id %q, got %q", id, doc.ID)
	}
	if doc.Path != docstore.Join(coll, id) {
		t.Errorf("unexpected path %q", doc.Path)
	}
	if doc.Fields["content"] != "great dish" || doc.Fields["userId"] != "u1" {
		t.Errorf("unexpected fields: %v", doc.Fields)
	}
	if likes, ok := doc.Fields["likes"].(int64); !ok || likes != 0 {
		t.Errorf("expected likes int64(0), got %#v", doc.Fields["likes"])
	}
	if arr, ok := doc.Fields["likedBy"].([]any); !ok || len(arr) != 0 {
		t.Errorf("expected empty []any likedBy, got %#v", doc.Fields["likedBy"])
	}
	ts, ok := doc.Fields["createdAt"].(time.Time)
	if !ok || ts.IsZero() {
		t.Fatalf("expected server timestamp, got %#v", doc.Fields["createdAt"])
	}
	if ts.Location() != time.UTC {
		t.Errorf("expected UTC timestamp, got %v", ts.Location())
	}
}

func testGetMissing(t *testing.T, newStore Factory) {
	ctx, s, root := setup(t, newStore)

	_, err := s.Get(ctx, docstore.Join(root, "comments", "nope"))

	if !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func testUpdateTransforms(t *testing.T, newStore Factory) {
	ctx, s, root := setup(t, newStore)
	coll := docstore.Join(root, "comments")
	id := mustAdd(t, ctx, s, coll, map[string]any{
		"content":   "before",
		"likes":     1,
		"likedBy":   []string{"a"},
		"createdAt": docstore.ServerTimestamp,
	})
	path := docstore.Join(coll, id)

	// ACT
	err := s.Update(ctx, path, map[string]any{
		"content":   "after",
		"likes":     docstore.Increment(1),
		"likedBy":   docstore.ArrayUnion{"b", "a"},
		"updatedAt": docstore.ServerTimestamp,
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	err = s.Update(ctx, path, map[string]any{
		"likes":   docstore.Increment(-1),
		"likedBy": docstore.ArrayRemove{"a"},
	})
	if err != nil {
		t.Fatalf("second Update failed: %v", err)
	}
	doc, err := s.Get(ctx, path)

	// ASSERT
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if doc.Fields["content"] != "after" {
		t.Errorf("expected content 'after', got %v", doc.Fields["content"])
	}
	if doc.Fields["likes"] != int64(1) {
		t.Errorf("expected likes 1, got %#v", doc.Fields["likes"])
	}
	liked, _ := doc.Fields["likedBy"].([]any)
	if len(liked) != 1 || liked[0] != "b" {
		t.Errorf("expected likedBy [b], got %#v", doc.Fields["likedBy"])
	}
	created, _ := doc.Fields["createdAt"].(time.Time)
	updated, ok := doc.Fields["updatedAt"].(time.Time)
	if !ok || updated.Before(created) {
		t.Errorf("expected updatedAt >= createdAt, got %v < %v", updated, created)
	}
}

func testUpdateMissing(t *testing.T, newStore Factory) {
	ctx, s, root := setup(t, newStore)

	err := s.Update(ctx, docstore.Join(root, "comments", "nope"), map[string]any{"content": "x"})

	if !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func testDelete(t *testing.T, newStore Factory) {
	ctx, s, root := setup(t, newStore)
	coll := docstore.Join(root, "comments")
	id := mustAdd(t, ctx, s, coll, map[string]any{"content": "parent"})
	replies := docstore.Join(coll, id, "replies")
	mustAdd(t, ctx, s, replies, map[string]any{"content": "child"})

	// ACT
	if err := s.Delete(ctx, docstore.Join(coll, id)); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete(ctx, docstore.Join(coll, id)); err != nil {
		t.Errorf("deleting a missing document should succeed, got %v", err)
	}

	// ASSERT
	if _, err := s.Get(ctx, docstore.Join(coll, id)); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("expected deleted document to be gone, got %v", err)
	}
	n, err := s.Count(ctx, replies)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected subcollection to survive with 1 doc, got %d", n)
	}
}

func testCount(t *testing.T, newStore Factory) {
	ctx, s, root := setup(t, newStore)
	coll := docstore.Join(root, "comments")
	for i := 0; i < 3; i++ {
		mustAdd(t, ctx, s, coll, map[string]any{"n": i})
	}
	mustAdd(t, ctx, s, docstore.Join(root, "other"), map[string]any{"n": 0})

	n, err := s.Count(ctx, coll)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3, got %d", n)
	}

	empty, err := s.Count(ctx, docstore.Join(root, "none"))
	if err != nil {
		t.Fatalf("Count on empty collection failed: %v", err)
	}
	if empty != 0 {
		t.Errorf("expected 0, got %d", empty)
	}
}

func testQueryPaging(t *testing.T, newStore Factory) {
	ctx, s, root := setup(t, newStore)
	coll := docstore.Join(root, "comments")
	likes := []int{2, 5, 2, 0, 5, 1, 2}
	for i, l := range likes {
		mustAdd(t, ctx, s, coll, map[string]any{"seq": i, "likes": l, "createdAt": docstore.ServerTimestamp})
	}
	orders := []docstore.Order{{Field: "likes", Dir: docstore.Desc}, {Field: "createdAt", Dir: docstore.Desc}}

	// ACT: page through three at a time
	var seqs []int64
	var after *docstore.Document
	for pages := 0; pages < 10; pages++ {
		page, err := s.Query(ctx, docstore.Query{Collection: coll, OrderBy: orders, StartAfter: after, Limit: 3})
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		for _, d := range page {
			seqs = append(seqs, d.Fields["seq"].(int64))
		}
		if len(page) < 3 {
			break
		}
		last := page[len(page)-1]
		after = &last
	}

	// ASSERT: likes desc, then newest first
	want := []int64{4, 1, 6, 2, 0, 5, 3}
	if len(seqs) != len(want) {
		t.Fatalf("expected %d docs, got %v", len(want), seqs)
	}
	for i := range want {
		if seqs[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, seqs)
		}
	}
}

func testQueryAscending(t *testing.T, newStore Factory) {
	ctx, s, root := setup(t, newStore)
	coll := docstore.Join(root, "replies")
	for i := 0; i < 4; i++ {
		mustAdd(t, ctx, s, coll, map[string]any{"seq": i, "createdAt": docstore.ServerTimestamp})
	}

	docs, err := s.Query(ctx, docstore.Query{
		Collection: coll,
		OrderBy:    []docstore.Order{{Field: "createdAt", Dir: docstore.Asc}},
	})

	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(docs) != 4 {
		t.Fatalf("expected 4 docs, got %d", len(docs))
	}
	for i, d := range docs {
		if d.Fields["seq"] != int64(i) {
			t.Errorf("position %d: expected seq %d, got %v", i, i, d.Fields["seq"])
		}
	}
}

func testTimestamps(t *testing.T, newStore Factory) {
	ctx, s, root := setup(t, newStore)
	coll := docstore.Join(root, "comments")

	var prev time.Time
	for i := 0; i < 5; i++ {
		id := mustAdd(t, ctx, s, coll, map[string]any{"createdAt": docstore.ServerTimestamp})
		doc, err := s.Get(ctx, docstore.Join(coll, id))
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		ts := doc.Fields["createdAt"].(time.Time)
		if ts.Before(prev) {
			t.Fatalf("timestamp went backwards: %v before %v", ts, prev)
		}
		prev = ts
	}
}
