package database

import (
	"context"
	"path/filepath"
	"testing"

	"recipeshare/internal/config"
	"recipeshare/internal/docstore"
)

func TestOpenStore_SQLite(t *testing.T) {
	// ARRANGE
	cfg := &config.Config{Docstore: config.DocstoreSQLite, SQLitePath: filepath.Join(t.TempDir(), "test.db")}
	ctx := context.Background()

	// ACT
	store, err := OpenStore(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	defer store.Close()
	id, err := store.Add(ctx, "recipes", map[string]any{"authorId": "u1"})

	// ASSERT
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	doc, err := store.Get(ctx, docstore.Join("recipes", id))
	if err != nil || doc.Fields["authorId"] != "u1" {
		t.Errorf("unexpected read back: %v %v", doc.Fields, err)
	}
}

func TestOpenStore_FirestoreNeedsApp(t *testing.T) {
	_, err := OpenStore(context.Background(), &config.Config{Docstore: config.DocstoreFirestore}, nil)
	if err == nil {
		t.Error("expected error without firebase app")
	}
}

func TestOpenStore_Unknown(t *testing.T) {
	_, err := OpenStore(context.Background(), &config.Config{Docstore: "mongo"}, nil)
	if err == nil {
		t.Error("expected error for unknown backend")
	}
}
