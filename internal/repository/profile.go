package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"recipeshare/internal/docstore"
	"recipeshare/internal/model"
)

const (
	usersCollection  = "users"
	fieldDisplayName = "displayName"
	fieldAuthorID    = "authorId"
)

type profileRepository struct {
	store docstore.Store
}

func NewProfileRepository(store docstore.Store) ProfileRepository {
	return &profileRepository{store: store}
}

func (r *profileRepository) DisplayName(ctx context.Context, userID string) (string, error) {
	doc, err := r.store.Get(ctx, docstore.Join(usersCollection, userID))
	if errors.Is(err, docstore.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get profile: %w", err)
	}
	name, _ := doc.Fields[fieldDisplayName].(string)
	return strings.TrimSpace(name), nil
}

type itemRepository struct {
	store docstore.Store
}

func NewItemRepository(store docstore.Store) ItemRepository {
	return &itemRepository{store: store}
}

func (r *itemRepository) AuthorID(ctx context.Context, itemID string) (string, error) {
	doc, err := r.store.Get(ctx, docstore.Join(itemsCollection, itemID))
	if errors.Is(err, docstore.ErrNotFound) {
		return "", model.ErrItemNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get item: %w", err)
	}
	author, _ := doc.Fields[fieldAuthorID].(string)
	return author, nil
}
