package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"recipeshare/internal/docstore"
	"recipeshare/internal/model"
)

// Document layout: recipes/{item}/comments/{comment}/replies/{reply}
const (
	itemsCollection    = "recipes"
	commentsCollection = "comments"
	repliesCollection  = "replies"
)

// Comment document fields
const (
	fieldUserID    = "userId"
	fieldContent   = "content"
	fieldLikes     = "likes"
	fieldLikedBy   = "likedBy"
	fieldCreatedAt = "createdAt"
	fieldUpdatedAt = "updatedAt"
)

// cascadeParallelism bounds concurrent reply deletes of one cascade.
const cascadeParallelism = 8

type commentRepository struct {
	store docstore.Store
}

func NewCommentRepository(store docstore.Store) CommentRepository {
	return &commentRepository{store: store}
}

func commentsPath(itemID string) string {
	return docstore.Join(itemsCollection, itemID, commentsCollection)
}

func commentPath(itemID, commentID string) string {
	return docstore.Join(commentsPath(itemID), commentID)
}

func repliesPath(itemID, commentID string) string {
	return docstore.Join(commentPath(itemID, commentID), repliesCollection)
}

func replyPath(itemID, commentID, replyID string) string {
	return docstore.Join(repliesPath(itemID, commentID), replyID)
}

func sortOrders(sort model.SortMode) []docstore.Order {
	if sort == model.SortNewest {
		return []docstore.Order{{Field: fieldCreatedAt, Dir: docstore.Desc}}
	}
	return []docstore.Order{
		{Field: fieldLikes, Dir: docstore.Desc},
		{Field: fieldCreatedAt, Dir: docstore.Desc},
	}
}

// cursorDoc rebuilds the sort keys of the cursor's comment for StartAfter.
func cursorDoc(c *model.Cursor) *docstore.Document {
	if c == nil {
		return nil
	}
	return &docstore.Document{
		ID: c.CommentID,
		Fields: map[string]any{
			fieldLikes:     int64(c.LikeCount),
			fieldCreatedAt: c.CreatedAt,
		},
	}
}

func (r *commentRepository) CountComments(ctx context.Context, itemID string) (int, error) {
	n, err := r.store.Count(ctx, commentsPath(itemID))
	if err != nil {
		return 0, fmt.Errorf("count comments: %w", err)
	}
	return int(n), nil
}

// ListComments asks for one document past limit to learn whether another page exists.
func (r *commentRepository) ListComments(ctx context.Context, itemID string, sort model.SortMode, after *model.Cursor, limit int) ([]model.Comment, *model.Cursor, bool, error) {
	docs, err := r.store.Query(ctx, docstore.Query{
		Collection: commentsPath(itemID),
		OrderBy:    sortOrders(sort),
		StartAfter: cursorDoc(after),
		Limit:      limit + 1,
	})
	if err != nil {
		return nil, nil, false, fmt.Errorf("list comments: %w", err)
	}

	hasMore := len(docs) > limit
	if hasMore {
		docs = docs[:limit]
	}

	comments := make([]model.Comment, 0, len(docs))
	for _, d := range docs {
		comments = append(comments, toComment(d, itemID, ""))
	}

	var next *model.Cursor
	if len(comments) > 0 {
		next = model.CursorFor(comments[len(comments)-1])
	}
	return comments, next, hasMore, nil
}

func (r *commentRepository) GetComment(ctx context.Context, itemID, commentID string) (*model.Comment, error) {
	doc, err := r.store.Get(ctx, commentPath(itemID, commentID))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, model.ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	c := toComment(doc, itemID, "")
	return &c, nil
}

func (r *commentRepository) CreateComment(ctx context.Context, itemID, authorID, content string) (string, error) {
	id, err := r.store.Add(ctx, commentsPath(itemID), newCommentFields(authorID, content))
	if err != nil {
		return "", fmt.Errorf("insert comment: %w", err)
	}
	return id, nil
}

func (r *commentRepository) UpdateComment(ctx context.Context, itemID, commentID, content string) error {
	err := r.store.Update(ctx, commentPath(itemID, commentID), contentUpdate(content))
	if errors.Is(err, docstore.ErrNotFound) {
		return model.ErrCommentNotFound
	}
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	return nil
}

// DeleteComment deletes the replies in parallel and then the comment. The
// writes are independent: if a later step fails, earlier deletes stay done.
func (r *commentRepository) DeleteComment(ctx context.Context, itemID, commentID string) error {
	replies, err := r.store.Query(ctx, docstore.Query{Collection: repliesPath(itemID, commentID)})
	if err != nil {
		return fmt.Errorf("list replies to delete: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cascadeParallelism)
	for _, reply := range replies {
		path := reply.Path
		g.Go(func() error {
			return r.store.Delete(gctx, path)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("delete replies: %w", err)
	}

	if err := r.store.Delete(ctx, commentPath(itemID, commentID)); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}

func (r *commentRepository) CountReplies(ctx context.Context, itemID, commentID string) (int, error) {
	n, err := r.store.Count(ctx, repliesPath(itemID, commentID))
	if err != nil {
		return 0, fmt.Errorf("count replies: %w", err)
	}
	return int(n), nil
}

func (r *commentRepository) ListReplies(ctx context.Context, itemID, commentID string) ([]model.Comment, error) {
	docs, err := r.store.Query(ctx, docstore.Query{
		Collection: repliesPath(itemID, commentID),
		OrderBy:    []docstore.Order{{Field: fieldCreatedAt, Dir: docstore.Asc}},
	})
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	replies := make([]model.Comment, 0, len(docs))
	for _, d := range docs {
		replies = append(replies, toComment(d, itemID, commentID))
	}
	return replies, nil
}

func (r *commentRepository) GetReply(ctx context.Context, itemID, commentID, replyID string) (*model.Comment, error) {
	doc, err := r.store.Get(ctx, replyPath(itemID, commentID, replyID))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, model.ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reply: %w", err)
	}
	c := toComment(doc, itemID, commentID)
	return &c, nil
}

func (r *commentRepository) CreateReply(ctx context.Context, itemID, commentID, authorID, content string) (string, error) {
	id, err := r.store.Add(ctx, repliesPath(itemID, commentID), newCommentFields(authorID, content))
	if err != nil {
		return "", fmt.Errorf("insert reply: %w", err)
	}
	return id, nil
}

func (r *commentRepository) UpdateReply(ctx context.Context, itemID, commentID, replyID, content string) error {
	err := r.store.Update(ctx, replyPath(itemID, commentID, replyID), contentUpdate(content))
	if errors.Is(err, docstore.ErrNotFound) {
		return model.ErrCommentNotFound
	}
	if err != nil {
		return fmt.Errorf("update reply: %w", err)
	}
	return nil
}

func (r *commentRepository) DeleteReply(ctx context.Context, itemID, commentID, replyID string) error {
	if err := r.store.Delete(ctx, replyPath(itemID, commentID, replyID)); err != nil {
		return fmt.Errorf("delete reply: %w", err)
	}
	return nil
}

func (r *commentRepository) SetLike(ctx context.Context, itemID, commentID, replyID, userID string, liked bool) error {
	path := commentPath(itemID, commentID)
	if replyID != "" {
		path = replyPath(itemID, commentID, replyID)
	}

	fields := map[string]any{
		fieldLikes:   docstore.Increment(-1),
		fieldLikedBy: docstore.ArrayRemove{userID},
	}
	if liked {
		fields = map[string]any{
			fieldLikes:   docstore.Increment(1),
			fieldLikedBy: docstore.ArrayUnion{userID},
		}
	}

	err := r.store.Update(ctx, path, fields)
	if errors.Is(err, docstore.ErrNotFound) {
		return model.ErrCommentNotFound
	}
	if err != nil {
		return fmt.Errorf("set like: %w", err)
	}
	return nil
}

func newCommentFields(authorID, content string) map[string]any {
	return map[string]any{
		fieldUserID:    authorID,
		fieldContent:   content,
		fieldLikes:     0,
		fieldLikedBy:   []string{},
		fieldCreatedAt: docstore.ServerTimestamp,
	}
}

func contentUpdate(content string) map[string]any {
	return map[string]any{
		fieldContent:   content,
		fieldUpdatedAt: docstore.ServerTimestamp,
	}
}

func toComment(d docstore.Document, itemID, parentID string) model.Comment {
	c := model.Comment{
		ID:       d.ID,
		ItemID:   itemID,
		ParentID: parentID,
		LikedBy:  []string{},
	}
	c.AuthorID, _ = d.Fields[fieldUserID].(string)
	c.Content, _ = d.Fields[fieldContent].(string)
	switch n := d.Fields[fieldLikes].(type) {
	case int64:
		c.LikeCount = int(n)
	case float64:
		c.LikeCount = int(n)
	}
	if liked, ok := d.Fields[fieldLikedBy].([]any); ok {
		for _, v := range liked {
			if s, ok := v.(string); ok {
				c.LikedBy = append(c.LikedBy, s)
			}
		}
	}
	c.CreatedAt, _ = d.Fields[fieldCreatedAt].(time.Time)
	if t, ok := d.Fields[fieldUpdatedAt].(time.Time); ok {
		c.UpdatedAt = &t
	}
	return c
}
