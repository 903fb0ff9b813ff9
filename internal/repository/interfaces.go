package repository

import (
	"context"

	"recipeshare/internal/model"
)

type CommentRepository interface {
	// CountComments returns the item's total comment count (server-side aggregate).
	CountComments(ctx context.Context, itemID string) (int, error)
	// ListComments returns up to limit comments strictly after the cursor in the
	// given sort order, the cursor of the last one and whether more remain.
	ListComments(ctx context.Context, itemID string, sort model.SortMode, after *model.Cursor, limit int) ([]model.Comment, *model.Cursor, bool, error)
	GetComment(ctx context.Context, itemID, commentID string) (*model.Comment, error)
	CreateComment(ctx context.Context, itemID, authorID, content string) (string, error)
	UpdateComment(ctx context.Context, itemID, commentID, content string) error
	// DeleteComment removes every reply of the comment, then the comment itself.
	DeleteComment(ctx context.Context, itemID, commentID string) error

	CountReplies(ctx context.Context, itemID, commentID string) (int, error)
	// ListReplies returns all replies of a comment, oldest first.
	ListReplies(ctx context.Context, itemID, commentID string) ([]model.Comment, error)
	GetReply(ctx context.Context, itemID, commentID, replyID string) (*model.Comment, error)
	CreateReply(ctx context.Context, itemID, commentID, authorID, content string) (string, error)
	UpdateReply(ctx context.Context, itemID, commentID, replyID, content string) error
	DeleteReply(ctx context.Context, itemID, commentID, replyID string) error

	// SetLike adds or removes userID from the liking set of a comment, or of a
	// reply when replyID is set, and moves the like count with it.
	SetLike(ctx context.Context, itemID, commentID, replyID, userID string, liked bool) error
}

type ProfileRepository interface {
	// DisplayName returns the user's display name, or "" when the profile or
	// the name is missing.
	DisplayName(ctx context.Context, userID string) (string, error)
}

type ItemRepository interface {
	AuthorID(ctx context.Context, itemID string) (string, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	// List returns the newest notifications of a user and how many of them are unread.
	List(ctx context.Context, userID string, limit int) ([]model.Notification, int, error)
	// MarkAllAsRead marks the listed window of notifications as read.
	MarkAllAsRead(ctx context.Context, userID string, limit int) error
}

type DeviceTokenRepository interface {
	Register(ctx context.Context, userID, token, platform string) error
	Remove(ctx context.Context, userID, token string) error
	List(ctx context.Context, userID string) ([]model.DeviceToken, error)
}
