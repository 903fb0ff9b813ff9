package repository

import (
	"context"
	"fmt"
	"time"

	"recipeshare/internal/docstore"
	"recipeshare/internal/model"
)

const notificationsCollection = "notifications"

type notificationRepository struct {
	store docstore.Store
}

func NewNotificationRepository(store docstore.Store) NotificationRepository {
	return &notificationRepository{store: store}
}

func notificationsPath(userID string) string {
	return docstore.Join(usersCollection, userID, notificationsCollection)
}

// Create inserts a new notification.
func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	fields := map[string]any{
		"type":      n.Type,
		"actorId":   n.ActorID,
		"itemId":    n.ItemID,
		"commentId": n.CommentID,
		"replyId":   n.ReplyID,
		"read":      false,
		"createdAt": docstore.ServerTimestamp,
	}
	id, err := r.store.Add(ctx, notificationsPath(n.UserID), fields)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	n.ID = id
	return nil
}

// List returns the newest notifications, unread count taken over the same window.
func (r *notificationRepository) List(ctx context.Context, userID string, limit int) ([]model.Notification, int, error) {
	docs, err := r.store.Query(ctx, docstore.Query{
		Collection: notificationsPath(userID),
		OrderBy:    []docstore.Order{{Field: "createdAt", Dir: docstore.Desc}},
		Limit:      limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}

	notifications := make([]model.Notification, 0, len(docs))
	unread := 0
	for _, d := range docs {
		n := model.Notification{ID: d.ID, UserID: userID}
		n.Type, _ = d.Fields["type"].(string)
		n.ActorID, _ = d.Fields["actorId"].(string)
		n.ItemID, _ = d.Fields["itemId"].(string)
		n.CommentID, _ = d.Fields["commentId"].(string)
		n.ReplyID, _ = d.Fields["replyId"].(string)
		n.IsRead, _ = d.Fields["read"].(bool)
		n.CreatedAt, _ = d.Fields["createdAt"].(time.Time)
		if !n.IsRead {
			unread++
		}
		notifications = append(notifications, n)
	}
	return notifications, unread, nil
}

func (r *notificationRepository) MarkAllAsRead(ctx context.Context, userID string, limit int) error {
	notifications, _, err := r.List(ctx, userID, limit)
	if err != nil {
		return err
	}
	for _, n := range notifications {
		if n.IsRead {
			continue
		}
		err := r.store.Update(ctx, docstore.Join(notificationsPath(userID), n.ID), map[string]any{"read": true})
		if err != nil {
			return fmt.Errorf("mark notification read: %w", err)
		}
	}
	return nil
}
