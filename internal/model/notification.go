package model

import (
	"time"
)

// Notification types
const (
	NotificationTypeComment = "comment" // someone commented on your recipe
	NotificationTypeReply   = "reply"   // someone replied to your comment
	NotificationTypeLike    = "like"    // someone liked your comment or reply
)

// Notification is one entry of a user's notification feed.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`        // Recipient
	ActorID   string    `json:"actor_id"` // Who triggered it
	Type      string    `json:"type"`
	ItemID    string    `json:"item_id"`
	CommentID string    `json:"comment_id,omitempty"`
	ReplyID   string    `json:"reply_id,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationListResponse is the notification list response.
type NotificationListResponse struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
}
