package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types for the comment stream
const (
	EventCommentCreated = "comment_created"
	EventReplyCreated   = "reply_created"
	EventCommentLiked   = "comment_liked"
	EventCommentDeleted = "comment_deleted"
)

// Stream names
const (
	StreamComments = "stream:comments"
)

// Consumer group name for notification workers
const (
	ConsumerGroupNotifications = "notification_workers"
)

// CommentEvent is published after a comment write has been confirmed by the store.
type CommentEvent struct {
	Type      string `json:"type"`      // EventCommentCreated, EventReplyCreated, ...
	Timestamp int64  `json:"timestamp"` // Unix timestamp when event occurred

	ItemID    string `json:"item_id"`
	CommentID string `json:"comment_id"`
	ReplyID   string `json:"reply_id,omitempty"` // set for replies and likes on replies
	ActorID   string `json:"actor_id"`           // user who wrote, liked or deleted
}

// NewCommentCreatedEvent notifies the item's author of a new comment.
func NewCommentCreatedEvent(itemID, commentID, actorID string) CommentEvent {
	return CommentEvent{
		Type:      EventCommentCreated,
		Timestamp: time.Now().Unix(),
		ItemID:    itemID,
		CommentID: commentID,
		ActorID:   actorID,
	}
}

// NewReplyCreatedEvent notifies the parent comment's author of a new reply.
func NewReplyCreatedEvent(itemID, commentID, replyID, actorID string) CommentEvent {
	return CommentEvent{
		Type:      EventReplyCreated,
		Timestamp: time.Now().Unix(),
		ItemID:    itemID,
		CommentID: commentID,
		ReplyID:   replyID,
		ActorID:   actorID,
	}
}

// NewCommentLikedEvent notifies the liked comment's (or reply's) author.
func NewCommentLikedEvent(itemID, commentID, replyID, actorID string) CommentEvent {
	return CommentEvent{
		Type:      EventCommentLiked,
		Timestamp: time.Now().Unix(),
		ItemID:    itemID,
		CommentID: commentID,
		ReplyID:   replyID,
		ActorID:   actorID,
	}
}

// NewCommentDeletedEvent records a cascade delete of a comment, or a reply delete.
func NewCommentDeletedEvent(itemID, commentID, replyID, actorID string) CommentEvent {
	return CommentEvent{
		Type:      EventCommentDeleted,
		Timestamp: time.Now().Unix(),
		ItemID:    itemID,
		CommentID: commentID,
		ReplyID:   replyID,
		ActorID:   actorID,
	}
}

// ToMap converts the event to a map for Redis XADD.
// Redis Streams store field-value pairs, so we serialize to JSON in a "data" field.
func (e CommentEvent) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

// ParseCommentEvent parses a CommentEvent from Redis stream message values.
func ParseCommentEvent(values map[string]interface{}) (CommentEvent, error) {
	data, ok := values["data"].(string)
	if !ok {
		return CommentEvent{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event CommentEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return CommentEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}
