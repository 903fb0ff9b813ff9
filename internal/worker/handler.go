package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"recipeshare/internal/model"
	"recipeshare/internal/push"
	"recipeshare/internal/queue"
)

// ItemAuthorProvider resolves who published a recipe.
type ItemAuthorProvider interface {
	AuthorID(ctx context.Context, itemID string) (string, error)
}

// CommentProvider reads the comments and replies events refer to.
// This abstracts the repository layer so workers don't depend on the store directly.
type CommentProvider interface {
	GetComment(ctx context.Context, itemID, commentID string) (*model.Comment, error)
	GetReply(ctx context.Context, itemID, commentID, replyID string) (*model.Comment, error)
}

// NotificationCreator stores a notification for its recipient.
type NotificationCreator interface {
	Create(ctx context.Context, n *model.Notification) error
}

// DeviceProvider lists the push devices of a user.
type DeviceProvider interface {
	List(ctx context.Context, userID string) ([]model.DeviceToken, error)
}

// NameProvider resolves display names for push texts.
type NameProvider interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// PushSender delivers a push message to a user's devices.
type PushSender interface {
	Send(ctx context.Context, devices []model.DeviceToken, msg push.Message) error
}

// Handler turns comment events into notifications.
type Handler struct {
	items    ItemAuthorProvider
	comments CommentProvider
	notifs   NotificationCreator

	devices DeviceProvider
	names   NameProvider
	pusher  PushSender
}

// NewHandler creates a new event handler.
func NewHandler(items ItemAuthorProvider, comments CommentProvider, notifs NotificationCreator) *Handler {
	return &Handler{
		items:    items,
		comments: comments,
		notifs:   notifs,
	}
}

// WithPush makes the handler push every stored notification to the
// recipient's devices. names may be nil.
func (h *Handler) WithPush(devices DeviceProvider, names NameProvider, pusher PushSender) *Handler {
	h.devices = devices
	h.names = names
	h.pusher = pusher
	return h
}

// HandleEvent routes an event to the appropriate handler based on type.
func (h *Handler) HandleEvent(ctx context.Context, event queue.CommentEvent) error {
	startTime := time.Now()
	var err error

	switch event.Type {
	case queue.EventCommentCreated:
		err = h.handleCommentCreated(ctx, event)
	case queue.EventReplyCreated:
		err = h.handleReplyCreated(ctx, event)
	case queue.EventCommentLiked:
		err = h.handleCommentLiked(ctx, event)
	case queue.EventCommentDeleted:
		// nothing to notify
	default:
		log.Printf("[Worker] Unknown event type: %s", event.Type)
		return fmt.Errorf("unknown event type: %s", event.Type)
	}

	if err != nil {
		log.Printf("[Worker] HandleEvent FAILED: type=%s duration=%v err=%v",
			event.Type, time.Since(startTime), err)
		return err
	}

	log.Printf("[Worker] HandleEvent OK: type=%s duration=%v", event.Type, time.Since(startTime))
	return nil
}

// handleCommentCreated notifies the recipe author of a new comment.
func (h *Handler) handleCommentCreated(ctx context.Context, event queue.CommentEvent) error {
	log.Printf("[Worker] CommentCreated: item=%s comment=%s actor=%s", event.ItemID, event.CommentID, event.ActorID)

	recipient, err := h.items.AuthorID(ctx, event.ItemID)
	if errors.Is(err, model.ErrItemNotFound) {
		log.Printf("[Worker] CommentCreated: item=%s is gone, skipping", event.ItemID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get item author: %w", err)
	}
	return h.notify(ctx, recipient, model.NotificationTypeComment, event)
}

// handleReplyCreated notifies the author of the parent comment.
func (h *Handler) handleReplyCreated(ctx context.Context, event queue.CommentEvent) error {
	log.Printf("[Worker] ReplyCreated: item=%s comment=%s reply=%s actor=%s",
		event.ItemID, event.CommentID, event.ReplyID, event.ActorID)

	parent, err := h.comments.GetComment(ctx, event.ItemID, event.CommentID)
	if errors.Is(err, model.ErrCommentNotFound) {
		log.Printf("[Worker] ReplyCreated: comment=%s is gone, skipping", event.CommentID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get parent comment: %w", err)
	}
	return h.notify(ctx, parent.AuthorID, model.NotificationTypeReply, event)
}

// handleCommentLiked notifies the author of the liked comment or reply.
func (h *Handler) handleCommentLiked(ctx context.Context, event queue.CommentEvent) error {
	log.Printf("[Worker] CommentLiked: item=%s comment=%s reply=%s actor=%s",
		event.ItemID, event.CommentID, event.ReplyID, event.ActorID)

	var liked *model.Comment
	var err error
	if event.ReplyID != "" {
		liked, err = h.comments.GetReply(ctx, event.ItemID, event.CommentID, event.ReplyID)
	} else {
		liked, err = h.comments.GetComment(ctx, event.ItemID, event.CommentID)
	}
	if errors.Is(err, model.ErrCommentNotFound) {
		log.Printf("[Worker] CommentLiked: target is gone, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("get liked comment: %w", err)
	}
	return h.notify(ctx, liked.AuthorID, model.NotificationTypeLike, event)
}

// notify stores a notification unless the recipient is unknown or is the actor.
func (h *Handler) notify(ctx context.Context, recipient, notifType string, event queue.CommentEvent) error {
	if recipient == "" || recipient == event.ActorID {
		return nil
	}

	n := &model.Notification{
		UserID:    recipient,
		ActorID:   event.ActorID,
		Type:      notifType,
		ItemID:    event.ItemID,
		CommentID: event.CommentID,
		ReplyID:   event.ReplyID,
	}
	if err := h.notifs.Create(ctx, n); err != nil {
		return fmt.Errorf("create %s notification: %w", notifType, err)
	}

	log.Printf("[Worker] Notification created: type=%s recipient=%s id=%s", notifType, recipient, n.ID)
	h.pushNotification(ctx, *n)
	return nil
}

// pushNotification delivers n to the recipient's devices. Failures are logged only: the
// notification is already stored.
func (h *Handler) pushNotification(ctx context.Context, n model.Notification) {
	if h.pusher == nil || h.devices == nil {
		return
	}

	devices, err := h.devices.List(ctx, n.UserID)
	if err != nil {
		log.Printf("[Worker] Push FAILED: recipient=%s err=%v", n.UserID, err)
		return
	}
	if len(devices) == 0 {
		return
	}

	var actorName string
	if h.names != nil {
		if actorName, err = h.names.DisplayName(ctx, n.ActorID); err != nil {
			log.Printf("[Worker] Push actor name lookup FAILED: actor=%s err=%v", n.ActorID, err)
		}
	}

	if err := h.pusher.Send(ctx, devices, push.MessageFor(n, actorName)); err != nil {
		log.Printf("[Worker] Push FAILED: recipient=%s devices=%d err=%v", n.UserID, len(devices), err)
		return
	}
	log.Printf("[Worker] Push OK: recipient=%s devices=%d", n.UserID, len(devices))
}
