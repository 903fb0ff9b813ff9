// Package push delivers notifications to users' devices through FCM or Expo.
package push

import (
	"context"
	"errors"
	"fmt"

	"recipeshare/internal/model"
)

// Message is one push notification. Data is delivered to the app untouched.
type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

// Sender delivers a message to a set of device tokens of one provider.
type Sender interface {
	Send(ctx context.Context, tokens []string, msg Message) error
}

// Dispatcher splits device tokens between Expo and FCM. Either sender may be
// nil; tokens for a missing sender are skipped.
type Dispatcher struct {
	fcm  Sender
	expo Sender
}

func NewDispatcher(fcm, expo Sender) *Dispatcher {
	return &Dispatcher{fcm: fcm, expo: expo}
}

// Send pushes msg to every device, grouped by provider.
func (d *Dispatcher) Send(ctx context.Context, devices []model.DeviceToken, msg Message) error {
	var fcmTokens, expoTokens []string
	for _, dev := range devices {
		if dev.IsExpo() {
			expoTokens = append(expoTokens, dev.Token)
		} else {
			fcmTokens = append(fcmTokens, dev.Token)
		}
	}

	var errs []error
	if d.fcm != nil && len(fcmTokens) > 0 {
		if err := d.fcm.Send(ctx, fcmTokens, msg); err != nil {
			errs = append(errs, fmt.Errorf("fcm: %w", err))
		}
	}
	if d.expo != nil && len(expoTokens) > 0 {
		if err := d.expo.Send(ctx, expoTokens, msg); err != nil {
			errs = append(errs, fmt.Errorf("expo: %w", err))
		}
	}
	return errors.Join(errs...)
}

// MessageFor builds the push for a stored notification. actorName may be "".
func MessageFor(n model.Notification, actorName string) Message {
	if actorName == "" {
		actorName = "Someone"
	}

	msg := Message{
		Data: map[string]string{
			"type":    n.Type,
			"item_id": n.ItemID,
		},
	}
	if n.CommentID != "" {
		msg.Data["comment_id"] = n.CommentID
	}
	if n.ReplyID != "" {
		msg.Data["reply_id"] = n.ReplyID
	}

	switch n.Type {
	case model.NotificationTypeComment:
		msg.Title = "New comment"
		msg.Body = actorName + " commented on your recipe"
	case model.NotificationTypeReply:
		msg.Title = "New reply"
		msg.Body = actorName + " replied to your comment"
	case model.NotificationTypeLike:
		msg.Title = "New like"
		if n.ReplyID != "" {
			msg.Body = actorName + " liked your reply"
		} else {
			msg.Body = actorName + " liked your comment"
		}
	default:
		msg.Title = "Recipeshare"
		msg.Body = actorName + " interacted with your recipe"
	}
	return msg
}
