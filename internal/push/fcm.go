package push

import (
	"context"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
)

// fcmBatchLimit is the most tokens FCM accepts in one multicast request.
const fcmBatchLimit = 500

// FCMClient sends push notifications through Firebase Cloud Messaging.
//
// The app registers with FCM and receives a device token, sends it to
// POST /me/devices, and the notification worker pushes to every token of the
// recipient. FCM delivers even while the app is closed.
type FCMClient struct {
	client *messaging.Client
}

// NewFCMClient gets the messaging client of an initialized Firebase app.
func NewFCMClient(ctx context.Context, app *firebase.App) (*FCMClient, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("get messaging client: %w", err)
	}

	log.Printf("[FCM] Initialized")
	return &FCMClient{client: client}, nil
}

// Send pushes msg to FCM device tokens, batching past the multicast limit.
func (c *FCMClient) Send(ctx context.Context, tokens []string, msg Message) error {
	for start := 0; start < len(tokens); start += fcmBatchLimit {
		end := min(start+fcmBatchLimit, len(tokens))
		if err := c.sendBatch(ctx, tokens[start:end], msg); err != nil {
			return err
		}
	}
	return nil
}

func (c *FCMClient) sendBatch(ctx context.Context, tokens []string, msg Message) error {
	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
		// Android-specific configuration
		Android: &messaging.AndroidConfig{
			Priority: "high", // Ensures delivery even in battery-saving mode
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
		// iOS-specific configuration
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}

	response, err := c.client.SendEachForMulticast(ctx, message)
	if err != nil {
		return fmt.Errorf("send multicast: %w", err)
	}

	log.Printf("[FCM] Sent to %d tokens: %d success, %d failure",
		len(tokens), response.SuccessCount, response.FailureCount)
	for i, resp := range response.Responses {
		if !resp.Success {
			log.Printf("[FCM] Token %d failed: %v", i, resp.Error)
		}
	}
	return nil
}
