package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// DefaultExpoURL is Expo's push endpoint.
const DefaultExpoURL = "https://exp.host/--/api/v2/push/send"

// ExpoClient sends push notifications through Expo's Push API, which needs no
// credentials and delivers to both iOS and Android.
type ExpoClient struct {
	url        string
	httpClient *http.Client
}

// expoMessage is the payload for Expo's Push API.
type expoMessage struct {
	To       []string          `json:"to"`
	Title    string            `json:"title,omitempty"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Sound    string            `json:"sound,omitempty"`
	Priority string            `json:"priority,omitempty"`
}

type expoResponse struct {
	Data []expoTicket `json:"data"`
}

type expoTicket struct {
	Status  string `json:"status"` // "ok" or "error"
	ID      string `json:"id"`
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"` // "DeviceNotRegistered", "MessageTooBig", etc.
	} `json:"details,omitempty"`
}

// NewExpoClient creates an Expo client posting to url, DefaultExpoURL when empty.
func NewExpoClient(url string) *ExpoClient {
	if url == "" {
		url = DefaultExpoURL
	}
	return &ExpoClient{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Send pushes msg to Expo push tokens.
func (c *ExpoClient) Send(ctx context.Context, tokens []string, msg Message) error {
	if len(tokens) == 0 {
		return nil
	}

	payload, err := json.Marshal(expoMessage{
		To:       tokens,
		Title:    msg.Title,
		Body:     msg.Body,
		Data:     msg.Data,
		Sound:    "default",
		Priority: "high",
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("expo api error: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	var pushResp expoResponse
	if err := json.Unmarshal(respBody, &pushResp); err != nil {
		// the push was accepted
		log.Printf("[ExpoPush] Failed to parse response: %v", err)
		return nil
	}

	failCount := 0
	for i, ticket := range pushResp.Data {
		if ticket.Status != "ok" {
			failCount++
			log.Printf("[ExpoPush] Token %d failed: %s (error: %s)", i, ticket.Message, ticket.Details.Error)
		}
	}
	log.Printf("[ExpoPush] Sent to %d tokens: %d success, %d failed",
		len(tokens), len(pushResp.Data)-failCount, failCount)
	return nil
}
