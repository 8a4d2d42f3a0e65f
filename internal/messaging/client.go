// Package messaging talks to the support-chat service. It is the only
// collaborator with an enforced request timeout.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

type Message struct {
	SenderID  string `json:"senderId"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

type Choice struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Payload is one outbound support-chat message, optionally with a choice
// menu attached.
type Payload struct {
	Timestamp int64    `json:"timestamp"`
	Text      string   `json:"text"`
	SenderID  string   `json:"senderId"`
	Choices   []Choice `json:"choices,omitempty"`
}

type Client struct {
	baseURL       string
	channelPrefix string
	http          *http.Client
}

func New(baseURL, channelPrefix string, timeout time.Duration) *Client {
	return &Client{
		baseURL:       baseURL,
		channelPrefix: channelPrefix,
		http:          &http.Client{Timeout: timeout},
	}
}

// ChannelFor derives the user's support-channel id. The mapping is fixed so
// the worker and the front end always land in the same channel.
func (c *Client) ChannelFor(userID string) string {
	return c.channelPrefix + userID
}

type messagesResponse struct {
	Data []Message `json:"data"`
}

// GetRecentMessages returns the channel's most recent message, at most one:
// callers only need to know whether the user has spoken. The response's data
// field is the source of truth.
func (c *Client) GetRecentMessages(ctx context.Context, channelID, userID string) ([]Message, error) {
	u := fmt.Sprintf("%s/channels/%s/messages?limit=1&userId=%s",
		c.baseURL, url.PathEscape(channelID), url.QueryEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build messages request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("messages request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("messages request returned %d: %s", resp.StatusCode, string(raw))
	}

	var out messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode messages response: %w", err)
	}
	if len(out.Data) > 1 {
		out.Data = out.Data[:1]
	}
	return out.Data, nil
}

func (c *Client) Send(ctx context.Context, channelID string, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	u := fmt.Sprintf("%s/channels/%s/messages", c.baseURL, url.PathEscape(channelID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("send returned %d: %s", resp.StatusCode, string(raw))
	}
	return nil
}
