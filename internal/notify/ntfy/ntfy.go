// Package ntfy publishes events to per-account topics of a ntfy server.
package ntfy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/showtrack/internal/config"
	"github.com/jon4hz/showtrack/internal/notify"
)

var _ notify.Notifier = (*Client)(nil)

// Client represents a ntfy notification client.
type Client struct {
	serverURL   string
	topicPrefix string
	username    string
	password    string
	token       string
	httpClient  *http.Client
}

// Message represents a ntfy message.
type Message struct {
	Topic    string   `json:"topic"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Priority int      `json:"priority,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// NewClient creates a new ntfy client.
func NewClient(cfg *config.NtfyConfig) *Client {
	return &Client{
		serverURL:   cfg.ServerURL,
		topicPrefix: cfg.TopicPrefix,
		username:    cfg.Username,
		password:    cfg.Password,
		token:       cfg.Token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Topic returns the topic events of an account are published to.
func (c *Client) Topic(accountID uint) string {
	return c.topicPrefix + strconv.FormatUint(uint64(accountID), 10)
}

// SendToAccount publishes the payload summary to the account's topic. ntfy accepts messages
// without subscribers, so a successful publish counts as delivered.
func (c *Client) SendToAccount(ctx context.Context, accountID uint, event string, payload any) bool {
	text := event
	if s, ok := payload.(notify.Summarizer); ok {
		text = s.Summary()
	}

	err := c.SendMessage(ctx, Message{
		Topic:   c.Topic(accountID),
		Title:   "showtrack",
		Message: text,
		Tags:    []string{event},
	})
	if err != nil {
		log.Warn("Failed to send ntfy notification", "accountID", accountID, "event", event, "error", err)
		return false
	}
	return true
}

// SendMessage sends a message to ntfy.
func (c *Client) SendMessage(ctx context.Context, msg Message) error {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// Authentication: Token takes precedence over username/password
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	} else if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		if len(body) > 0 {
			return fmt.Errorf("ntfy server returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
		}
		return fmt.Errorf("ntfy server returned status %d", resp.StatusCode)
	}

	log.Debug("Sent ntfy notification", "topic", msg.Topic, "title", msg.Title)
	return nil
}
