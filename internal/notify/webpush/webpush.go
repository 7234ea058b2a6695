package webpush

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/charmbracelet/log"
	"github.com/jon4hz/showtrack/internal/config"
	"github.com/jon4hz/showtrack/internal/notify"
)

var _ notify.Notifier = (*Client)(nil)

// Config holds the configuration for webpush notifications.
type Config = config.WebPushConfig

// Client represents a webpush notification client.
type Client struct {
	config        *Config
	httpClient    *http.Client
	subscriptions map[uint]map[string]*Subscription // accountID -> subscriptionID -> subscription
	mu            sync.RWMutex
}

// Subscription represents a push subscription.
type Subscription struct {
	ID        string `json:"id"`
	AccountID uint   `json:"account_id"`
	Endpoint  string `json:"endpoint"`
	Keys      struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
	CreatedAt time.Time `json:"created_at"`
	UserAgent string    `json:"user_agent,omitempty"`
}

// NotificationPayload represents the payload sent to the browser.
type NotificationPayload struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Icon  string         `json:"icon,omitempty"`
	Data  map[string]any `json:"data"`
}

// NewClient creates a new webpush client.
func NewClient(config *Config) *Client {
	return &Client{
		config:        config,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		subscriptions: make(map[uint]map[string]*Subscription),
	}
}

// GenerateVAPIDKeys generates a new VAPID key pair.
func GenerateVAPIDKeys() (privateKey, publicKey string, err error) {
	return webpush.GenerateVAPIDKeys()
}

// GetPublicKey returns the VAPID public key for client subscription.
func (c *Client) GetPublicKey() string {
	return c.config.PublicKey
}

// Subscribe adds a push subscription for an account. Subscribing the same endpoint twice
// replaces the earlier subscription.
func (c *Client) Subscribe(accountID uint, subscription *Subscription) error {
	if !c.config.Enabled {
		return fmt.Errorf("webpush notifications are disabled")
	}

	hash := sha256.Sum256([]byte(subscription.Endpoint))
	subscriptionID := hex.EncodeToString(hash[:])[:16]

	subscription.ID = subscriptionID
	subscription.AccountID = accountID
	subscription.CreatedAt = time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscriptions[accountID] == nil {
		c.subscriptions[accountID] = make(map[string]*Subscription)
	}
	c.subscriptions[accountID][subscriptionID] = subscription

	log.Info("added push subscription", "subscription", subscriptionID, "accountID", accountID)
	return nil
}

// UnsubscribeByID removes a specific push subscription of an account.
func (c *Client) UnsubscribeByID(accountID uint, subscriptionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if subs, exists := c.subscriptions[accountID]; exists {
		delete(subs, subscriptionID)
		if len(subs) == 0 {
			delete(c.subscriptions, accountID)
		}
	}
}

// GetSubscriptionCount returns the number of subscriptions of an account.
func (c *Client) GetSubscriptionCount(accountID uint) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subscriptions[accountID])
}

// SendToAccount pushes a notification for the event to all subscriptions of the account.
// Push messages are size limited, so only the payload summary is sent.
func (c *Client) SendToAccount(ctx context.Context, accountID uint, event string, payload any) bool {
	if !c.config.Enabled {
		return false
	}

	body := event
	if s, ok := payload.(notify.Summarizer); ok {
		body = s.Summary()
	}
	err := c.SendNotification(ctx, accountID, &NotificationPayload{
		Title: "showtrack",
		Body:  body,
		Data: map[string]any{
			"event":     event,
			"timestamp": time.Now().Unix(),
		},
	})
	if err != nil {
		log.Debug("push notification not delivered", "accountID", accountID, "event", event, "error", err)
		return false
	}
	return true
}

// SendNotification sends a push notification to all subscriptions of an account. Subscriptions
// the push service reports as gone are removed.
func (c *Client) SendNotification(ctx context.Context, accountID uint, payload *NotificationPayload) error {
	c.mu.RLock()
	subs := make([]*Subscription, 0, len(c.subscriptions[accountID]))
	for _, s := range c.subscriptions[accountID] {
		subs = append(subs, s)
	}
	c.mu.RUnlock()

	if len(subs) == 0 {
		return fmt.Errorf("no push subscriptions found for account %d", accountID)
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification payload: %w", err)
	}

	var lastError error
	successCount := 0
	for _, sub := range subs {
		resp, err := webpush.SendNotificationWithContext(ctx, payloadBytes, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.Keys.P256dh,
				Auth:   sub.Keys.Auth,
			},
		}, &webpush.Options{
			HTTPClient:      c.httpClient,
			Subscriber:      c.config.VAPIDEmail,
			VAPIDPublicKey:  c.config.PublicKey,
			VAPIDPrivateKey: c.config.PrivateKey,
			TTL:             30,
			RecordSize:      3000, // higher caused issues with firefox on android
		})
		if err != nil {
			log.Error("failed to send push notification", "subscription", sub.ID, "accountID", accountID, "error", err)
			lastError = err
			continue
		}
		_ = resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			successCount++
		case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
			log.Info("removing expired push subscription", "subscription", sub.ID, "accountID", accountID)
			c.UnsubscribeByID(accountID, sub.ID)
			lastError = fmt.Errorf("subscription %s expired", sub.ID)
		default:
			lastError = fmt.Errorf("push notification failed with status %d", resp.StatusCode)
		}
	}

	if successCount > 0 {
		log.Debug("sent push notification", "accountID", accountID, "successful", successCount, "total", len(subs))
		return nil
	}
	return fmt.Errorf("failed to send push notification to any subscription of account %d: %w", accountID, lastError)
}

// ValidateConfig validates the webpush configuration.
func (c *Client) ValidateConfig() error {
	if !c.config.Enabled {
		return nil
	}
	if c.config.VAPIDEmail == "" {
		return fmt.Errorf("vapid_email is required when webpush is enabled")
	}
	if c.config.PublicKey == "" || c.config.PrivateKey == "" {
		return fmt.Errorf("both public_key and private_key are required when webpush is enabled")
	}
	if _, err := base64.RawURLEncoding.DecodeString(c.config.PublicKey); err != nil {
		return fmt.Errorf("invalid public key format: %w", err)
	}
	if _, err := base64.RawURLEncoding.DecodeString(c.config.PrivateKey); err != nil {
		return fmt.Errorf("invalid private key format: %w", err)
	}
	return nil
}
