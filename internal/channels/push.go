package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/schoolbell-dev/schoolbell/internal/logger"
	"github.com/schoolbell-dev/schoolbell/internal/models"
	"github.com/schoolbell-dev/schoolbell/internal/types"
	"gorm.io/gorm"
)

const fcmEndpoint = "https://fcm.googleapis.com/fcm/send"

type fcmMessage struct {
	RegistrationIDs []string        `json:"registration_ids"`
	Notification    fcmNotification `json:"notification"`
	Data            map[string]any  `json:"data,omitempty"`
	Priority        string          `json:"priority"`
	TimeToLive      int             `json:"time_to_live,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Sound string `json:"sound,omitempty"`
}

type fcmResponse struct {
	Success int         `json:"success"`
	Failure int         `json:"failure"`
	Results []fcmResult `json:"results"`
}

type fcmResult struct {
	MessageID      string `json:"message_id,omitempty"`
	RegistrationID string `json:"registration_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

type PushChannel struct {
	db         *gorm.DB
	serverKey  string
	httpClient *http.Client
	endpoint   string
}

func NewPushChannel(db *gorm.DB, serverKey string) *PushChannel {
	return &PushChannel{
		db:         db,
		serverKey:  serverKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		endpoint:   fcmEndpoint,
	}
}

func (c *PushChannel) Name() string {
	return types.ChannelPush
}

func (c *PushChannel) Send(ctx context.Context, msg Message) error {
	if c.serverKey == "" {
		return fmt.Errorf("FCM server key is not configured")
	}

	var tokens []string
	err := c.db.WithContext(ctx).
		Model(&models.DeviceToken{}).
		Where("user_id = ? AND is_active = ?", msg.Recipient.ID, true).
		Pluck("token", &tokens).Error
	if err != nil {
		return fmt.Errorf("failed to load device tokens: %w", err)
	}

	if len(tokens) == 0 {
		return fmt.Errorf("no active device tokens for user %d", msg.Recipient.ID)
	}

	payload := fcmMessage{
		RegistrationIDs: tokens,
		Notification: fcmNotification{
			Title: msg.Title,
			Body:  msg.Content,
			Sound: "default",
		},
		Data: map[string]any{
			"notification_id": msg.NotificationID,
			"category":        msg.Category,
			"priority":        msg.Priority,
		},
		Priority:   "high",
		TimeToLive: 3600,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal FCM payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create FCM request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+c.serverKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send FCM request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("FCM request failed with status %d", resp.StatusCode)
	}

	var fcmResp fcmResponse
	if err := json.NewDecoder(resp.Body).Decode(&fcmResp); err != nil {
		return fmt.Errorf("failed to decode FCM response: %w", err)
	}

	c.deactivateDeadTokens(ctx, fcmResp, tokens)

	if fcmResp.Success == 0 {
		return fmt.Errorf("FCM rejected all %d tokens", len(tokens))
	}

	return nil
}

// deactivateDeadTokens marks tokens FCM reports as gone so future sends
// skip them.
func (c *PushChannel) deactivateDeadTokens(ctx context.Context, resp fcmResponse, tokens []string) {
	for i, result := range resp.Results {
		if i >= len(tokens) {
			break
		}
		if result.Error == "NotRegistered" || result.Error == "InvalidRegistration" {
			err := c.db.WithContext(ctx).
				Model(&models.DeviceToken{}).
				Where("token = ?", tokens[i]).
				Update("is_active", false).Error
			if err != nil {
				logger.Log.Warnf("Failed to deactivate dead device token: %v", err)
			}
		}
	}
}
