package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schoolbell-dev/schoolbell/internal/channels"
	"github.com/schoolbell-dev/schoolbell/internal/logger"
	"github.com/schoolbell-dev/schoolbell/internal/models"
	"github.com/schoolbell-dev/schoolbell/internal/types"
	"github.com/schoolbell-dev/schoolbell/internal/ws"
	"gorm.io/gorm"
)

// ErrorMessageLimit caps the stored error text on a delivery log row.
const ErrorMessageLimit = 500

// ChannelsFor is the authoritative channel-selection rule: emergencies go
// wide, announcements skip the in-app-only path, everything else stays
// in-app.
func ChannelsFor(category, priority string) []string {
	if category == types.CategoryEmergency || priority == types.PriorityEmergency {
		return []string{types.ChannelWebSocket, types.ChannelEmail, types.ChannelInApp}
	}
	if category == types.CategoryAnnouncement {
		return []string{types.ChannelWebSocket, types.ChannelEmail}
	}
	return []string{types.ChannelInApp}
}

// successStatus maps a channel to the status a successful attempt records:
// channels that confirm receipt record delivered, store-and-forward ones
// record sent.
func successStatus(channel string) string {
	switch channel {
	case types.ChannelInApp, types.ChannelWebSocket:
		return types.StatusDelivered
	default:
		return types.StatusSent
	}
}

// Dispatcher attempts delivery for every (recipient, channel) pair of a
// notification. It runs outside the creation request; its errors are
// recorded on the log rows and never propagate to the caller.
type Dispatcher struct {
	db       *gorm.DB
	registry channels.Registry
	hub      *ws.Hub // nil disables admin live events
}

func NewDispatcher(db *gorm.DB, registry channels.Registry, hub *ws.Hub) *Dispatcher {
	return &Dispatcher{db: db, registry: registry, hub: hub}
}

// Dispatch writes one pending log row per (recipient, channel) and then
// attempts each delivery, updating the row with the outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, notification *models.Notification) {
	var recipients []models.NotificationRecipient
	err := d.db.WithContext(ctx).
		Where("notification_id = ?", notification.ID).
		Find(&recipients).Error
	if err != nil {
		logger.Log.Errorf("Dispatch: failed to load recipients for notification %d: %v", notification.ID, err)
		return
	}

	channelNames := ChannelsFor(notification.Category, notification.Priority)

	logs := make([]models.DeliveryLog, 0, len(recipients)*len(channelNames))
	for _, recipient := range recipients {
		for _, channel := range channelNames {
			logs = append(logs, models.DeliveryLog{
				NotificationID: notification.ID,
				RecipientID:    recipient.RecipientID,
				Channel:        channel,
				Status:         types.StatusPending,
			})
		}
	}

	if len(logs) == 0 {
		return
	}

	if err := d.db.WithContext(ctx).Create(&logs).Error; err != nil {
		logger.Log.Errorf("Dispatch: failed to create delivery logs for notification %d: %v", notification.ID, err)
		return
	}

	for i := range logs {
		d.attempt(ctx, notification, &logs[i])
	}
}

// attempt runs one delivery and records the outcome on the log row.
func (d *Dispatcher) attempt(ctx context.Context, notification *models.Notification, log *models.DeliveryLog) {
	var recipient models.User
	if err := d.db.WithContext(ctx).First(&recipient, log.RecipientID).Error; err != nil {
		d.markFailed(ctx, log, fmt.Errorf("recipient %d not found", log.RecipientID))
		return
	}

	channel, ok := d.registry[log.Channel]
	if !ok {
		d.markFailed(ctx, log, fmt.Errorf("channel %q is not registered", log.Channel))
		return
	}

	err := channel.Send(ctx, channels.Message{
		NotificationID: notification.ID,
		Recipient:      recipient,
		Title:          notification.Title,
		Content:        notification.Content,
		Category:       notification.Category,
		Priority:       notification.Priority,
	})

	if err != nil {
		logger.Log.Warnf("Delivery failed: notification=%d recipient=%d channel=%s: %v",
			notification.ID, log.RecipientID, log.Channel, err)
		d.markFailed(ctx, log, err)
		return
	}

	d.markSucceeded(ctx, log)
}

func (d *Dispatcher) markSucceeded(ctx context.Context, log *models.DeliveryLog) {
	now := time.Now()
	status := successStatus(log.Channel)

	updates := map[string]interface{}{
		"status":        status,
		"sent_at":       &now,
		"error_message": "",
	}
	if status == types.StatusDelivered {
		updates["delivered_at"] = &now
	}

	if err := d.db.WithContext(ctx).Model(log).Updates(updates).Error; err != nil {
		logger.Log.Errorf("Failed to update delivery log %d: %v", log.ID, err)
		return
	}

	log.Status = status
	d.publishTransition(log)
}

func (d *Dispatcher) markFailed(ctx context.Context, log *models.DeliveryLog, cause error) {
	now := time.Now()
	updates := map[string]interface{}{
		"status":        types.StatusFailed,
		"failed_at":     &now,
		"error_message": Truncate(cause.Error(), ErrorMessageLimit),
	}

	if err := d.db.WithContext(ctx).Model(log).Updates(updates).Error; err != nil {
		logger.Log.Errorf("Failed to update delivery log %d: %v", log.ID, err)
		return
	}

	log.Status = types.StatusFailed
	d.publishTransition(log)
}

// publishTransition feeds the admin live delivery view.
func (d *Dispatcher) publishTransition(log *models.DeliveryLog) {
	if d.hub == nil {
		return
	}
	d.hub.BroadcastToAdmins(map[string]interface{}{
		"type":            "delivery_log",
		"notification_id": log.NotificationID,
		"recipient_id":    log.RecipientID,
		"channel":         log.Channel,
		"status":          log.Status,
		"retry_count":     log.RetryCount,
	})
}

// Resend is the operator path for exhausted or misbehaving deliveries: it
// resets the retry budget of the (recipient, channel) cell and re-attempts
// immediately over any channel, including push.
func (d *Dispatcher) Resend(ctx context.Context, notificationID, recipientID uint, channelName string) error {
	if !types.ValidChannel(channelName) {
		return validationErrorf("invalid channel %q", channelName)
	}

	var notification models.Notification
	if err := d.db.WithContext(ctx).First(&notification, notificationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get notification: %w", err)
	}

	var count int64
	err := d.db.WithContext(ctx).
		Model(&models.NotificationRecipient{}).
		Where("notification_id = ? AND recipient_id = ?", notificationID, recipientID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("failed to check recipient: %w", err)
	}
	if count == 0 {
		return validationErrorf("user %d is not a recipient of notification %d", recipientID, notificationID)
	}

	log := models.DeliveryLog{
		NotificationID: notificationID,
		RecipientID:    recipientID,
		Channel:        channelName,
		Status:         types.StatusPending,
	}
	err = d.db.WithContext(ctx).
		Where(models.DeliveryLog{
			NotificationID: notificationID,
			RecipientID:    recipientID,
			Channel:        channelName,
		}).
		FirstOrCreate(&log).Error
	if err != nil {
		return fmt.Errorf("failed to load delivery log: %w", err)
	}

	err = d.db.WithContext(ctx).Model(&log).Updates(map[string]interface{}{
		"status":        types.StatusPending,
		"retry_count":   0,
		"error_message": "",
		"sent_at":       nil,
		"delivered_at":  nil,
		"failed_at":     nil,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to reset delivery log: %w", err)
	}
	log.RetryCount = 0

	d.attempt(ctx, &notification, &log)
	return nil
}

// Truncate bounds a string for storage in the error column.
func Truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
