package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/schoolbell-dev/schoolbell/internal/channels"
	"github.com/schoolbell-dev/schoolbell/internal/logger"
	"github.com/schoolbell-dev/schoolbell/internal/models"
	"github.com/schoolbell-dev/schoolbell/internal/notifications"
	"github.com/schoolbell-dev/schoolbell/internal/types"
	"github.com/schoolbell-dev/schoolbell/internal/ws"
	"gorm.io/gorm"
)

// MaxRetries is the retry ceiling per delivery log row. Rows at the
// ceiling are skipped until an operator resends them.
const MaxRetries = 3

// DefaultRetryDelay paces successive retry attempts so the sweep cannot
// saturate the outbound mail channel.
const DefaultRetryDelay = time.Second

type Result struct {
	Success bool     `json:"success"`
	Retried int      `json:"retried"`
	Skipped int      `json:"skipped"`
	Total   int      `json:"total"`
	Errors  []string `json:"errors,omitempty"`
}

// Sweeper re-attempts failed email deliveries under the retry ceiling and
// dispatches scheduled notifications that have come due. It is invoked
// both by the in-process cron schedule and by the HTTP cron endpoint.
type Sweeper struct {
	db         *gorm.DB
	email      channels.Channel
	dispatcher *notifications.Dispatcher
	hub        *ws.Hub // nil disables admin live events
	delay      time.Duration
	cronEngine *cron.Cron
}

func New(db *gorm.DB, email channels.Channel, dispatcher *notifications.Dispatcher, hub *ws.Hub) *Sweeper {
	return &Sweeper{
		db:         db,
		email:      email,
		dispatcher: dispatcher,
		hub:        hub,
		delay:      DefaultRetryDelay,
	}
}

// Start registers the sweep on the given cron spec and begins the
// schedule.
func (s *Sweeper) Start(cronSpec string) error {
	s.cronEngine = cron.New()

	_, err := s.cronEngine.AddFunc(cronSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		result, err := s.Run(ctx)
		if err != nil {
			logger.Log.Errorf("Sweep failed: %v", err)
			return
		}
		logger.Log.Infof("Sweep complete: retried=%d skipped=%d total=%d", result.Retried, result.Skipped, result.Total)
	})
	if err != nil {
		return fmt.Errorf("failed to register sweep schedule %q: %w", cronSpec, err)
	}

	s.cronEngine.Start()
	logger.Log.Infof("Retry sweeper started with schedule %q", cronSpec)
	return nil
}

func (s *Sweeper) Stop() {
	if s.cronEngine == nil {
		return
	}
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	logger.Log.Info("Retry sweeper stopped")
}

// Run performs one sweep. Each eligible row transitions to exactly one of
// {sent, failed} with its retry count incremented by one; rows at the
// ceiling are counted as skipped and never touched.
func (s *Sweeper) Run(ctx context.Context) (Result, error) {
	result := Result{Success: true}

	var exhausted int64
	err := s.db.WithContext(ctx).
		Model(&models.DeliveryLog{}).
		Where("channel = ? AND status = ? AND retry_count >= ?", types.ChannelEmail, types.StatusFailed, MaxRetries).
		Count(&exhausted).Error
	if err != nil {
		return result, fmt.Errorf("failed to count exhausted logs: %w", err)
	}
	result.Skipped = int(exhausted)

	var eligible []models.DeliveryLog
	err = s.db.WithContext(ctx).
		Where("channel = ? AND status = ? AND retry_count < ?", types.ChannelEmail, types.StatusFailed, MaxRetries).
		Find(&eligible).Error
	if err != nil {
		return result, fmt.Errorf("failed to load retryable logs: %w", err)
	}

	for i := range eligible {
		if i > 0 {
			select {
			case <-ctx.Done():
				result.Total = result.Retried + result.Skipped
				return result, ctx.Err()
			case <-time.After(s.delay):
			}
		}

		s.retry(ctx, &eligible[i], &result)
	}

	result.Total = result.Retried + result.Skipped

	if err := s.dispatchDue(ctx); err != nil {
		logger.Log.Errorf("Failed to dispatch due notifications: %v", err)
	}

	return result, nil
}

// retry re-attempts one email delivery. A lookup miss is treated exactly
// like a send failure: the row goes back to failed with the cause stored.
func (s *Sweeper) retry(ctx context.Context, log *models.DeliveryLog, result *Result) {
	sendErr := s.attemptEmail(ctx, log)

	now := time.Now()
	updates := map[string]interface{}{
		"retry_count": log.RetryCount + 1,
	}
	if sendErr == nil {
		updates["status"] = types.StatusSent
		updates["sent_at"] = &now
		updates["error_message"] = ""
	} else {
		updates["status"] = types.StatusFailed
		updates["failed_at"] = &now
		updates["error_message"] = notifications.Truncate(sendErr.Error(), notifications.ErrorMessageLimit)
	}

	// Conditional on the retry count we read: a concurrent sweep that got
	// there first wins and this attempt is discarded as skipped.
	res := s.db.WithContext(ctx).
		Model(&models.DeliveryLog{}).
		Where("id = ? AND retry_count = ?", log.ID, log.RetryCount).
		Updates(updates)
	if res.Error != nil {
		result.Success = false
		result.Errors = append(result.Errors, fmt.Sprintf("log %d: %v", log.ID, res.Error))
		return
	}
	if res.RowsAffected == 0 {
		result.Skipped++
		return
	}

	result.Retried++
	if sendErr != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("log %d: %v", log.ID, sendErr))
	}

	log.RetryCount++
	if sendErr == nil {
		log.Status = types.StatusSent
	} else {
		log.Status = types.StatusFailed
	}
	s.publishTransition(log)
}

func (s *Sweeper) attemptEmail(ctx context.Context, log *models.DeliveryLog) error {
	var notification models.Notification
	if err := s.db.WithContext(ctx).First(&notification, log.NotificationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("notification %d not found", log.NotificationID)
		}
		return fmt.Errorf("failed to load notification %d: %w", log.NotificationID, err)
	}

	var recipient models.User
	if err := s.db.WithContext(ctx).First(&recipient, log.RecipientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("recipient %d not found", log.RecipientID)
		}
		return fmt.Errorf("failed to load recipient %d: %w", log.RecipientID, err)
	}

	return s.email.Send(ctx, channels.Message{
		NotificationID: notification.ID,
		Recipient:      recipient,
		Title:          notification.Title,
		Content:        notification.Content,
		Category:       notification.Category,
		Priority:       notification.Priority,
	})
}

func (s *Sweeper) publishTransition(log *models.DeliveryLog) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastToAdmins(map[string]interface{}{
		"type":            "delivery_log",
		"notification_id": log.NotificationID,
		"recipient_id":    log.RecipientID,
		"channel":         log.Channel,
		"status":          log.Status,
		"retry_count":     log.RetryCount,
	})
}

// dispatchDue hands scheduled notifications whose time has arrived to the
// dispatcher. A notification is due when it has no delivery logs yet.
func (s *Sweeper) dispatchDue(ctx context.Context) error {
	if s.dispatcher == nil {
		return nil
	}

	var due []models.Notification
	err := s.db.WithContext(ctx).
		Where("scheduled_for IS NOT NULL AND scheduled_for <= ?", time.Now()).
		Where("id NOT IN (?)", s.db.Model(&models.DeliveryLog{}).Distinct("notification_id")).
		Find(&due).Error
	if err != nil {
		return fmt.Errorf("failed to load due notifications: %w", err)
	}

	for i := range due {
		logger.Log.Infof("Dispatching scheduled notification %d", due[i].ID)
		s.dispatcher.Dispatch(ctx, &due[i])
	}
	return nil
}
