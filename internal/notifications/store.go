package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/schoolbell-dev/schoolbell/internal/models"
	"github.com/schoolbell-dev/schoolbell/internal/types"
	"gorm.io/gorm"
)

var (
	ErrNoRecipients = errors.New("targeting spec resolved to no recipients")
	ErrNotFound     = errors.New("notification not found")
)

// ValidationError distinguishes caller mistakes from store failures so
// handlers can map them to 400s.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationErrorf(format string, args ...interface{}) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// sanitize strips HTML tags and surrounding whitespace before persistence.
func sanitize(s string) string {
	return strings.TrimSpace(htmlTagPattern.ReplaceAllString(s, ""))
}

type CreateInput struct {
	Title        string     `json:"title"`
	Content      string     `json:"content"`
	Category     string     `json:"category"`
	Priority     string     `json:"priority"`
	Target       TargetSpec `json:"target"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Create validates and sanitizes the input, resolves recipients, and
// inserts the notification plus its fan-out rows in one transaction. An
// empty recipient set aborts the transaction, so no orphaned notification
// row can persist.
func (s *Store) Create(ctx context.Context, input CreateInput, senderID uint) (*models.Notification, error) {
	title := sanitize(input.Title)
	content := sanitize(input.Content)

	if title == "" {
		return nil, validationErrorf("title must not be empty")
	}
	if content == "" {
		return nil, validationErrorf("content must not be empty")
	}
	if !types.ValidCategory(input.Category) {
		return nil, validationErrorf("invalid category %q", input.Category)
	}
	if input.Priority == "" {
		input.Priority = types.PriorityNormal
	}
	if !types.ValidPriority(input.Priority) {
		return nil, validationErrorf("invalid priority %q", input.Priority)
	}
	if err := input.Target.Validate(); err != nil {
		return nil, validationErrorf("%v", err)
	}

	target, err := json.Marshal(input.Target)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal targeting spec: %w", err)
	}

	notification := models.Notification{
		SenderID:     senderID,
		Title:        title,
		Content:      content,
		Category:     input.Category,
		Priority:     input.Priority,
		Target:       target,
		ScheduledFor: input.ScheduledFor,
		ExpiresAt:    input.ExpiresAt,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&notification).Error; err != nil {
			return fmt.Errorf("failed to create notification: %w", err)
		}

		recipients, err := NewResolver(tx).Resolve(ctx, input.Target)
		if err != nil {
			return err
		}
		if len(recipients) == 0 {
			return ErrNoRecipients
		}

		rows := make([]models.NotificationRecipient, len(recipients))
		for i, recipient := range recipients {
			rows[i] = models.NotificationRecipient{
				NotificationID: notification.ID,
				RecipientID:    recipient.UserID,
				Role:           recipient.Role,
			}
		}

		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to create recipient rows: %w", err)
		}

		notification.Recipients = rows
		return nil
	})

	if err != nil {
		return nil, err
	}

	return &notification, nil
}

func (s *Store) ByID(ctx context.Context, id uint) (*models.Notification, error) {
	var notification models.Notification
	err := s.db.WithContext(ctx).
		Preload("Recipients").
		First(&notification, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return &notification, nil
}

type ListFilter struct {
	Category string
	Priority string
	Limit    int
	Offset   int
}

func (s *Store) List(ctx context.Context, filter ListFilter) ([]models.Notification, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC")

	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Priority != "" {
		query = query.Where("priority = ?", filter.Priority)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var list []models.Notification
	if err := query.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return list, nil
}

// Delete removes the notification; recipient and log rows go with it via
// the cascade constraints.
func (s *Store) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&models.Notification{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete notification: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// InboxEntry is the per-recipient projection consumed by inbox UIs.
type InboxEntry struct {
	NotificationID uint       `json:"notification_id"`
	Title          string     `json:"title"`
	Content        string     `json:"content"`
	Category       string     `json:"category"`
	Priority       string     `json:"priority"`
	CreatedAt      time.Time  `json:"created_at"`
	IsRead         bool       `json:"is_read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
}

func (s *Store) Inbox(ctx context.Context, userID uint, unreadOnly bool) ([]InboxEntry, error) {
	query := s.db.WithContext(ctx).
		Model(&models.NotificationRecipient{}).
		Select(`notifications.id AS notification_id, notifications.title,
			notifications.content, notifications.category, notifications.priority,
			notifications.created_at, notification_recipients.is_read,
			notification_recipients.read_at`).
		Joins("JOIN notifications ON notifications.id = notification_recipients.notification_id").
		Where("notification_recipients.recipient_id = ?", userID).
		Where("notifications.expires_at IS NULL OR notifications.expires_at > ?", time.Now()).
		Order("notifications.created_at DESC")

	if unreadOnly {
		query = query.Where("notification_recipients.is_read = ?", false)
	}

	entries := make([]InboxEntry, 0)
	if err := query.Scan(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load inbox: %w", err)
	}
	return entries, nil
}

// MarkRead marks the given notifications read for the user. IDs not
// addressed to the user are ignored. Returns the number of rows updated.
func (s *Store) MarkRead(ctx context.Context, userID uint, notificationIDs []uint) (int64, error) {
	if len(notificationIDs) == 0 {
		return 0, nil
	}

	now := time.Now()
	result := s.db.WithContext(ctx).
		Model(&models.NotificationRecipient{}).
		Where("recipient_id = ? AND notification_id IN ? AND is_read = ?", userID, notificationIDs, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": &now,
		})

	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", result.Error)
	}
	return result.RowsAffected, nil
}
