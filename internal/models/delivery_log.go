package models

import (
	"time"

	"gorm.io/gorm"
)

// DeliveryLog is the current delivery status cell for one
// (notification, recipient, channel) triple. Retries mutate the row in
// place; RetryCount doubles as the version for conditional updates.
type DeliveryLog struct {
	gorm.Model

	NotificationID uint   `gorm:"not null;uniqueIndex:idx_delivery_cell;index"`
	RecipientID    uint   `gorm:"not null;uniqueIndex:idx_delivery_cell"`
	Channel        string `gorm:"not null;uniqueIndex:idx_delivery_cell"` // "websocket", "email", "in_app", "push"
	Status         string `gorm:"not null;index"`                        // "pending", "sent", "delivered", "failed", "bounced"

	SentAt       *time.Time
	DeliveredAt  *time.Time
	FailedAt     *time.Time
	ErrorMessage string `gorm:"size:500"`
	RetryCount   int    `gorm:"not null;default:0"`

	// Relationships
	Notification Notification `gorm:"foreignKey:NotificationID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Recipient    User         `gorm:"foreignKey:RecipientID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
