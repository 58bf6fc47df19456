package models

import (
	"time"

	"gorm.io/gorm"
)

// NotificationRecipient is the fan-out row: one per (notification, recipient)
// pair, created in the same transaction as the notification. It doubles as
// the recipient's inbox entry.
type NotificationRecipient struct {
	gorm.Model

	NotificationID uint   `gorm:"not null;uniqueIndex:idx_notification_recipient"`
	RecipientID    uint   `gorm:"not null;uniqueIndex:idx_notification_recipient;index"`
	Role           string `gorm:"not null"`

	IsRead bool `gorm:"default:false"`
	ReadAt *time.Time

	// Relationships
	Notification Notification `gorm:"foreignKey:NotificationID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Recipient    User         `gorm:"foreignKey:RecipientID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
