package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification is immutable after creation; per-recipient read state lives
// on NotificationRecipient.
type Notification struct {
	gorm.Model

	SenderID uint   `gorm:"not null;index"`
	Title    string `gorm:"not null"`
	Content  string `gorm:"not null"`
	Category string `gorm:"not null;index"` // "announcement", "emergency", "reminder", "system"
	Priority string `gorm:"not null"`       // "low", "normal", "high", "emergency"

	// The targeting spec the recipients were resolved from, kept for audit.
	Target datatypes.JSON `gorm:"type:jsonb"`

	ScheduledFor *time.Time `gorm:"index"`
	ExpiresAt    *time.Time

	// Relationships
	Sender       User                    `gorm:"foreignKey:SenderID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Recipients   []NotificationRecipient `gorm:"foreignKey:NotificationID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	DeliveryLogs []DeliveryLog           `gorm:"foreignKey:NotificationID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
