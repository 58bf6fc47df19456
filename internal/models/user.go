package models

import "gorm.io/gorm"

type User struct {
	gorm.Model

	Name         string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"not null;index"` // "admin", "teacher", "parent", "student"

	// Set on student users; parents resolve to recipients through it.
	ParentID *uint `gorm:"index"`

	// Relationships
	Children         []User                  `gorm:"foreignKey:ParentID;constraint:OnUpdate:Cascade,OnDelete:SET NULL"`
	ClassMemberships []ClassMembership       `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	DeviceTokens     []DeviceToken           `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Received         []NotificationRecipient `gorm:"foreignKey:RecipientID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
