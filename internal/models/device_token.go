package models

import "gorm.io/gorm"

type DeviceToken struct {
	gorm.Model

	UserID   uint   `gorm:"not null;index"`
	Token    string `gorm:"uniqueIndex;not null"`
	Platform string `gorm:"not null"` // "android", "ios", "web"
	IsActive bool   `gorm:"default:true"`

	// Relationships
	User User `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
