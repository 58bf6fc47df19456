package models

import "gorm.io/gorm"

type ClassMembership struct {
	gorm.Model

	UserID  uint   `gorm:"not null;uniqueIndex:idx_user_class"`
	ClassID uint   `gorm:"not null;uniqueIndex:idx_user_class"`
	Role    string `gorm:"not null"` // "teacher" or "student"

	// Relationships
	User  User  `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Class Class `gorm:"foreignKey:ClassID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
