package models

import "gorm.io/gorm"

type Class struct {
	gorm.Model

	Name  string `gorm:"not null"`
	Grade int    `gorm:"not null;index"`

	// Relationships
	Memberships []ClassMembership `gorm:"foreignKey:ClassID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
