package types

import (
	"os"
	"strings"
)

const ContextUserKey = "user"

// Roles
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleParent  = "parent"
	RoleStudent = "student"
)

// Notification categories
const (
	CategoryAnnouncement = "announcement"
	CategoryEmergency    = "emergency"
	CategoryReminder     = "reminder"
	CategorySystem       = "system"
)

// Notification priorities
const (
	PriorityLow       = "low"
	PriorityNormal    = "normal"
	PriorityHigh      = "high"
	PriorityEmergency = "emergency"
)

// Delivery channels
const (
	ChannelWebSocket = "websocket"
	ChannelEmail     = "email"
	ChannelInApp     = "in_app"
	ChannelPush      = "push"
)

// Delivery statuses
const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
	StatusBounced   = "bounced"
)

func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleTeacher, RoleParent, RoleStudent:
		return true
	}
	return false
}

func ValidCategory(category string) bool {
	switch category {
	case CategoryAnnouncement, CategoryEmergency, CategoryReminder, CategorySystem:
		return true
	}
	return false
}

func ValidPriority(priority string) bool {
	switch priority {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityEmergency:
		return true
	}
	return false
}

func ValidChannel(channel string) bool {
	switch channel {
	case ChannelWebSocket, ChannelEmail, ChannelInApp, ChannelPush:
		return true
	}
	return false
}

var (
	// Default allowed origins for development
	defaultOrigins = []string{
		"http://localhost:3000",
		"http://localhost:5173",
	}

	AllowedOrigins = initAllowedOrigins()
)

func initAllowedOrigins() []string {
	origins := make([]string, len(defaultOrigins))
	copy(origins, defaultOrigins)

	if clientURL := os.Getenv("CLIENT_URL"); clientURL != "" {
		origins = append(origins, clientURL)
	}

	if allowedOrigins := os.Getenv("ALLOWED_ORIGINS"); allowedOrigins != "" {
		envOrigins := strings.Split(allowedOrigins, ",")
		for _, origin := range envOrigins {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}

	return origins
}
