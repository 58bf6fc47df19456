package channels

import (
	"context"

	"github.com/schoolbell-dev/schoolbell/internal/models"
)

// Message is one delivery unit: a notification addressed to a single
// recipient over a single channel.
type Message struct {
	NotificationID uint
	Recipient      models.User
	Title          string
	Content        string
	Category       string
	Priority       string
}

type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Registry maps channel names to implementations.
type Registry map[string]Channel

func NewRegistry(channels ...Channel) Registry {
	registry := make(Registry, len(channels))
	for _, channel := range channels {
		registry[channel.Name()] = channel
	}
	return registry
}
