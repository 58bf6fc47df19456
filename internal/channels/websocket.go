package channels

import (
	"context"

	"github.com/schoolbell-dev/schoolbell/internal/types"
	"github.com/schoolbell-dev/schoolbell/internal/ws"
)

type WebSocketChannel struct {
	hub *ws.Hub
}

func NewWebSocketChannel(hub *ws.Hub) *WebSocketChannel {
	return &WebSocketChannel{hub: hub}
}

func (c *WebSocketChannel) Name() string {
	return types.ChannelWebSocket
}

func (c *WebSocketChannel) Send(ctx context.Context, msg Message) error {
	return c.hub.PushToUser(msg.Recipient.ID, map[string]interface{}{
		"type":            "notification",
		"notification_id": msg.NotificationID,
		"title":           msg.Title,
		"content":         msg.Content,
		"category":        msg.Category,
		"priority":        msg.Priority,
	})
}
