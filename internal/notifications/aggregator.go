package notifications

import (
	"context"
	"fmt"

	"github.com/schoolbell-dev/schoolbell/internal/models"
	"github.com/schoolbell-dev/schoolbell/internal/types"
	"gorm.io/gorm"
)

type ChannelStatus struct {
	Channel   string `json:"channel"`
	Sent      int64  `json:"sent"`
	Delivered int64  `json:"delivered"`
	Failed    int64  `json:"failed"`
}

type DeliveryStatus struct {
	TotalRecipients int64           `json:"total_recipients"`
	Delivered       int64           `json:"delivered"`
	Failed          int64           `json:"failed"`
	Pending         int64           `json:"pending"`
	Channels        []ChannelStatus `json:"channels"`
}

// Aggregator computes delivery counts from the log table. The durable
// source of truth is always this query; the websocket live view only
// mirrors it incrementally.
type Aggregator struct {
	db *gorm.DB
}

func NewAggregator(db *gorm.DB) *Aggregator {
	return &Aggregator{db: db}
}

func (a *Aggregator) Status(ctx context.Context, notificationID uint) (*DeliveryStatus, error) {
	var exists int64
	err := a.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ?", notificationID).
		Count(&exists).Error
	if err != nil {
		return nil, fmt.Errorf("failed to check notification: %w", err)
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	status := &DeliveryStatus{Channels: make([]ChannelStatus, 0, 4)}

	err = a.db.WithContext(ctx).
		Model(&models.NotificationRecipient{}).
		Where("notification_id = ?", notificationID).
		Count(&status.TotalRecipients).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count recipients: %w", err)
	}

	type channelRow struct {
		Channel string
		Status  string
		Count   int64
	}

	var rows []channelRow
	err = a.db.WithContext(ctx).
		Model(&models.DeliveryLog{}).
		Select("channel, status, COUNT(*) AS count").
		Where("notification_id = ?", notificationID).
		Group("channel, status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate delivery logs: %w", err)
	}

	byChannel := make(map[string]*ChannelStatus)
	for _, row := range rows {
		switch row.Status {
		case types.StatusDelivered:
			status.Delivered += row.Count
		case types.StatusFailed, types.StatusBounced:
			status.Failed += row.Count
		case types.StatusPending:
			status.Pending += row.Count
		}

		channel, ok := byChannel[row.Channel]
		if !ok {
			channel = &ChannelStatus{Channel: row.Channel}
			byChannel[row.Channel] = channel
		}
		switch row.Status {
		case types.StatusSent:
			channel.Sent += row.Count
		case types.StatusDelivered:
			channel.Delivered += row.Count
		case types.StatusFailed, types.StatusBounced:
			channel.Failed += row.Count
		}
	}

	// Stable channel order for consumers.
	for _, name := range []string{types.ChannelWebSocket, types.ChannelEmail, types.ChannelInApp, types.ChannelPush} {
		if channel, ok := byChannel[name]; ok {
			status.Channels = append(status.Channels, *channel)
		}
	}

	return status, nil
}
