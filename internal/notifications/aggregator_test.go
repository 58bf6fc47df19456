package notifications

import (
	"context"
	"testing"

	"github.com/schoolbell-dev/schoolbell/internal/models"
	"github.com/schoolbell-dev/schoolbell/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusUnknownNotification(t *testing.T) {
	db := newTestDB(t)

	_, err := NewAggregator(db).Status(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatusAggregatesPerChannel(t *testing.T) {
	db := newTestDB(t)
	admin := seedUser(t, db, "admin1", types.RoleAdmin, nil)
	students := make([]models.User, 3)
	for i := range students {
		students[i] = seedUser(t, db, "student"+string(rune('a'+i)), types.RoleStudent, nil)
	}

	notification := createNotification(t, db, admin.ID, types.CategoryEmergency, types.PriorityEmergency)

	logs := []models.DeliveryLog{
		{NotificationID: notification.ID, RecipientID: students[0].ID, Channel: types.ChannelWebSocket, Status: types.StatusDelivered},
		{NotificationID: notification.ID, RecipientID: students[1].ID, Channel: types.ChannelWebSocket, Status: types.StatusFailed},
		{NotificationID: notification.ID, RecipientID: students[2].ID, Channel: types.ChannelWebSocket, Status: types.StatusPending},
		{NotificationID: notification.ID, RecipientID: students[0].ID, Channel: types.ChannelEmail, Status: types.StatusSent},
		{NotificationID: notification.ID, RecipientID: students[1].ID, Channel: types.ChannelEmail, Status: types.StatusBounced},
		{NotificationID: notification.ID, RecipientID: students[0].ID, Channel: types.ChannelInApp, Status: types.StatusDelivered},
	}
	require.NoError(t, db.Create(&logs).Error)

	status, err := NewAggregator(db).Status(context.Background(), notification.ID)
	require.NoError(t, err)

	assert.EqualValues(t, 3, status.TotalRecipients)
	assert.EqualValues(t, 2, status.Delivered)
	assert.EqualValues(t, 2, status.Failed) // failed + bounced
	assert.EqualValues(t, 1, status.Pending)

	require.Len(t, status.Channels, 3)
	assert.Equal(t, types.ChannelWebSocket, status.Channels[0].Channel)
	assert.EqualValues(t, 1, status.Channels[0].Delivered)
	assert.EqualValues(t, 1, status.Channels[0].Failed)

	assert.Equal(t, types.ChannelEmail, status.Channels[1].Channel)
	assert.EqualValues(t, 1, status.Channels[1].Sent)
	assert.EqualValues(t, 1, status.Channels[1].Failed)

	assert.Equal(t, types.ChannelInApp, status.Channels[2].Channel)
	assert.EqualValues(t, 1, status.Channels[2].Delivered)
}

func TestStatusBeforeDispatchHasNoChannels(t *testing.T) {
	db := newTestDB(t)
	admin := seedUser(t, db, "admin1", types.RoleAdmin, nil)
	seedUser(t, db, "student1", types.RoleStudent, nil)

	notification := createNotification(t, db, admin.ID, types.CategoryReminder, types.PriorityNormal)

	status, err := NewAggregator(db).Status(context.Background(), notification.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, status.TotalRecipients)
	assert.Empty(t, status.Channels)
	assert.EqualValues(t, 0, status.Delivered+status.Failed+status.Pending)
}
