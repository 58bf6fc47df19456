package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/schoolbell-dev/schoolbell/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newPushTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	db, err := gorm.Open(dsn, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.DeviceToken{}))
	return db
}

func seedToken(t *testing.T, db *gorm.DB, userID uint, token string) {
	t.Helper()
	require.NoError(t, db.Create(&models.DeviceToken{
		UserID:   userID,
		Token:    token,
		Platform: "android",
		IsActive: true,
	}).Error)
}

func fakeFCMServer(t *testing.T, results []fcmResult) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key=test-key", r.Header.Get("Authorization"))

		success, failure := 0, 0
		for _, result := range results {
			if result.Error == "" {
				success++
			} else {
				failure++
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(fcmResponse{
			Success: success,
			Failure: failure,
			Results: results,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPushSendDeactivatesDeadTokens(t *testing.T) {
	db := newPushTestDB(t)
	seedToken(t, db, 7, "token-live")
	seedToken(t, db, 7, "token-dead")

	srv := fakeFCMServer(t, []fcmResult{
		{MessageID: "m1"},
		{Error: "NotRegistered"},
	})

	channel := NewPushChannel(db, "test-key")
	channel.endpoint = srv.URL

	err := channel.Send(context.Background(), Message{
		NotificationID: 1,
		Recipient:      recipient(7, "parent@example.com"),
		Title:          "Snow day",
		Content:        "School closed tomorrow",
	})
	require.NoError(t, err)

	var dead models.DeviceToken
	require.NoError(t, db.Where("token = ?", "token-dead").First(&dead).Error)
	assert.False(t, dead.IsActive)

	var live models.DeviceToken
	require.NoError(t, db.Where("token = ?", "token-live").First(&live).Error)
	assert.True(t, live.IsActive)
}

func TestPushSendAllTokensRejected(t *testing.T) {
	db := newPushTestDB(t)
	seedToken(t, db, 7, "token-dead")

	srv := fakeFCMServer(t, []fcmResult{{Error: "InvalidRegistration"}})

	channel := NewPushChannel(db, "test-key")
	channel.endpoint = srv.URL

	err := channel.Send(context.Background(), Message{Recipient: recipient(7, "parent@example.com")})
	assert.ErrorContains(t, err, "rejected all")

	var dead models.DeviceToken
	require.NoError(t, db.Where("token = ?", "token-dead").First(&dead).Error)
	assert.False(t, dead.IsActive)
}

func TestPushSendErrors(t *testing.T) {
	db := newPushTestDB(t)

	t.Run("no server key", func(t *testing.T) {
		channel := NewPushChannel(db, "")
		err := channel.Send(context.Background(), Message{Recipient: recipient(7, "a@example.com")})
		assert.ErrorContains(t, err, "not configured")
	})

	t.Run("no active tokens", func(t *testing.T) {
		channel := NewPushChannel(db, "test-key")
		err := channel.Send(context.Background(), Message{Recipient: recipient(7, "a@example.com")})
		assert.ErrorContains(t, err, "no active device tokens")
	})
}
