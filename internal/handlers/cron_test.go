package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/schoolbell-dev/schoolbell/internal/models"
	"github.com/schoolbell-dev/schoolbell/internal/sweeper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupCronTest(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	testDB, err := gorm.Open(dsn, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, testDB.AutoMigrate(
		&models.User{},
		&models.Notification{},
		&models.NotificationRecipient{},
		&models.DeliveryLog{},
	))

	retries = sweeper.New(testDB, nil, nil, nil)

	r := gin.New()
	r.POST("/api/cron/retry-notifications", RetryNotifications)
	return r
}

func TestRetryNotificationsRequiresSecret(t *testing.T) {
	r := setupCronTest(t)
	t.Setenv("CRON_SECRET", "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/cron/retry-notifications", nil)
	req.Header.Set("Authorization", "Bearer anything")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRetryNotificationsRejectsBadToken(t *testing.T) {
	r := setupCronTest(t)
	t.Setenv("CRON_SECRET", "s3cret")

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong token", "Bearer nope"},
		{"no bearer prefix", "s3cret"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/cron/retry-notifications", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRetryNotificationsRunsSweep(t *testing.T) {
	r := setupCronTest(t)
	t.Setenv("CRON_SECRET", "s3cret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/cron/retry-notifications", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var result sweeper.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.Total)

	var keys map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &keys))
	assert.Contains(t, keys, "retried")
	assert.Contains(t, keys, "skipped")
	assert.Contains(t, keys, "total")
	assert.NotContains(t, keys, "errors")
}
