package handlers

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/schoolbell-dev/schoolbell/internal/logger"
)

// RetryNotifications runs one retry sweep on demand. The caller
// authenticates with the shared CRON_SECRET rather than a user token, so
// this stays callable from external schedulers.
func RetryNotifications(ctx *gin.Context) {
	secret := os.Getenv("CRON_SECRET")
	if secret == "" {
		logger.Log.Error("CRON_SECRET is not configured")
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Cron secret not configured"})
		return
	}

	header := ctx.GetHeader("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if header == token || token != secret {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	result, err := retries.Run(ctx.Request.Context())
	if err != nil {
		logger.Log.Errorf("Manual sweep failed: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Sweep failed"})
		return
	}

	ctx.JSON(http.StatusOK, result)
}
