package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/schoolbell-dev/schoolbell/db"
	"github.com/schoolbell-dev/schoolbell/internal/logger"
	"github.com/schoolbell-dev/schoolbell/internal/models"
	"github.com/schoolbell-dev/schoolbell/internal/utils"
	"gorm.io/gorm/clause"
)

type RegisterDeviceRequest struct {
	Token    string `json:"token" binding:"required"`
	Platform string `json:"platform" binding:"required,oneof=android ios web"`
}

// RegisterDevice upserts a push token for the current user. Re-registering
// an existing token reclaims it and reactivates it.
func RegisterDevice(ctx *gin.Context) {
	var req RegisterDeviceRequest

	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	currentUser, err := utils.GetCurrentUser(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	device := models.DeviceToken{
		UserID:   currentUser.ID,
		Token:    req.Token,
		Platform: req.Platform,
		IsActive: true,
	}

	err = db.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "platform", "is_active"}),
	}).Create(&device).Error
	if err != nil {
		logger.Log.Errorf("Failed to register device for user %d: %v", currentUser.ID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register device"})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"message": "Device registered"})
}
