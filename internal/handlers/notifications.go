package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/schoolbell-dev/schoolbell/internal/logger"
	"github.com/schoolbell-dev/schoolbell/internal/models"
	"github.com/schoolbell-dev/schoolbell/internal/notifications"
	"github.com/schoolbell-dev/schoolbell/internal/utils"
)

type NotificationResponse struct {
	ID           uint                      `json:"id"`
	SenderID     uint                      `json:"sender_id"`
	Title        string                    `json:"title"`
	Content      string                    `json:"content"`
	Category     string                    `json:"category"`
	Priority     string                    `json:"priority"`
	ScheduledFor *time.Time                `json:"scheduled_for,omitempty"`
	ExpiresAt    *time.Time                `json:"expires_at,omitempty"`
	CreatedAt    time.Time                 `json:"created_at"`
	Recipients   []notifications.Recipient `json:"recipients,omitempty"`
}

func toNotificationResponse(n *models.Notification) NotificationResponse {
	resp := NotificationResponse{
		ID:           n.ID,
		SenderID:     n.SenderID,
		Title:        n.Title,
		Content:      n.Content,
		Category:     n.Category,
		Priority:     n.Priority,
		ScheduledFor: n.ScheduledFor,
		ExpiresAt:    n.ExpiresAt,
		CreatedAt:    n.CreatedAt,
	}
	for _, r := range n.Recipients {
		resp.Recipients = append(resp.Recipients, notifications.Recipient{
			UserID: r.RecipientID,
			Role:   r.Role,
		})
	}
	return resp
}

// CreateNotification persists the notification with its fan-out rows and
// kicks off delivery in the background. Delivery failures never fail this
// call.
func CreateNotification(ctx *gin.Context) {
	var input notifications.CreateInput

	if err := ctx.ShouldBindJSON(&input); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	currentUser, err := utils.GetCurrentUser(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	notification, err := store.Create(ctx.Request.Context(), input, currentUser.ID)
	if err != nil {
		var validationErr *notifications.ValidationError
		switch {
		case errors.As(err, &validationErr):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
		case errors.Is(err, notifications.ErrNoRecipients):
			ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Targeting matched no recipients"})
		default:
			logger.Log.Errorf("Failed to create notification: %v", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create notification"})
		}
		return
	}

	// Scheduled notifications wait for the sweeper; everything else is
	// dispatched immediately, detached from this request.
	if notification.ScheduledFor == nil || !notification.ScheduledFor.After(time.Now()) {
		go dispatcher.Dispatch(context.Background(), notification)
	}

	ctx.JSON(http.StatusCreated, gin.H{"notification": toNotificationResponse(notification)})
}

func ListNotifications(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(ctx.DefaultQuery("offset", "0"))

	list, err := store.List(ctx.Request.Context(), notifications.ListFilter{
		Category: ctx.Query("category"),
		Priority: ctx.Query("priority"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		logger.Log.Errorf("Failed to list notifications: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list notifications"})
		return
	}

	responses := make([]NotificationResponse, len(list))
	for i := range list {
		responses[i] = toNotificationResponse(&list[i])
	}

	ctx.JSON(http.StatusOK, gin.H{"notifications": responses})
}

func MyNotifications(ctx *gin.Context) {
	currentUser, err := utils.GetCurrentUser(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	unreadOnly := ctx.Query("unread_only") == "true"

	entries, err := store.Inbox(ctx.Request.Context(), currentUser.ID, unreadOnly)
	if err != nil {
		logger.Log.Errorf("Failed to load inbox for user %d: %v", currentUser.ID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load notifications"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"notifications": entries})
}

type MarkReadRequest struct {
	NotificationIDs []uint `json:"notification_ids" binding:"required"`
}

func MarkNotificationsRead(ctx *gin.Context) {
	var req MarkReadRequest

	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	currentUser, err := utils.GetCurrentUser(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	updated, err := store.MarkRead(ctx.Request.Context(), currentUser.ID, req.NotificationIDs)
	if err != nil {
		logger.Log.Errorf("Failed to mark notifications read for user %d: %v", currentUser.ID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark notifications read"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"updated": updated})
}

func GetDeliveryStatus(ctx *gin.Context) {
	notificationID, err := parseIDParam(ctx, "notification_id")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification ID"})
		return
	}

	status, err := aggregator.Status(ctx.Request.Context(), notificationID)
	if err != nil {
		if errors.Is(err, notifications.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
			return
		}
		logger.Log.Errorf("Failed to aggregate delivery status for notification %d: %v", notificationID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute delivery status"})
		return
	}

	ctx.JSON(http.StatusOK, status)
}

func DeleteNotification(ctx *gin.Context) {
	notificationID, err := parseIDParam(ctx, "notification_id")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification ID"})
		return
	}

	if err := store.Delete(ctx.Request.Context(), notificationID); err != nil {
		if errors.Is(err, notifications.ErrNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
			return
		}
		logger.Log.Errorf("Failed to delete notification %d: %v", notificationID, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete notification"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Notification deleted"})
}

type ResendRequest struct {
	RecipientID uint   `json:"recipient_id" binding:"required"`
	Channel     string `json:"channel" binding:"required"`
}

// ResendDelivery is the operator path for delivery logs the sweeper no
// longer touches.
func ResendDelivery(ctx *gin.Context) {
	notificationID, err := parseIDParam(ctx, "notification_id")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification ID"})
		return
	}

	var req ResendRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err = dispatcher.Resend(ctx.Request.Context(), notificationID, req.RecipientID, req.Channel)
	if err != nil {
		var validationErr *notifications.ValidationError
		switch {
		case errors.As(err, &validationErr):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
		case errors.Is(err, notifications.ErrNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		default:
			logger.Log.Errorf("Failed to resend delivery: %v", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resend delivery"})
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Delivery re-attempted"})
}

func parseIDParam(ctx *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
