package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/inspection-backend/internal/app/model"
	"github.com/ikkim/inspection-backend/internal/app/service"
	apperrors "github.com/ikkim/inspection-backend/internal/errors"
	"github.com/ikkim/inspection-backend/internal/middleware"
)

// NotificationController 알림 컨트롤러
type NotificationController struct {
	service service.NotificationService
}

// NewNotificationController 알림 컨트롤러 생성자
func NewNotificationController(service service.NotificationService) *NotificationController {
	return &NotificationController{
		service: service,
	}
}

// GetNotifications godoc
// @Summary 알림 목록 조회
// @Tags notifications
// @Produce json
// @Param page query int false "페이지 번호" default(1)
// @Param page_size query int false "페이지 크기" default(20)
// @Param type query string false "알림 타입 (application, inspection, violation)"
// @Param is_read query bool false "읽음 상태"
// @Success 200 {object} gin.H{data=[]model.Notification,total=int,page=int,page_size=int,unread_count=int}
// @Security BearerAuth
// @Router /api/v1/notifications [get]
func (c *NotificationController) GetNotifications(ctx *gin.Context) {
	userID, exists := middleware.GetUserID(ctx)
	if !exists {
		apperrors.Unauthorized(ctx, "")
		return
	}

	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(ctx.DefaultQuery("page_size", "20"))

	var notifType *model.NotificationType
	if typeStr := ctx.Query("type"); typeStr != "" {
		t := model.NotificationType(typeStr)
		notifType = &t
	}

	var isRead *bool
	if isReadStr := ctx.Query("is_read"); isReadStr != "" {
		if v, err := strconv.ParseBool(isReadStr); err == nil {
			isRead = &v
		}
	}

	notifications, total, unreadCount, err := c.service.GetNotifications(userID, notifType, isRead, page, pageSize)
	if err != nil {
		middleware.GetLoggerFromContext(ctx).Error("Failed to list notifications", err, map[string]interface{}{
			"user_id": userID,
		})
		apperrors.RespondWorkflowError(ctx, err, "notification")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"data":         notifications,
		"total":        total,
		"page":         page,
		"page_size":    pageSize,
		"unread_count": unreadCount,
	})
}

// GetUnreadCount godoc
// @Summary 안읽은 알림 개수 조회
// @Tags notifications
// @Produce json
// @Success 200 {object} gin.H{unread_count=int}
// @Security BearerAuth
// @Router /api/v1/notifications/unread-count [get]
func (c *NotificationController) GetUnreadCount(ctx *gin.Context) {
	userID, exists := middleware.GetUserID(ctx)
	if !exists {
		apperrors.Unauthorized(ctx, "")
		return
	}

	count, err := c.service.GetUnreadCount(userID)
	if err != nil {
		apperrors.RespondWorkflowError(ctx, err, "notification")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"unread_count": count,
	})
}

// MarkAsRead godoc
// @Summary 알림 읽음 처리
// @Tags notifications
// @Produce json
// @Param id path int true "알림 ID"
// @Success 200 {object} gin.H{notification=model.Notification}
// @Failure 403 {object} gin.H
// @Failure 404 {object} gin.H
// @Security BearerAuth
// @Router /api/v1/notifications/{id}/read [patch]
func (c *NotificationController) MarkAsRead(ctx *gin.Context) {
	userID, exists := middleware.GetUserID(ctx)
	if !exists {
		apperrors.Unauthorized(ctx, "")
		return
	}
	id, ok := parseIDParam(ctx, "id", "notification")
	if !ok {
		return
	}

	notification, err := c.service.MarkAsRead(id, userID)
	if err != nil {
		apperrors.RespondWorkflowError(ctx, err, "notification")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"notification": notification,
	})
}

// MarkAllAsRead godoc
// @Summary 모든 알림 읽음 처리
// @Tags notifications
// @Produce json
// @Success 200 {object} gin.H{message=string}
// @Security BearerAuth
// @Router /api/v1/notifications/read-all [patch]
func (c *NotificationController) MarkAllAsRead(ctx *gin.Context) {
	userID, exists := middleware.GetUserID(ctx)
	if !exists {
		apperrors.Unauthorized(ctx, "")
		return
	}

	if err := c.service.MarkAllAsRead(userID); err != nil {
		apperrors.RespondWorkflowError(ctx, err, "notification")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "All notifications marked as read",
	})
}
