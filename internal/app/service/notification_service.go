package service

import (
	"errors"

	"github.com/ikkim/inspection-backend/internal/app/model"
	"github.com/ikkim/inspection-backend/internal/app/repository"
	apperrors "github.com/ikkim/inspection-backend/internal/errors"
	"gorm.io/gorm"
)

// NotificationService 알림 조회/읽음 처리 (읽음 여부 외에는 수정하지 않는다)
type NotificationService interface {
	GetNotifications(userID uint, notifType *model.NotificationType, isRead *bool, page, pageSize int) ([]model.Notification, int64, int64, error)
	GetUnreadCount(userID uint) (int64, error)
	MarkAsRead(notificationID, userID uint) (*model.Notification, error)
	MarkAllAsRead(userID uint) error
}

type notificationService struct {
	repo repository.NotificationRepository
}

// NewNotificationService 알림 서비스 생성자
func NewNotificationService(repo repository.NotificationRepository) NotificationService {
	return &notificationService{repo: repo}
}

// GetNotifications 알림 목록 조회
func (s *notificationService) GetNotifications(
	userID uint,
	notifType *model.NotificationType,
	isRead *bool,
	page, pageSize int,
) ([]model.Notification, int64, int64, error) {
	// 페이지 기본값
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	offset := (page - 1) * pageSize

	notifications, total, err := s.repo.GetNotifications(userID, notifType, isRead, pageSize, offset)
	if err != nil {
		return nil, 0, 0, apperrors.NewStoreUnavailable("GetNotifications", err)
	}

	// 안읽은 개수
	unreadCount, err := s.repo.GetUnreadCount(userID)
	if err != nil {
		return nil, 0, 0, apperrors.NewStoreUnavailable("GetNotifications", err)
	}

	return notifications, total, unreadCount, nil
}

// GetUnreadCount 안읽은 알림 개수 조회
func (s *notificationService) GetUnreadCount(userID uint) (int64, error) {
	count, err := s.repo.GetUnreadCount(userID)
	if err != nil {
		return 0, apperrors.NewStoreUnavailable("GetUnreadCount", err)
	}
	return count, nil
}

// MarkAsRead 알림 읽음 처리
func (s *notificationService) MarkAsRead(notificationID, userID uint) (*model.Notification, error) {
	const op = "MarkAsRead"

	notification, err := s.repo.GetNotificationByID(notificationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound(op, "notification", notificationID)
		}
		return nil, apperrors.NewStoreUnavailable(op, err)
	}

	// 권한 확인
	if notification.UserID != userID {
		return nil, apperrors.NewUnauthorized(op, "notification belongs to another user")
	}

	// 이미 읽은 알림이면 그대로 반환
	if notification.IsRead {
		return notification, nil
	}

	if err := s.repo.MarkAsRead(notificationID); err != nil {
		return nil, apperrors.NewStoreUnavailable(op, err)
	}

	notification.IsRead = true
	return notification, nil
}

// MarkAllAsRead 모든 알림 읽음 처리
func (s *notificationService) MarkAllAsRead(userID uint) error {
	if err := s.repo.MarkAllAsRead(userID); err != nil {
		return apperrors.NewStoreUnavailable("MarkAllAsRead", err)
	}
	return nil
}
