package model

import (
	"time"

	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationTypeApplication NotificationType = "application"
	NotificationTypeInspection  NotificationType = "inspection"
	NotificationTypeViolation   NotificationType = "violation"
)

type EntityKind string

const (
	EntityBusiness   EntityKind = "business"
	EntityInspection EntityKind = "inspection"
	EntityViolation  EntityKind = "violation"
)

// Notification 알림 (Notification Store)
// 워크플로 단계의 부수 효과로만 생성되며 is_read 외에는 수정하지 않는다.
type Notification struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// 알림 받을 사용자
	UserID uint `gorm:"not null;index" json:"user_id"`

	Type    NotificationType `gorm:"type:varchar(50);not null;index" json:"type"`
	Outcome string           `gorm:"type:varchar(50);not null" json:"outcome"`
	Title   string           `gorm:"type:text;not null" json:"title"`
	Message string           `gorm:"type:text;not null" json:"message"`
	Link    string           `gorm:"type:text" json:"link"`

	IsRead bool `gorm:"default:false;index" json:"is_read"`

	RelatedEntityType EntityKind `gorm:"type:varchar(20);index:idx_notifications_entity" json:"related_entity_type"`
	RelatedEntityID   uint       `gorm:"index:idx_notifications_entity" json:"related_entity_id"`
}

func (Notification) TableName() string {
	return "notifications"
}
