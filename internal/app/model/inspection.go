package model

import (
	"time"

	"gorm.io/gorm"
)

type InspectionStatus string

const (
	InspectionRequested  InspectionStatus = "requested"
	InspectionScheduled  InspectionStatus = "scheduled"
	InspectionInProgress InspectionStatus = "in_progress"
	InspectionCompleted  InspectionStatus = "completed"
	InspectionOverdue    InspectionStatus = "overdue"
	InspectionCancelled  InspectionStatus = "cancelled"
)

type InspectionPriority string

const (
	PriorityLow    InspectionPriority = "low"
	PriorityMedium InspectionPriority = "medium"
	PriorityHigh   InspectionPriority = "high"
	PriorityUrgent InspectionPriority = "urgent"
)

// Inspection 점검 일정 (Scheduling Store)
type Inspection struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	BusinessID     uint               `gorm:"not null;index" json:"business_id"`
	InspectorID    *uint              `gorm:"index" json:"inspector_id,omitempty"` // 미배정이면 nil
	InspectionType string             `gorm:"type:varchar(100);not null" json:"inspection_type"`
	ScheduledDate  time.Time          `gorm:"not null;index" json:"scheduled_date"`
	Status         InspectionStatus   `gorm:"type:varchar(20);not null;default:'requested';index" json:"status"`
	Priority       InspectionPriority `gorm:"type:varchar(20);not null;default:'medium'" json:"priority"`

	ComplianceScore *int       `json:"compliance_score,omitempty"` // 완료 시에만 설정
	Notes           string     `gorm:"type:text" json:"notes,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	RequestedBy     uint       `json:"requested_by"`
}

func (Inspection) TableName() string {
	return "inspections"
}
