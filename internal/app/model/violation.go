package model

import (
	"time"

	"gorm.io/gorm"
)

// UnlinkedInspection 점검과 연결되지 않은 위반(시민 신고)의 InspectionID 값
const UnlinkedInspection uint = 0

type ViolationSeverity string

const (
	SeverityLow      ViolationSeverity = "low"
	SeverityMedium   ViolationSeverity = "medium"
	SeverityHigh     ViolationSeverity = "high"
	SeverityCritical ViolationSeverity = "critical"
)

type ViolationStatus string

const (
	ViolationOpen       ViolationStatus = "open"
	ViolationInProgress ViolationStatus = "in_progress"
	ViolationResolved   ViolationStatus = "resolved"
	ViolationClosed     ViolationStatus = "closed"
)

// RequiresResolvedDate reports whether resolved_date must be set in status s.
func (s ViolationStatus) RequiresResolvedDate() bool {
	return s == ViolationResolved || s == ViolationClosed
}

// Violation 위반 사항 (Violation Store)
type Violation struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	InspectionID uint              `gorm:"not null;default:0;index" json:"inspection_id"` // 0 = 미연결
	BusinessID   uint              `gorm:"not null;index" json:"business_id"`
	ReportedBy   uint              `gorm:"not null" json:"reported_by"`
	Description  string            `gorm:"type:text;not null" json:"description"`
	Severity     ViolationSeverity `gorm:"type:varchar(20);not null" json:"severity"`
	Status       ViolationStatus   `gorm:"type:varchar(20);not null;default:'open';index" json:"status"`
	DueDate      time.Time         `gorm:"not null" json:"due_date"`
	ResolvedDate *time.Time        `json:"resolved_date,omitempty"`
}

func (Violation) TableName() string {
	return "violations"
}

// IsLinked reports whether the violation is tied to an inspection.
func (v *Violation) IsLinked() bool {
	return v.InspectionID != UnlinkedInspection
}
