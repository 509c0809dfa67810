package model

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string // 사용자 권한 타입

const (
	RoleSuperAdmin    UserRole = "super_admin"    // 최고 관리자
	RoleAdmin         UserRole = "admin"          // 관리자
	RoleInspector     UserRole = "inspector"      // 점검관
	RoleBusinessOwner UserRole = "business_owner" // 사업자
	RoleCommunityUser UserRole = "community_user" // 일반 시민 (위반 신고)
)

// IsValid reports whether r is one of the known roles.
func (r UserRole) IsValid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleInspector, RoleBusinessOwner, RoleCommunityUser:
		return true
	}
	return false
}

type AccountStatus string // 계정 상태

const (
	AccountPendingApproval AccountStatus = "pending_approval" // 사업 승인 대기
	AccountActive          AccountStatus = "active"           // 활성
)

// User 계정 정보 (Identity Store)
type User struct {
	ID            uint           `gorm:"primarykey" json:"id"`
	Email         string         `gorm:"uniqueIndex;not null" json:"email"`
	Name          string         `gorm:"not null" json:"name"`
	Phone         string         `json:"phone"`
	Role          UserRole       `gorm:"type:varchar(20);not null;index" json:"role"`
	AccountStatus AccountStatus  `gorm:"type:varchar(20);not null;default:'active'" json:"account_status"`
	Department    string         `gorm:"type:varchar(100)" json:"department,omitempty"`    // 점검관 소속 부서
	Certification string         `gorm:"type:varchar(100)" json:"certification,omitempty"` // 점검관 자격
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}
