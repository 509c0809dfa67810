package model

import (
	"time"

	"gorm.io/gorm"
)

type BusinessStatus string

const (
	BusinessPending       BusinessStatus = "pending"        // 심사 대기
	BusinessVerified      BusinessStatus = "verified"       // 승인됨
	BusinessRejected      BusinessStatus = "rejected"       // 반려됨
	BusinessNeedsRevision BusinessStatus = "needs_revision" // 보완 요청
)

// RequiresReason reports whether a business in status s must carry a rejection reason.
func (s BusinessStatus) RequiresReason() bool {
	return s == BusinessRejected || s == BusinessNeedsRevision
}

// DefaultRejectionReason is stored when a reviewer rejects without a reason.
const DefaultRejectionReason = "No reason provided"

// Business 사업장 신청 정보 (Business Store)
// OwnerID, DefaultInspectorID 는 다른 저장소의 ID 이며 외래 키가 아니다.
type Business struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	OwnerID            uint   `gorm:"not null;index" json:"owner_id"`
	Name               string `gorm:"type:varchar(200);not null" json:"name"`
	RegistrationNumber string `gorm:"type:varchar(50);not null;index" json:"registration_number"`
	Address            string `gorm:"type:text;not null" json:"address"`
	ContactEmail       string `gorm:"type:varchar(200)" json:"contact_email"`
	ContactPhone       string `gorm:"type:varchar(50)" json:"contact_phone"`
	BusinessType       string `gorm:"type:varchar(100);not null" json:"business_type"`

	Status             BusinessStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	RejectionReason    *string        `gorm:"type:text" json:"rejection_reason,omitempty"` // rejected/needs_revision 일 때만 설정
	DefaultInspectorID *uint          `gorm:"index" json:"default_inspector_id,omitempty"`
	ReviewedBy         *uint          `json:"reviewed_by,omitempty"`
	ReviewedAt         *time.Time     `json:"reviewed_at,omitempty"`
}

func (Business) TableName() string {
	return "businesses"
}

type DocumentType string

const (
	DocBuildingPermit           DocumentType = "building_permit"
	DocBusinessPermit           DocumentType = "business_permit"
	DocWasteDisposalCertificate DocumentType = "waste_disposal_certificate"
	DocOwnerID                  DocumentType = "owner_id"
	DocTaxRegistration          DocumentType = "tax_registration"
)

// RequiredDocumentTypes 신청 시 반드시 제출해야 하는 서류 목록
var RequiredDocumentTypes = []DocumentType{
	DocBuildingPermit,
	DocBusinessPermit,
	DocWasteDisposalCertificate,
	DocOwnerID,
	DocTaxRegistration,
}

func (t DocumentType) IsValid() bool {
	for _, required := range RequiredDocumentTypes {
		if t == required {
			return true
		}
	}
	return false
}

type DocumentStatus string

const (
	DocumentPending  DocumentStatus = "pending"
	DocumentRejected DocumentStatus = "rejected"
)

// BusinessDocument 제출 서류. 재제출 시 전체가 교체된다.
type BusinessDocument struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	BusinessID   uint           `gorm:"not null;index" json:"business_id"`
	DocumentType DocumentType   `gorm:"type:varchar(40);not null" json:"document_type"`
	FileKey      string         `gorm:"type:text;not null" json:"file_key"` // blob store 키
	Status       DocumentStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Feedback     *string        `gorm:"type:text" json:"feedback,omitempty"`
}

func (BusinessDocument) TableName() string {
	return "business_documents"
}
