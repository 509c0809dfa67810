package repository

import (
	"time"

	"github.com/ikkim/inspection-backend/internal/app/model"
	"github.com/ikkim/inspection-backend/pkg/logger"
	"gorm.io/gorm"
)

// BusinessRepository Business Store 게이트웨이 (사업장 + 제출 서류)
type BusinessRepository interface {
	Create(business *model.Business, documents []model.BusinessDocument) error
	FindByID(id uint) (*model.Business, error)
	FindByOwnerID(ownerID uint) (*model.Business, error)

	// UpdateStatusIfCurrent 현재 상태가 from 일 때만 상태를 바꾼다.
	// 다른 요청이 먼저 상태를 바꿨으면 (false, nil).
	UpdateStatusIfCurrent(id uint, from, to model.BusinessStatus, fields map[string]interface{}) (bool, error)
	// ResubmitIfCurrent 상태 전환과 서류 교체를 한 트랜잭션으로 처리한다.
	ResubmitIfCurrent(id uint, from model.BusinessStatus, fields map[string]interface{}, documents []model.BusinessDocument) (bool, error)
	SetDefaultInspector(id, inspectorID uint) error

	FindDocuments(businessID uint) ([]model.BusinessDocument, error)
	UpdateDocumentReview(businessID uint, feedback map[model.DocumentType]string) error
}

type businessRepository struct {
	db *gorm.DB
}

func NewBusinessRepository(db *gorm.DB) BusinessRepository {
	return &businessRepository{db: db}
}

// Create 사업장과 서류 세트를 한 트랜잭션으로 저장 (같은 저장소)
func (r *businessRepository) Create(business *model.Business, documents []model.BusinessDocument) error {
	logger.Debug("Creating business in database", map[string]interface{}{
		"owner_id":  business.OwnerID,
		"name":      business.Name,
		"documents": len(documents),
	})

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(business).Error; err != nil {
			return err
		}
		return insertDocuments(tx, business.ID, documents)
	})
	if err != nil {
		logger.Error("Failed to create business in database", err, map[string]interface{}{
			"owner_id": business.OwnerID,
		})
		return err
	}

	logger.Debug("Business created in database", map[string]interface{}{
		"business_id": business.ID,
	})
	return nil
}

func (r *businessRepository) FindByID(id uint) (*model.Business, error) {
	logger.Debug("Finding business by ID in database", map[string]interface{}{
		"business_id": id,
	})

	var business model.Business
	if err := r.db.First(&business, id).Error; err != nil {
		logger.Error("Failed to find business by ID in database", err, map[string]interface{}{
			"business_id": id,
		})
		return nil, err
	}
	return &business, nil
}

// FindByOwnerID 소유자의 가장 최근 사업장
func (r *businessRepository) FindByOwnerID(ownerID uint) (*model.Business, error) {
	logger.Debug("Finding business by owner in database", map[string]interface{}{
		"owner_id": ownerID,
	})

	var business model.Business
	if err := r.db.Where("owner_id = ?", ownerID).Order("id DESC").First(&business).Error; err != nil {
		return nil, err
	}
	return &business, nil
}

func (r *businessRepository) UpdateStatusIfCurrent(id uint, from, to model.BusinessStatus, fields map[string]interface{}) (bool, error) {
	logger.Debug("Updating business status in database", map[string]interface{}{
		"business_id": id,
		"from":        from,
		"to":          to,
	})

	updates := map[string]interface{}{"status": to}
	for k, v := range fields {
		updates[k] = v
	}

	result := r.db.Model(&model.Business{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		logger.Error("Failed to update business status in database", result.Error, map[string]interface{}{
			"business_id": id,
		})
		return false, result.Error
	}

	if result.RowsAffected == 0 {
		logger.Warn("Business status changed concurrently", map[string]interface{}{
			"business_id": id,
			"expected":    from,
		})
		return false, nil
	}
	return true, nil
}

func (r *businessRepository) ResubmitIfCurrent(id uint, from model.BusinessStatus, fields map[string]interface{}, documents []model.BusinessDocument) (bool, error) {
	logger.Debug("Resubmitting business in database", map[string]interface{}{
		"business_id": id,
		"from":        from,
		"documents":   len(documents),
	})

	updates := map[string]interface{}{
		"status":           model.BusinessPending,
		"rejection_reason": nil,
	}
	for k, v := range fields {
		updates[k] = v
	}

	swapped := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Business{}).
			Where("id = ? AND status = ?", id, from).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		swapped = true
		return replaceDocuments(tx, id, documents)
	})
	if err != nil {
		logger.Error("Failed to resubmit business in database", err, map[string]interface{}{
			"business_id": id,
		})
		return false, err
	}

	if !swapped {
		logger.Warn("Business status changed concurrently", map[string]interface{}{
			"business_id": id,
			"expected":    from,
		})
	}
	return swapped, nil
}

func (r *businessRepository) SetDefaultInspector(id, inspectorID uint) error {
	logger.Debug("Setting default inspector in database", map[string]interface{}{
		"business_id":  id,
		"inspector_id": inspectorID,
	})

	result := r.db.Model(&model.Business{}).Where("id = ?", id).Update("default_inspector_id", inspectorID)
	if result.Error != nil {
		logger.Error("Failed to set default inspector in database", result.Error, map[string]interface{}{
			"business_id": id,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// replaceDocuments 기존 서류를 모두 지우고 새 세트로 교체 (병합하지 않음)
func replaceDocuments(tx *gorm.DB, businessID uint, documents []model.BusinessDocument) error {
	if err := tx.Where("business_id = ?", businessID).Delete(&model.BusinessDocument{}).Error; err != nil {
		return err
	}
	return insertDocuments(tx, businessID, documents)
}

func (r *businessRepository) FindDocuments(businessID uint) ([]model.BusinessDocument, error) {
	var documents []model.BusinessDocument
	err := r.db.Where("business_id = ?", businessID).Order("id ASC").Find(&documents).Error
	if err != nil {
		logger.Error("Failed to find business documents in database", err, map[string]interface{}{
			"business_id": businessID,
		})
		return nil, err
	}
	return documents, nil
}

// UpdateDocumentReview 피드백이 있는 서류는 rejected, 나머지는 pending 으로 되돌리고 피드백을 지운다
func (r *businessRepository) UpdateDocumentReview(businessID uint, feedback map[model.DocumentType]string) error {
	logger.Debug("Updating document review in database", map[string]interface{}{
		"business_id": businessID,
		"feedback":    len(feedback),
	})

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var documents []model.BusinessDocument
		if err := tx.Where("business_id = ?", businessID).Find(&documents).Error; err != nil {
			return err
		}

		for _, doc := range documents {
			updates := map[string]interface{}{
				"status":   model.DocumentPending,
				"feedback": nil,
			}
			if text, ok := feedback[doc.DocumentType]; ok {
				updates["status"] = model.DocumentRejected
				updates["feedback"] = text
			}
			if err := tx.Model(&model.BusinessDocument{}).Where("id = ?", doc.ID).Updates(updates).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Error("Failed to update document review in database", err, map[string]interface{}{
			"business_id": businessID,
		})
		return err
	}
	return nil
}

func insertDocuments(tx *gorm.DB, businessID uint, documents []model.BusinessDocument) error {
	if len(documents) == 0 {
		return nil
	}
	now := time.Now()
	rows := make([]model.BusinessDocument, len(documents))
	for i, doc := range documents {
		rows[i] = model.BusinessDocument{
			BusinessID:   businessID,
			DocumentType: doc.DocumentType,
			FileKey:      doc.FileKey,
			Status:       model.DocumentPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}
	return tx.Create(&rows).Error
}
