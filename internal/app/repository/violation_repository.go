package repository

import (
	"github.com/ikkim/inspection-backend/internal/app/model"
	"github.com/ikkim/inspection-backend/pkg/logger"
	"gorm.io/gorm"
)

// ViolationRepository Violation Store 게이트웨이
type ViolationRepository interface {
	Create(violation *model.Violation) error
	FindByID(id uint) (*model.Violation, error)

	// LinkInspectionIfUnlinked inspection_id 가 미연결일 때만 연결한다. 한 번 연결되면 바뀌지 않는다.
	LinkInspectionIfUnlinked(id, inspectionID uint) (bool, error)
	UpdateStatusIfCurrent(id uint, from, to model.ViolationStatus, fields map[string]interface{}) (bool, error)
	Update(id uint, fields map[string]interface{}) error
}

type violationRepository struct {
	db *gorm.DB
}

func NewViolationRepository(db *gorm.DB) ViolationRepository {
	return &violationRepository{db: db}
}

func (r *violationRepository) Create(violation *model.Violation) error {
	logger.Debug("Creating violation in database", map[string]interface{}{
		"business_id":   violation.BusinessID,
		"inspection_id": violation.InspectionID,
		"severity":      violation.Severity,
	})

	if err := r.db.Create(violation).Error; err != nil {
		logger.Error("Failed to create violation in database", err, map[string]interface{}{
			"business_id": violation.BusinessID,
		})
		return err
	}

	logger.Debug("Violation created in database", map[string]interface{}{
		"violation_id": violation.ID,
	})
	return nil
}

func (r *violationRepository) FindByID(id uint) (*model.Violation, error) {
	logger.Debug("Finding violation by ID in database", map[string]interface{}{
		"violation_id": id,
	})

	var violation model.Violation
	if err := r.db.First(&violation, id).Error; err != nil {
		logger.Error("Failed to find violation by ID in database", err, map[string]interface{}{
			"violation_id": id,
		})
		return nil, err
	}
	return &violation, nil
}

func (r *violationRepository) LinkInspectionIfUnlinked(id, inspectionID uint) (bool, error) {
	logger.Debug("Linking violation to inspection in database", map[string]interface{}{
		"violation_id":  id,
		"inspection_id": inspectionID,
	})

	result := r.db.Model(&model.Violation{}).
		Where("id = ? AND inspection_id = ?", id, model.UnlinkedInspection).
		Update("inspection_id", inspectionID)
	if result.Error != nil {
		logger.Error("Failed to link violation in database", result.Error, map[string]interface{}{
			"violation_id": id,
		})
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *violationRepository) UpdateStatusIfCurrent(id uint, from, to model.ViolationStatus, fields map[string]interface{}) (bool, error) {
	logger.Debug("Updating violation status in database", map[string]interface{}{
		"violation_id": id,
		"from":         from,
		"to":           to,
	})

	updates := map[string]interface{}{"status": to}
	for k, v := range fields {
		updates[k] = v
	}

	result := r.db.Model(&model.Violation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		logger.Error("Failed to update violation status in database", result.Error, map[string]interface{}{
			"violation_id": id,
		})
		return false, result.Error
	}

	if result.RowsAffected == 0 {
		logger.Warn("Violation status changed concurrently", map[string]interface{}{
			"violation_id": id,
			"expected":     from,
		})
		return false, nil
	}
	return true, nil
}

// Update 상태 외 필드 수정 (description, severity, due_date)
func (r *violationRepository) Update(id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}

	result := r.db.Model(&model.Violation{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		logger.Error("Failed to update violation in database", result.Error, map[string]interface{}{
			"violation_id": id,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
