package repository

import (
	"time"

	"github.com/ikkim/inspection-backend/internal/app/model"
	"github.com/ikkim/inspection-backend/pkg/logger"
	"gorm.io/gorm"
)

// InspectionRepository Scheduling Store 게이트웨이
type InspectionRepository interface {
	Create(inspection *model.Inspection) error
	FindByID(id uint) (*model.Inspection, error)
	FindUnassignedByBusiness(businessID uint) ([]model.Inspection, error)

	// AssignInspector 상태가 from 중 하나일 때 점검관을 덮어쓰고 scheduled 로 전환한다.
	// onlyUnassigned 이면 inspector_id 가 비어 있을 때만 갱신한다.
	AssignInspector(id, inspectorID uint, from []model.InspectionStatus, onlyUnassigned bool) (bool, error)
	UpdateStatusIfCurrent(id uint, from, to model.InspectionStatus, fields map[string]interface{}) (bool, error)
	FindScheduledBefore(cutoff time.Time) ([]model.Inspection, error)
}

type inspectionRepository struct {
	db *gorm.DB
}

func NewInspectionRepository(db *gorm.DB) InspectionRepository {
	return &inspectionRepository{db: db}
}

func (r *inspectionRepository) Create(inspection *model.Inspection) error {
	logger.Debug("Creating inspection in database", map[string]interface{}{
		"business_id": inspection.BusinessID,
		"status":      inspection.Status,
	})

	if err := r.db.Create(inspection).Error; err != nil {
		logger.Error("Failed to create inspection in database", err, map[string]interface{}{
			"business_id": inspection.BusinessID,
		})
		return err
	}

	logger.Debug("Inspection created in database", map[string]interface{}{
		"inspection_id": inspection.ID,
	})
	return nil
}

func (r *inspectionRepository) FindByID(id uint) (*model.Inspection, error) {
	logger.Debug("Finding inspection by ID in database", map[string]interface{}{
		"inspection_id": id,
	})

	var inspection model.Inspection
	if err := r.db.First(&inspection, id).Error; err != nil {
		logger.Error("Failed to find inspection by ID in database", err, map[string]interface{}{
			"inspection_id": id,
		})
		return nil, err
	}
	return &inspection, nil
}

func (r *inspectionRepository) FindUnassignedByBusiness(businessID uint) ([]model.Inspection, error) {
	logger.Debug("Finding unassigned inspections in database", map[string]interface{}{
		"business_id": businessID,
	})

	var inspections []model.Inspection
	err := r.db.Where("business_id = ? AND inspector_id IS NULL", businessID).
		Order("id ASC").
		Find(&inspections).Error
	if err != nil {
		logger.Error("Failed to find unassigned inspections in database", err, map[string]interface{}{
			"business_id": businessID,
		})
		return nil, err
	}

	logger.Debug("Unassigned inspections found in database", map[string]interface{}{
		"business_id": businessID,
		"count":       len(inspections),
	})
	return inspections, nil
}

func (r *inspectionRepository) AssignInspector(id, inspectorID uint, from []model.InspectionStatus, onlyUnassigned bool) (bool, error) {
	logger.Debug("Assigning inspector in database", map[string]interface{}{
		"inspection_id":   id,
		"inspector_id":    inspectorID,
		"only_unassigned": onlyUnassigned,
	})

	query := r.db.Model(&model.Inspection{}).Where("id = ? AND status IN ?", id, from)
	if onlyUnassigned {
		query = query.Where("inspector_id IS NULL")
	}

	result := query.Updates(map[string]interface{}{
		"inspector_id": inspectorID,
		"status":       model.InspectionScheduled,
	})
	if result.Error != nil {
		logger.Error("Failed to assign inspector in database", result.Error, map[string]interface{}{
			"inspection_id": id,
		})
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *inspectionRepository) UpdateStatusIfCurrent(id uint, from, to model.InspectionStatus, fields map[string]interface{}) (bool, error) {
	logger.Debug("Updating inspection status in database", map[string]interface{}{
		"inspection_id": id,
		"from":          from,
		"to":            to,
	})

	updates := map[string]interface{}{"status": to}
	for k, v := range fields {
		updates[k] = v
	}

	result := r.db.Model(&model.Inspection{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		logger.Error("Failed to update inspection status in database", result.Error, map[string]interface{}{
			"inspection_id": id,
		})
		return false, result.Error
	}

	if result.RowsAffected == 0 {
		logger.Warn("Inspection status changed concurrently", map[string]interface{}{
			"inspection_id": id,
			"expected":      from,
		})
		return false, nil
	}
	return true, nil
}

// FindScheduledBefore 예정일이 지났는데 아직 scheduled 인 점검
func (r *inspectionRepository) FindScheduledBefore(cutoff time.Time) ([]model.Inspection, error) {
	var inspections []model.Inspection
	err := r.db.Where("status = ? AND scheduled_date < ?", model.InspectionScheduled, cutoff).
		Order("scheduled_date ASC").
		Find(&inspections).Error
	if err != nil {
		logger.Error("Failed to find overdue inspections in database", err, map[string]interface{}{
			"cutoff": cutoff,
		})
		return nil, err
	}
	return inspections, nil
}
