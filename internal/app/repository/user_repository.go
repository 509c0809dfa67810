package repository

import (
	"github.com/ikkim/inspection-backend/internal/app/model"
	"github.com/ikkim/inspection-backend/pkg/logger"
	"gorm.io/gorm"
)

// UserRepository Identity Store 게이트웨이
type UserRepository interface {
	Create(user *model.User) error
	FindByID(id uint) (*model.User, error)
	FindByRole(roles ...model.UserRole) ([]model.User, error)
	UpdateAccountStatus(id uint, status model.AccountStatus) error
	UpdateProfile(id uint, fields map[string]interface{}) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(user *model.User) error {
	logger.Debug("Creating user in database", map[string]interface{}{
		"email": user.Email,
		"role":  user.Role,
	})

	if err := r.db.Create(user).Error; err != nil {
		logger.Error("Failed to create user in database", err, map[string]interface{}{
			"email": user.Email,
		})
		return err
	}

	logger.Debug("User created in database", map[string]interface{}{
		"user_id": user.ID,
		"email":   user.Email,
	})
	return nil
}

func (r *userRepository) FindByID(id uint) (*model.User, error) {
	logger.Debug("Finding user by ID in database", map[string]interface{}{
		"user_id": id,
	})

	var user model.User
	if err := r.db.First(&user, id).Error; err != nil {
		logger.Error("Failed to find user by ID in database", err, map[string]interface{}{
			"user_id": id,
		})
		return nil, err
	}
	return &user, nil
}

// FindByRole 역할별 사용자 목록 (알림 대상 조회용)
func (r *userRepository) FindByRole(roles ...model.UserRole) ([]model.User, error) {
	logger.Debug("Finding users by role in database", map[string]interface{}{
		"roles": roles,
	})

	var users []model.User
	if err := r.db.Where("role IN ?", roles).Order("id ASC").Find(&users).Error; err != nil {
		logger.Error("Failed to find users by role in database", err, map[string]interface{}{
			"roles": roles,
		})
		return nil, err
	}

	logger.Debug("Users found by role in database", map[string]interface{}{
		"count": len(users),
	})
	return users, nil
}

// UpdateAccountStatus 계정 상태만 갱신. 대상이 없으면 gorm.ErrRecordNotFound
func (r *userRepository) UpdateAccountStatus(id uint, status model.AccountStatus) error {
	logger.Debug("Updating user account status in database", map[string]interface{}{
		"user_id":        id,
		"account_status": status,
	})

	result := r.db.Model(&model.User{}).Where("id = ?", id).Update("account_status", status)
	if result.Error != nil {
		logger.Error("Failed to update user account status in database", result.Error, map[string]interface{}{
			"user_id": id,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateProfile 허용된 프로필 필드만 갱신 (권한 검사는 서비스 계층)
func (r *userRepository) UpdateProfile(id uint, fields map[string]interface{}) error {
	logger.Debug("Updating user profile in database", map[string]interface{}{
		"user_id": id,
		"fields":  len(fields),
	})

	if len(fields) == 0 {
		return nil
	}

	result := r.db.Model(&model.User{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		logger.Error("Failed to update user profile in database", result.Error, map[string]interface{}{
			"user_id": id,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
