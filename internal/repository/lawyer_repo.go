package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/dumeirei/lawconsult-backend/internal/models"
)

// LawyerRepository 律师档案仓储（只读）
type LawyerRepository struct {
	db *gorm.DB
}

// NewLawyerRepository 创建律师档案仓储
func NewLawyerRepository(db *gorm.DB) *LawyerRepository {
	return &LawyerRepository{db: db}
}

// GetByID 根据 ID 获取律师
func (r *LawyerRepository) GetByID(ctx context.Context, id int64) (*models.Lawyer, error) {
	var lawyer models.Lawyer
	if err := r.db.WithContext(ctx).First(&lawyer, id).Error; err != nil {
		return nil, err
	}
	return &lawyer, nil
}

// GetByUserID 根据用户 ID 获取律师
func (r *LawyerRepository) GetByUserID(ctx context.Context, userID int64) (*models.Lawyer, error) {
	var lawyer models.Lawyer
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&lawyer).Error
	if err != nil {
		return nil, err
	}
	return &lawyer, nil
}
