// Package repository 提供数据访问层
package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dumeirei/lawconsult-backend/internal/common/database"
	"github.com/dumeirei/lawconsult-backend/internal/models"
)

// LawyerWalletRepository 律师钱包仓储
type LawyerWalletRepository struct {
	db *gorm.DB
}

// NewLawyerWalletRepository 创建律师钱包仓储
func NewLawyerWalletRepository(db *gorm.DB) *LawyerWalletRepository {
	return &LawyerWalletRepository{db: db}
}

// GetByLawyerID 根据律师 ID 获取钱包
func (r *LawyerWalletRepository) GetByLawyerID(ctx context.Context, lawyerID int64) (*models.LawyerWallet, error) {
	var wallet models.LawyerWallet
	err := r.db.WithContext(ctx).Where("lawyer_id = ?", lawyerID).First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// GetForUpdate 获取钱包并加行锁（在事务中使用）
func (r *LawyerWalletRepository) GetForUpdate(ctx context.Context, tx *gorm.DB, lawyerID int64) (*models.LawyerWallet, error) {
	var wallet models.LawyerWallet
	err := database.ForUpdate(tx.WithContext(ctx)).
		Where("lawyer_id = ?", lawyerID).
		First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// CreateIfAbsent 插入零余额钱包，已存在时忽略
func (r *LawyerWalletRepository) CreateIfAbsent(ctx context.Context, tx *gorm.DB, lawyerID int64) error {
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "lawyer_id"}}, DoNothing: true}).
		Create(models.NewLawyerWallet(lawyerID)).Error
}

// Save 保存钱包，保存前由模型钩子重算可提现余额
func (r *LawyerWalletRepository) Save(ctx context.Context, tx *gorm.DB, wallet *models.LawyerWallet) error {
	return tx.WithContext(ctx).Save(wallet).Error
}

// ListLawyerIDs 分页获取拥有钱包的律师 ID
func (r *LawyerWalletRepository) ListLawyerIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&models.LawyerWallet{}).
		Where("lawyer_id > ?", afterID).
		Order("lawyer_id ASC").
		Limit(limit).
		Pluck("lawyer_id", &ids).Error
	return ids, err
}
