package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/dumeirei/lawconsult-backend/internal/models"
)

// LawyerBankAccountRepository 律师收款账户仓储
type LawyerBankAccountRepository struct {
	db *gorm.DB
}

// NewLawyerBankAccountRepository 创建律师收款账户仓储
func NewLawyerBankAccountRepository(db *gorm.DB) *LawyerBankAccountRepository {
	return &LawyerBankAccountRepository{db: db}
}

// Create 创建收款账户
func (r *LawyerBankAccountRepository) Create(ctx context.Context, tx *gorm.DB, account *models.LawyerBankAccount) error {
	return tx.WithContext(ctx).Create(account).Error
}

// GetActiveOwned 获取律师名下启用中的收款账户
func (r *LawyerBankAccountRepository) GetActiveOwned(ctx context.Context, tx *gorm.DB, lawyerID, id int64) (*models.LawyerBankAccount, error) {
	if tx == nil {
		tx = r.db
	}
	var account models.LawyerBankAccount
	err := tx.WithContext(ctx).
		Where("id = ? AND lawyer_id = ? AND is_active = ?", id, lawyerID, true).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// ListByLawyer 获取律师的收款账户，默认账户在前
func (r *LawyerBankAccountRepository) ListByLawyer(ctx context.Context, lawyerID int64, activeOnly bool) ([]*models.LawyerBankAccount, error) {
	var accounts []*models.LawyerBankAccount
	query := r.db.WithContext(ctx).Where("lawyer_id = ?", lawyerID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("is_default DESC").Order("id ASC").Find(&accounts).Error
	return accounts, err
}

// CountActive 统计律师启用中的账户数
func (r *LawyerBankAccountRepository) CountActive(ctx context.Context, tx *gorm.DB, lawyerID int64) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&models.LawyerBankAccount{}).
		Where("lawyer_id = ? AND is_active = ?", lawyerID, true).
		Count(&count).Error
	return count, err
}

// Update 更新账户资料
func (r *LawyerBankAccountRepository) Update(ctx context.Context, tx *gorm.DB, account *models.LawyerBankAccount) error {
	return tx.WithContext(ctx).Model(account).
		Select("account_type", "bank_name", "account_no", "account_holder", "updated_at").
		Updates(account).Error
}

// ClearDefault 取消律师其它账户的默认标记
func (r *LawyerBankAccountRepository) ClearDefault(ctx context.Context, tx *gorm.DB, lawyerID, exceptID int64) error {
	return tx.WithContext(ctx).Model(&models.LawyerBankAccount{}).
		Where("lawyer_id = ? AND id <> ? AND is_default = ?", lawyerID, exceptID, true).
		Update("is_default", false).Error
}

// SetDefault 设置默认标记
func (r *LawyerBankAccountRepository) SetDefault(ctx context.Context, tx *gorm.DB, id int64, isDefault bool) error {
	return tx.WithContext(ctx).Model(&models.LawyerBankAccount{}).
		Where("id = ?", id).
		Update("is_default", isDefault).Error
}

// Disable 停用账户，同时取消默认
func (r *LawyerBankAccountRepository) Disable(ctx context.Context, tx *gorm.DB, id int64) error {
	return tx.WithContext(ctx).Model(&models.LawyerBankAccount{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":  false,
			"is_default": false,
		}).Error
}
