package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/dumeirei/lawconsult-backend/internal/common/database"
	"github.com/dumeirei/lawconsult-backend/internal/models"
)

// WithdrawalRequestRepository 律师提现申请仓储
type WithdrawalRequestRepository struct {
	db *gorm.DB
}

// NewWithdrawalRequestRepository 创建律师提现申请仓储
func NewWithdrawalRequestRepository(db *gorm.DB) *WithdrawalRequestRepository {
	return &WithdrawalRequestRepository{db: db}
}

// Create 创建提现申请
func (r *WithdrawalRequestRepository) Create(ctx context.Context, tx *gorm.DB, withdrawal *models.WithdrawalRequest) error {
	return tx.WithContext(ctx).Create(withdrawal).Error
}

// GetByID 根据 ID 获取提现申请
func (r *WithdrawalRequestRepository) GetByID(ctx context.Context, id int64) (*models.WithdrawalRequest, error) {
	var withdrawal models.WithdrawalRequest
	if err := r.db.WithContext(ctx).First(&withdrawal, id).Error; err != nil {
		return nil, err
	}
	return &withdrawal, nil
}

// GetByRequestNo 根据提现单号获取申请
func (r *WithdrawalRequestRepository) GetByRequestNo(ctx context.Context, requestNo string) (*models.WithdrawalRequest, error) {
	var withdrawal models.WithdrawalRequest
	err := r.db.WithContext(ctx).Where("request_no = ?", requestNo).First(&withdrawal).Error
	if err != nil {
		return nil, err
	}
	return &withdrawal, nil
}

// GetForUpdate 获取提现申请并加行锁（在事务中使用）
func (r *WithdrawalRequestRepository) GetForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*models.WithdrawalRequest, error) {
	var withdrawal models.WithdrawalRequest
	if err := database.ForUpdate(tx.WithContext(ctx)).First(&withdrawal, id).Error; err != nil {
		return nil, err
	}
	return &withdrawal, nil
}

// Save 保存提现申请
func (r *WithdrawalRequestRepository) Save(ctx context.Context, tx *gorm.DB, withdrawal *models.WithdrawalRequest) error {
	return tx.WithContext(ctx).Save(withdrawal).Error
}

// CountOpenByLawyer 统计律师未完结（待审核、已通过）的申请数
func (r *WithdrawalRequestRepository) CountOpenByLawyer(ctx context.Context, tx *gorm.DB, lawyerID int64) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&models.WithdrawalRequest{}).
		Where("lawyer_id = ? AND status IN ?", lawyerID,
			[]string{models.WithdrawalStatusPending, models.WithdrawalStatusApproved}).
		Count(&count).Error
	return count, err
}

// List 获取提现申请列表
func (r *WithdrawalRequestRepository) List(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.WithdrawalRequest, int64, error) {
	var withdrawals []*models.WithdrawalRequest
	var total int64

	query := r.db.WithContext(ctx).Model(&models.WithdrawalRequest{})

	// 应用过滤条件
	if lawyerID, ok := filters["lawyer_id"].(int64); ok && lawyerID > 0 {
		query = query.Where("lawyer_id = ?", lawyerID)
	}
	if status, ok := filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", status)
	}
	if method, ok := filters["withdraw_method"].(string); ok && method != "" {
		query = query.Where("withdraw_method = ?", method)
	}
	if requestNo, ok := filters["request_no"].(string); ok && requestNo != "" {
		query = query.Where("request_no = ?", requestNo)
	}
	if startTime, ok := filters["start_time"].(time.Time); ok {
		query = query.Where("created_at >= ?", startTime)
	}
	if endTime, ok := filters["end_time"].(time.Time); ok {
		query = query.Where("created_at <= ?", endTime)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&withdrawals).Error; err != nil {
		return nil, 0, err
	}

	return withdrawals, total, nil
}

// WithdrawalStatusStat 按状态统计的提现
type WithdrawalStatusStat struct {
	Status      string `json:"status"`
	Count       int64  `json:"count"`
	AmountCents int64  `json:"amount_cents"`
	FeeCents    int64  `json:"fee_cents"`
	ActualCents int64  `json:"actual_cents"`
}

// StatsByStatus 按状态统计提现，lawyerID 为 0 时统计全部
func (r *WithdrawalRequestRepository) StatsByStatus(ctx context.Context, lawyerID int64) ([]WithdrawalStatusStat, error) {
	var rows []WithdrawalStatusStat
	query := r.db.WithContext(ctx).Model(&models.WithdrawalRequest{}).
		Select("status, COUNT(*) AS count, " +
			database.CentsSum("amount") + " AS amount_cents, " +
			database.CentsSum("fee") + " AS fee_cents, " +
			database.CentsSum("actual_amount") + " AS actual_cents")
	if lawyerID > 0 {
		query = query.Where("lawyer_id = ?", lawyerID)
	}
	err := query.Group("status").Order("status ASC").Scan(&rows).Error
	return rows, err
}
