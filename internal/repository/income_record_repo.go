package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dumeirei/lawconsult-backend/internal/common/database"
	"github.com/dumeirei/lawconsult-backend/internal/models"
)

// LawyerIncomeRecordRepository 律师收入记录仓储
type LawyerIncomeRecordRepository struct {
	db *gorm.DB
}

// NewLawyerIncomeRecordRepository 创建律师收入记录仓储
func NewLawyerIncomeRecordRepository(db *gorm.DB) *LawyerIncomeRecordRepository {
	return &LawyerIncomeRecordRepository{db: db}
}

// Create 创建收入记录
func (r *LawyerIncomeRecordRepository) Create(ctx context.Context, tx *gorm.DB, record *models.LawyerIncomeRecord) error {
	return tx.WithContext(ctx).Create(record).Error
}

// GetByLawyerConsultation 根据律师与咨询获取收入记录
func (r *LawyerIncomeRecordRepository) GetByLawyerConsultation(ctx context.Context, tx *gorm.DB, lawyerID, consultationID int64) (*models.LawyerIncomeRecord, error) {
	if tx == nil {
		tx = r.db
	}
	var record models.LawyerIncomeRecord
	err := tx.WithContext(ctx).
		Where("lawyer_id = ? AND consultation_id = ?", lawyerID, consultationID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// List 获取收入记录列表
func (r *LawyerIncomeRecordRepository) List(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.LawyerIncomeRecord, int64, error) {
	var records []*models.LawyerIncomeRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&models.LawyerIncomeRecord{})

	if lawyerID, ok := filters["lawyer_id"].(int64); ok && lawyerID > 0 {
		query = query.Where("lawyer_id = ?", lawyerID)
	}
	if status, ok := filters["status"].(string); ok && status != "" {
		query = query.Where("status = ?", status)
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
		Scopes(database.OrderByCreatedDesc).
		Offset(offset).
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

// ListDuePending 获取到期的待结算记录，按结算时间升序并加锁
//
// 多实例同时清算时跳过已被锁定的行。
func (r *LawyerIncomeRecordRepository) ListDuePending(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]*models.LawyerIncomeRecord, error) {
	var records []*models.LawyerIncomeRecord
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ? AND settle_time <= ?", models.IncomeStatusPending, now).
		Order("settle_time ASC").
		Order("id ASC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// MarkSettled 待结算记录标记为已结算，返回是否实际更新
func (r *LawyerIncomeRecordRepository) MarkSettled(ctx context.Context, tx *gorm.DB, id int64, now time.Time) (bool, error) {
	result := tx.WithContext(ctx).Model(&models.LawyerIncomeRecord{}).
		Where("id = ? AND status = ?", id, models.IncomeStatusPending).
		Updates(map[string]interface{}{
			"status":     models.IncomeStatusSettled,
			"settled_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListAllocatable 获取可分摊的收入记录
//
// 按 (settle_time, created_at, id) 升序，保证先结算的收入先被分摊。
func (r *LawyerIncomeRecordRepository) ListAllocatable(ctx context.Context, tx *gorm.DB, lawyerID int64) ([]*models.LawyerIncomeRecord, error) {
	var records []*models.LawyerIncomeRecord
	err := database.ForUpdate(tx.WithContext(ctx)).
		Where("lawyer_id = ? AND status IN ?", lawyerID,
			[]string{models.IncomeStatusSettled, models.IncomeStatusWithdrawn}).
		Order("settle_time ASC").
		Order("created_at ASC").
		Order("id ASC").
		Find(&records).Error
	return records, err
}

// SaveAllocation 保存分摊结果
func (r *LawyerIncomeRecordRepository) SaveAllocation(ctx context.Context, tx *gorm.DB, record *models.LawyerIncomeRecord) error {
	return tx.WithContext(ctx).Model(record).
		Select("withdrawn_amount", "withdrawn_amount_cents", "status", "updated_at").
		Updates(record).Error
}

// SumWithdrawnCents 统计律师全部收入记录的已分摊金额（分）
func (r *LawyerIncomeRecordRepository) SumWithdrawnCents(ctx context.Context, tx *gorm.DB, lawyerID int64) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	var sum int64
	err := tx.WithContext(ctx).Model(&models.LawyerIncomeRecord{}).
		Select(database.CentsSum("withdrawn_amount")).
		Where("lawyer_id = ?", lawyerID).
		Scan(&sum).Error
	return sum, err
}

// IncomeStatusSummary 按状态汇总的收入
type IncomeStatusSummary struct {
	Status      string `json:"status"`
	Count       int64  `json:"count"`
	IncomeCents int64  `json:"income_cents"`
	FeeCents    int64  `json:"fee_cents"`
}

// SummaryByStatus 按状态汇总律师收入
func (r *LawyerIncomeRecordRepository) SummaryByStatus(ctx context.Context, lawyerID int64) ([]IncomeStatusSummary, error) {
	var rows []IncomeStatusSummary
	err := r.db.WithContext(ctx).Model(&models.LawyerIncomeRecord{}).
		Select("status, COUNT(*) AS count, "+
			database.CentsSum("lawyer_income")+" AS income_cents, "+
			database.CentsSum("platform_fee")+" AS fee_cents").
		Where("lawyer_id = ?", lawyerID).
		Group("status").
		Order("status ASC").
		Scan(&rows).Error
	return rows, err
}
