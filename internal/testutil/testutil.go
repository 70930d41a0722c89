// Package testutil 提供测试辅助工具
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dumeirei/lawconsult-backend/internal/common/config"
	"github.com/dumeirei/lawconsult-backend/internal/models"
)

var seq int64

// NewTestDB 创建迁移好结算表的内存数据库
//
// 使用共享缓存 DSN 并限制单连接，事务内外查询落在同一个库上。
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, atomic.AddInt64(&seq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.SettlementModels()...))
	return db
}

// NewTestRedis 创建基于 miniredis 的客户端
func NewTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// SettlementConfig 测试用结算配置
func SettlementConfig() config.SettlementConfig {
	return config.Default().Settlement
}

// Dec 解析金额，测试中书写更简洁
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// CreateLawyer 创建律师档案
func CreateLawyer(t *testing.T, db *gorm.DB, rating float64, completed int) *models.Lawyer {
	t.Helper()

	n := atomic.AddInt64(&seq, 1)
	lawyer := &models.Lawyer{
		UserID:         1000 + n,
		Name:           fmt.Sprintf("律师%d", n),
		Rating:         rating,
		CompletedCount: completed,
		Status:         models.LawyerStatusActive,
	}
	require.NoError(t, db.Create(lawyer).Error)
	return lawyer
}

// CreateWallet 直接写入指定余额的钱包
func CreateWallet(t *testing.T, db *gorm.DB, lawyerID int64, total, withdrawn, pending, frozen string) *models.LawyerWallet {
	t.Helper()

	w := &models.LawyerWallet{
		LawyerID:        lawyerID,
		TotalIncome:     Dec(total),
		WithdrawnAmount: Dec(withdrawn),
		PendingAmount:   Dec(pending),
		FrozenAmount:    Dec(frozen),
	}
	require.NoError(t, db.Create(w).Error)
	return w
}

// CreateSettledIncome 写入一条已结算收入记录
func CreateSettledIncome(t *testing.T, db *gorm.DB, lawyerID, consultationID int64, income string, settleTime time.Time) *models.LawyerIncomeRecord {
	t.Helper()

	amt := Dec(income)
	rec := &models.LawyerIncomeRecord{
		LawyerID:       lawyerID,
		ConsultationID: consultationID,
		OrderNo:        fmt.Sprintf("CO%d", consultationID),
		UserPaidAmount: amt,
		FeeRate:        decimal.Zero,
		PlatformFee:    decimal.Zero,
		LawyerIncome:   amt,
		Status:         models.IncomeStatusSettled,
		SettleTime:     settleTime,
		SettledAt:      &settleTime,
	}
	require.NoError(t, db.Create(rec).Error)
	return rec
}
