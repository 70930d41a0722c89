package settlement

import (
	"context"
	"errors"

	"gorm.io/gorm"

	appErrors "github.com/dumeirei/lawconsult-backend/internal/common/errors"
	"github.com/dumeirei/lawconsult-backend/internal/common/logger"
	"github.com/dumeirei/lawconsult-backend/internal/common/metrics"
	"github.com/dumeirei/lawconsult-backend/internal/common/money"
	"github.com/dumeirei/lawconsult-backend/internal/common/tracing"
	"github.com/dumeirei/lawconsult-backend/internal/models"
	"github.com/dumeirei/lawconsult-backend/internal/repository"
)

const reconcilePageSize = 200

// ReconcileService 钱包与收入分摊对账
type ReconcileService struct {
	db         *gorm.DB
	walletRepo *repository.LawyerWalletRepository
	incomeRepo *repository.LawyerIncomeRecordRepository
	metrics    *metrics.Metrics
}

// NewReconcileService 创建对账服务
func NewReconcileService(
	db *gorm.DB,
	walletRepo *repository.LawyerWalletRepository,
	incomeRepo *repository.LawyerIncomeRecordRepository,
	m *metrics.Metrics,
) *ReconcileService {
	return &ReconcileService{
		db:         db,
		walletRepo: walletRepo,
		incomeRepo: incomeRepo,
		metrics:    m,
	}
}

// ReconcileReport 单个钱包的对账结果
type ReconcileReport struct {
	LawyerID           int64  `json:"lawyer_id"`
	WalletWithdrawn    string `json:"wallet_withdrawn"`
	AllocatedWithdrawn string `json:"allocated_withdrawn"`
	DriftCents         int64  `json:"drift_cents"`
	AvailableMismatch  bool   `json:"available_mismatch"`
	Drifted            bool   `json:"drifted"`
}

// ReconcileWallet 比对钱包已提现总额与收入记录已分摊总额
//
// 先锁钱包行再汇总分摊金额，进行中的打款完成提交后才会读取。
func (s *ReconcileService) ReconcileWallet(ctx context.Context, lawyerID int64) (*ReconcileReport, error) {
	var (
		wallet    *models.LawyerWallet
		allocated int64
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		wallet, err = s.walletRepo.GetForUpdate(ctx, tx, lawyerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return appErrors.ErrNotFound.WithMessage("律师钱包不存在")
			}
			return appErrors.ErrDatabaseError.WithError(err)
		}
		allocated, err = s.incomeRepo.SumWithdrawnCents(ctx, tx, lawyerID)
		if err != nil {
			return appErrors.ErrDatabaseError.WithError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	total, withdrawn, pending, frozen, available := wallet.Cents()
	derived := total - withdrawn - pending - frozen
	if derived < 0 {
		derived = 0
	}

	report := &ReconcileReport{
		LawyerID:           lawyerID,
		WalletWithdrawn:    money.String(money.FromCents(withdrawn)),
		AllocatedWithdrawn: money.String(money.FromCents(allocated)),
		DriftCents:         withdrawn - allocated,
		AvailableMismatch:  derived != available,
	}
	report.Drifted = report.DriftCents != 0 || report.AvailableMismatch

	if report.Drifted {
		logger.Error("wallet reconciliation drift",
			logger.Module("settlement"),
			logger.LawyerID(lawyerID),
			logger.Cents("wallet_withdrawn", withdrawn),
			logger.Cents("allocated_withdrawn", allocated),
			logger.Bool("available_mismatch", report.AvailableMismatch),
		)
	}
	return report, nil
}

// ReconcileSummary 全量对账汇总
type ReconcileSummary struct {
	Checked int     `json:"checked"`
	Drifted []int64 `json:"drifted"`
}

// ReconcileAll 逐个钱包对账，单个钱包出错不影响其它钱包
func (s *ReconcileService) ReconcileAll(ctx context.Context) (*ReconcileSummary, error) {
	ctx, span := tracing.StartSpan(ctx, "settlement.reconcile.all", tracing.WithOperation("reconcile_wallets"))
	var err error
	defer func() { tracing.End(span, err) }()

	summary := &ReconcileSummary{Drifted: []int64{}}
	var after int64
	for {
		var ids []int64
		ids, err = s.walletRepo.ListLawyerIDs(ctx, after, reconcilePageSize)
		if err != nil {
			err = appErrors.ErrDatabaseError.WithError(err)
			return summary, err
		}
		for _, id := range ids {
			report, rerr := s.ReconcileWallet(ctx, id)
			if rerr != nil {
				logger.Warn("reconcile wallet failed", logger.LawyerID(id), logger.Err(rerr))
				continue
			}
			summary.Checked++
			if report.Drifted {
				summary.Drifted = append(summary.Drifted, id)
			}
		}
		if len(ids) < reconcilePageSize {
			break
		}
		after = ids[len(ids)-1]
	}

	if s.metrics != nil {
		s.metrics.RecordReconcile(len(summary.Drifted))
	}
	return summary, nil
}
