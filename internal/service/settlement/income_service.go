package settlement

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/dumeirei/lawconsult-backend/internal/common/config"
	"github.com/dumeirei/lawconsult-backend/internal/common/database"
	appErrors "github.com/dumeirei/lawconsult-backend/internal/common/errors"
	"github.com/dumeirei/lawconsult-backend/internal/common/logger"
	"github.com/dumeirei/lawconsult-backend/internal/common/metrics"
	"github.com/dumeirei/lawconsult-backend/internal/common/money"
	"github.com/dumeirei/lawconsult-backend/internal/common/tracing"
	"github.com/dumeirei/lawconsult-backend/internal/models"
	"github.com/dumeirei/lawconsult-backend/internal/repository"
)

const defaultSettleBatch = 500

// IncomeService 律师收入服务
type IncomeService struct {
	db         *gorm.DB
	cfg        *config.SettlementConfig
	incomeRepo *repository.LawyerIncomeRecordRepository
	lawyerRepo *repository.LawyerRepository
	wallets    *WalletService
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewIncomeService 创建律师收入服务
func NewIncomeService(
	db *gorm.DB,
	cfg *config.SettlementConfig,
	incomeRepo *repository.LawyerIncomeRecordRepository,
	lawyerRepo *repository.LawyerRepository,
	wallets *WalletService,
	m *metrics.Metrics,
) *IncomeService {
	return &IncomeService{
		db:         db,
		cfg:        cfg,
		incomeRepo: incomeRepo,
		lawyerRepo: lawyerRepo,
		wallets:    wallets,
		metrics:    m,
		now:        time.Now,
	}
}

// EnsureIncomeRecord 为已支付的咨询生成收入记录
//
// 订单未支付时返回 nil；同一律师同一咨询重复调用返回已有记录，不会重复入账。
func (s *IncomeService) EnsureIncomeRecord(ctx context.Context, ev *models.ConsultationPaid) (*models.LawyerIncomeRecord, error) {
	if ev == nil || ev.Status != models.OrderStatusPaid {
		return nil, nil
	}

	ctx, span := tracing.StartSpan(ctx, "settlement.income.ensure",
		tracing.WithLawyerID(ev.LawyerID), tracing.WithOperation("ensure_income_record"))
	var err error
	defer func() { tracing.End(span, err) }()

	existing, err := s.incomeRepo.GetByLawyerConsultation(ctx, nil, ev.LawyerID, ev.ConsultationID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		err = appErrors.ErrDatabaseError.WithError(err)
		return nil, err
	}

	paid, perr := money.Parse(ev.ActualAmount)
	if perr != nil || paid.IsNegative() {
		err = appErrors.ErrInvalidAmount.WithMessage(fmt.Sprintf("无效的支付金额: %q", ev.ActualAmount))
		return nil, err
	}

	lawyer, lerr := s.lawyerRepo.GetByID(ctx, ev.LawyerID)
	if lerr != nil {
		if errors.Is(lerr, gorm.ErrRecordNotFound) {
			err = appErrors.ErrLawyerNotFound
		} else {
			err = appErrors.ErrDatabaseError.WithError(lerr)
		}
		return nil, err
	}

	rate := ResolveFeeRate(lawyer.ID, lawyer.Rating, lawyer.CompletedCount, s.cfg.Fee)
	fee := money.Clamp(money.MulRate(paid, rate), money.Zero, paid)
	income := money.Sub(paid, fee)
	now := s.now()

	record := &models.LawyerIncomeRecord{
		LawyerID:       ev.LawyerID,
		ConsultationID: ev.ConsultationID,
		OrderNo:        ev.OrderNo,
		UserPaidAmount: paid,
		FeeRate:        rate,
		PlatformFee:    fee,
		LawyerIncome:   income,
		Status:         models.IncomeStatusPending,
		SettleTime:     now.Add(s.cfg.FreezePeriod()),
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wallet, err := s.wallets.Lock(ctx, tx, ev.LawyerID)
		if err != nil {
			return err
		}
		if err := s.incomeRepo.Create(ctx, tx, record); err != nil {
			return err
		}
		wallet.AddIncome(income)
		return s.wallets.Save(ctx, tx, wallet)
	})
	if txErr != nil {
		// 并发创建时唯一索引冲突，返回已存在的记录
		if existing, gerr := s.incomeRepo.GetByLawyerConsultation(ctx, nil, ev.LawyerID, ev.ConsultationID); gerr == nil {
			return existing, nil
		}
		if appErrors.IsAppError(txErr) {
			err = txErr
		} else {
			err = appErrors.ErrDatabaseError.WithError(txErr)
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordIncomeCreated()
	}
	logger.Info("lawyer income recorded",
		logger.Module("settlement"),
		logger.LawyerID(ev.LawyerID),
		logger.ConsultationID(ev.ConsultationID),
		logger.Cents("income", money.ToCents(income)),
		logger.String("fee_rate", rate.String()),
	)
	return record, nil
}

// SettleResult 结算结果
type SettleResult struct {
	Settled int `json:"settled"`
}

// SettleDueRecords 将冻结期已满的收入记录转为已结算
//
// 每批记录在一个事务中处理并统一提交；中途失败时已提交批次保持结算状态，重试不会重复入账。
func (s *IncomeService) SettleDueRecords(ctx context.Context, now time.Time) (*SettleResult, error) {
	ctx, span := tracing.StartSpan(ctx, "settlement.income.settle_due", tracing.WithOperation("settle_due_records"))
	var err error
	defer func() { tracing.End(span, err) }()

	batch := s.cfg.SettleBatch
	if batch <= 0 {
		batch = defaultSettleBatch
	}

	result := &SettleResult{}
	for {
		var fetched, settled int
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			records, err := s.incomeRepo.ListDuePending(ctx, tx, now, batch)
			if err != nil {
				return appErrors.ErrDatabaseError.WithError(err)
			}
			fetched = len(records)

			// 按律师 ID 升序先锁钱包，并发清算时加锁顺序一致
			wallets := make(map[int64]*models.LawyerWallet)
			for _, lawyerID := range walletIDs(records) {
				w, err := s.wallets.Lock(ctx, tx, lawyerID)
				if err != nil {
					return err
				}
				wallets[lawyerID] = w
			}

			for _, rec := range records {
				ok, err := s.incomeRepo.MarkSettled(ctx, tx, rec.ID, now)
				if err != nil {
					return appErrors.ErrDatabaseError.WithError(err)
				}
				if !ok {
					continue
				}
				settled++

				if income := rec.IncomeCents(); income > 0 {
					wallets[rec.LawyerID].ReleasePending(money.FromCents(income))
				}
			}

			for _, w := range wallets {
				if err := s.wallets.Save(ctx, tx, w); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return result, err
		}

		result.Settled += settled
		if fetched < batch {
			break
		}
	}

	if s.metrics != nil && result.Settled > 0 {
		s.metrics.RecordIncomeSettled(result.Settled)
	}
	if result.Settled > 0 {
		logger.Info("income records settled",
			logger.Module("settlement"),
			logger.Int("settled", result.Settled),
		)
	}
	return result, nil
}

// walletIDs 返回需要释放待结算金额的律师 ID，升序去重
func walletIDs(records []*models.LawyerIncomeRecord) []int64 {
	seen := make(map[int64]struct{}, len(records))
	ids := make([]int64, 0, len(records))
	for _, rec := range records {
		if rec.IncomeCents() <= 0 {
			continue
		}
		if _, ok := seen[rec.LawyerID]; ok {
			continue
		}
		seen[rec.LawyerID] = struct{}{}
		ids = append(ids, rec.LawyerID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// IncomeRecordView 收入记录，金额固定两位小数
type IncomeRecordView struct {
	ID              int64      `json:"id"`
	LawyerID        int64      `json:"lawyer_id"`
	ConsultationID  int64      `json:"consultation_id"`
	OrderNo         string     `json:"order_no"`
	UserPaidAmount  string     `json:"user_paid_amount"`
	FeeRate         string     `json:"fee_rate"`
	PlatformFee     string     `json:"platform_fee"`
	LawyerIncome    string     `json:"lawyer_income"`
	WithdrawnAmount string     `json:"withdrawn_amount"`
	Status          string     `json:"status"`
	SettleTime      time.Time  `json:"settle_time"`
	SettledAt       *time.Time `json:"settled_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// NewIncomeRecordView 由收入记录构造视图，费率保留四位小数
func NewIncomeRecordView(r *models.LawyerIncomeRecord) *IncomeRecordView {
	return &IncomeRecordView{
		ID:              r.ID,
		LawyerID:        r.LawyerID,
		ConsultationID:  r.ConsultationID,
		OrderNo:         r.OrderNo,
		UserPaidAmount:  money.String(r.UserPaidAmount),
		FeeRate:         r.FeeRate.StringFixed(4),
		PlatformFee:     money.String(r.PlatformFee),
		LawyerIncome:    money.String(r.LawyerIncome),
		WithdrawnAmount: money.String(r.WithdrawnAmount),
		Status:          r.Status,
		SettleTime:      r.SettleTime,
		SettledAt:       r.SettledAt,
		CreatedAt:       r.CreatedAt,
	}
}

// ListIncomeRecords 分页获取律师收入记录
func (s *IncomeService) ListIncomeRecords(ctx context.Context, lawyerID int64, status string, page, pageSize int) ([]*IncomeRecordView, int64, error) {
	switch status {
	case "", models.IncomeStatusPending, models.IncomeStatusSettled, models.IncomeStatusWithdrawn:
	default:
		return nil, 0, appErrors.ErrInvalidParams.WithMessage("无效的收入状态")
	}

	offset, limit := database.PageBounds(page, pageSize)
	records, total, err := s.incomeRepo.List(ctx, offset, limit, map[string]interface{}{
		"lawyer_id": lawyerID,
		"status":    status,
	})
	if err != nil {
		return nil, 0, appErrors.ErrDatabaseError.WithError(err)
	}

	views := make([]*IncomeRecordView, 0, len(records))
	for _, r := range records {
		views = append(views, NewIncomeRecordView(r))
	}
	return views, total, nil
}

// IncomeSummary 律师收入汇总
type IncomeSummary struct {
	LawyerID    int64                            `json:"lawyer_id"`
	ByStatus    []repository.IncomeStatusSummary `json:"by_status"`
	TotalIncome string                           `json:"total_income"`
	TotalFee    string                           `json:"total_fee"`
}

// Summary 按状态汇总律师收入，金额由分值聚合
func (s *IncomeService) Summary(ctx context.Context, lawyerID int64) (*IncomeSummary, error) {
	rows, err := s.incomeRepo.SummaryByStatus(ctx, lawyerID)
	if err != nil {
		return nil, appErrors.ErrDatabaseError.WithError(err)
	}

	var income, fee int64
	for _, r := range rows {
		income += r.IncomeCents
		fee += r.FeeCents
	}
	return &IncomeSummary{
		LawyerID:    lawyerID,
		ByStatus:    rows,
		TotalIncome: money.String(money.FromCents(income)),
		TotalFee:    money.String(money.FromCents(fee)),
	}, nil
}
