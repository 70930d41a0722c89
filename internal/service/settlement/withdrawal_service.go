package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dumeirei/lawconsult-backend/internal/common/cache"
	"github.com/dumeirei/lawconsult-backend/internal/common/config"
	"github.com/dumeirei/lawconsult-backend/internal/common/crypto"
	"github.com/dumeirei/lawconsult-backend/internal/common/database"
	appErrors "github.com/dumeirei/lawconsult-backend/internal/common/errors"
	"github.com/dumeirei/lawconsult-backend/internal/common/logger"
	"github.com/dumeirei/lawconsult-backend/internal/common/metrics"
	"github.com/dumeirei/lawconsult-backend/internal/common/money"
	"github.com/dumeirei/lawconsult-backend/internal/common/tracing"
	"github.com/dumeirei/lawconsult-backend/internal/common/utils"
	"github.com/dumeirei/lawconsult-backend/internal/models"
	"github.com/dumeirei/lawconsult-backend/internal/repository"
)

// 审核操作
const (
	ActionCreate   = "create"
	ActionApprove  = "approve"
	ActionReject   = "reject"
	ActionComplete = "complete"
	ActionFail     = "fail"
)

const (
	withdrawLockTTL   = 10 * time.Second
	defaultMaxPending = 5
	requestNoPrefix   = "WD"
)

// EventPublisher 提现事件发布，在事务提交后调用
type EventPublisher interface {
	PublishWithdrawal(ctx context.Context, ev *models.WithdrawalEvent) error
}

// WithdrawalService 律师提现服务
type WithdrawalService struct {
	db             *gorm.DB
	cfg            *config.SettlementConfig
	withdrawalRepo *repository.WithdrawalRequestRepository
	bankRepo       *repository.LawyerBankAccountRepository
	incomeRepo     *repository.LawyerIncomeRecordRepository
	wallets        *WalletService
	codec          *crypto.SecretCodec
	locker         *cache.Locker
	metrics        *metrics.Metrics
	publisher      EventPublisher
	now            func() time.Time

	// allocate 分摊实现，测试中替换以模拟失败
	allocate func(ctx context.Context, tx *gorm.DB, lawyerID, cents int64) (int64, error)
}

// NewWithdrawalService 创建律师提现服务
func NewWithdrawalService(
	db *gorm.DB,
	cfg *config.SettlementConfig,
	withdrawalRepo *repository.WithdrawalRequestRepository,
	bankRepo *repository.LawyerBankAccountRepository,
	incomeRepo *repository.LawyerIncomeRecordRepository,
	wallets *WalletService,
	codec *crypto.SecretCodec,
	locker *cache.Locker,
	m *metrics.Metrics,
) *WithdrawalService {
	s := &WithdrawalService{
		db:             db,
		cfg:            cfg,
		withdrawalRepo: withdrawalRepo,
		bankRepo:       bankRepo,
		incomeRepo:     incomeRepo,
		wallets:        wallets,
		codec:          codec,
		locker:         locker,
		metrics:        m,
		now:            time.Now,
	}
	s.allocate = s.allocateIncome
	return s
}

// SetPublisher 设置事件发布器
func (s *WithdrawalService) SetPublisher(p EventPublisher) {
	s.publisher = p
}

// CreateWithdrawalRequest 提现申请参数
type CreateWithdrawalRequest struct {
	LawyerID      int64           `json:"-"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"withdraw_method" binding:"required"`
	BankAccountID int64           `json:"bank_account_id" binding:"required"`
}

// Create 律师发起提现，申请金额从可提现转入冻结
func (s *WithdrawalService) Create(ctx context.Context, req *CreateWithdrawalRequest) (*models.WithdrawalRequest, error) {
	ctx, span := tracing.StartSpan(ctx, "settlement.withdrawal.create",
		tracing.WithLawyerID(req.LawyerID), tracing.WithOperation(ActionCreate))
	var err error
	defer func() { tracing.End(span, err) }()

	if err = s.validateMethod(req.Method); err != nil {
		return nil, err
	}
	amount := money.Quantize(req.Amount)
	if err = s.validateAmount(amount); err != nil {
		return nil, err
	}

	lock, lerr := s.locker.TryAcquire(ctx, cache.BuildKey(cache.KeyPrefixLock, "withdraw", fmt.Sprint(req.LawyerID)), withdrawLockTTL)
	switch {
	case errors.Is(lerr, cache.ErrLockNotAcquired):
		err = appErrors.ErrWithdrawInProgress
		return nil, err
	case lerr != nil:
		// Redis 不可用时依赖数据库行锁
		logger.Warn("withdraw lock unavailable", logger.LawyerID(req.LawyerID), logger.Err(lerr))
	default:
		defer func() { _ = lock.Release(context.WithoutCancel(ctx)) }()
	}

	var withdrawal *models.WithdrawalRequest
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wallet, err := s.wallets.Lock(ctx, tx, req.LawyerID)
		if err != nil {
			return err
		}

		maxPending := s.cfg.Withdraw.MaxPending
		if maxPending <= 0 {
			maxPending = defaultMaxPending
		}
		open, err := s.withdrawalRepo.CountOpenByLawyer(ctx, tx, req.LawyerID)
		if err != nil {
			return appErrors.ErrDatabaseError.WithError(err)
		}
		if open >= int64(maxPending) {
			return appErrors.ErrTooManyPendingWithdrawals.WithMessage(
				fmt.Sprintf("最多同时存在 %d 笔处理中的提现申请", maxPending))
		}

		if wallet.AvailableCents() < money.ToCents(amount) {
			return appErrors.ErrInsufficientBalance.WithMessage(
				fmt.Sprintf("可提现余额不足，当前可提现: %s元", money.String(wallet.AvailableAmount)))
		}

		snapshot, err := s.snapshot(ctx, tx, req)
		if err != nil {
			return err
		}

		fee := s.withdrawFee(amount)
		withdrawal = &models.WithdrawalRequest{
			RequestNo:      utils.GenerateOrderNo(requestNoPrefix),
			LawyerID:       req.LawyerID,
			Amount:         amount,
			Fee:            fee,
			ActualAmount:   money.Sub(amount, fee),
			WithdrawMethod: req.Method,
			Status:         models.WithdrawalStatusPending,
		}
		if err := withdrawal.SetSnapshot(snapshot); err != nil {
			return appErrors.ErrInternalError.WithError(err)
		}

		wallet.Freeze(amount)
		if err := s.wallets.Save(ctx, tx, wallet); err != nil {
			return err
		}
		if err := s.withdrawalRepo.Create(ctx, tx, withdrawal); err != nil {
			return appErrors.ErrDatabaseError.WithError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, withdrawal, ActionCreate, nil)
	return withdrawal, nil
}

func (s *WithdrawalService) validateMethod(method string) error {
	if utils.Contains(s.cfg.Withdraw.Methods, method) {
		return nil
	}
	return appErrors.ErrUnsupportedWithdrawMethod.WithMessage(fmt.Sprintf("不支持的提现方式: %s", method))
}

func (s *WithdrawalService) validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return appErrors.ErrInvalidAmount.WithMessage("提现金额必须大于 0")
	}
	lo := money.FromFloat(s.cfg.Withdraw.MinAmount)
	hi := money.FromFloat(s.cfg.Withdraw.MaxAmount)
	if amount.LessThan(lo) || amount.GreaterThan(hi) {
		return appErrors.ErrAmountOutOfRange.WithMessage(
			fmt.Sprintf("提现金额需在 %s 至 %s 元之间", money.String(lo), money.String(hi)))
	}
	return nil
}

// withdrawFee 固定手续费 + 比例手续费，限制在 [0, amount]
func (s *WithdrawalService) withdrawFee(amount decimal.Decimal) decimal.Decimal {
	fee := money.Add(
		money.FromFloat(s.cfg.Withdraw.FeeFixed),
		money.MulRate(amount, decimal.NewFromFloat(s.cfg.Withdraw.FeeRate)),
	)
	return money.Clamp(fee, money.Zero, amount)
}

// snapshot 生成收款账户快照，账号重新加密后保存
func (s *WithdrawalService) snapshot(ctx context.Context, tx *gorm.DB, req *CreateWithdrawalRequest) (*models.AccountSnapshot, error) {
	account, err := s.bankRepo.GetActiveOwned(ctx, tx, req.LawyerID, req.BankAccountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErrors.ErrBankAccountNotFound
		}
		return nil, appErrors.ErrDatabaseError.WithError(err)
	}
	if account.AccountType != req.Method {
		return nil, appErrors.ErrUnsupportedWithdrawMethod.WithMessage("提现方式与收款账户类型不一致")
	}

	plain := s.codec.Decrypt(account.AccountNo)
	if plain == "" {
		return nil, appErrors.ErrBankAccountNotFound.WithMessage("收款账号无法解密，请重新绑定")
	}
	sealed, err := s.codec.Reseal(account.AccountNo)
	if err != nil {
		return nil, appErrors.ErrInternalError.WithError(err)
	}

	return &models.AccountSnapshot{
		BankAccountID:   account.ID,
		AccountType:     account.AccountType,
		BankName:        account.BankName,
		AccountNo:       sealed,
		AccountNoMasked: crypto.MaskAccountNo(plain),
		AccountHolder:   account.AccountHolder,
	}, nil
}

// AdminActionRequest 管理员审核参数
type AdminActionRequest struct {
	WithdrawalID int64   `json:"-"`
	AdminID      int64   `json:"-"`
	Action       string  `json:"action" binding:"required,oneof=approve reject complete fail"`
	Reason       *string `json:"reason"`
	Remark       *string `json:"remark"`
}

// requiredStatus 各操作要求的前置状态
var requiredStatus = map[string]string{
	ActionApprove:  models.WithdrawalStatusPending,
	ActionReject:   models.WithdrawalStatusPending,
	ActionComplete: models.WithdrawalStatusApproved,
	ActionFail:     models.WithdrawalStatusApproved,
}

var statusNames = map[string]string{
	models.WithdrawalStatusPending:   "待审核",
	models.WithdrawalStatusApproved:  "已通过",
	models.WithdrawalStatusCompleted: "已打款",
	models.WithdrawalStatusRejected:  "已驳回",
	models.WithdrawalStatusFailed:    "打款失败",
}

// AdminAction 管理员推进提现状态
//
//	pending  -> approve  -> approved
//	pending  -> reject   -> rejected  冻结退回可提现
//	approved -> complete -> completed 冻结转已提现，并分摊到收入记录
//	approved -> fail     -> failed    冻结退回可提现
func (s *WithdrawalService) AdminAction(ctx context.Context, req *AdminActionRequest) (*models.WithdrawalRequest, error) {
	ctx, span := tracing.StartSpan(ctx, "settlement.withdrawal.admin_action",
		tracing.WithWithdrawalID(req.WithdrawalID),
		tracing.WithAdminID(req.AdminID),
		tracing.WithOperation(req.Action))
	var err error
	defer func() { tracing.End(span, err) }()

	required, ok := requiredStatus[req.Action]
	if !ok {
		err = appErrors.ErrInvalidWithdrawAction.WithMessage(fmt.Sprintf("无效的审核操作: %s", req.Action))
		return nil, err
	}

	var (
		withdrawal *models.WithdrawalRequest
		allocErr   error
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := s.withdrawalRepo.GetForUpdate(ctx, tx, req.WithdrawalID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return appErrors.ErrWithdrawalNotFound
			}
			return appErrors.ErrDatabaseError.WithError(err)
		}
		if w.Status != required {
			return appErrors.ErrInvalidStateForAction.WithMessage(fmt.Sprintf(
				"只有%s状态的提现申请可以执行 %s，当前状态: %s",
				statusNames[required], req.Action, statusNames[w.Status]))
		}

		wallet, err := s.wallets.Lock(ctx, tx, w.LawyerID)
		if err != nil {
			return err
		}

		now := s.now()
		adminID := req.AdminID
		w.AdminID = &adminID
		if req.Remark != nil {
			w.Remark = req.Remark
		}

		switch req.Action {
		case ActionApprove:
			w.Status = models.WithdrawalStatusApproved
			w.ReviewedAt = &now
		case ActionReject:
			w.Status = models.WithdrawalStatusRejected
			w.ReviewedAt = &now
			w.RejectReason = req.Reason
			wallet.Unfreeze(w.Amount)
		case ActionComplete:
			w.Status = models.WithdrawalStatusCompleted
			w.CompletedAt = &now
			wallet.SettleWithdrawal(w.Amount)
		case ActionFail:
			w.Status = models.WithdrawalStatusFailed
			w.CompletedAt = &now
			if req.Reason != nil {
				w.RejectReason = req.Reason
			}
			wallet.Unfreeze(w.Amount)
		}

		if err := s.withdrawalRepo.Save(ctx, tx, w); err != nil {
			return appErrors.ErrDatabaseError.WithError(err)
		}
		if err := s.wallets.Save(ctx, tx, wallet); err != nil {
			return err
		}

		if req.Action == ActionComplete {
			// 分摊失败只回滚保存点，不影响打款完成
			allocErr = tx.Transaction(func(sp *gorm.DB) (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("income allocation panic: %v", r)
					}
				}()
				_, err = s.allocate(ctx, sp, w.LawyerID, w.AmountCentsValue())
				return err
			})
		}

		withdrawal = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, withdrawal, req.Action, allocErr)
	return withdrawal, nil
}

// allocateIncome 按先结算先分摊的顺序，把已提现金额记到收入记录上，返回未能分摊的余数
func (s *WithdrawalService) allocateIncome(ctx context.Context, tx *gorm.DB, lawyerID, cents int64) (int64, error) {
	records, err := s.incomeRepo.ListAllocatable(ctx, tx, lawyerID)
	if err != nil {
		return cents, err
	}

	left := cents
	for _, rec := range records {
		if left <= 0 {
			break
		}
		take := rec.Allocate(left)
		if take == 0 {
			continue
		}
		if err := s.incomeRepo.SaveAllocation(ctx, tx, rec); err != nil {
			return left, err
		}
		left -= take
	}
	return left, nil
}

func (s *WithdrawalService) afterTransition(ctx context.Context, w *models.WithdrawalRequest, action string, allocErr error) {
	if s.metrics != nil {
		s.metrics.RecordWithdrawal(action, w.AmountCentsValue())
	}

	fields := []logger.Field{
		logger.Module("settlement"),
		logger.Action(action),
		logger.WithdrawalID(w.ID),
		logger.RequestNo(w.RequestNo),
		logger.LawyerID(w.LawyerID),
		logger.Cents("amount", w.AmountCentsValue()),
		logger.String("status", w.Status),
	}
	if w.AdminID != nil {
		fields = append(fields, logger.AdminID(*w.AdminID))
	}
	logger.Info("withdrawal transitioned", fields...)

	if allocErr != nil {
		if s.metrics != nil {
			s.metrics.RecordAllocationFailure()
		}
		logger.Error("withdrawal income allocation failed",
			logger.Module("settlement"),
			logger.WithdrawalID(w.ID),
			logger.RequestNo(w.RequestNo),
			logger.LawyerID(w.LawyerID),
			logger.Cents("amount", w.AmountCentsValue()),
			logger.Err(allocErr),
		)
	}

	if s.publisher == nil {
		return
	}
	ev := &models.WithdrawalEvent{
		RequestNo:    w.RequestNo,
		WithdrawalID: w.ID,
		LawyerID:     w.LawyerID,
		Action:       action,
		Status:       w.Status,
		Amount:       money.String(w.Amount),
		ActualAmount: money.String(w.ActualAmount),
		OccurredAt:   s.now(),
	}
	if err := s.publisher.PublishWithdrawal(ctx, ev); err != nil {
		logger.Warn("publish withdrawal event failed",
			logger.RequestNo(w.RequestNo),
			logger.Action(action),
			logger.Err(err),
		)
	}
}

// WithdrawalFilter 提现列表过滤条件
type WithdrawalFilter struct {
	LawyerID  int64
	Status    string
	Method    string
	RequestNo string
	StartTime *time.Time
	EndTime   *time.Time
}

// AccountView 脱敏后的收款账户快照
type AccountView struct {
	BankAccountID   int64   `json:"bank_account_id"`
	AccountType     string  `json:"account_type"`
	BankName        *string `json:"bank_name,omitempty"`
	AccountNoMasked string  `json:"account_no_masked"`
	AccountHolder   string  `json:"account_holder"`
}

// WithdrawalView 提现申请详情，金额固定两位小数
type WithdrawalView struct {
	ID             int64        `json:"id"`
	RequestNo      string       `json:"request_no"`
	LawyerID       int64        `json:"lawyer_id"`
	Amount         string       `json:"amount"`
	Fee            string       `json:"fee"`
	ActualAmount   string       `json:"actual_amount"`
	WithdrawMethod string       `json:"withdraw_method"`
	Status         string       `json:"status"`
	RejectReason   *string      `json:"reject_reason,omitempty"`
	AdminID        *int64       `json:"admin_id,omitempty"`
	ReviewedAt     *time.Time   `json:"reviewed_at,omitempty"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
	Remark         *string      `json:"remark,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	Account        *AccountView `json:"account,omitempty"`
}

// View 构造提现详情，账户快照脱敏展示
func (s *WithdrawalService) View(w *models.WithdrawalRequest) *WithdrawalView {
	view := &WithdrawalView{
		ID:             w.ID,
		RequestNo:      w.RequestNo,
		LawyerID:       w.LawyerID,
		Amount:         money.String(w.Amount),
		Fee:            money.String(w.Fee),
		ActualAmount:   money.String(w.ActualAmount),
		WithdrawMethod: w.WithdrawMethod,
		Status:         w.Status,
		RejectReason:   w.RejectReason,
		AdminID:        w.AdminID,
		ReviewedAt:     w.ReviewedAt,
		CompletedAt:    w.CompletedAt,
		Remark:         w.Remark,
		CreatedAt:      w.CreatedAt,
	}
	snap, err := w.Snapshot()
	if err != nil {
		return view
	}
	// 解密失败时展示为空，不影响详情读取
	view.Account = &AccountView{
		BankAccountID:   snap.BankAccountID,
		AccountType:     snap.AccountType,
		BankName:        snap.BankName,
		AccountNoMasked: crypto.MaskAccountNo(s.codec.Decrypt(snap.AccountNo)),
		AccountHolder:   crypto.MaskName(snap.AccountHolder),
	}
	return view
}

// List 分页获取提现申请
func (s *WithdrawalService) List(ctx context.Context, filter *WithdrawalFilter, page, pageSize int) ([]*WithdrawalView, int64, error) {
	filters := map[string]interface{}{
		"lawyer_id":       filter.LawyerID,
		"status":          filter.Status,
		"withdraw_method": filter.Method,
		"request_no":      filter.RequestNo,
	}
	if filter.StartTime != nil {
		filters["start_time"] = *filter.StartTime
	}
	if filter.EndTime != nil {
		filters["end_time"] = *filter.EndTime
	}

	offset, limit := database.PageBounds(page, pageSize)
	list, total, err := s.withdrawalRepo.List(ctx, offset, limit, filters)
	if err != nil {
		return nil, 0, appErrors.ErrDatabaseError.WithError(err)
	}

	views := make([]*WithdrawalView, 0, len(list))
	for _, w := range list {
		views = append(views, s.View(w))
	}
	return views, total, nil
}

// Detail 获取提现详情，lawyerID 大于 0 时只允许查看本人的申请
func (s *WithdrawalService) Detail(ctx context.Context, id, lawyerID int64) (*WithdrawalView, error) {
	w, err := s.withdrawalRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErrors.ErrWithdrawalNotFound
		}
		return nil, appErrors.ErrDatabaseError.WithError(err)
	}
	if lawyerID > 0 && w.LawyerID != lawyerID {
		return nil, appErrors.ErrWithdrawalNotFound
	}
	return s.View(w), nil
}

// WithdrawalStats 提现统计
type WithdrawalStats struct {
	ByStatus      []repository.WithdrawalStatusStat `json:"by_status"`
	OpenCount     int64                             `json:"open_count"`
	OpenAmount    string                            `json:"open_amount"`
	WithdrawnPaid string                            `json:"withdrawn_paid"`
}

// Stats 按状态统计提现，lawyerID 为 0 时统计全部
func (s *WithdrawalService) Stats(ctx context.Context, lawyerID int64) (*WithdrawalStats, error) {
	rows, err := s.withdrawalRepo.StatsByStatus(ctx, lawyerID)
	if err != nil {
		return nil, appErrors.ErrDatabaseError.WithError(err)
	}

	stats := &WithdrawalStats{ByStatus: rows}
	var openCents, paidCents int64
	for _, r := range rows {
		switch r.Status {
		case models.WithdrawalStatusPending, models.WithdrawalStatusApproved:
			stats.OpenCount += r.Count
			openCents += r.AmountCents
		case models.WithdrawalStatusCompleted:
			paidCents += r.ActualCents
		}
	}
	stats.OpenAmount = money.String(money.FromCents(openCents))
	stats.WithdrawnPaid = money.String(money.FromCents(paidCents))
	return stats, nil
}
