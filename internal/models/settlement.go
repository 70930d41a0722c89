// Package models 定义数据模型
package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dumeirei/lawconsult-backend/internal/common/money"
)

// LawyerWallet 律师钱包
//
// 四个独立余额桶 + 派生的可提现余额，每个金额同时保存元和分两列。
type LawyerWallet struct {
	ID                   int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	LawyerID             int64           `gorm:"uniqueIndex;not null" json:"lawyer_id"`
	TotalIncome          decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"total_income"`
	TotalIncomeCents     *int64          `json:"-"`
	WithdrawnAmount      decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"withdrawn_amount"`
	WithdrawnAmountCents *int64          `json:"-"`
	PendingAmount        decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"pending_amount"`
	PendingAmountCents   *int64          `json:"-"`
	FrozenAmount         decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"frozen_amount"`
	FrozenAmountCents    *int64          `json:"-"`
	AvailableAmount      decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"available_amount"`
	AvailableAmountCents *int64          `json:"-"`
	CreatedAt            time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (LawyerWallet) TableName() string {
	return "lawyer_wallets"
}

// NewLawyerWallet 创建零余额钱包
func NewLawyerWallet(lawyerID int64) *LawyerWallet {
	w := &LawyerWallet{LawyerID: lawyerID}
	w.Recompute()
	return w
}

// Recompute 以分值为准重算可提现余额，四个余额桶出现负数时归零
func (w *LawyerWallet) Recompute() {
	total := clampCents(money.CentsOr(w.TotalIncomeCents, w.TotalIncome))
	withdrawn := clampCents(money.CentsOr(w.WithdrawnAmountCents, w.WithdrawnAmount))
	pending := clampCents(money.CentsOr(w.PendingAmountCents, w.PendingAmount))
	frozen := clampCents(money.CentsOr(w.FrozenAmountCents, w.FrozenAmount))

	w.setBuckets(total, withdrawn, pending, frozen)
}

func (w *LawyerWallet) setBuckets(total, withdrawn, pending, frozen int64) {
	available := clampCents(total - withdrawn - pending - frozen)

	setMoney(&w.TotalIncome, &w.TotalIncomeCents, total)
	setMoney(&w.WithdrawnAmount, &w.WithdrawnAmountCents, withdrawn)
	setMoney(&w.PendingAmount, &w.PendingAmountCents, pending)
	setMoney(&w.FrozenAmount, &w.FrozenAmountCents, frozen)
	setMoney(&w.AvailableAmount, &w.AvailableAmountCents, available)
}

// Cents 返回 (total, withdrawn, pending, frozen, available) 分值
func (w *LawyerWallet) Cents() (total, withdrawn, pending, frozen, available int64) {
	return money.CentsOr(w.TotalIncomeCents, w.TotalIncome),
		money.CentsOr(w.WithdrawnAmountCents, w.WithdrawnAmount),
		money.CentsOr(w.PendingAmountCents, w.PendingAmount),
		money.CentsOr(w.FrozenAmountCents, w.FrozenAmount),
		money.CentsOr(w.AvailableAmountCents, w.AvailableAmount)
}

// AvailableCents 可提现余额（分）
func (w *LawyerWallet) AvailableCents() int64 {
	_, _, _, _, available := w.Cents()
	return available
}

// AddIncome 新增待结算收入：总收入与待结算同时增加
func (w *LawyerWallet) AddIncome(amount decimal.Decimal) {
	total, withdrawn, pending, frozen, _ := w.Cents()
	c := money.ToCents(amount)
	w.setBuckets(clampCents(total+c), withdrawn, clampCents(pending+c), frozen)
}

// ReleasePending 待结算转为可提现
func (w *LawyerWallet) ReleasePending(amount decimal.Decimal) {
	total, withdrawn, pending, frozen, _ := w.Cents()
	w.setBuckets(total, withdrawn, clampCents(pending-money.ToCents(amount)), frozen)
}

// Freeze 可提现转为冻结
func (w *LawyerWallet) Freeze(amount decimal.Decimal) {
	total, withdrawn, pending, frozen, _ := w.Cents()
	w.setBuckets(total, withdrawn, pending, clampCents(frozen+money.ToCents(amount)))
}

// Unfreeze 冻结退回可提现
func (w *LawyerWallet) Unfreeze(amount decimal.Decimal) {
	total, withdrawn, pending, frozen, _ := w.Cents()
	w.setBuckets(total, withdrawn, pending, clampCents(frozen-money.ToCents(amount)))
}

// SettleWithdrawal 冻结转为已提现
func (w *LawyerWallet) SettleWithdrawal(amount decimal.Decimal) {
	total, withdrawn, pending, frozen, _ := w.Cents()
	c := money.ToCents(amount)
	w.setBuckets(total, clampCents(withdrawn+c), pending, clampCents(frozen-c))
}

// BeforeSave 保存前重算并同步分值镜像
func (w *LawyerWallet) BeforeSave(tx *gorm.DB) error {
	w.Recompute()
	return nil
}

// IncomeStatus 收入记录状态
const (
	IncomeStatusPending   = "pending"   // 冻结期内
	IncomeStatusSettled   = "settled"   // 已结算可提现
	IncomeStatusWithdrawn = "withdrawn" // 已全部提现
)

// LawyerIncomeRecord 律师收入记录，每个已支付咨询一条
type LawyerIncomeRecord struct {
	ID                   int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	LawyerID             int64           `gorm:"not null;uniqueIndex:uk_income_lawyer_consultation,priority:1;index:idx_income_status_settle,priority:2" json:"lawyer_id"`
	ConsultationID       int64           `gorm:"not null;uniqueIndex:uk_income_lawyer_consultation,priority:2" json:"consultation_id"`
	OrderNo              string          `gorm:"type:varchar(64);not null" json:"order_no"`
	UserPaidAmount       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"user_paid_amount"`
	UserPaidAmountCents  *int64          `json:"-"`
	FeeRate              decimal.Decimal `gorm:"type:decimal(5,4);not null" json:"fee_rate"`
	PlatformFee          decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"platform_fee"`
	PlatformFeeCents     *int64          `json:"-"`
	LawyerIncome         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"lawyer_income"`
	LawyerIncomeCents    *int64          `json:"-"`
	WithdrawnAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"withdrawn_amount"`
	WithdrawnAmountCents *int64          `json:"-"`
	Status               string          `gorm:"type:varchar(20);not null;index:idx_income_status_settle,priority:1" json:"status"`
	SettleTime           time.Time       `gorm:"not null;index" json:"settle_time"`
	SettledAt            *time.Time      `json:"settled_at,omitempty"`
	CreatedAt            time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (LawyerIncomeRecord) TableName() string {
	return "lawyer_income_records"
}

// IncomeCents 律师收入（分）
func (r *LawyerIncomeRecord) IncomeCents() int64 {
	return money.CentsOr(r.LawyerIncomeCents, r.LawyerIncome)
}

// WithdrawnCents 已提现（分）
func (r *LawyerIncomeRecord) WithdrawnCents() int64 {
	return money.CentsOr(r.WithdrawnAmountCents, r.WithdrawnAmount)
}

// RemainingCents 尚未分摊的收入（分）
func (r *LawyerIncomeRecord) RemainingCents() int64 {
	return clampCents(r.IncomeCents() - r.WithdrawnCents())
}

// Allocate 分摊提现金额，返回实际分摊的分值；全部分摊后状态变为 withdrawn
func (r *LawyerIncomeRecord) Allocate(cents int64) int64 {
	take := r.RemainingCents()
	if cents < take {
		take = cents
	}
	if take <= 0 {
		return 0
	}
	setMoney(&r.WithdrawnAmount, &r.WithdrawnAmountCents, r.WithdrawnCents()+take)
	if r.RemainingCents() == 0 {
		r.Status = IncomeStatusWithdrawn
	}
	return take
}

// BeforeSave 同步分值镜像
func (r *LawyerIncomeRecord) BeforeSave(tx *gorm.DB) error {
	syncCents(&r.UserPaidAmount, &r.UserPaidAmountCents)
	syncCents(&r.PlatformFee, &r.PlatformFeeCents)
	syncCents(&r.LawyerIncome, &r.LawyerIncomeCents)
	syncCents(&r.WithdrawnAmount, &r.WithdrawnAmountCents)
	return nil
}

// BankAccountType 收款账户类型
const (
	AccountTypeBankCard = "bank_card"
	AccountTypeAlipay   = "alipay"
)

// LawyerBankAccount 律师收款账户
type LawyerBankAccount struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	LawyerID      int64     `gorm:"index;not null" json:"lawyer_id"`
	AccountType   string    `gorm:"type:varchar(20);not null" json:"account_type"`
	BankName      *string   `gorm:"type:varchar(100)" json:"bank_name,omitempty"`
	AccountNo     string    `gorm:"type:varchar(512);not null" json:"-"` // 加密存储
	AccountHolder string    `gorm:"type:varchar(64);not null" json:"account_holder"`
	IsDefault     bool      `gorm:"not null;default:false" json:"is_default"`
	IsActive      bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (LawyerBankAccount) TableName() string {
	return "lawyer_bank_accounts"
}

// WithdrawalStatus 提现申请状态
const (
	WithdrawalStatusPending   = "pending"   // 待审核
	WithdrawalStatusApproved  = "approved"  // 已通过
	WithdrawalStatusCompleted = "completed" // 已打款
	WithdrawalStatusRejected  = "rejected"  // 已驳回
	WithdrawalStatusFailed    = "failed"    // 打款失败
)

// WithdrawalRequest 律师提现申请
type WithdrawalRequest struct {
	ID                int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	RequestNo         string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"request_no"`
	LawyerID          int64           `gorm:"index;not null" json:"lawyer_id"`
	Amount            decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	AmountCents       *int64          `json:"-"`
	Fee               decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"fee"`
	FeeCents          *int64          `json:"-"`
	ActualAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"actual_amount"`
	ActualAmountCents *int64          `json:"-"`
	WithdrawMethod    string          `gorm:"type:varchar(20);not null" json:"withdraw_method"`
	AccountInfo       string          `gorm:"type:text;not null" json:"-"`
	Status            string          `gorm:"type:varchar(20);not null;index" json:"status"`
	RejectReason      *string         `gorm:"type:varchar(255)" json:"reject_reason,omitempty"`
	AdminID           *int64          `json:"admin_id,omitempty"`
	ReviewedAt        *time.Time      `json:"reviewed_at,omitempty"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	Remark            *string         `gorm:"type:varchar(255)" json:"remark,omitempty"`
	CreatedAt         time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (WithdrawalRequest) TableName() string {
	return "withdrawal_requests"
}

// AmountCentsValue 提现金额（分）
func (w *WithdrawalRequest) AmountCentsValue() int64 {
	return money.CentsOr(w.AmountCents, w.Amount)
}

// IsTerminal 是否为终态
func (w *WithdrawalRequest) IsTerminal() bool {
	switch w.Status {
	case WithdrawalStatusCompleted, WithdrawalStatusRejected, WithdrawalStatusFailed:
		return true
	}
	return false
}

// BeforeSave 同步分值镜像
func (w *WithdrawalRequest) BeforeSave(tx *gorm.DB) error {
	syncCents(&w.Amount, &w.AmountCents)
	syncCents(&w.Fee, &w.FeeCents)
	syncCents(&w.ActualAmount, &w.ActualAmountCents)
	return nil
}

// AccountSnapshot 提现时收款账户快照
type AccountSnapshot struct {
	BankAccountID   int64   `json:"bank_account_id"`
	AccountType     string  `json:"account_type"`
	BankName        *string `json:"bank_name,omitempty"`
	AccountNo       string  `json:"account_no"` // 密文
	AccountNoMasked string  `json:"account_no_masked"`
	AccountHolder   string  `json:"account_holder"`
}

// SetSnapshot 写入账户快照
func (w *WithdrawalRequest) SetSnapshot(s *AccountSnapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	w.AccountInfo = string(data)
	return nil
}

// Snapshot 解析账户快照
func (w *WithdrawalRequest) Snapshot() (*AccountSnapshot, error) {
	var s AccountSnapshot
	if err := json.Unmarshal([]byte(w.AccountInfo), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SettlementModels 结算相关的全部模型，用于迁移
func SettlementModels() []interface{} {
	return []interface{}{
		&Lawyer{},
		&LawyerWallet{},
		&LawyerIncomeRecord{},
		&LawyerBankAccount{},
		&WithdrawalRequest{},
	}
}

func clampCents(c int64) int64 {
	if c < 0 {
		return 0
	}
	return c
}

func setMoney(d *decimal.Decimal, cents **int64, v int64) {
	*d = money.FromCents(v)
	c := v
	*cents = &c
}

func syncCents(d *decimal.Decimal, cents **int64) {
	*d = money.Quantize(*d)
	*cents = money.Ptr(*d)
}
