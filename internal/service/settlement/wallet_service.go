package settlement

import (
	"context"
	"errors"

	"gorm.io/gorm"

	appErrors "github.com/dumeirei/lawconsult-backend/internal/common/errors"
	"github.com/dumeirei/lawconsult-backend/internal/common/money"
	"github.com/dumeirei/lawconsult-backend/internal/common/tracing"
	"github.com/dumeirei/lawconsult-backend/internal/models"
	"github.com/dumeirei/lawconsult-backend/internal/repository"
)

// WalletService 律师钱包服务
type WalletService struct {
	db         *gorm.DB
	walletRepo *repository.LawyerWalletRepository
}

// NewWalletService 创建律师钱包服务
func NewWalletService(db *gorm.DB, walletRepo *repository.LawyerWalletRepository) *WalletService {
	return &WalletService{
		db:         db,
		walletRepo: walletRepo,
	}
}

// WalletView 钱包余额，金额固定两位小数
type WalletView struct {
	LawyerID        int64  `json:"lawyer_id"`
	TotalIncome     string `json:"total_income"`
	WithdrawnAmount string `json:"withdrawn_amount"`
	PendingAmount   string `json:"pending_amount"`
	FrozenAmount    string `json:"frozen_amount"`
	AvailableAmount string `json:"available_amount"`
}

// NewWalletView 由钱包模型构造余额视图
func NewWalletView(w *models.LawyerWallet) *WalletView {
	return &WalletView{
		LawyerID:        w.LawyerID,
		TotalIncome:     money.String(w.TotalIncome),
		WithdrawnAmount: money.String(w.WithdrawnAmount),
		PendingAmount:   money.String(w.PendingAmount),
		FrozenAmount:    money.String(w.FrozenAmount),
		AvailableAmount: money.String(w.AvailableAmount),
	}
}

// GetOrCreate 获取律师钱包，不存在时创建零余额钱包
//
// 返回前重算可提现余额；与库中不一致时写回。
func (s *WalletService) GetOrCreate(ctx context.Context, lawyerID int64) (*models.LawyerWallet, error) {
	ctx, span := tracing.StartSpan(ctx, "settlement.wallet.get_or_create", tracing.WithLawyerID(lawyerID))
	var err error
	defer func() { tracing.End(span, err) }()

	var wallet *models.LawyerWallet
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := s.Lock(ctx, tx, lawyerID)
		if err != nil {
			return err
		}

		stored := w.AvailableCents()
		w.Recompute()
		if w.AvailableCents() != stored {
			if err := s.walletRepo.Save(ctx, tx, w); err != nil {
				return appErrors.ErrDatabaseError.WithError(err)
			}
		}
		wallet = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

// Lock 在事务中获取并锁定律师钱包，不存在时先插入零余额钱包
func (s *WalletService) Lock(ctx context.Context, tx *gorm.DB, lawyerID int64) (*models.LawyerWallet, error) {
	if err := s.walletRepo.CreateIfAbsent(ctx, tx, lawyerID); err != nil {
		return nil, appErrors.ErrDatabaseError.WithError(err)
	}
	w, err := s.walletRepo.GetForUpdate(ctx, tx, lawyerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErrors.ErrNotFound.WithMessage("律师钱包不存在")
		}
		return nil, appErrors.ErrDatabaseError.WithError(err)
	}
	return w, nil
}

// Save 在事务中保存钱包
func (s *WalletService) Save(ctx context.Context, tx *gorm.DB, w *models.LawyerWallet) error {
	if err := s.walletRepo.Save(ctx, tx, w); err != nil {
		return appErrors.ErrDatabaseError.WithError(err)
	}
	return nil
}

// GetView 获取钱包余额视图
func (s *WalletService) GetView(ctx context.Context, lawyerID int64) (*WalletView, error) {
	w, err := s.GetOrCreate(ctx, lawyerID)
	if err != nil {
		return nil, err
	}
	return NewWalletView(w), nil
}
