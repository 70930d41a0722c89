package settlement

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/dumeirei/lawconsult-backend/internal/common/crypto"
	appErrors "github.com/dumeirei/lawconsult-backend/internal/common/errors"
	"github.com/dumeirei/lawconsult-backend/internal/common/logger"
	"github.com/dumeirei/lawconsult-backend/internal/models"
	"github.com/dumeirei/lawconsult-backend/internal/repository"
)

// BankAccountService 律师收款账户服务
type BankAccountService struct {
	db       *gorm.DB
	bankRepo *repository.LawyerBankAccountRepository
	wallets  *WalletService
	codec    *crypto.SecretCodec
}

// NewBankAccountService 创建律师收款账户服务
func NewBankAccountService(
	db *gorm.DB,
	bankRepo *repository.LawyerBankAccountRepository,
	wallets *WalletService,
	codec *crypto.SecretCodec,
) *BankAccountService {
	return &BankAccountService{
		db:       db,
		bankRepo: bankRepo,
		wallets:  wallets,
		codec:    codec,
	}
}

// BankAccountRequest 新增或修改收款账户
type BankAccountRequest struct {
	AccountType   string  `json:"account_type" binding:"required,oneof=bank_card alipay"`
	BankName      *string `json:"bank_name"`
	AccountNo     string  `json:"account_no" binding:"required"`
	AccountHolder string  `json:"account_holder" binding:"required"`
	IsDefault     bool    `json:"is_default"`
}

// BankAccountView 收款账户（账号脱敏）
type BankAccountView struct {
	ID              int64     `json:"id"`
	AccountType     string    `json:"account_type"`
	BankName        *string   `json:"bank_name,omitempty"`
	AccountNoMasked string    `json:"account_no_masked"`
	AccountHolder   string    `json:"account_holder"`
	IsDefault       bool      `json:"is_default"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

func (s *BankAccountService) toView(a *models.LawyerBankAccount) *BankAccountView {
	return &BankAccountView{
		ID:              a.ID,
		AccountType:     a.AccountType,
		BankName:        a.BankName,
		AccountNoMasked: crypto.MaskAccountNo(s.codec.Decrypt(a.AccountNo)),
		AccountHolder:   crypto.MaskName(a.AccountHolder),
		IsDefault:       a.IsDefault,
		IsActive:        a.IsActive,
		CreatedAt:       a.CreatedAt,
	}
}

func validateBankAccount(req *BankAccountRequest) error {
	req.AccountNo = strings.TrimSpace(req.AccountNo)
	req.AccountHolder = strings.TrimSpace(req.AccountHolder)

	switch req.AccountType {
	case models.AccountTypeBankCard:
		if req.BankName == nil || strings.TrimSpace(*req.BankName) == "" {
			return appErrors.ErrInvalidParams.WithMessage("银行卡需填写开户行")
		}
	case models.AccountTypeAlipay:
	default:
		return appErrors.ErrInvalidParams.WithMessage("不支持的账户类型")
	}
	if req.AccountNo == "" || req.AccountHolder == "" {
		return appErrors.ErrInvalidParams.WithMessage("账号和户名不能为空")
	}
	if crypto.IsEncrypted(req.AccountNo) {
		return appErrors.ErrInvalidParams.WithMessage("账号格式不正确")
	}
	return nil
}

// Create 新增收款账户，第一个账户自动设为默认
func (s *BankAccountService) Create(ctx context.Context, lawyerID int64, req *BankAccountRequest) (*BankAccountView, error) {
	if err := validateBankAccount(req); err != nil {
		return nil, err
	}

	cipherNo, err := s.codec.Encrypt(req.AccountNo)
	if err != nil {
		return nil, appErrors.ErrInternalError.WithError(err)
	}

	account := &models.LawyerBankAccount{
		LawyerID:      lawyerID,
		AccountType:   req.AccountType,
		BankName:      req.BankName,
		AccountNo:     cipherNo,
		AccountHolder: req.AccountHolder,
		IsActive:      true,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 锁定钱包行，串行化同一律师的默认账户变更
		if _, err := s.wallets.Lock(ctx, tx, lawyerID); err != nil {
			return err
		}
		active, err := s.bankRepo.CountActive(ctx, tx, lawyerID)
		if err != nil {
			return appErrors.ErrDatabaseError.WithError(err)
		}
		if err := s.bankRepo.Create(ctx, tx, account); err != nil {
			return appErrors.ErrDatabaseError.WithError(err)
		}
		if req.IsDefault || active == 0 {
			return s.makeDefault(ctx, tx, account)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("lawyer bank account created",
		logger.Module("settlement"),
		logger.LawyerID(lawyerID),
		logger.Int64("bank_account_id", account.ID),
	)
	return s.toView(account), nil
}

// Update 修改收款账户
func (s *BankAccountService) Update(ctx context.Context, lawyerID, id int64, req *BankAccountRequest) (*BankAccountView, error) {
	if err := validateBankAccount(req); err != nil {
		return nil, err
	}

	account, err := s.getActive(ctx, nil, lawyerID, id)
	if err != nil {
		return nil, err
	}

	cipherNo, err := s.codec.Encrypt(req.AccountNo)
	if err != nil {
		return nil, appErrors.ErrInternalError.WithError(err)
	}
	account.AccountType = req.AccountType
	account.BankName = req.BankName
	account.AccountNo = cipherNo
	account.AccountHolder = req.AccountHolder

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.wallets.Lock(ctx, tx, lawyerID); err != nil {
			return err
		}
		if err := s.bankRepo.Update(ctx, tx, account); err != nil {
			return appErrors.ErrDatabaseError.WithError(err)
		}
		if req.IsDefault {
			return s.makeDefault(ctx, tx, account)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.toView(account), nil
}

// SetDefault 设为默认账户，同时取消其它账户的默认标记
func (s *BankAccountService) SetDefault(ctx context.Context, lawyerID, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.wallets.Lock(ctx, tx, lawyerID); err != nil {
			return err
		}
		account, err := s.getActive(ctx, tx, lawyerID, id)
		if err != nil {
			return err
		}
		return s.makeDefault(ctx, tx, account)
	})
}

// Disable 停用收款账户（软删除）
func (s *BankAccountService) Disable(ctx context.Context, lawyerID, id int64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.wallets.Lock(ctx, tx, lawyerID); err != nil {
			return err
		}
		account, err := s.getActive(ctx, tx, lawyerID, id)
		if err != nil {
			return err
		}
		if err := s.bankRepo.Disable(ctx, tx, account.ID); err != nil {
			return appErrors.ErrDatabaseError.WithError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("lawyer bank account disabled",
		logger.Module("settlement"),
		logger.LawyerID(lawyerID),
		logger.Int64("bank_account_id", id),
	)
	return nil
}

// List 获取律师启用中的收款账户
func (s *BankAccountService) List(ctx context.Context, lawyerID int64) ([]*BankAccountView, error) {
	accounts, err := s.bankRepo.ListByLawyer(ctx, lawyerID, true)
	if err != nil {
		return nil, appErrors.ErrDatabaseError.WithError(err)
	}
	views := make([]*BankAccountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, s.toView(a))
	}
	return views, nil
}

func (s *BankAccountService) getActive(ctx context.Context, tx *gorm.DB, lawyerID, id int64) (*models.LawyerBankAccount, error) {
	account, err := s.bankRepo.GetActiveOwned(ctx, tx, lawyerID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErrors.ErrBankAccountNotFound
		}
		return nil, appErrors.ErrDatabaseError.WithError(err)
	}
	return account, nil
}

func (s *BankAccountService) makeDefault(ctx context.Context, tx *gorm.DB, account *models.LawyerBankAccount) error {
	if err := s.bankRepo.ClearDefault(ctx, tx, account.LawyerID, account.ID); err != nil {
		return appErrors.ErrDatabaseError.WithError(err)
	}
	if err := s.bankRepo.SetDefault(ctx, tx, account.ID, true); err != nil {
		return appErrors.ErrDatabaseError.WithError(err)
	}
	account.IsDefault = true
	return nil
}
