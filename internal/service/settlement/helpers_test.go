package settlement

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"

	"github.com/dumeirei/lawconsult-backend/internal/common/cache"
	"github.com/dumeirei/lawconsult-backend/internal/common/config"
	"github.com/dumeirei/lawconsult-backend/internal/common/crypto"
	"github.com/dumeirei/lawconsult-backend/internal/common/logger"
	"github.com/dumeirei/lawconsult-backend/internal/common/metrics"
	"github.com/dumeirei/lawconsult-backend/internal/models"
	"github.com/dumeirei/lawconsult-backend/internal/repository"
	"github.com/dumeirei/lawconsult-backend/internal/testutil"
)

// recordingPublisher 记录发布的事件
type recordingPublisher struct {
	mu     sync.Mutex
	events []*models.WithdrawalEvent
	err    error
}

func (p *recordingPublisher) PublishWithdrawal(_ context.Context, ev *models.WithdrawalEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Action)
	}
	return out
}

type testEnv struct {
	db        *gorm.DB
	cfg       *config.SettlementConfig
	metrics   *metrics.Metrics
	codec     *crypto.SecretCodec
	mr        *miniredis.Miniredis
	logs      *observer.ObservedLogs
	publisher *recordingPublisher

	walletRepo     *repository.LawyerWalletRepository
	incomeRepo     *repository.LawyerIncomeRecordRepository
	bankRepo       *repository.LawyerBankAccountRepository
	withdrawalRepo *repository.WithdrawalRequestRepository

	wallets     *WalletService
	income      *IncomeService
	banks       *BankAccountService
	withdrawals *WithdrawalService
	reconcile   *ReconcileService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr, rdb := testutil.NewTestRedis(t)
	env := buildTestEnv(t, testutil.NewTestDB(t), rdb)
	env.mr = mr
	return env
}

// buildTestEnv 在给定数据库和 redis 上组装结算服务，rdb 为 nil 时不加分布式锁
func buildTestEnv(t *testing.T, db *gorm.DB, rdb redis.UniversalClient) *testEnv {
	t.Helper()

	core, logs := observer.New(zapcore.InfoLevel)
	logger.Replace(zap.New(core))

	cfg := testutil.SettlementConfig()
	codec, err := crypto.NewSecretCodec("settlement-test-secret")
	require.NoError(t, err)
	m := metrics.New("test", prometheus.NewRegistry())

	env := &testEnv{
		db:             db,
		cfg:            &cfg,
		metrics:        m,
		codec:          codec,
		logs:           logs,
		publisher:      &recordingPublisher{},
		walletRepo:     repository.NewLawyerWalletRepository(db),
		incomeRepo:     repository.NewLawyerIncomeRecordRepository(db),
		bankRepo:       repository.NewLawyerBankAccountRepository(db),
		withdrawalRepo: repository.NewWithdrawalRequestRepository(db),
	}
	env.wallets = NewWalletService(db, env.walletRepo)
	env.income = NewIncomeService(db, env.cfg, env.incomeRepo, repository.NewLawyerRepository(db), env.wallets, m)
	env.banks = NewBankAccountService(db, env.bankRepo, env.wallets, codec)
	env.withdrawals = NewWithdrawalService(db, env.cfg, env.withdrawalRepo, env.bankRepo, env.incomeRepo,
		env.wallets, codec, cache.NewLocker(rdb), m)
	env.withdrawals.SetPublisher(env.publisher)
	env.reconcile = NewReconcileService(db, env.walletRepo, env.incomeRepo, m)
	return env
}

// addBankAccount 为律师绑定银行卡
func (e *testEnv) addBankAccount(t *testing.T, lawyerID int64, accountNo string) *BankAccountView {
	t.Helper()
	bank := "工商银行"
	view, err := e.banks.Create(context.Background(), lawyerID, &BankAccountRequest{
		AccountType:   models.AccountTypeBankCard,
		BankName:      &bank,
		AccountNo:     accountNo,
		AccountHolder: "王律师",
	})
	require.NoError(t, err)
	return view
}

// wallet 读取钱包当前余额
func (e *testEnv) wallet(t *testing.T, lawyerID int64) *models.LawyerWallet {
	t.Helper()
	w, err := e.walletRepo.GetByLawyerID(context.Background(), lawyerID)
	require.NoError(t, err)
	return w
}

// incomeRecord 读取收入记录
func (e *testEnv) incomeRecord(t *testing.T, id int64) *models.LawyerIncomeRecord {
	t.Helper()
	var rec models.LawyerIncomeRecord
	require.NoError(t, e.db.First(&rec, id).Error)
	return &rec
}

// assertWallet 断言钱包五个余额（元）
func assertWallet(t *testing.T, w *models.LawyerWallet, total, withdrawn, pending, frozen, available string) {
	t.Helper()
	assert.Equal(t, total, w.TotalIncome.StringFixed(2), "total_income")
	assert.Equal(t, withdrawn, w.WithdrawnAmount.StringFixed(2), "withdrawn_amount")
	assert.Equal(t, pending, w.PendingAmount.StringFixed(2), "pending_amount")
	assert.Equal(t, frozen, w.FrozenAmount.StringFixed(2), "frozen_amount")
	assert.Equal(t, available, w.AvailableAmount.StringFixed(2), "available_amount")
	assertWalletInvariant(t, w)
}

// assertWalletInvariant 可提现余额等于四个余额桶推导值，且分值镜像与金额一致
func assertWalletInvariant(t *testing.T, w *models.LawyerWallet) {
	t.Helper()
	pairs := []struct {
		name  string
		cents *int64
		yuan  string
	}{
		{"total_income", w.TotalIncomeCents, w.TotalIncome.StringFixed(2)},
		{"withdrawn_amount", w.WithdrawnAmountCents, w.WithdrawnAmount.StringFixed(2)},
		{"pending_amount", w.PendingAmountCents, w.PendingAmount.StringFixed(2)},
		{"frozen_amount", w.FrozenAmountCents, w.FrozenAmount.StringFixed(2)},
		{"available_amount", w.AvailableAmountCents, w.AvailableAmount.StringFixed(2)},
	}
	for _, p := range pairs {
		require.NotNil(t, p.cents, p.name)
		assert.Equal(t, testutil.Dec(p.yuan).Shift(2).IntPart(), *p.cents, p.name)
	}

	total, withdrawn, pending, frozen, available := w.Cents()
	derived := total - withdrawn - pending - frozen
	if derived < 0 {
		derived = 0
	}
	assert.Equal(t, derived, available, "available must equal derived balance")
}
