package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/lawconsult-backend/internal/common/cache"
	"github.com/dumeirei/lawconsult-backend/internal/common/config"
	"github.com/dumeirei/lawconsult-backend/internal/common/metrics"
	"github.com/dumeirei/lawconsult-backend/internal/models"
	"github.com/dumeirei/lawconsult-backend/internal/repository"
	settlementService "github.com/dumeirei/lawconsult-backend/internal/service/settlement"
	"github.com/dumeirei/lawconsult-backend/internal/testutil"
)

func TestScheduler_RunNowRecordsMetrics(t *testing.T) {
	_, rdb := testutil.NewTestRedis(t)
	m := metrics.New("test", prometheus.NewRegistry())
	s := NewScheduler(cache.NewLocker(rdb), m)

	var calls int32
	require.NoError(t, s.AddTask("ok_task", "@every 1h", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))
	require.NoError(t, s.AddTask("bad_task", "@every 1h", func(ctx context.Context) error {
		return errors.New("boom")
	}))

	assert.True(t, s.RunNow("ok_task"))
	assert.True(t, s.RunNow("bad_task"))
	assert.False(t, s.RunNow("missing"))

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, float64(1), promtest.ToFloat64(m.JobRuns().WithLabelValues("ok_task", "ok")))
	assert.Equal(t, float64(1), promtest.ToFloat64(m.JobRuns().WithLabelValues("bad_task", "error")))

	// 锁已释放，可再次执行
	assert.True(t, s.RunNow("ok_task"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestScheduler_SkipsWhenLockedElsewhere(t *testing.T) {
	mr, rdb := testutil.NewTestRedis(t)
	s := NewScheduler(cache.NewLocker(rdb), nil)

	var calls int32
	require.NoError(t, s.AddTask(TaskSettleDueIncome, "@every 1h", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))

	require.NoError(t, mr.Set(cache.BuildKey(cache.KeyPrefixScheduler, TaskSettleDueIncome), "other-instance"))
	s.RunNow(TaskSettleDueIncome)
	assert.Zero(t, atomic.LoadInt32(&calls))

	mr.Del(cache.BuildKey(cache.KeyPrefixScheduler, TaskSettleDueIncome))
	s.RunNow(TaskSettleDueIncome)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestScheduler_RedisDownStillRuns(t *testing.T) {
	mr, rdb := testutil.NewTestRedis(t)
	mr.Close()
	s := NewScheduler(cache.NewLocker(rdb), nil)

	var calls int32
	require.NoError(t, s.AddTask("task", "@every 1h", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))
	s.RunNow("task")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(nil, nil)

	var calls int32
	require.NoError(t, s.AddTask("tick", "@every 1s", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))
	s.Start()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) > 0 }, 3*time.Second, 50*time.Millisecond)
	s.Stop()
}

func TestRegisterTasks(t *testing.T) {
	s := NewScheduler(nil, nil)
	require.NoError(t, RegisterTasks(s, &TaskHandler{}, &config.SettlementConfig{}))

	tasks := s.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, TaskSettleDueIncome, tasks[0].Name)
	assert.Equal(t, "@every 1h", tasks[0].Spec)
	assert.Equal(t, TaskReconcileWallets, tasks[1].Name)
	assert.Equal(t, "@daily", tasks[1].Spec)

	err := RegisterTasks(NewScheduler(nil, nil), &TaskHandler{}, &config.SettlementConfig{SettleCron: "not a spec"})
	assert.Error(t, err)
}

func TestTaskHandler_SettleAndReconcile(t *testing.T) {
	db := testutil.NewTestDB(t)
	cfg := testutil.SettlementConfig()
	m := metrics.New("test", prometheus.NewRegistry())

	walletRepo := repository.NewLawyerWalletRepository(db)
	incomeRepo := repository.NewLawyerIncomeRecordRepository(db)
	wallets := settlementService.NewWalletService(db, walletRepo)
	income := settlementService.NewIncomeService(db, &cfg, incomeRepo, repository.NewLawyerRepository(db), wallets, m)
	reconcile := settlementService.NewReconcileService(db, walletRepo, incomeRepo, m)

	lawyer := testutil.CreateLawyer(t, db, 4.0, 0)
	ctx := context.Background()
	_, err := income.EnsureIncomeRecord(ctx, &models.ConsultationPaid{
		ConsultationID: 7001,
		LawyerID:       lawyer.ID,
		OrderNo:        "CO00007001",
		ActualAmount:   "100.00",
		Status:         models.OrderStatusPaid,
	})
	require.NoError(t, err)

	h := NewTaskHandler(income, reconcile)

	// 冻结期内不结算
	require.NoError(t, h.SettleDueIncome(ctx))
	w, err := walletRepo.GetByLawyerID(ctx, lawyer.ID)
	require.NoError(t, err)
	assert.Equal(t, "85.00", w.PendingAmount.StringFixed(2))

	h.now = func() time.Time { return time.Now().AddDate(0, 0, cfg.FreezeDays+1) }
	require.NoError(t, h.SettleDueIncome(ctx))
	w, err = walletRepo.GetByLawyerID(ctx, lawyer.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.00", w.PendingAmount.StringFixed(2))
	assert.Equal(t, "85.00", w.AvailableAmount.StringFixed(2))

	require.NoError(t, h.ReconcileWallets(ctx))
	assert.Equal(t, float64(0), promtest.ToFloat64(m.WalletsDrifted()))
}
