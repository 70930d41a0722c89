//go:build integration

package settlement

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/dumeirei/lawconsult-backend/internal/common/errors"
	"github.com/dumeirei/lawconsult-backend/internal/models"
	"github.com/dumeirei/lawconsult-backend/internal/testutil"
)

func newPostgresEnv(t *testing.T, rdb redis.UniversalClient) *testEnv {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	return buildTestEnv(t, testutil.StartPostgres(t, testutil.DefaultPostgresConfig()), rdb)
}

// concurrentCreate 并发发起提现，锁冲突时重试，返回成功笔数
func (e *testEnv) concurrentCreate(t *testing.T, lawyerID, accountID int64, amount string, workers int) int {
	t.Helper()
	var (
		wg      sync.WaitGroup
		success atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				_, err := e.withdrawals.Create(context.Background(), &CreateWithdrawalRequest{
					LawyerID:      lawyerID,
					Amount:        testutil.Dec(amount),
					Method:        models.AccountTypeBankCard,
					BankAccountID: accountID,
				})
				if errors.Is(err, appErrors.ErrWithdrawInProgress) {
					time.Sleep(5 * time.Millisecond)
					continue
				}
				if err == nil {
					success.Add(1)
				} else {
					assert.ErrorIs(t, err, appErrors.ErrInsufficientBalance)
				}
				return
			}
		}()
	}
	wg.Wait()
	return int(success.Load())
}

func TestPostgres_ConcurrentWithdrawalsRowLockOnly(t *testing.T) {
	env := newPostgresEnv(t, nil)
	lawyerID, accountID := env.setupLawyer(t, "1000")

	assert.Equal(t, 4, env.concurrentCreate(t, lawyerID, accountID, "250", 12))
	assertWallet(t, env.wallet(t, lawyerID), "1000.00", "0.00", "0.00", "1000.00", "0.00")

	var count int64
	require.NoError(t, env.db.Model(&models.WithdrawalRequest{}).Where("lawyer_id = ?", lawyerID).Count(&count).Error)
	assert.Equal(t, int64(4), count)
}

func TestPostgres_ConcurrentWithdrawalsWithRedisLock(t *testing.T) {
	env := newPostgresEnv(t, testutil.StartRedis(t))
	lawyerID, accountID := env.setupLawyer(t, "900")

	assert.Equal(t, 3, env.concurrentCreate(t, lawyerID, accountID, "300", 8))
	assertWallet(t, env.wallet(t, lawyerID), "900.00", "0.00", "0.00", "900.00", "0.00")
}

func TestPostgres_ConcurrentCompleteAppliesOnce(t *testing.T) {
	env := newPostgresEnv(t, nil)
	lawyerID, accountID := env.setupLawyer(t, "500")
	testutil.CreateSettledIncome(t, env.db, lawyerID, 7001, "500", time.Now().Add(-time.Hour))

	w := env.createWithdrawal(t, lawyerID, accountID, "300")
	env.mustAct(t, w.ID, ActionApprove)

	var (
		wg        sync.WaitGroup
		success   atomic.Int32
		wrongStep atomic.Int32
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.act(w.ID, ActionComplete)
			switch {
			case err == nil:
				success.Add(1)
			case errors.Is(err, appErrors.ErrInvalidStateForAction):
				wrongStep.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), success.Load())
	assert.Equal(t, int32(5), wrongStep.Load())
	assertWallet(t, env.wallet(t, lawyerID), "500.00", "300.00", "0.00", "0.00", "200.00")

	report, err := env.reconcile.ReconcileWallet(context.Background(), lawyerID)
	require.NoError(t, err)
	assert.False(t, report.Drifted)
}

func TestPostgres_ConcurrentIncomeEventsCreateOneRecord(t *testing.T) {
	env := newPostgresEnv(t, nil)
	lawyer := testutil.CreateLawyer(t, env.db, 4.0, 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.income.EnsureIncomeRecord(context.Background(), paidEvent(lawyer.ID, 8001, "100"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var count int64
	require.NoError(t, env.db.Model(&models.LawyerIncomeRecord{}).Where("consultation_id = ?", 8001).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assertWallet(t, env.wallet(t, lawyer.ID), "85.00", "0.00", "85.00", "0.00", "0.00")
}

func TestPostgres_ConcurrentSweepsOverInterleavedLawyers(t *testing.T) {
	env := newPostgresEnv(t, nil)
	env.cfg.SettleBatch = 4
	ctx := context.Background()

	lawyers := make([]*models.Lawyer, 4)
	for i := range lawyers {
		lawyers[i] = testutil.CreateLawyer(t, env.db, 4.0, 0)
	}
	// 结算时间交错，相邻记录属于不同律师，且顺序在批次间反转
	base := time.Now().Add(-24 * time.Hour)
	consultation := int64(9000)
	for round := 0; round < 6; round++ {
		for i := range lawyers {
			idx := i
			if round%2 == 1 {
				idx = len(lawyers) - 1 - i
			}
			consultation++
			_, err := env.income.EnsureIncomeRecord(ctx, paidEvent(lawyers[idx].ID, consultation, "100"))
			require.NoError(t, err)
			require.NoError(t, env.db.Model(&models.LawyerIncomeRecord{}).
				Where("consultation_id = ?", consultation).
				Update("settle_time", base.Add(time.Duration(consultation)*time.Second)).Error)
		}
	}

	var (
		wg      sync.WaitGroup
		settled atomic.Int32
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := env.income.SettleDueRecords(ctx, time.Now())
			assert.NoError(t, err)
			if res != nil {
				settled.Add(int32(res.Settled))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(24), settled.Load())
	for _, l := range lawyers {
		assertWallet(t, env.wallet(t, l.ID), "510.00", "0.00", "0.00", "0.00", "510.00")
	}
}

func TestPostgres_ReconcileDuringCompletionSeesNoDrift(t *testing.T) {
	env := newPostgresEnv(t, nil)
	lawyerID, accountID := env.setupLawyer(t, "2000")
	testutil.CreateSettledIncome(t, env.db, lawyerID, 7101, "2000", time.Now().Add(-time.Hour))

	ids := make([]int64, 0, 8)
	for i := 0; i < 8; i++ {
		w := env.createWithdrawal(t, lawyerID, accountID, "200")
		env.mustAct(t, w.ID, ActionApprove)
		ids = append(ids, w.ID)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for _, id := range ids {
			_, err := env.act(id, ActionComplete)
			assert.NoError(t, err)
		}
	}()

	checks := 0
	for {
		select {
		case <-done:
			wg.Wait()
			report, err := env.reconcile.ReconcileWallet(context.Background(), lawyerID)
			require.NoError(t, err)
			assert.False(t, report.Drifted)
			assert.Equal(t, "1600.00", report.WalletWithdrawn)
			t.Logf("reconciled %d times during completion", checks)
			return
		default:
			report, err := env.reconcile.ReconcileWallet(context.Background(), lawyerID)
			require.NoError(t, err)
			assert.False(t, report.Drifted, "drift %d cents", report.DriftCents)
			checks++
		}
	}
}
