package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dumeirei/lawconsult-backend/internal/models"
	"github.com/dumeirei/lawconsult-backend/internal/testutil"
)

func newPendingIncome(lawyerID, consultationID int64, income string, settleTime time.Time) *models.LawyerIncomeRecord {
	amt := testutil.Dec(income)
	return &models.LawyerIncomeRecord{
		LawyerID:       lawyerID,
		ConsultationID: consultationID,
		OrderNo:        "CO-TEST",
		UserPaidAmount: amt,
		FeeRate:        testutil.Dec("0"),
		PlatformFee:    testutil.Dec("0"),
		LawyerIncome:   amt,
		Status:         models.IncomeStatusPending,
		SettleTime:     settleTime,
	}
}

func TestLawyerIncomeRecordRepository_UniquePerConsultation(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewLawyerIncomeRecordRepository(db)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, repo.Create(ctx, db, newPendingIncome(1, 100, "85", now)))
	assert.Error(t, repo.Create(ctx, db, newPendingIncome(1, 100, "85", now)))
	// 不同律师可以有相同咨询 ID
	require.NoError(t, repo.Create(ctx, db, newPendingIncome(2, 100, "85", now)))

	rec, err := repo.GetByLawyerConsultation(ctx, nil, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(8500), rec.IncomeCents())

	_, err = repo.GetByLawyerConsultation(ctx, db, 1, 101)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestLawyerIncomeRecordRepository_ListDuePendingAndMarkSettled(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewLawyerIncomeRecordRepository(db)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, repo.Create(ctx, db, newPendingIncome(1, 1, "10", now.Add(-2*time.Hour))))
	require.NoError(t, repo.Create(ctx, db, newPendingIncome(1, 2, "20", now.Add(-3*time.Hour))))
	require.NoError(t, repo.Create(ctx, db, newPendingIncome(1, 3, "30", now.Add(time.Hour))))

	due, err := repo.ListDuePending(ctx, db, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, int64(2), due[0].ConsultationID)
	assert.Equal(t, int64(1), due[1].ConsultationID)

	ok, err := repo.MarkSettled(ctx, db, due[0].ID, now)
	require.NoError(t, err)
	assert.True(t, ok)

	// 已结算的记录不会被重复结算
	ok, err = repo.MarkSettled(ctx, db, due[0].ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	due, err = repo.ListDuePending(ctx, db, now, 10)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestLawyerIncomeRecordRepository_ListAllocatableOrder(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewLawyerIncomeRecordRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := testutil.CreateSettledIncome(t, db, 1, 1, "10", base.Add(48*time.Hour))
	early := testutil.CreateSettledIncome(t, db, 1, 2, "10", base)
	sameTime := testutil.CreateSettledIncome(t, db, 1, 3, "10", base)
	require.NoError(t, repo.Create(ctx, db, newPendingIncome(1, 4, "10", base)))
	testutil.CreateSettledIncome(t, db, 2, 5, "10", base)

	records, err := repo.ListAllocatable(ctx, db, 1)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, early.ID, records[0].ID)
	assert.Equal(t, sameTime.ID, records[1].ID)
	assert.Equal(t, late.ID, records[2].ID)
}

func TestLawyerIncomeRecordRepository_SaveAllocationAndSum(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewLawyerIncomeRecordRepository(db)
	ctx := context.Background()

	rec := testutil.CreateSettledIncome(t, db, 1, 1, "85", time.Now())
	other := testutil.CreateSettledIncome(t, db, 1, 2, "40", time.Now())

	assert.Equal(t, int64(8500), rec.Allocate(10000))
	assert.Equal(t, int64(1500), other.Allocate(1500))
	require.NoError(t, repo.SaveAllocation(ctx, db, rec))
	require.NoError(t, repo.SaveAllocation(ctx, db, other))

	found, err := repo.GetByLawyerConsultation(ctx, nil, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, models.IncomeStatusWithdrawn, found.Status)
	assert.Equal(t, int64(8500), found.WithdrawnCents())

	found, err = repo.GetByLawyerConsultation(ctx, db, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, models.IncomeStatusSettled, found.Status)

	sum, err := repo.SumWithdrawnCents(ctx, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), sum)
}

func TestLawyerIncomeRecordRepository_ListAndSummary(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewLawyerIncomeRecordRepository(db)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, repo.Create(ctx, db, newPendingIncome(1, 1, "10.10", now)))
	require.NoError(t, repo.Create(ctx, db, newPendingIncome(1, 2, "20.20", now)))
	testutil.CreateSettledIncome(t, db, 1, 3, "30.30", now)
	testutil.CreateSettledIncome(t, db, 2, 4, "99", now)

	list, total, err := repo.List(ctx, 0, 10, map[string]interface{}{
		"lawyer_id": int64(1),
		"status":    models.IncomeStatusPending,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)

	summary, err := repo.SummaryByStatus(ctx, 1)
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, models.IncomeStatusPending, summary[0].Status)
	assert.Equal(t, int64(3030), summary[0].IncomeCents)
	assert.Equal(t, models.IncomeStatusSettled, summary[1].Status)
	assert.Equal(t, int64(3030), summary[1].IncomeCents)
}
