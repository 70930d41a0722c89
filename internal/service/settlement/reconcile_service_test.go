package settlement

import (
	"context"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/dumeirei/lawconsult-backend/internal/common/errors"
	"github.com/dumeirei/lawconsult-backend/internal/testutil"
)

func TestReconcileWallet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	testutil.CreateWallet(t, env.db, 21, "500", "0", "0", "0")
	report, err := env.reconcile.ReconcileWallet(ctx, 21)
	require.NoError(t, err)
	assert.False(t, report.Drifted)
	assert.Equal(t, "0.00", report.WalletWithdrawn)

	testutil.CreateWallet(t, env.db, 22, "500", "120", "0", "0")
	report, err = env.reconcile.ReconcileWallet(ctx, 22)
	require.NoError(t, err)
	assert.True(t, report.Drifted)
	assert.Equal(t, int64(12000), report.DriftCents)
	assert.Equal(t, "120.00", report.WalletWithdrawn)
	assert.Equal(t, "0.00", report.AllocatedWithdrawn)
	assert.Equal(t, 1, env.logs.FilterMessage("wallet reconciliation drift").Len())

	_, err = env.reconcile.ReconcileWallet(ctx, 404)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestReconcileWallet_AvailableMismatch(t *testing.T) {
	env := newTestEnv(t)
	testutil.CreateWallet(t, env.db, 23, "500", "0", "0", "0")
	require.NoError(t, env.db.Exec(
		"UPDATE lawyer_wallets SET available_amount_cents = ? WHERE lawyer_id = ?", 100, 23).Error)

	report, err := env.reconcile.ReconcileWallet(context.Background(), 23)
	require.NoError(t, err)
	assert.True(t, report.AvailableMismatch)
	assert.True(t, report.Drifted)
	assert.Zero(t, report.DriftCents)
}

func TestReconcileAll(t *testing.T) {
	env := newTestEnv(t)
	testutil.CreateWallet(t, env.db, 31, "500", "0", "0", "0")
	testutil.CreateWallet(t, env.db, 32, "500", "50", "0", "0")
	testutil.CreateWallet(t, env.db, 33, "500", "0", "0", "100")

	summary, err := env.reconcile.ReconcileAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Checked)
	assert.Equal(t, []int64{32}, summary.Drifted)
	assert.Equal(t, float64(1), promtest.ToFloat64(env.metrics.WalletsDrifted()))
}
