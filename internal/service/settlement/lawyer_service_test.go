package settlement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/dumeirei/lawconsult-backend/internal/common/errors"
	"github.com/dumeirei/lawconsult-backend/internal/models"
	"github.com/dumeirei/lawconsult-backend/internal/repository"
	"github.com/dumeirei/lawconsult-backend/internal/testutil"
)

func TestLawyerService_ResolveByUserID(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewLawyerService(repository.NewLawyerRepository(db))
	ctx := context.Background()

	lawyer := testutil.CreateLawyer(t, db, 4.6, 12)
	got, err := svc.ResolveByUserID(ctx, lawyer.UserID)
	require.NoError(t, err)
	assert.Equal(t, lawyer.ID, got.ID)

	_, err = svc.ResolveByUserID(ctx, 999999)
	assert.ErrorIs(t, err, appErrors.ErrLawyerNotFound)

	require.NoError(t, db.Model(&models.Lawyer{}).Where("id = ?", lawyer.ID).
		Update("status", models.LawyerStatusDisabled).Error)
	_, err = svc.ResolveByUserID(ctx, lawyer.UserID)
	assert.ErrorIs(t, err, appErrors.ErrLawyerNotFound)
}
