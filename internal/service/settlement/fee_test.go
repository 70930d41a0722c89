package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dumeirei/lawconsult-backend/internal/common/config"
	"github.com/dumeirei/lawconsult-backend/internal/testutil"
)

func TestResolveFeeRate(t *testing.T) {
	tiers := testutil.SettlementConfig().Fee
	tiers.PartnerLawyerIDs = []int64{42}

	tests := []struct {
		name      string
		lawyerID  int64
		rating    float64
		completed int
		wantTier  string
		wantRate  string
	}{
		{"新律师默认档", 1, 4.0, 2, TierDefault, "0.15"},
		{"评分够但单量不足", 1, 4.9, 9, TierDefault, "0.15"},
		{"认证档边界", 1, 4.5, 10, TierVerified, "0.13"},
		{"单量达到金牌但评分不足", 1, 4.7, 80, TierVerified, "0.13"},
		{"金牌档边界", 1, 4.8, 50, TierGold, "0.1"},
		{"合作律师优先于一切", 42, 1.0, 0, TierPartner, "0.08"},
		{"合作律师即使满足金牌", 42, 5.0, 500, TierPartner, "0.08"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantTier, ResolveTier(tt.lawyerID, tt.rating, tt.completed, tiers))
			rate := ResolveFeeRate(tt.lawyerID, tt.rating, tt.completed, tiers)
			assert.True(t, testutil.Dec(tt.wantRate).Equal(rate), "got %s", rate)
		})
	}
}

func TestResolveFeeRate_Clamped(t *testing.T) {
	tiers := config.FeeTierConfig{DefaultRate: 1.5}
	assert.Equal(t, "1", ResolveFeeRate(1, 0, 0, tiers).String())

	tiers = config.FeeTierConfig{DefaultRate: -0.2}
	assert.True(t, ResolveFeeRate(1, 0, 0, tiers).IsZero())
}

func TestResolveFeeRate_ThresholdsFromConfig(t *testing.T) {
	tiers := config.FeeTierConfig{
		DefaultRate:          0.2,
		VerifiedRate:         0.1,
		VerifiedMinCompleted: 1,
		VerifiedMinRating:    3,
		GoldMinCompleted:     1000,
		GoldMinRating:        5,
	}
	assert.Equal(t, TierVerified, ResolveTier(7, 3, 1, tiers))
	assert.Equal(t, "0.1", ResolveFeeRate(7, 3, 1, tiers).String())
}
