// Package settlement 律师结算服务
package settlement

import (
	"github.com/shopspring/decimal"

	"github.com/dumeirei/lawconsult-backend/internal/common/config"
)

// 抽成档位
const (
	TierDefault  = "default"
	TierVerified = "verified"
	TierGold     = "gold"
	TierPartner  = "partner"
)

// ResolveTier 按合作律师、金牌、认证、默认的优先级判定档位
func ResolveTier(lawyerID int64, rating float64, completed int, tiers config.FeeTierConfig) string {
	for _, id := range tiers.PartnerLawyerIDs {
		if id == lawyerID {
			return TierPartner
		}
	}
	if completed >= tiers.GoldMinCompleted && rating >= tiers.GoldMinRating {
		return TierGold
	}
	if completed >= tiers.VerifiedMinCompleted && rating >= tiers.VerifiedMinRating {
		return TierVerified
	}
	return TierDefault
}

// ResolveFeeRate 计算平台抽成比例，结果限制在 [0, 1]
func ResolveFeeRate(lawyerID int64, rating float64, completed int, tiers config.FeeTierConfig) decimal.Decimal {
	var rate float64
	switch ResolveTier(lawyerID, rating, completed, tiers) {
	case TierPartner:
		rate = tiers.PartnerRate
	case TierGold:
		rate = tiers.GoldRate
	case TierVerified:
		rate = tiers.VerifiedRate
	default:
		rate = tiers.DefaultRate
	}

	// 加载配置时已限制为四位小数，合法配置不受舍入影响
	r := decimal.NewFromFloat(rate).Round(4)
	if r.IsNegative() {
		return decimal.Zero
	}
	if r.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return r
}
