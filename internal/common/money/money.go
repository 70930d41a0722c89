// Package money 提供两位小数定点金额运算
//
// 所有金额以 decimal（元）+ int64（分）双写存储，分值用于聚合统计。
// 取整规则统一为四舍五入（远离零方向），与 decimal.Round 一致。
package money

import (
	"github.com/shopspring/decimal"
)

// Scale 金额小数位数
const Scale = 2

var hundred = decimal.NewFromInt(100)

// Zero 零金额
var Zero = decimal.Zero

// Quantize 四舍五入到分
func Quantize(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// ToCents 转换为分
func ToCents(d decimal.Decimal) int64 {
	return Quantize(d).Mul(hundred).IntPart()
}

// FromCents 由分构造金额
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -Scale)
}

// FromFloat 由浮点数构造金额（仅用于配置项）
func FromFloat(f float64) decimal.Decimal {
	return Quantize(decimal.NewFromFloat(f))
}

// Parse 解析金额字符串
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	return Quantize(d), nil
}

// Add 量化后相加
func Add(a, b decimal.Decimal) decimal.Decimal {
	return FromCents(ToCents(a) + ToCents(b))
}

// Sub 量化后相减
func Sub(a, b decimal.Decimal) decimal.Decimal {
	return FromCents(ToCents(a) - ToCents(b))
}

// SubClamp 量化后相减，结果不小于零
func SubClamp(a, b decimal.Decimal) decimal.Decimal {
	return NonNegative(Sub(a, b))
}

// MulRate 金额乘以费率后取整到分
func MulRate(amount decimal.Decimal, rate decimal.Decimal) decimal.Decimal {
	return Quantize(Quantize(amount).Mul(rate))
}

// NonNegative 负数归零
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Clamp 限制在 [lo, hi] 区间
func Clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}

// CentsOr 优先使用分值镜像，缺失时由金额重新计算
func CentsOr(cents *int64, d decimal.Decimal) int64 {
	if cents != nil {
		return *cents
	}
	return ToCents(d)
}

// Ptr 返回分值指针，便于写入可空列
func Ptr(d decimal.Decimal) *int64 {
	c := ToCents(d)
	return &c
}

// String 固定两位小数的展示格式
func String(d decimal.Decimal) string {
	return Quantize(d).StringFixed(Scale)
}
