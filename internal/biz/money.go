package biz

import "github.com/shopspring/decimal"

// DefaultAmountTolerance 金额比对的绝对容差（含边界）
var DefaultAmountTolerance = decimal.RequireFromString("0.01")

// AmountMatches |a-b| <= tolerance
func AmountMatches(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}

// ToMinorUnits 元转分（网关金额以最小货币单位表示）
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits 分转元
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// Subtotal 按冻结的单价与数量计算小计
func Subtotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, li := range items {
		total = total.Add(li.LineTotal())
	}
	return total
}
