package report

import (
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

const (
	USD = money.USD
	JPY = money.JPY
)

var hundredPct = decimal.NewFromInt(100)

// formatMoney renders amount in the currency's own style ($1,234.56, ¥230,000)
func formatMoney(amount decimal.Decimal, code string) string {
	cur := money.GetCurrency(code)
	fraction := 2
	if cur != nil {
		fraction = cur.Fraction
	}
	minor := amount.Shift(int32(fraction)).Round(0).IntPart()
	return money.New(minor, code).Display()
}

// formatSignedMoney is formatMoney with an explicit + for positive amounts
func formatSignedMoney(amount decimal.Decimal, code string) string {
	if amount.IsPositive() {
		return "+" + formatMoney(amount, code)
	}
	return formatMoney(amount, code)
}

func formatPercent(pct decimal.Decimal) string {
	return fmt.Sprintf("%+.2f%%", pct.InexactFloat64())
}

func formatRate(rate decimal.Decimal) string {
	return rate.StringFixed(2) + " JPY/USD"
}
