package expense

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/simaogato/withdrawal-sim/internal/domain"
)

// CalculateMonthlyExpenses sums every expense category into one JPY total
// The categories are fixed for the whole run, so this is a plain sum.
// Returns an error wrapping domain.ErrInvalidExpense if the total is negative
func CalculateMonthlyExpenses(expenses domain.ExpenseParameters) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, amount := range expenses {
		total = total.Add(amount)
	}

	if total.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: total expenses %s cannot be negative", domain.ErrInvalidExpense, total)
	}

	return total, nil
}

// ConvertToBase converts a JPY amount to USD using a JPY-per-USD rate
func ConvertToBase(amountJPY, fxRate decimal.Decimal) (decimal.Decimal, error) {
	if fxRate.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("%w: cannot convert with rate %s", domain.ErrInvalidRate, fxRate)
	}
	return amountJPY.Div(fxRate), nil
}

// ParseExpenses converts loosely typed category amounts (config files, RPC payloads)
// into ExpenseParameters. Only numbers are accepted; strings, including numeric
// ones, are rejected with domain.ErrInvalidExpense naming the category.
func ParseExpenses(raw map[string]any) (domain.ExpenseParameters, error) {
	// Sorted so the reported category is stable when several are invalid
	categories := make([]string, 0, len(raw))
	for category := range raw {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	expenses := make(domain.ExpenseParameters, len(raw))
	for _, category := range categories {
		amount, err := toDecimal(raw[category])
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be numerical: %v", domain.ErrInvalidExpense, category, err)
		}
		expenses[category] = amount
	}

	return expenses, nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int32:
		return decimal.NewFromInt32(n), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case uint:
		return fromUint64(uint64(n)), nil
	case uint32:
		return fromUint64(uint64(n)), nil
	case uint64:
		return fromUint64(n), nil
	case float32:
		return fromFloat(float64(n))
	case float64:
		return fromFloat(n)
	case json.Number:
		return decimal.NewFromString(n.String())
	case string:
		return decimal.Zero, fmt.Errorf("got string %q, want a number", n)
	default:
		return decimal.Zero, fmt.Errorf("unsupported type %T", v)
	}
}

func fromUint64(n uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(n), 0)
}

func fromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, fmt.Errorf("%v is not a finite number", f)
	}
	return decimal.NewFromFloat(f), nil
}
