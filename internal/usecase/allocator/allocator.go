package allocator

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/simaogato/withdrawal-sim/internal/domain"
)

// WithdrawalResult describes how one withdrawal was spread across the portfolio
type WithdrawalResult struct {
	Details    map[string]decimal.Decimal // amount sold per asset (USD)
	PerAssetPL map[string]decimal.Decimal // signed realized P/L per asset (USD)
	RealizedPL decimal.Decimal            // sum of PerAssetPL
}

// CalculateMonthlyWithdrawalAmount returns the USD amount to withdraw for the month
// Withdrawal equals expenses: the configured safe withdrawal rate is not applied as a cap.
func CalculateMonthlyWithdrawalAmount(monthlyExpensesUSD decimal.Decimal) (decimal.Decimal, error) {
	if monthlyExpensesUSD.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: monthly expenses %s cannot be negative", domain.ErrInvalidWithdrawal, monthlyExpensesUSD)
	}
	return monthlyExpensesUSD, nil
}

// UpdatePortfolio sells assets in proportion to their weight to fund amountUSD
// Logic:
//  1. Compute the total portfolio value once, before touching any asset
//  2. Each asset sells amountUSD * value / total
//  3. The largest asset receives the rounding remainder so the parts sum to amountUSD exactly
//  4. Realized P/L: the amount sold counts as a gain when value >= cost basis, as a loss otherwise
//  5. Apply every sale to the portfolio
//
// Realized P/L is a proxy based on the sign of the unrealized P/L at the time
// of the sale. It is not lot-level accounting.
//
// Over-withdrawal (amountUSD above the total value) is rejected before any
// asset is touched, so asset values never go negative.
func UpdatePortfolio(p *domain.Portfolio, amountUSD decimal.Decimal) (WithdrawalResult, error) {
	if amountUSD.IsNegative() {
		return WithdrawalResult{}, fmt.Errorf("%w: amount %s cannot be negative", domain.ErrInvalidWithdrawal, amountUSD)
	}

	total := p.TotalValue()
	if total.LessThanOrEqual(decimal.Zero) {
		return WithdrawalResult{}, fmt.Errorf("%w: total portfolio value must be positive", domain.ErrEmptyPortfolio)
	}

	if amountUSD.GreaterThan(total) {
		return WithdrawalResult{}, fmt.Errorf("%w: withdrawal %s exceeds portfolio value %s", domain.ErrInsufficientFunds, amountUSD, total)
	}

	assets := p.Assets()
	details, err := allocate(assets, total, amountUSD)
	if err != nil {
		return WithdrawalResult{}, err
	}

	result := WithdrawalResult{
		Details:    details,
		PerAssetPL: make(map[string]decimal.Decimal, len(assets)),
		RealizedPL: decimal.Zero,
	}

	for _, asset := range assets {
		sold := details[asset.ID]

		pl := sold
		if asset.UnrealizedPL().IsNegative() {
			pl = sold.Neg()
		}
		result.PerAssetPL[asset.ID] = pl
		result.RealizedPL = result.RealizedPL.Add(pl)

		if err := p.Withdraw(asset.ID, sold); err != nil {
			return WithdrawalResult{}, err
		}
	}

	return result, nil
}

// allocate computes the per-asset sale without mutating anything
func allocate(assets []domain.Asset, total, amount decimal.Decimal) (map[string]decimal.Decimal, error) {
	details := make(map[string]decimal.Decimal, len(assets))

	// Selling everything: every asset goes to zero, no division needed
	if amount.Equal(total) {
		for _, asset := range assets {
			details[asset.ID] = asset.Value
		}
		return details, nil
	}

	largest := findLargestAsset(assets)
	allocatedSoFar := decimal.Zero
	for _, asset := range assets {
		if asset.ID == largest.ID {
			continue
		}
		share := decimal.Min(amount.Mul(asset.Value).Div(total), asset.Value)
		details[asset.ID] = share
		allocatedSoFar = allocatedSoFar.Add(share)
	}
	details[largest.ID] = amount.Sub(allocatedSoFar)

	// Safety check: no asset sells more than it holds, and the parts sum to the whole
	totalAllocated := decimal.Zero
	for _, asset := range assets {
		share := details[asset.ID]
		if share.IsNegative() || share.GreaterThan(asset.Value) {
			return nil, fmt.Errorf("%w: %s cannot fund %s", domain.ErrInsufficientFunds, asset.ID, share)
		}
		totalAllocated = totalAllocated.Add(share)
	}

	if !totalAllocated.Equal(amount) {
		return nil, errors.New("total allocation does not equal withdrawal amount")
	}

	return details, nil
}

// findLargestAsset returns the asset with the highest value, last id wins ties
func findLargestAsset(assets []domain.Asset) domain.Asset {
	largest := assets[0]
	for _, asset := range assets[1:] {
		if asset.Value.GreaterThanOrEqual(largest.Value) {
			largest = asset
		}
	}
	return largest
}
