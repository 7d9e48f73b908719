package domain

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// Asset represents a single holding of the simulated portfolio
// Value and CostBasis are expressed in the base currency (USD)
// ExpectedReturn and Volatility are annualised figures (0.05 = 5%)
type Asset struct {
	ID             string
	Value          decimal.Decimal // Current market value, never negative
	CostBasis      decimal.Decimal // Acquisition cost, fixed for the whole run
	ExpectedReturn decimal.Decimal
	Volatility     decimal.Decimal
}

// Validate ensures the asset adheres to domain rules
// Returns an error wrapping ErrInvalidAsset if validation fails
func (a *Asset) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("%w: asset id cannot be empty", ErrInvalidAsset)
	}
	if a.Value.IsNegative() {
		return fmt.Errorf("%w: %s value cannot be negative", ErrInvalidAsset, a.ID)
	}
	if a.CostBasis.IsNegative() {
		return fmt.Errorf("%w: %s cost basis cannot be negative", ErrInvalidAsset, a.ID)
	}
	if a.Volatility.IsNegative() {
		return fmt.Errorf("%w: %s volatility cannot be negative", ErrInvalidAsset, a.ID)
	}
	if !fitsFloat(a.ExpectedReturn) || !fitsFloat(a.Volatility) {
		return fmt.Errorf("%w: %s return and volatility must fit a float64", ErrInvalidAsset, a.ID)
	}
	return nil
}

// fitsFloat reports whether d converts to a finite float64.
// Returns and volatilities are sampled in floating point.
func fitsFloat(d decimal.Decimal) bool {
	return !math.IsInf(d.InexactFloat64(), 0)
}

// UnrealizedPL returns Value - CostBasis
func (a *Asset) UnrealizedPL() decimal.Decimal {
	return a.Value.Sub(a.CostBasis)
}

// ValuePrecision is the number of decimal places kept after a multiplicative shock
const ValuePrecision = 10

// Portfolio is the single-writer collection of assets mutated by a simulation run.
// Assets are only changed through ApplyReturn and Withdraw so that the
// proportional withdrawal invariant stays auditable.
type Portfolio struct {
	assets map[string]*Asset
	ids    []string // sorted, fixes iteration order for seeded runs
}

// NewPortfolio creates a portfolio from copies of the given assets
func NewPortfolio(assets ...Asset) (*Portfolio, error) {
	p := &Portfolio{
		assets: make(map[string]*Asset, len(assets)),
		ids:    make([]string, 0, len(assets)),
	}

	for _, a := range assets {
		if err := a.Validate(); err != nil {
			return nil, err
		}
		if _, ok := p.assets[a.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAsset, a.ID)
		}
		asset := a
		p.assets[a.ID] = &asset
		p.ids = append(p.ids, a.ID)
	}

	sort.Strings(p.ids)
	return p, nil
}

// IDs returns the asset identifiers in iteration order
func (p *Portfolio) IDs() []string {
	ids := make([]string, len(p.ids))
	copy(ids, p.ids)
	return ids
}

// Len returns the number of assets
func (p *Portfolio) Len() int {
	return len(p.ids)
}

// Asset returns a copy of the asset with the given id
func (p *Portfolio) Asset(id string) (Asset, bool) {
	a, ok := p.assets[id]
	if !ok {
		return Asset{}, false
	}
	return *a, true
}

// Assets returns copies of all assets in iteration order
func (p *Portfolio) Assets() []Asset {
	out := make([]Asset, 0, len(p.ids))
	for _, id := range p.ids {
		out = append(out, *p.assets[id])
	}
	return out
}

// TotalValue returns the sum of all asset values
func (p *Portfolio) TotalValue() decimal.Decimal {
	total := decimal.Zero
	for _, id := range p.ids {
		total = total.Add(p.assets[id].Value)
	}
	return total
}

// Values returns a snapshot of every asset value keyed by id
func (p *Portfolio) Values() map[string]decimal.Decimal {
	values := make(map[string]decimal.Decimal, len(p.ids))
	for _, id := range p.ids {
		values[id] = p.assets[id].Value
	}
	return values
}

// ApplyReturn multiplies the asset value by factor, flooring the result at zero.
// The new value is rounded to ValuePrecision places.
// Returns the previous and the new value.
func (p *Portfolio) ApplyReturn(id string, factor decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	a, ok := p.assets[id]
	if !ok {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: unknown asset %s", ErrInvalidAsset, id)
	}

	old := a.Value
	a.Value = decimal.Max(old.Mul(factor).Round(ValuePrecision), decimal.Zero)
	return old, a.Value, nil
}

// Withdraw subtracts amount from the asset value.
// The amount must be non-negative and cannot exceed the current value.
func (p *Portfolio) Withdraw(id string, amount decimal.Decimal) error {
	a, ok := p.assets[id]
	if !ok {
		return fmt.Errorf("%w: unknown asset %s", ErrInvalidAsset, id)
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: %s amount %s is negative", ErrInvalidWithdrawal, id, amount)
	}
	if amount.GreaterThan(a.Value) {
		return fmt.Errorf("%w: %s holds %s, cannot sell %s", ErrInsufficientFunds, id, a.Value, amount)
	}

	a.Value = a.Value.Sub(amount)
	return nil
}

// Clone returns an independent deep copy of the portfolio
func (p *Portfolio) Clone() *Portfolio {
	c := &Portfolio{
		assets: make(map[string]*Asset, len(p.assets)),
		ids:    p.IDs(),
	}
	for id, a := range p.assets {
		asset := *a
		c.assets[id] = &asset
	}
	return c
}
