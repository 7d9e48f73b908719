package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MinFXRate is the floor applied to every simulated FX rate
var MinFXRate = decimal.RequireFromString("0.01")

// DefaultFXVolatility is the monthly standard deviation of the FX shock
var DefaultFXVolatility = decimal.RequireFromString("0.01")

// ExpenseParameters maps an expense category to its monthly amount in JPY
type ExpenseParameters map[string]decimal.Decimal

// Clone returns a copy of the expense parameters
func (e ExpenseParameters) Clone() ExpenseParameters {
	out := make(ExpenseParameters, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// SimulationConfig is the immutable input of a simulation run.
// Build it with NewSimulationConfig; the engine never mutates it.
type SimulationConfig struct {
	StartingFXRate decimal.Decimal // JPY per USD
	Months         int
	Expenses       ExpenseParameters
	Assets         []Asset
	FXDrift        decimal.Decimal // monthly mean of the FX shock
	FXVolatility   decimal.Decimal // monthly standard deviation of the FX shock

	// SafeWithdrawalRateMonthly is reported next to each run but not applied:
	// withdrawals equal expenses and the rate never caps them.
	SafeWithdrawalRateMonthly decimal.Decimal

	Seed uint64
}

// NewSimulationConfig copies the mutable inputs and validates the result
func NewSimulationConfig(cfg SimulationConfig) (SimulationConfig, error) {
	out := cfg
	out.Expenses = cfg.Expenses.Clone()
	out.Assets = make([]Asset, len(cfg.Assets))
	copy(out.Assets, cfg.Assets)

	if err := out.Validate(); err != nil {
		return SimulationConfig{}, err
	}
	return out, nil
}

// Validate performs the boundary checks on a simulation config
func (c SimulationConfig) Validate() error {
	if c.StartingFXRate.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: starting rate %s must be positive", ErrInvalidRate, c.StartingFXRate)
	}
	if c.Months < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMonths, c.Months)
	}
	if c.FXVolatility.IsNegative() {
		return fmt.Errorf("%w: fx volatility cannot be negative", ErrInvalidRate)
	}
	if !fitsFloat(c.FXDrift) || !fitsFloat(c.FXVolatility) {
		return fmt.Errorf("%w: fx drift and volatility must fit a float64", ErrInvalidRate)
	}
	for category, amount := range c.Expenses {
		if amount.IsNegative() {
			return fmt.Errorf("%w: %s is negative", ErrInvalidExpense, category)
		}
	}
	if len(c.Assets) == 0 {
		return fmt.Errorf("%w: no assets", ErrEmptyPortfolio)
	}
	for i := range c.Assets {
		if err := c.Assets[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Portfolio builds a fresh portfolio from the configured assets
func (c SimulationConfig) Portfolio() (*Portfolio, error) {
	return NewPortfolio(c.Assets...)
}
