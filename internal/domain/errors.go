package domain

import "errors"

// Sentinel errors raised by the simulation engine.
// Callers match them with errors.Is; the engine wraps them with context.
var (
	ErrInvalidRate       = errors.New("invalid fx rate")
	ErrInvalidExpense    = errors.New("invalid expense")
	ErrInvalidWithdrawal = errors.New("invalid withdrawal")
	ErrEmptyPortfolio    = errors.New("empty portfolio")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidMonths     = errors.New("invalid months")
	ErrInvalidAsset      = errors.New("invalid asset")
	ErrDuplicateAsset    = errors.New("duplicate asset")
)
