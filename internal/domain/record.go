package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// AssetSnapshot is the end-of-month state of one asset
type AssetSnapshot struct {
	ID               string          `json:"id"`
	Value            decimal.Decimal `json:"value"`
	CostBasis        decimal.Decimal `json:"cost_basis"`
	InitialValue     decimal.Decimal `json:"initial_value"`
	MonthlyChangePct decimal.Decimal `json:"monthly_change_pct"` // market step only
	TotalChangePct   decimal.Decimal `json:"total_change_pct"`   // against the month-0 value
	Withdrawal       decimal.Decimal `json:"withdrawal"`
	RealizedPL       decimal.Decimal `json:"realized_pl"`
}

// MonthlyRecord is the snapshot of a simulation at the end of one month.
// Records are values: they are built once by NewMonthlyRecord and never changed.
type MonthlyRecord struct {
	Month              int             `json:"month"`
	ExpensesJPY        decimal.Decimal `json:"expenses_jpy"`
	ExpensesUSD        decimal.Decimal `json:"expenses_usd"`
	WithdrawalUSD      decimal.Decimal `json:"withdrawal_usd"`
	TotalWithdrawnUSD  decimal.Decimal `json:"total_withdrawn_usd"`
	RealizedPL         decimal.Decimal `json:"realized_pl"`
	CumulativeRealized decimal.Decimal `json:"cumulative_realized_pl"`
	FXRate             decimal.Decimal `json:"fx_rate"`
	PortfolioValueUSD  decimal.Decimal `json:"portfolio_value_usd"`
	Assets             []AssetSnapshot `json:"assets"`
}

// MonthlyRecordParams holds every field of a MonthlyRecord
type MonthlyRecordParams struct {
	Month              int
	ExpensesJPY        decimal.Decimal
	ExpensesUSD        decimal.Decimal
	WithdrawalUSD      decimal.Decimal
	TotalWithdrawnUSD  decimal.Decimal
	RealizedPL         decimal.Decimal
	CumulativeRealized decimal.Decimal
	FXRate             decimal.Decimal
	PortfolioValueUSD  decimal.Decimal
	Assets             []AssetSnapshot
}

// NewMonthlyRecord builds a record in one step.
// The asset snapshots are copied and sorted by id.
func NewMonthlyRecord(p MonthlyRecordParams) MonthlyRecord {
	assets := make([]AssetSnapshot, len(p.Assets))
	copy(assets, p.Assets)
	sort.Slice(assets, func(i, j int) bool {
		return assets[i].ID < assets[j].ID
	})

	return MonthlyRecord{
		Month:              p.Month,
		ExpensesJPY:        p.ExpensesJPY,
		ExpensesUSD:        p.ExpensesUSD,
		WithdrawalUSD:      p.WithdrawalUSD,
		TotalWithdrawnUSD:  p.TotalWithdrawnUSD,
		RealizedPL:         p.RealizedPL,
		CumulativeRealized: p.CumulativeRealized,
		FXRate:             p.FXRate,
		PortfolioValueUSD:  p.PortfolioValueUSD,
		Assets:             assets,
	}
}

// Clone returns a deep copy of the record
func (r MonthlyRecord) Clone() MonthlyRecord {
	assets := make([]AssetSnapshot, len(r.Assets))
	copy(assets, r.Assets)
	r.Assets = assets
	return r
}

// Asset returns the snapshot of the given asset
func (r MonthlyRecord) Asset(id string) (AssetSnapshot, bool) {
	for _, a := range r.Assets {
		if a.ID == id {
			return a, true
		}
	}
	return AssetSnapshot{}, false
}

// WithdrawalDetails returns the per-asset withdrawal amounts of the month
func (r MonthlyRecord) WithdrawalDetails() map[string]decimal.Decimal {
	details := make(map[string]decimal.Decimal, len(r.Assets))
	for _, a := range r.Assets {
		details[a.ID] = a.Withdrawal
	}
	return details
}
