package simulation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/simaogato/withdrawal-sim/internal/domain"
	"github.com/simaogato/withdrawal-sim/internal/logging"
	"github.com/simaogato/withdrawal-sim/internal/usecase/allocator"
	"github.com/simaogato/withdrawal-sim/internal/usecase/expense"
	"github.com/simaogato/withdrawal-sim/internal/usecase/market"
)

var hundred = decimal.NewFromInt(100)

// State is the lifecycle stage of a run
type State string

const (
	StateInitializing State = "INITIALIZING"
	StateRunning      State = "RUNNING"
	StateCompleted    State = "COMPLETED"
	StateFailed       State = "FAILED" // a month failed, the records before it are kept
)

// SamplerFactory creates the random source of one run from its seed
type SamplerFactory func(seed uint64) market.Sampler

// DefaultSamplerFactory returns a seeded normal sampler
func DefaultSamplerFactory(seed uint64) market.Sampler {
	return market.NewNormalSampler(seed)
}

// Result is the ordered output of one simulation run
type Result struct {
	RunID         uuid.UUID
	Seed          uint64
	StartedAt     time.Time
	State         State
	InitialValues map[string]decimal.Decimal

	// SafeWithdrawalRateMonthly is echoed from the config, withdrawals ignore it
	SafeWithdrawalRateMonthly decimal.Decimal

	records []domain.MonthlyRecord
}

// Records returns copies of the monthly records in month order
func (r *Result) Records() []domain.MonthlyRecord {
	out := make([]domain.MonthlyRecord, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.Clone()
	}
	return out
}

// Len returns the number of completed months
func (r *Result) Len() int {
	return len(r.records)
}

// Last returns the record of the last completed month
func (r *Result) Last() (domain.MonthlyRecord, bool) {
	if len(r.records) == 0 {
		return domain.MonthlyRecord{}, false
	}
	return r.records[len(r.records)-1].Clone(), true
}

func (r *Result) append(rec domain.MonthlyRecord) {
	r.records = append(r.records, rec)
}

// Simulator drives month-by-month simulation runs
type Simulator struct {
	Logger     logrus.FieldLogger
	NewSampler SamplerFactory
}

// NewSimulator creates a new Simulator instance
// A nil factory falls back to DefaultSamplerFactory
func NewSimulator(logger logrus.FieldLogger, newSampler SamplerFactory) *Simulator {
	if newSampler == nil {
		newSampler = DefaultSamplerFactory
	}
	return &Simulator{
		Logger:     logger,
		NewSampler: newSampler,
	}
}

// Run simulates cfg.Months months on a fresh portfolio built from cfg
// Logic per month, in strict order:
//  1. Draw market returns (mutates asset values)
//  2. Draw the FX rate
//  3. Aggregate expenses (JPY) and convert them to USD with the new rate
//  4. Compute the withdrawal amount and sell assets proportionally
//  5. Accumulate totals and append one MonthlyRecord
//
// A logger stored in ctx (see logging.WithLogger) takes precedence over s.Logger.
// Any failing step aborts the run. The returned Result then holds the months
// completed before the failure and has State StateFailed.
func (s *Simulator) Run(ctx context.Context, cfg domain.SimulationConfig) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	portfolio, err := cfg.Portfolio()
	if err != nil {
		return nil, err
	}

	logger := s.Logger
	if reqLogger, ok := logging.Lookup(ctx); ok {
		logger = reqLogger
	}

	model := market.NewModel(s.NewSampler(cfg.Seed))
	return s.run(ctx, cfg, portfolio, model, logger)
}

func (s *Simulator) run(
	ctx context.Context,
	cfg domain.SimulationConfig,
	portfolio *domain.Portfolio,
	model *market.Model,
	logger logrus.FieldLogger,
) (*Result, error) {
	result := &Result{
		RunID:         uuid.New(),
		Seed:          cfg.Seed,
		StartedAt:     time.Now(),
		State:         StateInitializing,
		InitialValues: portfolio.Values(), // month-0 snapshot, never updated
		records:       make([]domain.MonthlyRecord, 0, cfg.Months),

		SafeWithdrawalRateMonthly: cfg.SafeWithdrawalRateMonthly,
	}
	logger = logger.WithField("run_id", result.RunID)

	fxRate := cfg.StartingFXRate
	totalWithdrawn := decimal.Zero
	cumulativePL := decimal.Zero

	result.State = StateRunning
	for month := 1; month <= cfg.Months; month++ {
		if err := ctx.Err(); err != nil {
			result.State = StateFailed
			return result, fmt.Errorf("month %d: %w", month, err)
		}

		logger.WithField("month", month).Info("simulating month")

		changes, err := model.SimulateAssetValues(portfolio)
		if err != nil {
			return failed(result, month, err)
		}
		totalChanges := changesSinceStart(result.InitialValues, portfolio.Values())

		fxRate, err = model.SimulateFXRate(fxRate, cfg.FXDrift, cfg.FXVolatility)
		if err != nil {
			return failed(result, month, err)
		}

		expensesJPY, err := expense.CalculateMonthlyExpenses(cfg.Expenses)
		if err != nil {
			return failed(result, month, err)
		}
		expensesUSD, err := expense.ConvertToBase(expensesJPY, fxRate)
		if err != nil {
			return failed(result, month, err)
		}

		withdrawalUSD, err := allocator.CalculateMonthlyWithdrawalAmount(expensesUSD)
		if err != nil {
			return failed(result, month, err)
		}
		withdrawal, err := allocator.UpdatePortfolio(portfolio, withdrawalUSD)
		if err != nil {
			return failed(result, month, err)
		}

		totalWithdrawn = totalWithdrawn.Add(withdrawalUSD)
		cumulativePL = cumulativePL.Add(withdrawal.RealizedPL)

		logger.WithFields(logrus.Fields{
			"month":                  month,
			"expenses_jpy":           expensesJPY.StringFixed(0),
			"expenses_usd":           expensesUSD.StringFixed(2),
			"withdrawal_usd":         withdrawalUSD.StringFixed(2),
			"realized_pl":            withdrawal.RealizedPL.StringFixed(2),
			"total_withdrawn_usd":    totalWithdrawn.StringFixed(2),
			"cumulative_realized_pl": cumulativePL.StringFixed(2),
		}).Debug("month summary")

		snapshots := make([]domain.AssetSnapshot, 0, portfolio.Len())
		for _, asset := range portfolio.Assets() {
			snapshots = append(snapshots, domain.AssetSnapshot{
				ID:               asset.ID,
				Value:            asset.Value,
				CostBasis:        asset.CostBasis,
				InitialValue:     result.InitialValues[asset.ID],
				MonthlyChangePct: changes[asset.ID],
				TotalChangePct:   totalChanges[asset.ID],
				Withdrawal:       withdrawal.Details[asset.ID],
				RealizedPL:       withdrawal.PerAssetPL[asset.ID],
			})
		}

		result.append(domain.NewMonthlyRecord(domain.MonthlyRecordParams{
			Month:              month,
			ExpensesJPY:        expensesJPY,
			ExpensesUSD:        expensesUSD,
			WithdrawalUSD:      withdrawalUSD,
			TotalWithdrawnUSD:  totalWithdrawn,
			RealizedPL:         withdrawal.RealizedPL,
			CumulativeRealized: cumulativePL,
			FXRate:             fxRate,
			PortfolioValueUSD:  portfolio.TotalValue(),
			Assets:             snapshots,
		}))
	}

	result.State = StateCompleted
	return result, nil
}

func failed(result *Result, month int, err error) (*Result, error) {
	result.State = StateFailed
	return result, fmt.Errorf("month %d: %w", month, err)
}

// changesSinceStart computes the percentage change of every asset against its
// month-0 value. Assets that started at zero report 0.
func changesSinceStart(initial, current map[string]decimal.Decimal) map[string]decimal.Decimal {
	changes := make(map[string]decimal.Decimal, len(current))
	for id, value := range current {
		start := initial[id]
		if !start.IsPositive() {
			changes[id] = decimal.Zero
			continue
		}
		changes[id] = value.Sub(start).Div(start).Mul(hundred)
	}
	return changes
}
