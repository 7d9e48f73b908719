package simulation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"runtime"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/simaogato/withdrawal-sim/internal/domain"
	"github.com/simaogato/withdrawal-sim/internal/usecase/market"
)

// TrialOutcome summarises one independent run of a Monte Carlo batch
type TrialOutcome struct {
	Trial             int
	RunID             uuid.UUID
	Seed              uint64
	MonthsCompleted   int
	Depleted          bool            // the portfolio could not fund a month
	FinalValueUSD     decimal.Decimal // always zero for a depleted trial
	TotalWithdrawnUSD decimal.Decimal
	CumulativePL      decimal.Decimal
}

// TrialSummary aggregates the outcomes of a Monte Carlo batch
type TrialSummary struct {
	Trials      int
	Depleted    int
	SuccessRate decimal.Decimal // share of trials that funded every month, 0..1
	P10Final    decimal.Decimal
	MedianFinal decimal.Decimal
	P90Final    decimal.Decimal
	Outcomes    []TrialOutcome // ordered by trial index
}

// RunTrials runs n independent simulations of cfg in parallel
// Trial i owns a clone of the initial portfolio and a sampler seeded cfg.Seed+i,
// so trials share no mutable state. workers <= 0 uses GOMAXPROCS.
//
// A trial that runs out of money (domain.ErrInsufficientFunds or
// domain.ErrEmptyPortfolio) is a depleted outcome, not an error. Any other
// error cancels the batch.
func (s *Simulator) RunTrials(ctx context.Context, cfg domain.SimulationConfig, n, workers int) (*TrialSummary, error) {
	if n <= 0 {
		return nil, errors.New("number of trials must be positive")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	initial, err := cfg.Portfolio()
	if err != nil {
		return nil, err
	}

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// Per-month logs of hundreds of trials are noise
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	outcomes := make([]TrialOutcome, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := 0; i < n; i++ {
		trial := i
		g.Go(func() error {
			seed := cfg.Seed + uint64(trial)
			model := market.NewModel(s.NewSampler(seed))

			result, err := s.run(gctx, cfg, initial.Clone(), model, quiet)
			depleted := errors.Is(err, domain.ErrInsufficientFunds) || errors.Is(err, domain.ErrEmptyPortfolio)
			if err != nil && !depleted {
				return fmt.Errorf("trial %d: %w", trial, err)
			}

			outcome := TrialOutcome{
				Trial:             trial,
				RunID:             result.RunID,
				Seed:              seed,
				MonthsCompleted:   result.Len(),
				Depleted:          depleted,
				FinalValueUSD:     decimal.Zero,
				TotalWithdrawnUSD: decimal.Zero,
				CumulativePL:      decimal.Zero,
			}
			if last, ok := result.Last(); ok {
				outcome.FinalValueUSD = last.PortfolioValueUSD
				outcome.TotalWithdrawnUSD = last.TotalWithdrawnUSD
				outcome.CumulativePL = last.CumulativeRealized
			}
			switch {
			case depleted:
				// a depleted trial ends at zero whichever month failed
				outcome.FinalValueUSD = decimal.Zero
			case outcome.MonthsCompleted == 0:
				outcome.FinalValueUSD = initial.TotalValue()
			}

			outcomes[trial] = outcome
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := summarize(outcomes)
	s.Logger.WithFields(logrus.Fields{
		"trials":       summary.Trials,
		"depleted":     summary.Depleted,
		"success_rate": summary.SuccessRate.StringFixed(4),
		"median_final": summary.MedianFinal.StringFixed(2),
	}).Info("monte carlo batch completed")

	return summary, nil
}

func summarize(outcomes []TrialOutcome) *TrialSummary {
	summary := &TrialSummary{
		Trials:   len(outcomes),
		Outcomes: outcomes,
	}

	finals := make([]decimal.Decimal, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Depleted {
			summary.Depleted++
		}
		finals = append(finals, o.FinalValueUSD)
	}
	sort.Slice(finals, func(i, j int) bool {
		return finals[i].LessThan(finals[j])
	})

	succeeded := decimal.NewFromInt(int64(summary.Trials - summary.Depleted))
	summary.SuccessRate = succeeded.Div(decimal.NewFromInt(int64(summary.Trials)))
	summary.P10Final = percentile(finals, 0.10)
	summary.MedianFinal = percentile(finals, 0.50)
	summary.P90Final = percentile(finals, 0.90)

	return summary
}

// percentile returns the nearest-rank percentile of sorted values
func percentile(sorted []decimal.Decimal, p float64) decimal.Decimal {
	if len(sorted) == 0 {
		return decimal.Zero
	}
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
