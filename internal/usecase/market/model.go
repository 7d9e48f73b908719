package market

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/simaogato/withdrawal-sim/internal/domain"
)

const monthsPerYear = 12

var hundred = decimal.NewFromInt(100)

// Sampler draws normally distributed samples
type Sampler interface {
	Normal(mean, stddev float64) float64
}

// NormalSampler draws from gonum normal distributions sharing one seeded PCG source.
// It is not safe for concurrent use; give every run its own sampler.
type NormalSampler struct {
	src rand.Source
}

// NewNormalSampler creates a sampler whose sequence is fixed by seed
func NewNormalSampler(seed uint64) *NormalSampler {
	return &NormalSampler{
		src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15),
	}
}

// Normal returns a sample of N(mean, stddev). A zero stddev returns mean
// without consuming the source.
func (s *NormalSampler) Normal(mean, stddev float64) float64 {
	if stddev == 0 {
		return mean
	}
	return distuv.Normal{Mu: mean, Sigma: stddev, Src: s.src}.Rand()
}

// Model applies random monthly shocks to asset values and FX rates
type Model struct {
	Sampler Sampler
}

// NewModel creates a new Model instance
func NewModel(sampler Sampler) *Model {
	return &Model{Sampler: sampler}
}

// SimulateAssetValues applies one month of market noise to every asset of p
// Logic:
//  1. Skip assets whose value is not positive (reported change 0, they stay at 0)
//  2. Draw r ~ N(expectedReturn/12, volatility/sqrt(12))
//  3. New value = max(old * (1 + r), 0)
//
// Returns the percentage change of each asset keyed by asset id
func (m *Model) SimulateAssetValues(p *domain.Portfolio) (map[string]decimal.Decimal, error) {
	changes := make(map[string]decimal.Decimal, p.Len())

	for _, asset := range p.Assets() {
		if !asset.Value.IsPositive() {
			changes[asset.ID] = decimal.Zero
			continue
		}

		mean := asset.ExpectedReturn.InexactFloat64() / monthsPerYear
		stddev := asset.Volatility.InexactFloat64() / math.Sqrt(monthsPerYear)
		factor := 1 + m.Sampler.Normal(mean, stddev)
		if !isFinite(factor) {
			return nil, fmt.Errorf("%w: %s drew a non-finite return", domain.ErrInvalidAsset, asset.ID)
		}

		old, updated, err := p.ApplyReturn(asset.ID, decimal.NewFromFloat(factor))
		if err != nil {
			return nil, err
		}

		changes[asset.ID] = updated.Sub(old).Div(old).Mul(hundred)
	}

	return changes, nil
}

// SimulateFXRate applies one month of FX noise to rate
// The result is floored at domain.MinFXRate
func (m *Model) SimulateFXRate(rate, drift, volatility decimal.Decimal) (decimal.Decimal, error) {
	if rate.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("%w: current rate %s must be positive", domain.ErrInvalidRate, rate)
	}

	factor := 1 + m.Sampler.Normal(drift.InexactFloat64(), volatility.InexactFloat64())
	if !isFinite(factor) {
		return decimal.Zero, fmt.Errorf("%w: fx shock is not finite", domain.ErrInvalidRate)
	}
	next := rate.Mul(decimal.NewFromFloat(factor)).Round(domain.ValuePrecision)

	return decimal.Max(next, domain.MinFXRate), nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
