package market

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/simaogato/withdrawal-sim/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSampler is a mock implementation of Sampler for testing
type MockSampler struct {
	mock.Mock
}

func (m *MockSampler) Normal(mean, stddev float64) float64 {
	args := m.Called(mean, stddev)
	return args.Get(0).(float64)
}

func newPortfolio(t *testing.T, assets ...domain.Asset) *domain.Portfolio {
	t.Helper()
	p, err := domain.NewPortfolio(assets...)
	require.NoError(t, err)
	return p
}

func TestSimulateAssetValues_DeAnnualisesParameters(t *testing.T) {
	sampler := new(MockSampler)
	model := NewModel(sampler)

	p := newPortfolio(t, domain.Asset{
		ID:             "ABC_STOCK",
		Value:          decimal.NewFromInt(1000),
		CostBasis:      decimal.NewFromInt(2000),
		ExpectedReturn: decimal.RequireFromString("0.12"),
		Volatility:     decimal.RequireFromString("0.12"),
	})

	sampler.On("Normal",
		mock.MatchedBy(func(mean float64) bool { return math.Abs(mean-0.01) < 1e-12 }),
		mock.MatchedBy(func(stddev float64) bool { return math.Abs(stddev-0.12/math.Sqrt(12)) < 1e-12 }),
	).Return(0.1)

	changes, err := model.SimulateAssetValues(p)

	require.NoError(t, err)
	assert.True(t, changes["ABC_STOCK"].Equal(decimal.NewFromInt(10)), "got %s", changes["ABC_STOCK"])
	a, _ := p.Asset("ABC_STOCK")
	assert.True(t, a.Value.Equal(decimal.NewFromInt(1100)))
	sampler.AssertExpectations(t)
}

func TestSimulateAssetValues_ExtremeLossFloorsAtZero(t *testing.T) {
	for _, sample := range []float64{-1, -1.5, -10, -1e9} {
		sampler := new(MockSampler)
		model := NewModel(sampler)
		p := newPortfolio(t,
			domain.Asset{ID: "A", Value: decimal.NewFromInt(1000), Volatility: decimal.NewFromInt(5)},
			domain.Asset{ID: "B", Value: decimal.RequireFromString("0.5"), Volatility: decimal.NewFromInt(5)},
		)
		sampler.On("Normal", mock.Anything, mock.Anything).Return(sample)

		changes, err := model.SimulateAssetValues(p)
		require.NoError(t, err)

		for _, a := range p.Assets() {
			assert.False(t, a.Value.IsNegative(), "asset %s went negative with sample %v", a.ID, sample)
			assert.True(t, changes[a.ID].Equal(decimal.NewFromInt(-100)))
		}
	}
}

func TestSimulateAssetValues_ZeroAssetStaysZero(t *testing.T) {
	sampler := new(MockSampler)
	model := NewModel(sampler)
	p := newPortfolio(t, domain.Asset{ID: "DEAD", Value: decimal.Zero, ExpectedReturn: decimal.NewFromInt(1)})

	changes, err := model.SimulateAssetValues(p)

	require.NoError(t, err)
	assert.True(t, changes["DEAD"].IsZero())
	a, _ := p.Asset("DEAD")
	assert.True(t, a.Value.IsZero())
	sampler.AssertNotCalled(t, "Normal", mock.Anything, mock.Anything)
}

func TestSimulateAssetValues_ZeroVolatilityIsDeterministic(t *testing.T) {
	model := NewModel(NewNormalSampler(42))
	p := newPortfolio(t, domain.Asset{ID: "A", Value: decimal.NewFromInt(1000)})

	for i := 0; i < 24; i++ {
		changes, err := model.SimulateAssetValues(p)
		require.NoError(t, err)
		assert.True(t, changes["A"].IsZero())
	}
	assert.True(t, p.TotalValue().Equal(decimal.NewFromInt(1000)))
}

func TestSimulateFXRate(t *testing.T) {
	tests := []struct {
		name   string
		rate   decimal.Decimal
		sample float64
		want   decimal.Decimal
	}{
		{name: "no change", rate: decimal.NewFromInt(100), sample: 0, want: decimal.NewFromInt(100)},
		{name: "one percent up", rate: decimal.NewFromInt(100), sample: 0.01, want: decimal.NewFromInt(101)},
		{name: "crash floors at minimum", rate: decimal.NewFromInt(100), sample: -1.2, want: domain.MinFXRate},
		{name: "tiny rate floors at minimum", rate: decimal.RequireFromString("0.005"), sample: 0, want: domain.MinFXRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sampler := new(MockSampler)
			sampler.On("Normal", 0.0, 0.01).Return(tt.sample)
			model := NewModel(sampler)

			got, err := model.SimulateFXRate(tt.rate, decimal.Zero, domain.DefaultFXVolatility)

			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "want %s, got %s", tt.want, got)
		})
	}
}

func TestSimulateFXRate_NeverBelowMinimum(t *testing.T) {
	model := NewModel(NewNormalSampler(7))
	rate := decimal.NewFromInt(110)
	vol := decimal.NewFromInt(3) // absurd volatility to hit the floor often

	for i := 0; i < 500; i++ {
		var err error
		rate, err = model.SimulateFXRate(rate, decimal.Zero, vol)
		require.NoError(t, err)
		require.True(t, rate.GreaterThanOrEqual(domain.MinFXRate), "rate %s below floor", rate)
	}
}

func TestSimulateFXRate_InvalidRate(t *testing.T) {
	model := NewModel(new(MockSampler))

	for _, rate := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-5)} {
		_, err := model.SimulateFXRate(rate, decimal.Zero, domain.DefaultFXVolatility)
		assert.ErrorIs(t, err, domain.ErrInvalidRate)
	}
}

func TestNormalSampler_SeedIsReproducible(t *testing.T) {
	a := NewNormalSampler(1234)
	b := NewNormalSampler(1234)

	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Normal(0.01, 0.2), b.Normal(0.01, 0.2))
	}
	assert.Equal(t, 0.5, a.Normal(0.5, 0))
}

func TestNormalSampler_MatchesDistribution(t *testing.T) {
	sampler := NewNormalSampler(99)
	const n = 20000

	sum, sumSq := 0.0, 0.0
	for i := 0; i < n; i++ {
		x := sampler.Normal(0.5, 2)
		sum += x
		sumSq += x * x
	}
	mean := sum / n
	stddev := math.Sqrt(sumSq/n - mean*mean)

	assert.InDelta(t, 0.5, mean, 0.1)
	assert.InDelta(t, 2.0, stddev, 0.1)
	assert.NotEqual(t, NewNormalSampler(1).Normal(0, 1), NewNormalSampler(2).Normal(0, 1))
}

func TestModel_NonFiniteDrawsAreRejected(t *testing.T) {
	portfolio, err := domain.NewPortfolio(domain.Asset{ID: "A", Value: decimal.NewFromInt(1000)})
	require.NoError(t, err)

	sampler := new(MockSampler)
	sampler.On("Normal", mock.Anything, mock.Anything).Return(math.Inf(1))
	model := NewModel(sampler)

	_, err = model.SimulateAssetValues(portfolio)
	assert.ErrorIs(t, err, domain.ErrInvalidAsset)
	asset, _ := portfolio.Asset("A")
	assert.True(t, asset.Value.Equal(decimal.NewFromInt(1000)), "asset must be untouched")

	_, err = model.SimulateFXRate(decimal.NewFromInt(100), decimal.Zero, domain.DefaultFXVolatility)
	assert.ErrorIs(t, err, domain.ErrInvalidRate)
}
