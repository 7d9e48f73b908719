package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/simaogato/withdrawal-sim/internal/domain"
	"github.com/simaogato/withdrawal-sim/internal/usecase/expense"
)

const envPrefix = "WSIM"

type Config struct {
	Simulation SimulationSettings `mapstructure:"simulation"`
	Expenses   map[string]any     `mapstructure:"expenses"`
	Portfolio  []AssetSettings    `mapstructure:"portfolio"`
	Log        LogSettings        `mapstructure:"log"`
	Server     ServerSettings     `mapstructure:"server"`
}

type SimulationSettings struct {
	StartingFXRate            float64 `mapstructure:"starting_fx_rate"`
	Months                    int     `mapstructure:"months"`
	SafeWithdrawalRateMonthly float64 `mapstructure:"safe_withdrawal_rate_monthly"`
	FXDrift                   float64 `mapstructure:"fx_drift"`
	FXVolatility              float64 `mapstructure:"fx_volatility"`
	Seed                      uint64  `mapstructure:"seed"`
	Trials                    int     `mapstructure:"trials"`
	Workers                   int     `mapstructure:"workers"`
}

// AssetSettings is one portfolio entry. Portfolio is a list rather than a map
// because viper lower-cases map keys and asset ids are case sensitive.
type AssetSettings struct {
	ID         string  `mapstructure:"id"`
	Value      float64 `mapstructure:"value"`
	CostBasis  float64 `mapstructure:"cost_basis"`
	Return     float64 `mapstructure:"return"`
	Volatility float64 `mapstructure:"volatility"`
}

type LogSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ServerSettings struct {
	Port     string `mapstructure:"port"`
	APIToken string `mapstructure:"api_token"`
}

// DefaultExpenses returns the monthly JPY expenses of the sample scenario
func DefaultExpenses() map[string]any {
	return map[string]any{
		"grocery_expenses":     50000,
		"rent":                 80000,
		"vehicle_maintenance":  15000,
		"healthcare_expenses":  30000,
		"entertainment_budget": 20000,
		"utilities_expenses":   25000,
		"internet_and_phone":   10000,
	}
}

// DefaultPortfolio returns the sample portfolio (USD)
func DefaultPortfolio() []AssetSettings {
	return []AssetSettings{
		{ID: "ABC_STOCK", Value: 1000, CostBasis: 2000, Return: 0.02, Volatility: 0.15},
		{ID: "XYZ_BOND", Value: 50000, CostBasis: 50000, Return: 0.01, Volatility: 0.05},
		{ID: "THING", Value: 7000, CostBasis: 20000, Return: 0.01, Volatility: 0.30},
		{ID: "REAL_ESTATE", Value: 5000, CostBasis: 5000, Return: 0.01, Volatility: 0.02},
		{ID: "MUTUAL_FUND", Value: 7500, CostBasis: 7000, Return: 0.015, Volatility: 0.10},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("simulation.starting_fx_rate", 110)
	v.SetDefault("simulation.months", 12)
	v.SetDefault("simulation.safe_withdrawal_rate_monthly", 0.004)
	v.SetDefault("simulation.fx_drift", 0.0)
	v.SetDefault("simulation.fx_volatility", domain.DefaultFXVolatility.InexactFloat64())
	v.SetDefault("simulation.seed", 1)
	v.SetDefault("simulation.trials", 1000)
	v.SetDefault("simulation.workers", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.api_token", "dev-token")
}

// Load reads the configuration
// path may name a YAML/JSON/TOML file; if empty, simulation.yaml is looked up
// in the working directory and the defaults apply when it does not exist.
// Environment variables prefixed WSIM_ override file values
// (WSIM_SIMULATION_MONTHS=24), API_TOKEN overrides server.api_token.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.api_token", envPrefix+"_SERVER_API_TOKEN", "API_TOKEN"); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("simulation")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Whole-section defaults: merging them key by key would leak sample
	// categories and assets into user scenarios
	if len(cfg.Expenses) == 0 {
		cfg.Expenses = DefaultExpenses()
	}
	if len(cfg.Portfolio) == 0 {
		cfg.Portfolio = DefaultPortfolio()
	}

	return &cfg, nil
}

// SimulationConfig converts the settings into the engine's immutable input
// A run needs at least one month here; the engine itself accepts zero.
func (c *Config) SimulationConfig() (domain.SimulationConfig, error) {
	if c.Simulation.Months < 1 {
		return domain.SimulationConfig{}, fmt.Errorf("%w: simulation needs at least 1 month, got %d", domain.ErrInvalidMonths, c.Simulation.Months)
	}

	expenses, err := expense.ParseExpenses(c.Expenses)
	if err != nil {
		return domain.SimulationConfig{}, err
	}

	assets := make([]domain.Asset, 0, len(c.Portfolio))
	for _, a := range c.Portfolio {
		assets = append(assets, domain.Asset{
			ID:             a.ID,
			Value:          decimal.NewFromFloat(a.Value),
			CostBasis:      decimal.NewFromFloat(a.CostBasis),
			ExpectedReturn: decimal.NewFromFloat(a.Return),
			Volatility:     decimal.NewFromFloat(a.Volatility),
		})
	}

	return domain.NewSimulationConfig(domain.SimulationConfig{
		StartingFXRate:            decimal.NewFromFloat(c.Simulation.StartingFXRate),
		Months:                    c.Simulation.Months,
		Expenses:                  expenses,
		Assets:                    assets,
		FXDrift:                   decimal.NewFromFloat(c.Simulation.FXDrift),
		FXVolatility:              decimal.NewFromFloat(c.Simulation.FXVolatility),
		SafeWithdrawalRateMonthly: decimal.NewFromFloat(c.Simulation.SafeWithdrawalRateMonthly),
		Seed:                      c.Simulation.Seed,
	})
}
