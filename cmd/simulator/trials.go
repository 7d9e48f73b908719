package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"github.com/simaogato/withdrawal-sim/internal/adapter/report"
	"github.com/simaogato/withdrawal-sim/internal/usecase/simulation"
)

// trialsCmd holds the flags for the 'trials' subcommand.
type trialsCmd struct {
	n       int
	workers int
	months  int
	seed    uint64
	style   string

	stdout io.Writer
}

func (*trialsCmd) Name() string     { return "trials" }
func (*trialsCmd) Synopsis() string { return "run many independent simulations and summarise them" }
func (*trialsCmd) Usage() string {
	return `simulator [-config <file>] trials [-n <trials>] [-workers <n>] [-months <n>] [-seed <n>]

  Runs the scenario n times with seeds seed, seed+1, ... and prints the
  share of runs that funded every month along with final value percentiles.
`
}

func (c *trialsCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.n, "n", 0, "Number of trials. Overrides simulation.trials.")
	f.IntVar(&c.workers, "workers", 0, "Parallel workers. Overrides simulation.workers, 0 uses every CPU.")
	f.IntVar(&c.months, "months", 0, "Number of months to simulate. Overrides simulation.months.")
	f.Uint64Var(&c.seed, "seed", 0, "Seed of the first trial. Overrides simulation.seed.")
	f.StringVar(&c.style, "style", "notty", "Terminal style for the summary (dark, light, notty, ascii).")
}

func (c *trialsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger, err := loadConfig()
	if err != nil {
		printError("loading config: %v", err)
		return subcommands.ExitFailure
	}
	applyOverrides(cfg, f, c.months, c.seed)
	f.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "n":
			cfg.Simulation.Trials = c.n
		case "workers":
			cfg.Simulation.Workers = c.workers
		}
	})

	simCfg, err := cfg.SimulationConfig()
	if err != nil {
		printError("invalid scenario: %v", err)
		return subcommands.ExitUsageError
	}

	summary, err := simulation.NewSimulator(logger, nil).RunTrials(ctx, simCfg, cfg.Simulation.Trials, cfg.Simulation.Workers)
	if err != nil {
		printError("running trials: %v", err)
		return subcommands.ExitFailure
	}

	stdout := c.stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	fmt.Fprint(stdout, report.Render(report.TrialsMarkdown(summary), c.style))

	logger.WithField("trials", summary.Trials).
		WithField("depleted", summary.Depleted).
		WithField("success_rate", summary.SuccessRate.StringFixed(3)).
		Info("trials completed")
	return subcommands.ExitSuccess
}
