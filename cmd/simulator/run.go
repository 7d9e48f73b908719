package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/simaogato/withdrawal-sim/internal/adapter/report"
	"github.com/simaogato/withdrawal-sim/internal/config"
	"github.com/simaogato/withdrawal-sim/internal/usecase/simulation"
)

// runCmd holds the flags for the 'run' subcommand.
type runCmd struct {
	months int
	seed   uint64
	out    string
	style  string
	quiet  bool

	stdout io.Writer
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "simulate the scenario month by month" }
func (*runCmd) Usage() string {
	return `simulator [-config <file>] run [-months <n>] [-seed <n>] [-o <file>] [-style <style>]

  Simulates the scenario and prints the month-by-month summary.
  With -o the run is also written to a file, the format follows the
  extension: .json, .md or .xlsx.
`
}

func (c *runCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.months, "months", 0, "Number of months to simulate. Overrides simulation.months.")
	f.Uint64Var(&c.seed, "seed", 0, "Random seed. Overrides simulation.seed.")
	f.StringVar(&c.out, "o", "", "Write the run to this file (.json, .md or .xlsx).")
	f.StringVar(&c.style, "style", "notty", "Terminal style for the summary (dark, light, notty, ascii).")
	f.BoolVar(&c.quiet, "q", false, "Do not print the summary.")
}

func (c *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger, err := loadConfig()
	if err != nil {
		printError("loading config: %v", err)
		return subcommands.ExitFailure
	}
	applyOverrides(cfg, f, c.months, c.seed)

	simCfg, err := cfg.SimulationConfig()
	if err != nil {
		printError("invalid scenario: %v", err)
		return subcommands.ExitUsageError
	}

	result, runErr := simulation.NewSimulator(logger, nil).Run(ctx, simCfg)
	if result == nil {
		printError("running simulation: %v", runErr)
		return subcommands.ExitFailure
	}

	// partial runs are still reported
	if !c.quiet {
		stdout := c.stdout
		if stdout == nil {
			stdout = os.Stdout
		}
		fmt.Fprint(stdout, report.Render(report.Markdown(result), c.style))
	}

	if c.out != "" {
		if err := report.ExportToFile(result, c.out); err != nil {
			printError("writing %q: %v", c.out, err)
			return subcommands.ExitFailure
		}
		logger.WithField("path", c.out).Info("run exported")
	}

	if runErr != nil {
		logger.WithError(runErr).WithField("months_completed", result.Len()).Error("simulation aborted")
		return subcommands.ExitFailure
	}

	if last, ok := result.Last(); ok {
		logger.WithFields(logrus.Fields{
			"run_id":              result.RunID,
			"months":              last.Month,
			"portfolio_value_usd": last.PortfolioValueUSD.StringFixed(2),
			"total_withdrawn_usd": last.TotalWithdrawnUSD.StringFixed(2),
		}).Info("simulation completed")
	}
	return subcommands.ExitSuccess
}

// applyOverrides copies the flags that were set on the command line into cfg
func applyOverrides(cfg *config.Config, f *flag.FlagSet, months int, seed uint64) {
	f.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "months":
			cfg.Simulation.Months = months
		case "seed":
			cfg.Simulation.Seed = seed
		}
	})
}
