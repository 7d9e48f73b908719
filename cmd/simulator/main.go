// Command simulator runs month-by-month portfolio withdrawal simulations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/simaogato/withdrawal-sim/internal/config"
	"github.com/simaogato/withdrawal-sim/internal/logging"
)

// as a CLI application it has a short lifecycle, global flags are fine.

var configPath = flag.String("config", "", "Path to the scenario file (YAML, JSON or TOML). Defaults to ./simulation.yaml when present.")
var logLevel = flag.String("log-level", "", "Log level (debug, info, warn, error). Overrides log.level from the config.")

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	commander.Register(&runCmd{}, "simulation")
	commander.Register(&trialsCmd{}, "simulation")
	commander.Register(&serveCmd{}, "server")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

// loadConfig reads the scenario and builds the logger it asks for
func loadConfig() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, nil, err
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.Log.Level), logging.Format(cfg.Log.Format), nil)
	return cfg, logger, nil
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error "+format+"\n", args...)
}
