package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	grpcadapter "github.com/simaogato/withdrawal-sim/internal/adapter/grpc"
	"github.com/simaogato/withdrawal-sim/internal/usecase/simulation"
)

// serveCmd holds the flags for the 'serve' subcommand.
type serveCmd struct {
	port string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve simulations over gRPC" }
func (*serveCmd) Usage() string {
	return `simulator [-config <file>] serve [-port <addr>]

  Starts the gRPC simulation service. The loaded scenario is the base
  every request overrides. Calls must send "authorization: Bearer <token>"
  metadata, the token being API_TOKEN or server.api_token.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.port, "port", "", "Listen address. Overrides server.port.")
}

func (c *serveCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger, err := loadConfig()
	if err != nil {
		printError("loading config: %v", err)
		return subcommands.ExitFailure
	}
	if c.port != "" {
		cfg.Server.Port = c.port
	}

	base, err := cfg.SimulationConfig()
	if err != nil {
		printError("invalid scenario: %v", err)
		return subcommands.ExitUsageError
	}

	// Create gRPC server with logging and auth interceptors
	grpcServer := grpclib.NewServer(
		grpclib.ChainUnaryInterceptor(
			grpcadapter.LoggingInterceptor(logger),
			grpcadapter.AuthInterceptor(cfg.Server.APIToken),
		),
	)

	simulator := simulation.NewSimulator(logger, nil)
	grpcadapter.Register(grpcServer, grpcadapter.NewServer(simulator, base, cfg.Simulation.Workers))

	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.Server.Port)
	if err != nil {
		logger.WithError(err).Errorf("Failed to listen on %s", cfg.Server.Port)
		return subcommands.ExitFailure
	}

	// Start server in a goroutine
	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("gRPC server listening on %s", cfg.Server.Port)
		serveErr <- grpcServer.Serve(lis)
	}()

	// Graceful shutdown
	if err := waitForShutdown(grpcServer, serveErr, logger); err != nil {
		logger.WithError(err).Error("Failed to serve gRPC server")
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// waitForShutdown waits for SIGTERM or SIGINT and gracefully shuts down the server
func waitForShutdown(grpcServer *grpclib.Server, serveErr <-chan error, logger logrus.FieldLogger) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	select {
	case err := <-serveErr:
		return err
	case sig := <-sigChan:
		logger.Infof("Received signal: %v. Shutting down gracefully...", sig)
	}

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")
	return nil
}
