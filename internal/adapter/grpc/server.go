package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/withdrawal-sim/internal/adapter/report"
	"github.com/simaogato/withdrawal-sim/internal/domain"
	"github.com/simaogato/withdrawal-sim/internal/usecase/expense"
	"github.com/simaogato/withdrawal-sim/internal/usecase/simulation"
)

const (
	ServiceName         = "simulation.v1.SimulationService"
	RunFullMethod       = "/" + ServiceName + "/Run"
	RunTrialsFullMethod = "/" + ServiceName + "/RunTrials"

	defaultTrialsPerCall = 100
	maxTrialsPerCall     = 100000

	requestFieldMonths   = "months"
	requestFieldSeed     = "seed"
	requestFieldFXRate   = "starting_fx_rate"
	requestFieldExpenses = "expenses"
	requestFieldTrials   = "trials"
	requestFieldWorkers  = "workers"
)

// SimulationServiceServer is the server API of the simulation service
// Requests and responses are google.protobuf.Struct so the service needs no
// generated code.
type SimulationServiceServer interface {
	Run(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	RunTrials(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the simulation service for grpc.Server.RegisterService
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SimulationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Run", Handler: runHandler},
		{MethodName: "RunTrials", Handler: runTrialsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "simulation/v1/simulation.proto",
}

// Register registers srv on s
func Register(s grpc.ServiceRegistrar, srv SimulationServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func runHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SimulationServiceServer).Run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RunFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SimulationServiceServer).Run(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func runTrialsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SimulationServiceServer).RunTrials(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RunTrialsFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SimulationServiceServer).RunTrials(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Server implements SimulationServiceServer
type Server struct {
	Simulator *simulation.Simulator
	Base      domain.SimulationConfig // scenario the request fields override
	Workers   int
}

// NewServer creates a new gRPC server instance
func NewServer(simulator *simulation.Simulator, base domain.SimulationConfig, workers int) *Server {
	return &Server{
		Simulator: simulator,
		Base:      base,
		Workers:   workers,
	}
}

// Run handles the Run RPC
// Logic:
//  1. Apply the request overrides to the base scenario
//  2. Run the simulation
//  3. Return the JSON document of the run as a Struct
//
// A run that fails part way still returns its completed months, with state
// FAILED and an "error" field. Configuration errors are returned as statuses.
func (s *Server) Run(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	cfg, err := s.configFromRequest(req)
	if err != nil {
		return nil, err
	}

	result, runErr := s.Simulator.Run(ctx, cfg)
	if runErr != nil && (result == nil || ctx.Err() != nil) {
		return nil, mapError(runErr)
	}

	data, err := json.Marshal(report.NewDocument(result))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode result: %v", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode result: %v", err)
	}
	if runErr != nil {
		fields["error"] = runErr.Error()
	}

	resp, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to build response: %v", err)
	}
	return resp, nil
}

// RunTrials handles the RunTrials RPC
func (s *Server) RunTrials(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	cfg, err := s.configFromRequest(req, requestFieldTrials, requestFieldWorkers)
	if err != nil {
		return nil, err
	}

	trials := defaultTrialsPerCall
	if v, ok := req.GetFields()[requestFieldTrials]; ok {
		if trials, err = intField(requestFieldTrials, v); err != nil {
			return nil, err
		}
		if trials < 1 || trials > maxTrialsPerCall {
			return nil, status.Errorf(codes.InvalidArgument, "trials must be between 1 and %d", maxTrialsPerCall)
		}
	}

	workers := s.Workers
	if v, ok := req.GetFields()[requestFieldWorkers]; ok {
		if workers, err = intField(requestFieldWorkers, v); err != nil {
			return nil, err
		}
	}

	summary, err := s.Simulator.RunTrials(ctx, cfg, trials, workers)
	if err != nil {
		return nil, mapError(err)
	}

	resp, err := structpb.NewStruct(map[string]interface{}{
		"trials":       summary.Trials,
		"depleted":     summary.Depleted,
		"success_rate": summary.SuccessRate.String(),
		"p10_final":    summary.P10Final.String(),
		"median_final": summary.MedianFinal.String(),
		"p90_final":    summary.P90Final.String(),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to build response: %v", err)
	}
	return resp, nil
}

// configFromRequest copies the base scenario and applies the request fields
// Fields other than months, seed, starting_fx_rate, expenses and the extra
// names allowed by the caller are rejected.
func (s *Server) configFromRequest(req *structpb.Struct, extra ...string) (domain.SimulationConfig, error) {
	cfg := s.Base
	cfg.Expenses = s.Base.Expenses.Clone()
	cfg.Assets = append([]domain.Asset(nil), s.Base.Assets...)

	allowed := map[string]bool{
		requestFieldMonths:   true,
		requestFieldSeed:     true,
		requestFieldFXRate:   true,
		requestFieldExpenses: true,
	}
	for _, name := range extra {
		allowed[name] = true
	}

	fields := req.GetFields()
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !allowed[name] {
			return domain.SimulationConfig{}, status.Errorf(codes.InvalidArgument, "unknown field %q", name)
		}
		v := fields[name]

		switch name {
		case requestFieldMonths:
			months, err := intField(name, v)
			if err != nil {
				return domain.SimulationConfig{}, err
			}
			if months < 1 {
				return domain.SimulationConfig{}, status.Errorf(codes.InvalidArgument, "months must be at least 1, got %d", months)
			}
			cfg.Months = months

		case requestFieldSeed:
			seed, err := intField(name, v)
			if err != nil {
				return domain.SimulationConfig{}, err
			}
			if seed < 0 {
				return domain.SimulationConfig{}, status.Errorf(codes.InvalidArgument, "seed cannot be negative")
			}
			cfg.Seed = uint64(seed)

		case requestFieldFXRate:
			rate, err := decimalField(name, v)
			if err != nil {
				return domain.SimulationConfig{}, err
			}
			cfg.StartingFXRate = rate

		case requestFieldExpenses:
			sv := v.GetStructValue()
			if sv == nil {
				return domain.SimulationConfig{}, status.Errorf(codes.InvalidArgument, "%s must be an object", name)
			}
			expenses, err := expense.ParseExpenses(sv.AsMap())
			if err != nil {
				return domain.SimulationConfig{}, mapError(err)
			}
			cfg.Expenses = expenses
		}
	}

	valid, err := domain.NewSimulationConfig(cfg)
	if err != nil {
		return domain.SimulationConfig{}, mapError(err)
	}
	return valid, nil
}

func intField(name string, v *structpb.Value) (int, error) {
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a number", name)
	}
	f := n.NumberValue
	if f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be an integer, got %v", name, f)
	}
	return int(f), nil
}

func decimalField(name string, v *structpb.Value) (decimal.Decimal, error) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		if math.IsNaN(k.NumberValue) || math.IsInf(k.NumberValue, 0) {
			return decimal.Zero, status.Errorf(codes.InvalidArgument, "%s must be finite", name)
		}
		return decimal.NewFromFloat(k.NumberValue), nil
	case *structpb.Value_StringValue:
		d, err := decimal.NewFromString(strings.TrimSpace(k.StringValue))
		if err != nil {
			return decimal.Zero, status.Errorf(codes.InvalidArgument, "invalid %s format: %v", name, err)
		}
		return d, nil
	default:
		return decimal.Zero, status.Errorf(codes.InvalidArgument, "%s must be a number or a numeric string", name)
	}
}

// mapError converts domain errors to appropriate gRPC status codes
func mapError(err error) error {
	if err == nil {
		return nil
	}

	if _, ok := status.FromError(err); ok {
		return err
	}

	errorMsg := err.Error()

	switch {
	case errors.Is(err, context.Canceled):
		return status.Errorf(codes.Canceled, "%s", errorMsg)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Errorf(codes.DeadlineExceeded, "%s", errorMsg)
	case errors.Is(err, domain.ErrInsufficientFunds):
		return status.Errorf(codes.FailedPrecondition, "%s", errorMsg)
	case errors.Is(err, domain.ErrInvalidRate),
		errors.Is(err, domain.ErrInvalidExpense),
		errors.Is(err, domain.ErrInvalidWithdrawal),
		errors.Is(err, domain.ErrInvalidMonths),
		errors.Is(err, domain.ErrInvalidAsset),
		errors.Is(err, domain.ErrDuplicateAsset),
		errors.Is(err, domain.ErrEmptyPortfolio):
		return status.Errorf(codes.InvalidArgument, "%s", errorMsg)
	}

	// Default to Internal error for unknown errors
	return status.Errorf(codes.Internal, "%s", errorMsg)
}
