package grpc

import (
	"context"
	"fmt"
	"net"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/withdrawal-sim/internal/domain"
	"github.com/simaogato/withdrawal-sim/internal/usecase/simulation"
)

const testToken = "test-token-123"

// baseScenario has no market or FX noise: A loses 100 USD per month
func baseScenario() domain.SimulationConfig {
	return domain.SimulationConfig{
		StartingFXRate: decimal.NewFromInt(100),
		Months:         2,
		Expenses:       domain.ExpenseParameters{"living": decimal.NewFromInt(10000)},
		Assets: []domain.Asset{
			{ID: "A", Value: decimal.NewFromInt(1000), CostBasis: decimal.NewFromInt(1000)},
		},
		Seed: 1,
	}
}

func startServer(t *testing.T) (*Client, *logtest.Hook) {
	t.Helper()

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(
		LoggingInterceptor(logger),
		AuthInterceptor(testToken),
	))
	Register(s, NewServer(simulation.NewSimulator(logger, nil), baseScenario(), 2))

	go func() {
		_ = s.Serve(lis)
	}()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return NewClient(conn), hook
}

func mustStruct(t *testing.T, fields map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return s
}

func decimalAt(t *testing.T, v interface{}) decimal.Decimal {
	t.Helper()
	s, ok := v.(string)
	require.True(t, ok, "decimal fields are encoded as strings, got %T", v)
	return decimal.RequireFromString(s)
}

func TestServer_Run(t *testing.T) {
	client, hook := startServer(t)
	ctx := WithToken(context.Background(), testToken)

	resp, err := client.Run(ctx, &structpb.Struct{})
	require.NoError(t, err)

	doc := resp.AsMap()
	assert.Equal(t, "COMPLETED", doc["state"])
	assert.NotEmpty(t, doc["run_id"])
	assert.NotContains(t, doc, "error")

	months, ok := doc["months"].([]interface{})
	require.True(t, ok)
	require.Len(t, months, 2)

	last := months[1].(map[string]interface{})
	assert.Equal(t, float64(2), last["month"])
	assert.True(t, decimalAt(t, last["portfolio_value_usd"]).Equal(decimal.NewFromInt(800)))
	assert.True(t, decimalAt(t, last["total_withdrawn_usd"]).Equal(decimal.NewFromInt(200)))

	var served bool
	for _, entry := range hook.AllEntries() {
		if entry.Message == "request served" {
			served = true
			assert.Equal(t, RunFullMethod, entry.Data["method"])
			assert.Equal(t, "OK", entry.Data["code"])
		}
	}
	assert.True(t, served)
}

func TestServer_RunOverrides(t *testing.T) {
	client, _ := startServer(t)
	ctx := WithToken(context.Background(), testToken)

	resp, err := client.Run(ctx, mustStruct(t, map[string]interface{}{
		"months":           3,
		"seed":             42,
		"starting_fx_rate": "50",
		"expenses":         map[string]interface{}{"rent": 5000},
	}))
	require.NoError(t, err)

	doc := resp.AsMap()
	assert.Equal(t, float64(42), doc["seed"])
	months := doc["months"].([]interface{})
	require.Len(t, months, 3)

	first := months[0].(map[string]interface{})
	assert.True(t, decimalAt(t, first["fx_rate"]).Equal(decimal.NewFromInt(50)))
	assert.True(t, decimalAt(t, first["expenses_usd"]).Equal(decimal.NewFromInt(100)))
}

func TestServer_RunDepletionReturnsCompletedMonths(t *testing.T) {
	client, _ := startServer(t)
	ctx := WithToken(context.Background(), testToken)

	// 600 USD per month from 1000 USD: month 2 cannot be funded
	resp, err := client.Run(ctx, mustStruct(t, map[string]interface{}{
		"expenses": map[string]interface{}{"living": 60000},
	}))
	require.NoError(t, err)

	doc := resp.AsMap()
	assert.Equal(t, "FAILED", doc["state"])
	assert.Len(t, doc["months"], 1)
	assert.Contains(t, doc["error"], "month 2")
	assert.Contains(t, doc["error"], "insufficient funds")
}

func TestServer_RunRejectsBadRequests(t *testing.T) {
	client, _ := startServer(t)
	ctx := WithToken(context.Background(), testToken)

	tests := []struct {
		name    string
		fields  map[string]interface{}
		wantMsg string
	}{
		{name: "zero months", fields: map[string]interface{}{"months": 0}, wantMsg: "months must be at least 1"},
		{name: "fractional months", fields: map[string]interface{}{"months": 1.5}, wantMsg: "must be an integer"},
		{name: "negative seed", fields: map[string]interface{}{"seed": -1}, wantMsg: "seed cannot be negative"},
		{name: "unknown field", fields: map[string]interface{}{"monthz": 3}, wantMsg: "unknown field"},
		{name: "trials on Run", fields: map[string]interface{}{"trials": 3}, wantMsg: "unknown field"},
		{name: "bad fx rate", fields: map[string]interface{}{"starting_fx_rate": "abc"}, wantMsg: "invalid starting_fx_rate format"},
		{name: "zero fx rate", fields: map[string]interface{}{"starting_fx_rate": 0}, wantMsg: "invalid fx rate"},
		{name: "expenses not an object", fields: map[string]interface{}{"expenses": 5}, wantMsg: "must be an object"},
		{name: "non-numeric expense", fields: map[string]interface{}{"expenses": map[string]interface{}{"rent": "a lot"}}, wantMsg: "must be numerical"},
		{name: "quoted expense amount", fields: map[string]interface{}{"expenses": map[string]interface{}{"rent": "5000"}}, wantMsg: "rent must be numerical"},
		{name: "negative expenses", fields: map[string]interface{}{"expenses": map[string]interface{}{"rent": -1}}, wantMsg: "rent is negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Run(ctx, mustStruct(t, tt.fields))

			require.Error(t, err)
			st, ok := status.FromError(err)
			require.True(t, ok)
			assert.Equal(t, codes.InvalidArgument, st.Code())
			assert.Contains(t, st.Message(), tt.wantMsg)
		})
	}
}

func TestServer_RequiresToken(t *testing.T) {
	client, _ := startServer(t)

	_, err := client.Run(context.Background(), &structpb.Struct{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = client.Run(WithToken(context.Background(), "wrong"), &structpb.Struct{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestServer_RunTrials(t *testing.T) {
	client, _ := startServer(t)
	ctx := WithToken(context.Background(), testToken)

	resp, err := client.RunTrials(ctx, mustStruct(t, map[string]interface{}{
		"trials":  3,
		"workers": 2,
	}))
	require.NoError(t, err)

	summary := resp.AsMap()
	assert.Equal(t, float64(3), summary["trials"])
	assert.Equal(t, float64(0), summary["depleted"])
	assert.True(t, decimalAt(t, summary["success_rate"]).Equal(decimal.NewFromInt(1)))
	assert.True(t, decimalAt(t, summary["median_final"]).Equal(decimal.NewFromInt(800)))

	_, err = client.RunTrials(ctx, mustStruct(t, map[string]interface{}{"trials": 0}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"insufficient funds", domain.ErrInsufficientFunds, codes.FailedPrecondition},
		{"wrapped invalid months", wrap(domain.ErrInvalidMonths), codes.InvalidArgument},
		{"empty portfolio", domain.ErrEmptyPortfolio, codes.InvalidArgument},
		{"cancelled", context.Canceled, codes.Canceled},
		{"deadline", wrap(context.DeadlineExceeded), codes.DeadlineExceeded},
		{"already a status", status.Error(codes.NotFound, "x"), codes.NotFound},
		{"unknown", assert.AnError, codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, status.Code(mapError(tt.err)))
		})
	}

	assert.NoError(t, mapError(nil))
}

func wrap(err error) error {
	return fmt.Errorf("month 3: %w", err)
}
