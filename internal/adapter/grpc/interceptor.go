package grpc

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/simaogato/withdrawal-sim/internal/logging"
)

const (
	authorizationKey = "authorization"
	bearerScheme     = "Bearer "
)

// AuthInterceptor rejects calls whose authorization metadata is not
// "Bearer <apiToken>" with codes.Unauthenticated.
func AuthInterceptor(apiToken string) grpc.UnaryServerInterceptor {
	want := []byte(apiToken)

	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get(authorizationKey)
		if len(values) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing authorization metadata")
		}

		token, ok := bearerToken(values[0])
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "authorization must use the Bearer scheme")
		}
		if subtle.ConstantTimeCompare([]byte(token), want) != 1 {
			return nil, status.Error(codes.Unauthenticated, "invalid api token")
		}

		return handler(ctx, req)
	}
}

// bearerToken strips the scheme, matched case-insensitively
func bearerToken(header string) (string, bool) {
	if len(header) <= len(bearerScheme) || !strings.EqualFold(header[:len(bearerScheme)], bearerScheme) {
		return "", false
	}
	return strings.TrimSpace(header[len(bearerScheme):]), true
}

// LoggingInterceptor returns a gRPC unary server interceptor that tags every
// call with a request id, stores the request logger in the context and logs
// the outcome with its status code and duration.
func LoggingInterceptor(logger logrus.FieldLogger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		entry := logger.WithFields(logrus.Fields{
			"request_id": uuid.New().String(),
			"method":     info.FullMethod,
		})

		resp, err := handler(logging.WithLogger(ctx, entry), req)

		entry = entry.WithFields(logrus.Fields{
			"code":     status.Code(err).String(),
			"duration": time.Since(start).String(),
		})
		if err != nil {
			entry.WithError(err).Warn("request failed")
		} else {
			entry.Info("request served")
		}
		return resp, err
	}
}
