package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the simulation service over a client connection
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a new Client on cc
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// WithToken returns a context carrying token as the bearer credential expected by AuthInterceptor
func WithToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, authorizationKey, bearerScheme+token)
}

// Run calls the Run RPC
func (c *Client) Run(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, RunFullMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// RunTrials calls the RunTrials RPC
func (c *Client) RunTrials(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, RunTrialsFullMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
