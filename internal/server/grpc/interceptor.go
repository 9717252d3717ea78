package grpc

import (
	"context"
	"crypto/subtle"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// TokenHeader carries the operator token in request metadata.
const TokenHeader = "x-operator-token"

// operatorTokenInterceptor rejects calls without the configured token.
// Health stays open so probes need no secret.
func (s *Server) operatorTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if len(s.token) == 0 || info.FullMethod == FullMethod(MethodHealth) {
		return handler(ctx, req)
	}

	var token string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(TokenHeader); len(values) > 0 {
			token = values[0]
		}
	}
	if token == "" {
		return nil, status.Error(codes.Unauthenticated, "missing operator token")
	}
	if subtle.ConstantTimeCompare([]byte(token), s.token) != 1 {
		return nil, status.Error(codes.Unauthenticated, "invalid operator token")
	}
	return handler(ctx, req)
}

func (s *Server) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	code := status.Code(err)
	if code == codes.Internal || code == codes.Unknown {
		s.logger.Error(ctx, "rpc failed", "method", info.FullMethod, "code", code.String(), "elapsed", time.Since(start).String())
	} else {
		s.logger.Debug(ctx, "rpc", "method", info.FullMethod, "code", code.String(), "elapsed", time.Since(start).String())
	}
	return resp, err
}
