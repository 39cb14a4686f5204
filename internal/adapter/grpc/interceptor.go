package grpc

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const authorizationHeader = "authorization"

var errInvalidToken = errors.New("invalid token")

// TokenAuth rejects calls that do not present the shared API token.
// The authorization header holds the token itself or "Bearer <token>".
type TokenAuth struct {
	token  []byte
	logger *slog.Logger
}

// NewTokenAuth creates a new TokenAuth instance
func NewTokenAuth(token string, logger *slog.Logger) *TokenAuth {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenAuth{token: []byte(token), logger: logger}
}

// Unary returns the interceptor guarding unary RPCs
func (a *TokenAuth) Unary() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if err := a.authorize(ctx, info.FullMethod); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// Stream returns the interceptor guarding streaming RPCs, server reflection among them
func (a *TokenAuth) Stream() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if err := a.authorize(ss.Context(), info.FullMethod); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}

func (a *TokenAuth) authorize(ctx context.Context, method string) error {
	presented, err := bearerToken(ctx)
	if err == nil && subtle.ConstantTimeCompare(presented, a.token) != 1 {
		err = errInvalidToken
	}
	if err != nil {
		a.logger.Warn("Rejected unauthenticated call", "method", method, "error", err)
		return status.Error(codes.Unauthenticated, err.Error())
	}
	return nil
}

func bearerToken(ctx context.Context) ([]byte, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, errors.New("missing metadata")
	}
	values := md.Get(authorizationHeader)
	if len(values) == 0 {
		return nil, errors.New("missing authorization header")
	}

	scheme, token, found := strings.Cut(strings.TrimSpace(values[0]), " ")
	if !found {
		return []byte(scheme), nil
	}
	if !strings.EqualFold(scheme, "bearer") {
		return nil, fmt.Errorf("unsupported authorization scheme %q", scheme)
	}
	return []byte(strings.TrimSpace(token)), nil
}
