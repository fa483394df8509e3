package interceptor

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/patric-chuzhbe/blogsbook/internal/auth"
)

// UnaryBearerInterceptor copies the bearer token of the "authorization"
// metadata into the context under auth.BearerTokenKey. Calls without one
// pass through; the handler decides whether a token is required.
func UnaryBearerInterceptor(allowedMethods []string) grpc.UnaryServerInterceptor {
	allowed := make(map[string]struct{}, len(allowedMethods))
	for _, m := range allowedMethods {
		allowed[m] = struct{}{}
	}

	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if _, ok := allowed[info.FullMethod]; !ok {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return handler(ctx, req)
		}

		authHeader := md.Get("authorization")
		if len(authHeader) == 0 {
			return handler(ctx, req)
		}

		token := auth.ParseAuthorizationValue(authHeader[0])
		if token == "" {
			return handler(ctx, req)
		}

		return handler(context.WithValue(ctx, auth.BearerTokenKey, token), req)
	}
}
