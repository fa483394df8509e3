package interceptor

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/patric-chuzhbe/blogsbook/internal/auth"
	"github.com/patric-chuzhbe/blogsbook/internal/logger"
)

func peerAddr(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}

	return p.Addr.String()
}

// UnaryLoggingInterceptor logs every call to one of loggedMethods. Failed
// calls are logged at warn level; the bearer token itself is never logged.
func UnaryLoggingInterceptor(loggedMethods []string) grpc.UnaryServerInterceptor {
	logged := make(map[string]struct{}, len(loggedMethods))
	for _, m := range loggedMethods {
		logged[m] = struct{}{}
	}

	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if _, ok := logged[info.FullMethod]; !ok {
			return handler(ctx, req)
		}

		start := time.Now()
		resp, err := handler(ctx, req)
		st, _ := status.FromError(err)

		fields := []interface{}{
			zap.String("method", info.FullMethod),
			zap.String("peer", peerAddr(ctx)),
			zap.Duration("duration", time.Since(start)),
			zap.String("code", st.Code().String()),
			zap.Bool("bearer", auth.BearerTokenFromContext(ctx) != ""),
		}
		if err != nil {
			logger.Log.Warnw("gRPC request failed", append(fields, zap.String("message", st.Message()))...)
			return resp, err
		}

		logger.Log.Infow("gRPC request", fields...)

		return resp, nil
	}
}
