package grpcserver

import (
	"net"

	"google.golang.org/grpc"

	"github.com/patric-chuzhbe/blogsbook/internal/grpcserver/interceptor"
)

func NewGRPCServer(
	addr string,
	handler AuthServiceServer,
) (*grpc.Server, net.Listener, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptor.UnaryBearerInterceptor([]string{
				MethodDeleteBlog,
			}),
			interceptor.UnaryLoggingInterceptor([]string{
				MethodIssueAccessToken,
				MethodIssueBearerToken,
				MethodVerifyBearerToken,
				MethodDeleteBlog,
			}),
		),
	)
	server.RegisterService(&AuthServiceDesc, handler)

	return server, lis, nil
}
