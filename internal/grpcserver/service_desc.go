package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified name of the auth service.
const ServiceName = "blogsbook.AuthService"

const (
	MethodIssueAccessToken  = "/" + ServiceName + "/IssueAccessToken"
	MethodIssueBearerToken  = "/" + ServiceName + "/IssueBearerToken"
	MethodVerifyBearerToken = "/" + ServiceName + "/VerifyBearerToken"
	MethodDeleteBlog        = "/" + ServiceName + "/DeleteBlog"
)

// AuthServiceServer is implemented by AuthHandler. Requests and responses
// are free-form structs keyed like the JSON bodies of the HTTP API.
type AuthServiceServer interface {
	IssueAccessToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	IssueBearerToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	VerifyBearerToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	DeleteBlog(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(srv AuthServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) func(
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	return func(
		srv interface{},
		ctx context.Context,
		dec func(interface{}) error,
		interceptor grpc.UnaryServerInterceptor,
	) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AuthServiceServer), ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(AuthServiceServer), ctx, req.(*structpb.Struct))
		}

		return interceptor(ctx, in, info, handler)
	}
}

// AuthServiceDesc describes the auth service for grpc.Server.RegisterService.
var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "IssueAccessToken",
			Handler:    unaryHandler(MethodIssueAccessToken, AuthServiceServer.IssueAccessToken),
		},
		{
			MethodName: "IssueBearerToken",
			Handler:    unaryHandler(MethodIssueBearerToken, AuthServiceServer.IssueBearerToken),
		},
		{
			MethodName: "VerifyBearerToken",
			Handler:    unaryHandler(MethodVerifyBearerToken, AuthServiceServer.VerifyBearerToken),
		},
		{
			MethodName: "DeleteBlog",
			Handler:    unaryHandler(MethodDeleteBlog, AuthServiceServer.DeleteBlog),
		},
	},
	Streams: []grpc.StreamDesc{},
}

// AuthServiceClient calls the auth service over conn.
type AuthServiceClient struct {
	conn grpc.ClientConnInterface
}

func NewAuthServiceClient(conn grpc.ClientConnInterface) *AuthServiceClient {
	return &AuthServiceClient{conn: conn}
}

func (c *AuthServiceClient) invoke(
	ctx context.Context,
	method string,
	in *structpb.Struct,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *AuthServiceClient) IssueAccessToken(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodIssueAccessToken, in, opts...)
}

func (c *AuthServiceClient) IssueBearerToken(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodIssueBearerToken, in, opts...)
}

func (c *AuthServiceClient) VerifyBearerToken(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodVerifyBearerToken, in, opts...)
}

func (c *AuthServiceClient) DeleteBlog(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodDeleteBlog, in, opts...)
}
