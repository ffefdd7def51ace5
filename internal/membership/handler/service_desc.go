package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "danus.authz.v1.AuthorizationService"

// Full method names, as seen by interceptors.
const (
	MethodResolveRole = "/" + ServiceName + "/ResolveRole"
	MethodCheckRole   = "/" + ServiceName + "/CheckRole"
	MethodGetVerdict  = "/" + ServiceName + "/GetVerdict"
)

// AuthorizationServiceServer is the server API for AuthorizationService. Requests and
// responses are google.protobuf.Struct messages.
type AuthorizationServiceServer interface {
	ResolveRole(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckRole(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetVerdict(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterAuthorizationServiceServer registers srv with s.
func RegisterAuthorizationServiceServer(s grpc.ServiceRegistrar, srv AuthorizationServiceServer) {
	s.RegisterService(&AuthorizationServiceDesc, srv)
}

// AuthorizationServiceDesc is the grpc.ServiceDesc for AuthorizationService.
var AuthorizationServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthorizationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ResolveRole",
			Handler: unaryHandler(MethodResolveRole, func(srv AuthorizationServiceServer) structHandler {
				return srv.ResolveRole
			}),
		},
		{
			MethodName: "CheckRole",
			Handler: unaryHandler(MethodCheckRole, func(srv AuthorizationServiceServer) structHandler {
				return srv.CheckRole
			}),
		},
		{
			MethodName: "GetVerdict",
			Handler: unaryHandler(MethodGetVerdict, func(srv AuthorizationServiceServer) structHandler {
				return srv.GetVerdict
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "danus/authz/v1/authz.proto",
}

type structHandler func(context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, method func(AuthorizationServiceServer) structHandler) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		call := method(srv.(AuthorizationServiceServer))
		if interceptor == nil {
			return call(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// AuthorizationServiceClient is the client API for AuthorizationService.
type AuthorizationServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewAuthorizationServiceClient returns a client that calls AuthorizationService over cc.
func NewAuthorizationServiceClient(cc grpc.ClientConnInterface) *AuthorizationServiceClient {
	return &AuthorizationServiceClient{cc: cc}
}

func (c *AuthorizationServiceClient) ResolveRole(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodResolveRole, in, opts...)
}

func (c *AuthorizationServiceClient) CheckRole(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodCheckRole, in, opts...)
}

func (c *AuthorizationServiceClient) GetVerdict(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetVerdict, in, opts...)
}

func (c *AuthorizationServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
