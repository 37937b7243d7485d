// Package remote lets the explorer drive a program running in another process.
//
// The driving side uses a Client, which implements driver.Driver. The checked side wraps its driver in a Server.
// Calls are unary gRPC calls with google.protobuf.Struct payloads, so no generated code is needed on either side.
package remote

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "mcheck.remote.Driver"

// The server side of the driver service
type DriverServer interface {
	InitialActors(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Execute(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Snapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Restore(context.Context, *structpb.Struct) (*emptypb.Empty, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*DriverServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("InitialActors", DriverServer.InitialActors),
		unary("Execute", DriverServer.Execute),
		unary("Snapshot", DriverServer.Snapshot),
		unary("Restore", DriverServer.Restore),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mcheck/remote",
}

func fullMethod(name string) string {
	return "/" + serviceName + "/" + name
}

func unary[Req any, PReq interface {
	*Req
	proto.Message
}, Resp proto.Message](name string, call func(DriverServer, context.Context, PReq) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := PReq(new(Req))
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(DriverServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(DriverServer), ctx, req.(PReq))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Register the driver service on the grpc server
func RegisterDriverServer(s grpc.ServiceRegistrar, srv DriverServer) {
	s.RegisterService(&serviceDesc, srv)
}
