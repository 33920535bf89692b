package grpcpeer

import (
	"context"

	"google.golang.org/grpc"
)

// serviceName is the fully-qualified gRPC service name carried in every
// method's path ("/paxoskv.peer.Peer/Prepare", etc).
const serviceName = "paxoskv.peer.Peer"

// peerServer is the handler-side contract the ServiceDesc dispatches to.
// It is implemented by *Server, which in turn forwards to a bound
// transport.PeerServer.
type peerServer interface {
	prepare(ctx context.Context, req *prepareRequest) (*prepareResponse, error)
	accept(ctx context.Context, req *acceptRequest) (*acceptResponse, error)
	commit(ctx context.Context, req *commitRequest) (*commitResponse, error)
}

func prepareHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(prepareRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(peerServer).prepare(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Prepare"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(peerServer).prepare(ctx, req.(*prepareRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func acceptHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(acceptRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(peerServer).accept(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Accept"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(peerServer).accept(ctx, req.(*acceptRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func commitHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(commitRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(peerServer).commit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Commit"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(peerServer).commit(ctx, req.(*commitRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// serviceDesc is the hand-written grpc.ServiceDesc that would otherwise be
// protoc-generated. Every method is unary; HandlerType must match the
// concrete type passed to grpc.RegisterService's ss argument at runtime
// (here, peerServer, satisfied by *Server).
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*peerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Prepare", Handler: prepareHandler},
		{MethodName: "Accept", Handler: acceptHandler},
		{MethodName: "Commit", Handler: commitHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "paxoskv/peer.proto",
}
