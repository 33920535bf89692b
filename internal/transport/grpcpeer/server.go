package grpcpeer

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"paxoskv/internal/action"
	"paxoskv/internal/metrics"
	"paxoskv/internal/transport"
)

// Server adapts a transport.PeerServer to the hand-written peer service,
// serving it over a real gRPC listener using the JSON subtype codec.
type Server struct {
	log        *slog.Logger
	bound      transport.PeerServer
	grpcServer *grpc.Server
	listener   net.Listener
}

// NewServer builds a Server forwarding inbound calls to bound. callTimeout
// bounds how long a single handler invocation may run before the server
// cancels its context.
func NewServer(bound transport.PeerServer, callTimeout time.Duration, log *slog.Logger) *Server {
	s := &Server{log: log, bound: bound}
	s.grpcServer = grpc.NewServer(
		grpc.UnaryInterceptor(metricsInterceptor(callTimeout)),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 5 * time.Second,
		}),
	)
	s.grpcServer.RegisterService(&serviceDesc, s)
	return s
}

// Listen starts accepting connections on addr in a background goroutine.
func (s *Server) Listen(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = lis
	s.log.Info("grpc peer server listening", "addr", lis.Addr().String())
	go func() {
		if err := s.grpcServer.Serve(lis); err != nil {
			s.log.Error("grpc peer server error", "error", err)
		}
	}()
	return nil
}

// Stop gracefully drains in-flight calls and stops accepting new ones.
func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
	s.log.Info("grpc peer server stopped")
}

func (s *Server) prepare(_ context.Context, req *prepareRequest) (*prepareResponse, error) {
	granted := s.bound.HandlePrepare(req.ProposalID, req.Key, action.Action(req.Action))
	return &prepareResponse{Granted: granted}, nil
}

func (s *Server) accept(_ context.Context, req *acceptRequest) (*acceptResponse, error) {
	granted := s.bound.HandleAccept(req.ProposalID, req.Key, action.Action(req.Action))
	return &acceptResponse{Granted: granted}, nil
}

func (s *Server) commit(_ context.Context, req *commitRequest) (*commitResponse, error) {
	result := s.bound.HandleCommit(req.Key, action.Action(req.Action))
	return &commitResponse{Result: result}, nil
}

func metricsInterceptor(callTimeout time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()

		start := time.Now()
		resp, err := handler(ctx, req)
		duration := time.Since(start).Seconds()

		code := "ok"
		if err != nil {
			code = "error"
		}
		_, method := splitMethodName(info.FullMethod)
		metrics.GRPCRequestsTotal.WithLabelValues(method, code).Inc()
		metrics.GRPCRequestDuration.WithLabelValues(method).Observe(duration)

		return resp, err
	}
}

func splitMethodName(fullMethod string) (service, method string) {
	if len(fullMethod) == 0 {
		return "unknown", "unknown"
	}
	m := fullMethod
	if m[0] == '/' {
		m = m[1:]
	}
	for i := 0; i < len(m); i++ {
		if m[i] == '/' {
			return m[:i], m[i+1:]
		}
	}
	return "unknown", m
}
