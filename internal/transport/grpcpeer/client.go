package grpcpeer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	"paxoskv/internal/action"
	"paxoskv/internal/transport"
)

// Client implements transport.PeerClient over real gRPC connections,
// dialing each peer lazily on first use and caching the connection for
// reuse across proposals.
type Client struct {
	dialTimeout time.Duration
	log         *slog.Logger

	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
}

// NewClient builds a Client that dials peers with the given per-dial
// timeout.
func NewClient(dialTimeout time.Duration, log *slog.Logger) *Client {
	return &Client{dialTimeout: dialTimeout, log: log, conns: make(map[string]*grpc.ClientConn)}
}

// Close tears down every cached connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, conn := range c.conns {
		if err := conn.Close(); err != nil {
			c.log.Warn("error closing peer connection", "peer", id, "error", err)
		}
	}
	c.conns = make(map[string]*grpc.ClientConn)
}

func (c *Client) connFor(peer transport.Peer) (*grpc.ClientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conn, ok := c.conns[peer.ID]; ok {
		return conn, nil
	}
	conn, err := grpc.NewClient(peer.Address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                30 * time.Second,
			Timeout:             5 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.WithConnectParams(grpc.ConnectParams{MinConnectTimeout: c.dialTimeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("dial peer %s (%s): %w", peer.ID, peer.Address, err)
	}
	c.conns[peer.ID] = conn
	return conn, nil
}

// Prepare implements transport.PeerClient over the hand-written peer
// service.
func (c *Client) Prepare(ctx context.Context, peer transport.Peer, id uint64, key int, act action.Action) (bool, error) {
	conn, err := c.connFor(peer)
	if err != nil {
		return false, err
	}
	out := new(prepareResponse)
	in := &prepareRequest{ProposalID: id, Key: key, Action: uint8(act)}
	if err := conn.Invoke(ctx, "/"+serviceName+"/Prepare", in, out, grpc.CallContentSubtype(codecName)); err != nil {
		return false, err
	}
	return out.Granted, nil
}

// Accept implements transport.PeerClient over the hand-written peer
// service.
func (c *Client) Accept(ctx context.Context, peer transport.Peer, id uint64, key int, act action.Action) (bool, error) {
	conn, err := c.connFor(peer)
	if err != nil {
		return false, err
	}
	out := new(acceptResponse)
	in := &acceptRequest{ProposalID: id, Key: key, Action: uint8(act)}
	if err := conn.Invoke(ctx, "/"+serviceName+"/Accept", in, out, grpc.CallContentSubtype(codecName)); err != nil {
		return false, err
	}
	return out.Granted, nil
}

// Commit implements transport.PeerClient over the hand-written peer
// service.
func (c *Client) Commit(ctx context.Context, peer transport.Peer, key int, act action.Action) (string, error) {
	conn, err := c.connFor(peer)
	if err != nil {
		return "", err
	}
	out := new(commitResponse)
	in := &commitRequest{Key: key, Action: uint8(act)}
	if err := conn.Invoke(ctx, "/"+serviceName+"/Commit", in, out, grpc.CallContentSubtype(codecName)); err != nil {
		return "", err
	}
	return out.Result, nil
}
