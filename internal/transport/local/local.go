// Package local is an in-process transport.PeerClient/PeerServer binding for
// tests and single-binary demos: peers are plain map lookups rather than
// network sockets, with context cancellation honored the same way a real
// RPC client would honor it.
package local

import (
	"context"
	"fmt"
	"sync"

	"paxoskv/internal/action"
	"paxoskv/internal/transport"
)

// Registry binds peer IDs to the transport.PeerServer hosted on this
// process and implements transport.PeerClient against that binding.
type Registry struct {
	mu    sync.RWMutex
	peers map[string]transport.PeerServer
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{peers: make(map[string]transport.PeerServer)}
}

// Bind registers the PeerServer that serves calls addressed to id,
// overwriting any previous binding.
func (r *Registry) Bind(id string, server transport.PeerServer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[id] = server
}

// Unbind removes the binding for id, causing subsequent calls to it to fail
// as if the peer were unreachable.
func (r *Registry) Unbind(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, id)
}

func (r *Registry) lookup(id string) (transport.PeerServer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.peers[id]
	return s, ok
}

// Prepare implements transport.PeerClient by calling directly into the
// bound PeerServer's HandlePrepare, respecting ctx cancellation as the call
// is dispatched onto its own goroutine.
func (r *Registry) Prepare(ctx context.Context, peer transport.Peer, id uint64, key int, act action.Action) (bool, error) {
	return call(ctx, r, peer, func(s transport.PeerServer) bool {
		return s.HandlePrepare(id, key, act)
	})
}

// Accept implements transport.PeerClient by calling directly into the bound
// PeerServer's HandleAccept.
func (r *Registry) Accept(ctx context.Context, peer transport.Peer, id uint64, key int, act action.Action) (bool, error) {
	return call(ctx, r, peer, func(s transport.PeerServer) bool {
		return s.HandleAccept(id, key, act)
	})
}

// Commit implements transport.PeerClient by calling directly into the bound
// PeerServer's HandleCommit.
func (r *Registry) Commit(ctx context.Context, peer transport.Peer, key int, act action.Action) (string, error) {
	s, ok := r.lookup(peer.ID)
	if !ok {
		return "", fmt.Errorf("local transport: peer %q not bound", peer.ID)
	}
	out := make(chan string, 1)
	go func() { out <- s.HandleCommit(key, act) }()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-out:
		return res, nil
	}
}

func call(ctx context.Context, r *Registry, peer transport.Peer, fn func(transport.PeerServer) bool) (bool, error) {
	s, ok := r.lookup(peer.ID)
	if !ok {
		return false, fmt.Errorf("local transport: peer %q not bound", peer.ID)
	}
	out := make(chan bool, 1)
	go func() { out <- fn(s) }()
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case granted := <-out:
		return granted, nil
	}
}
