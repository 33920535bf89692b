// Package transport defines the peer RPC contract used by the Proposer to
// fan prepare/accept/commit calls out to every Replica in the cluster, and
// by a concrete adapter to dispatch an inbound call to the local Replica.
//
// Two adapters are provided: internal/transport/local (in-process, for tests
// and single-binary demos) and internal/transport/grpcpeer (real network).
// Both satisfy the same interfaces, so internal/paxos and internal/replica
// never know which one is in use.
package transport

import (
	"context"

	"paxoskv/internal/action"
)

// Peer identifies one cluster member by its configured ID and dial address.
type Peer struct {
	ID      string
	Address string
}

// PeerClient is the Proposer's view of the cluster: one RPC per phase, per
// peer. Implementations must never block past the caller's context deadline,
// and must translate any transport-level failure (timeout, connection
// refused, not bound, remote panic) into (false, err) / ("", err) rather than
// panicking — the Proposer counts such failures as a negative vote and never
// propagates them to the client.
type PeerClient interface {
	Prepare(ctx context.Context, peer Peer, id uint64, key int, act action.Action) (bool, error)
	Accept(ctx context.Context, peer Peer, id uint64, key int, act action.Action) (bool, error)
	Commit(ctx context.Context, peer Peer, key int, act action.Action) (string, error)
}

// PeerServer is implemented by Replica and invoked by a concrete transport
// adapter when an inbound prepare/accept/commit call arrives for this node.
type PeerServer interface {
	HandlePrepare(id uint64, key int, act action.Action) bool
	HandleAccept(id uint64, key int, act action.Action) bool
	HandleCommit(key int, act action.Action) string
}
