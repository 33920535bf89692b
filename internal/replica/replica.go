// Package replica hosts one Store, Acceptor, Learner, and Proposer behind a
// single lifecycle and RPC surface. It is the unit that a transport adapter
// binds to a node identifier.
package replica

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"paxoskv/internal/action"
	"paxoskv/internal/paxos"
	"paxoskv/internal/store"
	"paxoskv/internal/transport"
)

// state values for the Replica lifecycle. Transitions only move forward;
// there is no path back from stopped.
const (
	stateInitialized int32 = iota
	stateRunning
	stateStopped
)

// Config bundles the per-component configuration a Replica wires together.
type Config struct {
	Self  transport.Peer
	Peers []transport.Peer

	Acceptor paxos.AcceptorConfig
	Proposer paxos.ProposerConfig

	// LearnerHistoryTTL bounds how long commit records are retained for
	// introspection.
	LearnerHistoryTTL time.Duration
}

// Replica hosts the four inner components for one cluster node and
// implements both transport.PeerServer (inbound peer RPCs) and the
// client-facing get/put/delete surface.
type Replica struct {
	id    string
	state atomic.Int32

	store    *store.Store
	acceptor *paxos.Acceptor
	learner  *paxos.Learner
	proposer *paxos.Proposer

	log *slog.Logger
}

// New builds a Replica in the INITIALIZED state. client is the transport's
// PeerClient used by the embedded Proposer to reach every peer.
func New(cfg Config, client transport.PeerClient, log *slog.Logger) *Replica {
	s := store.New()
	r := &Replica{
		id:       cfg.Self.ID,
		store:    s,
		acceptor: paxos.NewAcceptor(cfg.Acceptor, s, log),
		learner:  paxos.NewLearner(s, cfg.LearnerHistoryTTL, log),
		proposer: paxos.NewProposer(cfg.Proposer, cfg.Self, cfg.Peers, client, log),
		log:      log,
	}
	r.state.Store(stateInitialized)
	return r
}

// Start transitions INITIALIZED -> RUNNING and starts every inner
// component's background maintenance loop. Idempotent: calling Start again
// once RUNNING or STOPPED is a no-op.
func (r *Replica) Start() {
	if !r.state.CompareAndSwap(stateInitialized, stateRunning) {
		return
	}
	r.acceptor.Start()
	r.learner.Start()
	r.proposer.Start()
	r.log.Info("replica started", "id", r.id)
}

// Stop transitions to STOPPED from any prior state and tears down every
// inner component. Idempotent; there is no transition back from STOPPED.
func (r *Replica) Stop() {
	prev := r.state.Swap(stateStopped)
	if prev == stateStopped {
		return
	}
	r.proposer.Stop()
	r.learner.Stop()
	r.acceptor.Stop()
	r.log.Info("replica stopped", "id", r.id)
}

func (r *Replica) running() bool {
	return r.state.Load() == stateRunning
}

// HandlePrepare implements transport.PeerServer for inbound prepare calls.
func (r *Replica) HandlePrepare(id uint64, key int, act action.Action) bool {
	if !r.running() {
		return false
	}
	return r.acceptor.Prepare(paxos.ProposalNumber(id), key, act)
}

// HandleAccept implements transport.PeerServer for inbound accept calls.
func (r *Replica) HandleAccept(id uint64, key int, act action.Action) bool {
	if !r.running() {
		return false
	}
	return r.acceptor.Accept(paxos.ProposalNumber(id), key, act)
}

// HandleCommit implements transport.PeerServer for inbound commit calls.
func (r *Replica) HandleCommit(key int, act action.Action) string {
	if !r.running() {
		return action.ResultNotRunning
	}
	return r.learner.Commit(key, act)
}

// Get drives a READ proposal through the local Proposer.
func (r *Replica) Get(ctx context.Context, key int) (string, error) {
	return r.propose(ctx, key, action.READ)
}

// Put drives an INSERT proposal through the local Proposer.
func (r *Replica) Put(ctx context.Context, key int) (string, error) {
	return r.propose(ctx, key, action.INSERT)
}

// Delete drives a REMOVE proposal through the local Proposer.
func (r *Replica) Delete(ctx context.Context, key int) (string, error) {
	return r.propose(ctx, key, action.REMOVE)
}

func (r *Replica) propose(ctx context.Context, key int, act action.Action) (string, error) {
	if !r.running() {
		return action.ResultNotRunning, fmt.Errorf("replica %s: %w", r.id, paxos.ErrNotRunning)
	}
	return r.proposer.Propose(ctx, key, act)
}

// Metrics returns the embedded Proposer's counters, useful for
// introspection and tests.
func (r *Replica) Metrics() paxos.Metrics {
	return r.proposer.Metrics()
}

// LearnerStats returns the embedded Learner's success/failure counters.
func (r *Replica) LearnerStats() (total, successful, failed int64) {
	return r.learner.Stats()
}
