package paxos

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"paxoskv/internal/action"
	"paxoskv/internal/metrics"
	"paxoskv/internal/transport"
)

// maxConcurrentProposals bounds the async work pool backing ProposeAsync.
const maxConcurrentProposals = 1000

// ProposerConfig bounds in-flight proposal retention and quorum.
type ProposerConfig struct {
	// Quorum is the minimum number of positive responses required in the
	// prepare and accept phases: floor(N/2)+1.
	Quorum int
	// CallTimeout bounds each individual peer RPC within a phase.
	CallTimeout time.Duration
	// InFlightTTL and SweepInterval bound the background eviction of
	// abandoned in-flight records (garbage collection only, never an
	// active cancellation — see DESIGN.md).
	InFlightTTL   time.Duration
	SweepInterval time.Duration
}

// Proposer originates proposals and drives the three-phase protocol against
// every peer in the cluster, including the local node. One logical Proposer
// lives per Replica and services many concurrent client calls.
type Proposer struct {
	cfg     ProposerConfig
	self    transport.Peer
	peers   []transport.Peer
	client  transport.PeerClient
	log     *slog.Logger
	numbers numberGenerator

	inflight sync.Map // ProposalNumber -> *Proposal
	pool     chan struct{}

	startedTotal, succeededTotal, failedTotal atomic.Int64
	latencySum                                atomic.Int64

	running  atomicBool
	stopOnce sync.Once
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewProposer builds a Proposer for the node identified by self, fanning out
// to every peer in peers, which must include self.
func NewProposer(cfg ProposerConfig, self transport.Peer, peers []transport.Peer, client transport.PeerClient, log *slog.Logger) *Proposer {
	return &Proposer{
		cfg:    cfg,
		self:   self,
		peers:  peers,
		client: client,
		log:    log,
		pool:   make(chan struct{}, maxConcurrentProposals),
	}
}

// Start launches the background in-flight eviction sweep. Idempotent.
func (p *Proposer) Start() {
	if !p.running.set(true) {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.wg.Add(1)
	go p.sweepLoop(ctx)
}

// Stop halts the background sweep and waits for it to exit. Idempotent.
func (p *Proposer) Stop() {
	p.stopOnce.Do(func() {
		p.running.set(false)
		if p.cancel != nil {
			p.cancel()
		}
		p.wg.Wait()
	})
}

func (p *Proposer) sweepLoop(ctx context.Context) {
	defer p.wg.Done()
	interval := p.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.evict()
		}
	}
}

func (p *Proposer) evict() {
	now := time.Now()
	ttl := p.cfg.InFlightTTL
	if ttl <= 0 {
		ttl = proposalExpiry
	}
	p.inflight.Range(func(key, value any) bool {
		if pr, ok := value.(*Proposal); ok && now.Sub(pr.SubmittedAt) > ttl {
			p.inflight.Delete(key)
		}
		return true
	})
}

// Propose drives the three-phase protocol for (key, act) and returns the
// client-visible result string. Safe to call concurrently from many client
// goroutines; each call owns its own Proposal from creation to removal.
func (p *Proposer) Propose(ctx context.Context, key int, act action.Action) (result string, err error) {
	if !p.running.get() {
		return action.ResultNotRunning, ErrNotRunning
	}

	start := time.Now()
	id := p.numbers.Next()
	prop := &Proposal{ID: id, Key: key, Action: act, SubmittedAt: start}
	p.inflight.Store(id, prop)
	defer p.inflight.Delete(id)

	p.startedTotal.Add(1)
	metrics.ProposalsInFlight.Inc()
	defer metrics.ProposalsInFlight.Dec()

	defer func() {
		if r := recover(); r != nil {
			p.log.Error("proposer recovered from panic", "proposal_id", id, "panic", r)
			p.failedTotal.Add(1)
			metrics.ProposalsTotal.WithLabelValues("internal_error").Inc()
			result, err = action.ResultInternalFailure, ErrInternal
		}
		elapsed := time.Since(start)
		p.latencySum.Add(elapsed.Nanoseconds())
		metrics.ProposalLatency.Observe(elapsed.Seconds())
	}()

	if !p.runPhase(ctx, "prepare", id, key, act, p.client.Prepare) {
		p.failedTotal.Add(1)
		metrics.ProposalsTotal.WithLabelValues("prepare_failed").Inc()
		return action.ResultPrepareFailed, ErrPrepareQuorum
	}

	if !p.runPhase(ctx, "accept", id, key, act, p.client.Accept) {
		p.failedTotal.Add(1)
		metrics.ProposalsTotal.WithLabelValues("accept_failed").Inc()
		return action.ResultAcceptFailed, ErrAcceptQuorum
	}

	commitResult, ok := p.runCommit(ctx, key, act)
	if !ok {
		p.failedTotal.Add(1)
		metrics.ProposalsTotal.WithLabelValues("commit_failed").Inc()
		return action.ResultCommitFailed, ErrCommitFailed
	}

	p.succeededTotal.Add(1)
	metrics.ProposalsTotal.WithLabelValues("success").Inc()
	return commitResult, nil
}

// asyncResult carries the outcome of one ProposeAsync call.
type asyncResult struct {
	Result string
	Err    error
}

// ProposeAsync queues (key, act) onto the bounded work pool and returns a
// channel delivering the single result once Propose completes. Acquiring a
// pool slot blocks until one is free or ctx is canceled; the pool caps
// concurrently running proposals at maxConcurrentProposals regardless of how
// many callers are waiting.
func (p *Proposer) ProposeAsync(ctx context.Context, key int, act action.Action) <-chan asyncResult {
	out := make(chan asyncResult, 1)
	select {
	case p.pool <- struct{}{}:
	case <-ctx.Done():
		out <- asyncResult{Result: action.ResultInternalFailure, Err: ctx.Err()}
		close(out)
		return out
	}
	go func() {
		defer func() { <-p.pool }()
		result, err := p.Propose(ctx, key, act)
		out <- asyncResult{Result: result, Err: err}
		close(out)
	}()
	return out
}

// ProposeBatch runs ProposeAsync over every (keys[i], acts[i]) pair and
// collects their results in the same order. keys and acts must be the same
// length.
func (p *Proposer) ProposeBatch(ctx context.Context, keys []int, acts []action.Action) ([]string, error) {
	if len(keys) != len(acts) {
		return nil, ErrInvalidAction
	}
	channels := make([]<-chan asyncResult, len(keys))
	for i := range keys {
		channels[i] = p.ProposeAsync(ctx, keys[i], acts[i])
	}
	results := make([]string, len(keys))
	for i, ch := range channels {
		r := <-ch
		results[i] = r.Result
	}
	return results, nil
}

type voteFunc func(ctx context.Context, peer transport.Peer, id uint64, key int, act action.Action) (bool, error)

// runPhase fans a prepare or accept vote out to every peer in parallel and
// reports whether at least Quorum positive responses were gathered. Peer
// failures (timeout, unreachable, not bound) count as a negative vote and do
// not abort the phase.
func (p *Proposer) runPhase(ctx context.Context, phase string, id ProposalNumber, key int, act action.Action, vote voteFunc) bool {
	var (
		mu    sync.Mutex
		votes int
		wg    sync.WaitGroup
	)

	for _, peer := range p.peers {
		wg.Add(1)
		go func(peer transport.Peer) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
			defer cancel()

			granted, err := vote(callCtx, peer, uint64(id), key, act)
			if err != nil {
				p.log.Warn("peer call failed, counting as negative vote", "phase", phase, "peer", peer.ID, "error", err)
				metrics.PeerCallsTotal.WithLabelValues(phase, "error").Inc()
				return
			}
			if !granted {
				metrics.PeerCallsTotal.WithLabelValues(phase, "rejected").Inc()
				return
			}
			metrics.PeerCallsTotal.WithLabelValues(phase, "granted").Inc()

			mu.Lock()
			votes++
			mu.Unlock()
		}(peer)
	}
	wg.Wait()

	granted := votes >= p.cfg.Quorum
	p.log.Info("phase complete", "phase", phase, "proposal_id", id, "votes", votes, "quorum", p.cfg.Quorum, "granted", granted)
	return granted
}

// runCommit broadcasts the commit to every peer and returns the first
// non-empty response as the canonical result. No quorum is required; peer
// failures are tolerated.
func (p *Proposer) runCommit(ctx context.Context, key int, act action.Action) (string, bool) {
	type outcome struct {
		result string
		ok     bool
	}
	results := make(chan outcome, len(p.peers))

	var wg sync.WaitGroup
	for _, peer := range p.peers {
		wg.Add(1)
		go func(peer transport.Peer) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
			defer cancel()

			res, err := p.client.Commit(callCtx, peer, key, act)
			if err != nil {
				p.log.Warn("peer commit failed", "peer", peer.ID, "error", err)
				results <- outcome{}
				return
			}
			results <- outcome{result: res, ok: true}
		}(peer)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var canonical string
	found := false
	for o := range results {
		if o.ok && o.result != "" && !found {
			canonical = o.result
			found = true
		}
	}
	return canonical, found
}

// Metrics is a snapshot of total proposals started/successful/failed,
// average end-to-end latency, and current in-flight count.
type Metrics struct {
	Started, Successful, Failed int64
	AverageLatency              time.Duration
	InFlight                    int
}

// Metrics returns a read-only snapshot of the Proposer's counters.
func (p *Proposer) Metrics() Metrics {
	started := p.startedTotal.Load()
	var avg time.Duration
	if started > 0 {
		avg = time.Duration(p.latencySum.Load() / started)
	}
	inflight := 0
	p.inflight.Range(func(_, _ any) bool {
		inflight++
		return true
	})
	return Metrics{
		Started:        started,
		Successful:     p.succeededTotal.Load(),
		Failed:         p.failedTotal.Load(),
		AverageLatency: avg,
		InFlight:       inflight,
	}
}
