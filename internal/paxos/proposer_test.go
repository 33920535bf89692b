package paxos

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paxoskv/internal/action"
	"paxoskv/internal/store"
	"paxoskv/internal/transport"
	"paxoskv/internal/transport/local"
)

// fakeNode wires one Acceptor and one Learner behind transport.PeerServer,
// standing in for a full Replica in Proposer tests.
type fakeNode struct {
	acceptor *Acceptor
	learner  *Learner
}

func newFakeNode() *fakeNode {
	s := store.New()
	return &fakeNode{
		acceptor: NewAcceptor(AcceptorConfig{
			PreparedTTL:   time.Minute,
			AcceptedTTL:   time.Minute,
			SweepInterval: time.Hour,
		}, s, testLogger()),
		learner: NewLearner(s, time.Minute, testLogger()),
	}
}

func (n *fakeNode) start() { n.acceptor.Start(); n.learner.Start() }
func (n *fakeNode) stop()  { n.acceptor.Stop(); n.learner.Stop() }

func (n *fakeNode) HandlePrepare(id uint64, key int, act action.Action) bool {
	return n.acceptor.Prepare(ProposalNumber(id), key, act)
}

func (n *fakeNode) HandleAccept(id uint64, key int, act action.Action) bool {
	return n.acceptor.Accept(ProposalNumber(id), key, act)
}

func (n *fakeNode) HandleCommit(key int, act action.Action) string {
	return n.learner.Commit(key, act)
}

// newCluster builds n in-process nodes bound to a local.Registry, along
// with the peer list a Proposer needs to reach all of them.
func newCluster(n int) ([]*fakeNode, []transport.Peer, *local.Registry) {
	reg := local.NewRegistry()
	nodes := make([]*fakeNode, n)
	peers := make([]transport.Peer, n)
	for i := 0; i < n; i++ {
		node := newFakeNode()
		node.start()
		nodes[i] = node
		peers[i] = transport.Peer{ID: string(rune('A' + i))}
		reg.Bind(peers[i].ID, node)
	}
	return nodes, peers, reg
}

func newTestProposer(self transport.Peer, peers []transport.Peer, client transport.PeerClient, quorum int) *Proposer {
	return NewProposer(ProposerConfig{
		Quorum:        quorum,
		CallTimeout:   time.Second,
		InFlightTTL:   30 * time.Second,
		SweepInterval: time.Hour,
	}, self, peers, client, testLogger())
}

func TestProposeAllHealthySucceeds(t *testing.T) {
	nodes, peers, reg := newCluster(5)
	defer func() {
		for _, n := range nodes {
			n.stop()
		}
	}()

	p := newTestProposer(peers[0], peers, reg, 3)
	p.Start()
	defer p.Stop()

	result, err := p.Propose(context.Background(), 7, action.INSERT)
	require.NoError(t, err)
	assert.Equal(t, action.ResultOK, result)
}

func TestProposeTwoPeersUnreachableStillReachesQuorum(t *testing.T) {
	nodes, peers, reg := newCluster(5)
	defer func() {
		for _, n := range nodes {
			n.stop()
		}
	}()
	reg.Unbind(peers[3].ID)
	reg.Unbind(peers[4].ID)

	p := newTestProposer(peers[0], peers, reg, 3)
	p.Start()
	defer p.Stop()

	result, err := p.Propose(context.Background(), 7, action.INSERT)
	require.NoError(t, err)
	assert.Equal(t, action.ResultOK, result)
}

func TestProposeThreePeersUnreachableFailsPrepare(t *testing.T) {
	nodes, peers, reg := newCluster(5)
	defer func() {
		for _, n := range nodes {
			n.stop()
		}
	}()
	reg.Unbind(peers[2].ID)
	reg.Unbind(peers[3].ID)
	reg.Unbind(peers[4].ID)

	p := newTestProposer(peers[0], peers, reg, 3)
	p.Start()
	defer p.Stop()

	result, err := p.Propose(context.Background(), 7, action.INSERT)
	assert.ErrorIs(t, err, ErrPrepareQuorum)
	assert.Equal(t, action.ResultPrepareFailed, result)
}

func TestProposeConcurrentInsertsOneWins(t *testing.T) {
	nodes, peers, reg := newCluster(5)
	defer func() {
		for _, n := range nodes {
			n.stop()
		}
	}()

	p1 := newTestProposer(peers[0], peers, reg, 3)
	p2 := newTestProposer(peers[1], peers, reg, 3)
	p1.Start()
	p2.Start()
	defer p1.Stop()
	defer p2.Stop()

	results := make(chan string, 2)
	go func() {
		r, _ := p1.Propose(context.Background(), 7, action.INSERT)
		results <- r
	}()
	go func() {
		r, _ := p2.Propose(context.Background(), 7, action.INSERT)
		results <- r
	}()

	first := <-results
	second := <-results

	outcomes := map[string]bool{first: true, second: true}
	assert.True(t, outcomes[action.ResultOK] || outcomes[action.ResultAlreadyPresent] || outcomes[action.ResultPrepareFailed] || outcomes[action.ResultAcceptFailed])
}

func TestProposeDeleteNeverInserted(t *testing.T) {
	nodes, peers, reg := newCluster(5)
	defer func() {
		for _, n := range nodes {
			n.stop()
		}
	}()

	p := newTestProposer(peers[0], peers, reg, 3)
	p.Start()
	defer p.Stop()

	result, err := p.Propose(context.Background(), 99, action.REMOVE)
	require.NoError(t, err)
	assert.Equal(t, action.ResultNotFound, result)
}

func TestProposeInvalidActionRejectedAtCommit(t *testing.T) {
	nodes, _, _ := newCluster(5)
	defer func() {
		for _, n := range nodes {
			n.stop()
		}
	}()

	// An invalid action code fails Store.Validate during prepare, so the
	// Learner's direct rejection path is exercised here rather than through
	// Propose (which would simply report a prepare-phase failure).
	result := nodes[0].learner.Commit(4, action.Action(4))
	assert.Equal(t, action.ResultInvalidAction, result)
	_, _, failed := nodes[0].learner.Stats()
	assert.EqualValues(t, 1, failed)
}

func TestProposeNotRunningReturnsSentinel(t *testing.T) {
	nodes, peers, reg := newCluster(5)
	defer func() {
		for _, n := range nodes {
			n.stop()
		}
	}()

	p := newTestProposer(peers[0], peers, reg, 3)
	result, err := p.Propose(context.Background(), 7, action.INSERT)
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.Equal(t, action.ResultNotRunning, result)
}

func TestProposeAsyncDeliversResult(t *testing.T) {
	nodes, peers, reg := newCluster(5)
	defer func() {
		for _, n := range nodes {
			n.stop()
		}
	}()

	p := newTestProposer(peers[0], peers, reg, 3)
	p.Start()
	defer p.Stop()

	ch := p.ProposeAsync(context.Background(), 42, action.INSERT)
	res := <-ch
	require.NoError(t, res.Err)
	assert.Equal(t, action.ResultOK, res.Result)
}

func TestProposeBatch(t *testing.T) {
	nodes, peers, reg := newCluster(5)
	defer func() {
		for _, n := range nodes {
			n.stop()
		}
	}()

	p := newTestProposer(peers[0], peers, reg, 3)
	p.Start()
	defer p.Stop()

	results, err := p.ProposeBatch(context.Background(), []int{1, 2, 3}, []action.Action{action.INSERT, action.INSERT, action.INSERT})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, action.ResultOK, r)
	}
}
