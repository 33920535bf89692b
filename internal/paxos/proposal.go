package paxos

import (
	"sync/atomic"
	"time"

	"paxoskv/internal/action"
)

// ProposalNumber is a monotonically increasing integer drawn from a
// process-wide counter on the originating node. Uniqueness across nodes is
// not guaranteed — see the Acceptor's tie-breaking policy and DESIGN.md's
// Open Questions.
type ProposalNumber uint64

// numberGenerator hands out ProposalNumbers local to one Proposer's process.
type numberGenerator struct {
	next atomic.Uint64
}

func (g *numberGenerator) Next() ProposalNumber {
	return ProposalNumber(g.next.Add(1))
}

// Proposal is the proposer-side record of an in-flight consensus attempt.
// Owned exclusively by the Proposer; created when a client request arrives,
// removed after commit fanout completes or after it expires from the
// in-flight table (garbage collection only — see DESIGN.md Open Questions).
type Proposal struct {
	ID          ProposalNumber
	Key         int
	Action      action.Action
	SubmittedAt time.Time
}

const proposalExpiry = 30 * time.Second

func (p *Proposal) expired(now time.Time) bool {
	return now.Sub(p.SubmittedAt) > proposalExpiry
}
