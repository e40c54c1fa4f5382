// Package pbft implements the Consensus Engine: classical three-phase
// PBFT (PRE-PREPARE/PREPARE/COMMIT) over a rotating leader, per spec
// §4.4. Vote bookkeeping (equivocation detection, quorum tally) is
// adapted from tos-network-gtos's consensus/bft/VotePool, generalized
// from stake-weighted voting to Aethel's distinct-sender quorum count
// (every admitted voter counts as exactly one, regardless of stake,
// once it has cleared the MinimumStake gate).
package pbft

import (
	"errors"
	"sync"
)

// ErrEquivocation is returned when a sender votes for two different
// digests within the same (view, sequence).
var ErrEquivocation = errors.New("pbft: equivocation")

type roundKey struct {
	view, sequence uint64
}

type voteTarget struct {
	roundKey
	digest [32]byte
}

// VotePool tracks PREPARE/COMMIT votes for one message phase (callers
// keep one pool for PREPARE and one for COMMIT) across every
// (view, sequence) tuple.
type VotePool struct {
	mu sync.Mutex

	votesByTarget map[voteTarget]map[string]struct{}
	votedDigest   map[roundKey]map[string][32]byte
}

// NewVotePool builds an empty pool.
func NewVotePool() *VotePool {
	return &VotePool{
		votesByTarget: make(map[voteTarget]map[string]struct{}),
		votedDigest:   make(map[roundKey]map[string][32]byte),
	}
}

// AddVote records senderID's vote for digest at (view, sequence).
// Returns (accepted, error): accepted is false for an idempotent
// duplicate of the same vote; error is ErrEquivocation if senderID
// previously voted for a different digest in this round.
func (p *VotePool) AddVote(view, sequence uint64, senderID string, digest [32]byte) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rk := roundKey{view, sequence}
	if p.votedDigest[rk] == nil {
		p.votedDigest[rk] = make(map[string][32]byte)
	}
	if prev, ok := p.votedDigest[rk][senderID]; ok {
		if prev != digest {
			return false, ErrEquivocation
		}
		return false, nil // duplicate, idempotent
	}
	p.votedDigest[rk][senderID] = digest

	vt := voteTarget{roundKey: rk, digest: digest}
	if p.votesByTarget[vt] == nil {
		p.votesByTarget[vt] = make(map[string]struct{})
	}
	p.votesByTarget[vt][senderID] = struct{}{}
	return true, nil
}

// Count returns the number of distinct senders who voted for digest at
// (view, sequence).
func (p *VotePool) Count(view, sequence uint64, digest [32]byte) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	vt := voteTarget{roundKey: roundKey{view, sequence}, digest: digest}
	return len(p.votesByTarget[vt])
}

// PruneRound drops all vote data for a finished or abandoned round.
func (p *VotePool) PruneRound(view, sequence uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rk := roundKey{view, sequence}
	delete(p.votedDigest, rk)
	for vt := range p.votesByTarget {
		if vt.roundKey == rk {
			delete(p.votesByTarget, vt)
		}
	}
}

// Faulty returns f = ⌊(N−1)/3⌋ for an N-node cluster, per spec §4.4.
func Faulty(n int) int {
	if n <= 0 {
		return 0
	}
	return (n - 1) / 3
}

// Quorum returns Q = 2f + 1 for an N-node cluster, per spec §4.4.
func Quorum(n int) int {
	return 2*Faulty(n) + 1
}
