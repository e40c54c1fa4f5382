package pbft

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"aethel.dev/node/mempool"
	"aethel.dev/node/proof"
	"aethel.dev/node/store"
	"aethel.dev/node/wire"
)

// Phase is a ConsensusState's position in the per-(view,sequence)
// lifecycle, per spec §3: None → ProposalAccepted → Prepared →
// Committed → Finalized.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseProposalAccepted
	PhasePrepared
	PhaseCommitted
	PhaseFinalized
)

// RoundTimeout is the wall-clock deadline per round, per spec §4.4.
const RoundTimeout = 10 * time.Second

// BlockSize bounds how many proofs a leader drains from the mempool
// per proposal.
const BlockSize = 100

// ConsensusState is the per-(view,sequence) record the engine mutates
// as PBFT messages arrive, per spec §3.
type ConsensusState struct {
	View     uint64
	Sequence uint64

	Block              *wire.ProofBlock
	Digest             [32]byte
	VerificationResult proof.BlockVerificationResult

	Phase Phase

	roundStart time.Time
}

// Engine is one node's Consensus Engine instance: it exclusively owns
// the current ConsensusState and holds handles to the State Store,
// Mempool, and Judge, per spec §3 "Ownership".
type Engine struct {
	NodeID         string
	ValidatorStake int64
	Peers          []string // sorted deterministically; includes NodeID

	Store   *store.Store
	Mempool *mempool.Mempool
	Judge   *proof.Judge

	view     uint64
	sequence uint64
	state    *ConsensusState

	prepareVotes *VotePool
	commitVotes  *VotePool

	lastFinalizedBlockHash [32]byte
}

// NewEngine builds an Engine over a sorted peer set. peers must already
// be sorted deterministically (e.g. lexical node-id order) across every
// node in the cluster, per spec §4.4 "Leader election".
func NewEngine(nodeID string, stake int64, peers []string, st *store.Store, mp *mempool.Mempool, j *proof.Judge) *Engine {
	sorted := append([]string(nil), peers...)
	sort.Strings(sorted)
	return &Engine{
		NodeID:         nodeID,
		ValidatorStake: stake,
		Peers:          sorted,
		Store:          st,
		Mempool:        mp,
		Judge:          j,
		prepareVotes:   NewVotePool(),
		commitVotes:    NewVotePool(),
	}
}

// View returns the current view number.
func (e *Engine) View() uint64 { return e.view }

// Sequence returns the current sequence number.
func (e *Engine) Sequence() uint64 { return e.sequence }

// Leader returns leader(view) = sorted_nodes[view mod N], per spec §4.4.
func (e *Engine) Leader(view uint64) string {
	if len(e.Peers) == 0 {
		return ""
	}
	return e.Peers[view%uint64(len(e.Peers))]
}

// IsLeader reports whether this node leads the current view.
func (e *Engine) IsLeader() bool {
	return e.Leader(e.view) == e.NodeID
}

// CanVote reports whether this node meets the stake floor required to
// participate as a PBFT voter, per spec §4.4.
func (e *Engine) CanVote() bool {
	return e.ValidatorStake >= store.MinimumStake
}

// Propose takes (without removing) up to BlockSize highest-difficulty
// proofs from the mempool and constructs a ProofBlock ready to
// broadcast as PRE-PREPARE; the proofs leave the mempool when
// HandleCommit finalizes the block. Only meaningful when IsLeader().
func (e *Engine) Propose(blockID string, timestamp uint64) (wire.ProofBlock, error) {
	if !e.IsLeader() {
		return wire.ProofBlock{}, fmt.Errorf("pbft: node %q is not leader for view %d", e.NodeID, e.view)
	}
	top := e.Mempool.TakeTop(BlockSize)
	if len(top) == 0 {
		return wire.ProofBlock{}, fmt.Errorf("pbft: mempool empty, nothing to propose")
	}
	proofs := make([]proof.Proof, len(top))
	for i, entry := range top {
		proofs[i] = entry.Proof
	}
	block := wire.ProofBlock{
		BlockID:           blockID,
		Timestamp:         timestamp,
		Proofs:            proofs,
		PreviousBlockHash: e.lastFinalizedBlockHash,
		ProposerID:        e.NodeID,
	}
	return block, nil
}

// HandlePrePrepare is the PRE-PREPARE admission + processing step, per
// spec §4.4 step 2. Returns (prepareDigest, shouldBroadcastPrepare).
func (e *Engine) HandlePrePrepare(view, sequence uint64, senderID string, block wire.ProofBlock) (digest [32]byte, ok bool, err error) {
	if senderID != e.Leader(view) {
		return digest, false, fmt.Errorf("pbft: LeaderMismatch: sender %q is not leader(%d)=%q", senderID, view, e.Leader(view))
	}
	if len(block.Proofs) == 0 {
		return digest, false, fmt.Errorf("pbft: empty proof block rejected")
	}

	digest = block.Digest()
	if e.state != nil && e.state.View == view && e.state.Sequence == sequence && e.state.Digest != digest {
		return digest, false, fmt.Errorf("pbft: conflicting ConsensusState already exists for (%d,%d)", view, sequence)
	}

	result := e.Judge.VerifyBlockProofs(block.Proofs)
	if !result.Valid {
		return digest, false, fmt.Errorf("pbft: block failed verify_block")
	}

	e.view = view
	e.sequence = sequence
	e.state = &ConsensusState{
		View:               view,
		Sequence:           sequence,
		Block:              &block,
		Digest:             digest,
		VerificationResult: result,
		Phase:              PhaseProposalAccepted,
		roundStart:         time.Now(),
	}

	// The leader's own PRE-PREPARE counts as one of the Q PREPAREs.
	e.prepareVotes.AddVote(view, sequence, senderID, digest)
	return digest, true, nil
}

// HandlePrepare admits a PREPARE vote and reports whether quorum was
// just reached (PhasePrepared just entered), per spec §4.4 step 3.
func (e *Engine) HandlePrepare(view, sequence uint64, senderID string, digest [32]byte) (justPrepared bool, err error) {
	if e.state == nil || e.state.View != view || e.state.Sequence != sequence {
		return false, fmt.Errorf("pbft: no matching ConsensusState for (%d,%d)", view, sequence)
	}
	if e.state.Digest != digest {
		return false, fmt.Errorf("pbft: DigestMismatch on PREPARE")
	}
	accepted, err := e.prepareVotes.AddVote(view, sequence, senderID, digest)
	if err != nil {
		return false, err // equivocation: caller may slash
	}
	if !accepted {
		return false, nil
	}

	n := len(e.Peers)
	if e.state.Phase < PhasePrepared && e.prepareVotes.Count(view, sequence, digest) >= Quorum(n) {
		e.state.Phase = PhasePrepared
		return true, nil
	}
	return false, nil
}

// HandleCommit admits a COMMIT vote. When quorum is reached and the
// state is Prepared, it applies the block's induced transition to the
// State Store, drops the block's proofs from the Mempool, advances
// Sequence, and returns finalized=true with the new root, per spec
// §4.4 step 4.
func (e *Engine) HandleCommit(view, sequence uint64, senderID string, digest [32]byte) (finalized bool, newRoot [32]byte, err error) {
	if e.state == nil || e.state.View != view || e.state.Sequence != sequence {
		return false, newRoot, fmt.Errorf("pbft: no matching ConsensusState for (%d,%d)", view, sequence)
	}
	if e.state.Digest != digest {
		return false, newRoot, fmt.Errorf("pbft: DigestMismatch on COMMIT")
	}
	accepted, err := e.commitVotes.AddVote(view, sequence, senderID, digest)
	if err != nil {
		return false, newRoot, err
	}
	if !accepted {
		return false, newRoot, nil
	}

	n := len(e.Peers)
	if e.state.Phase != PhasePrepared {
		return false, newRoot, nil
	}
	if e.commitVotes.Count(view, sequence, digest) < Quorum(n) {
		return false, newRoot, nil
	}

	e.state.Phase = PhaseCommitted
	transition := e.blockTransition(*e.state.Block)
	if !e.Store.ApplyTransition(&transition) {
		return false, newRoot, fmt.Errorf("pbft: finalize: State Store rejected induced transition")
	}
	e.state.Phase = PhaseFinalized
	e.Mempool.RemoveCommitted(e.state.Block.ProofHashes())
	e.lastFinalizedBlockHash = digest
	e.sequence++

	e.prepareVotes.PruneRound(view, sequence)
	e.commitVotes.PruneRound(view, sequence)
	return true, transition.RootAfter, nil
}

// blockTransition derives the StateTransition induced by a block's
// proofs: each post-condition `v == <expr>` over a Var LHS becomes one
// StateChange, per spec §4.4 step 4 "the proofs describe the Δbalance
// keys". Every old_<name> reference in a post-condition is resolved
// from any guard that pins it to a literal, falling back to the live
// store balance for "<name>_balance" variables, since the block has
// already passed verify_block and only needs replaying against
// committed state.
//
// Proof variable symbols (§3, no colon allowed) and State Store keys
// (§4.2, "balance:" prefix) are distinct namespaces; a post-condition
// variable named "<name>_balance" (the S1/S2 convention) is bridged to
// the store key "balance:<name>" via balanceStoreKey/balanceBareName.
// Variables that don't follow that convention pass through unchanged
// and are not tracked by the store's own conservation check.
func (e *Engine) blockTransition(block wire.ProofBlock) store.StateTransition {
	var out store.StateTransition
	for _, p := range block.Proofs {
		assign := make(map[proof.VariableSymbol]int64)
		for _, g := range p.Guards {
			if g.Op == proof.OpEQ && g.LHS.Kind == proof.ExprVar && g.RHS.Kind == proof.ExprLiteral {
				assign[g.LHS.Var] = g.RHS.Literal
			}
		}
		for _, pc := range p.PostConditions {
			if pc.LHS.Kind != proof.ExprVar {
				continue
			}
			for name := range collectVars(pc.RHS) {
				if _, bound := assign[name]; bound {
					continue
				}
				if base, isOld := name.IsOld(); isOld {
					if bare, ok := balanceBareName(proof.VariableSymbol(base)); ok {
						assign[name] = e.Store.Balance(bare)
					}
				}
			}
			val, ok := proof.EvalExpr(pc.RHS, assign)
			if !ok {
				continue
			}
			out.Changes = append(out.Changes, store.StateChange{
				Key:   balanceStoreKey(pc.LHS.Var),
				Value: []byte(fmt.Sprintf("%d", val)),
			})
		}
	}
	return out
}

func collectVars(e *proof.Expr) map[proof.VariableSymbol]struct{} {
	vars := make(map[proof.VariableSymbol]struct{})
	e.Vars(vars)
	return vars
}

const balanceVarSuffix = "_balance"

// balanceBareName strips the "_balance" suffix a proof variable uses
// (e.g. "alice_balance" -> "alice"), the name Store.Balance expects.
func balanceBareName(v proof.VariableSymbol) (string, bool) {
	return strings.CutSuffix(string(v), balanceVarSuffix)
}

// balanceStoreKey maps a proof post-condition variable to the state
// store key it writes: "<name>_balance" becomes "balance:<name>";
// anything else passes through unchanged.
func balanceStoreKey(v proof.VariableSymbol) string {
	if bare, ok := balanceBareName(v); ok {
		return "balance:" + bare
	}
	return string(v)
}

// TimedOut reports whether the current round has exceeded RoundTimeout.
func (e *Engine) TimedOut() bool {
	if e.state == nil {
		return false
	}
	return time.Since(e.state.roundStart) > RoundTimeout
}

// ViewChange abandons the current round on timeout and advances to the
// next view, per spec §4.4 "Timeouts and view change".
func (e *Engine) ViewChange() {
	if e.state != nil {
		e.prepareVotes.PruneRound(e.state.View, e.state.Sequence)
		e.commitVotes.PruneRound(e.state.View, e.state.Sequence)
	}
	e.view++
	e.state = nil
}

// State returns the current ConsensusState, or nil if none is active.
func (e *Engine) State() *ConsensusState {
	return e.state
}
