// Package store implements the State Store: the authenticated
// key/value map that every Consensus Engine instance owns, gated by
// apply_transition's conservation check and backed by a sorted-leaf
// Merkle tree (package merkle). Grounded on
// aethel/consensus/state_store.py, adapted from its Python dict/list
// bookkeeping into typed Go structures, with bbolt for the persistence
// layer (package store's db.go).
package store

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"aethel.dev/node/merkle"
)

const (
	balancePrefix = "balance:"
	stakePrefix   = "stake:"
	spentPrefix   = "spent:"

	// MinimumStake is the stake floor a node must hold to participate
	// as a PBFT voter, per spec §4.4.
	MinimumStake = 1000

	// CheckpointInterval is the number of transitions between
	// automatically emitted checkpoints, per spec §4.2.
	CheckpointInterval = 10

	// rootHistoryCap bounds the root-hash history to the most recent
	// 100 entries, FIFO eviction, per spec §4.2 step 5.
	rootHistoryCap = 100
)

// StateChange is one key mutation inside a StateTransition. Spend
// is set when this change also consumes a UTXO outpoint.
type StateChange struct {
	Key   string
	Value []byte
	Spend *Outpoint
}

// StateTransition is the unit apply_transition consumes and annotates.
// Callers supply Changes; ApplyTransition fills every other field.
type StateTransition struct {
	Changes []StateChange

	RootBefore         [32]byte
	RootAfter          [32]byte
	ConservationBefore int64
	ConservationAfter  int64
}

// Checkpoint snapshots conservation state at a transition boundary, per
// spec §4.2 "Checkpoints and long-range attacks".
type Checkpoint struct {
	TransitionCount      uint64
	RootHash             [32]byte
	ConservationChecksum int64
}

// Store is the authenticated state store. All mutation goes through
// ApplyTransition; the tree itself is owned exclusively by Store, per
// spec §3 "Ownership".
type Store struct {
	mu sync.Mutex

	tree  *merkle.Tree
	spent map[Outpoint]bool

	rootHistory [][32]byte
	checkpoints []Checkpoint

	transitionCount uint64
}

// New builds an empty Store.
func New() *Store {
	return &Store{
		tree:  merkle.New(nil),
		spent: make(map[Outpoint]bool),
	}
}

// Root returns the current authenticated root hash.
func (s *Store) Root() [32]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Root()
}

// TransitionCount returns the number of transitions applied so far.
func (s *Store) TransitionCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionCount
}

// Checkpoints returns a copy of the recorded checkpoint history.
func (s *Store) Checkpoints() []Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Checkpoint, len(s.checkpoints))
	copy(out, s.checkpoints)
	return out
}

// Materialize returns a snapshot of every key/value pair currently
// held in the tree, for persistence (store/db.go's PersistLeaves) or
// peer sync.
func (s *Store) Materialize() map[string][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Materialize()
}

// Genesis seeds initial key/value state directly, bypassing the
// conservation check: spec §8's worked examples start from a fixed
// initial balance map (e.g. "balance:A=100, balance:B=0") that is
// established before any transition is ever applied, the same way a
// real ledger's genesis allocation sits outside the invariant that
// governs every subsequent transfer. Genesis must only be called
// before the first ApplyTransition.
func (s *Store) Genesis(kv map[string][]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree = s.tree.BatchUpdate(kv)
}

// ApplyTransition runs the §4.2 apply_transition algorithm: it
// checks for double spends among t.Changes, enforces the conservation
// invariant over balance:* deltas, batch-updates the Merkle tree, and
// emits a checkpoint every CheckpointInterval transitions. On any
// rejection the tree is left untouched and ApplyTransition returns
// false; t is annotated only on success.
func (s *Store) ApplyTransition(t *StateTransition) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.detectDoubleSpendLocked(t.Changes); err != nil {
		return false
	}

	currentView := s.tree.Materialize()
	delta, ok := conservationDelta(t.Changes, currentView)
	if !ok || delta != 0 {
		return false
	}

	rootBefore := s.tree.Root()
	kv := make(map[string][]byte, len(t.Changes))
	for _, c := range t.Changes {
		kv[c.Key] = c.Value
	}
	newTree := s.tree.BatchUpdate(kv)
	rootAfter := newTree.Root()

	before := sumBalances(currentView)
	s.tree = newTree
	for _, c := range t.Changes {
		if c.Spend != nil {
			s.spent[*c.Spend] = true
		}
	}
	after := sumBalances(s.tree.Materialize())

	t.RootBefore = rootBefore
	t.RootAfter = rootAfter
	t.ConservationBefore = before
	t.ConservationAfter = after
	if after != before {
		panic(fmt.Sprintf("store: conservation invariant violated after batch update: before=%d after=%d", before, after))
	}

	s.rootHistory = append(s.rootHistory, rootAfter)
	if len(s.rootHistory) > rootHistoryCap {
		s.rootHistory = s.rootHistory[len(s.rootHistory)-rootHistoryCap:]
	}

	s.transitionCount++
	if s.transitionCount%CheckpointInterval == 0 {
		s.checkpoints = append(s.checkpoints, Checkpoint{
			TransitionCount:      s.transitionCount,
			RootHash:             rootAfter,
			ConservationChecksum: after,
		})
	}
	return true
}

// conservationDelta sums signed balance:* deltas implied by changes
// against currentView, returning ok=false if a balance value fails to
// parse as an integer.
func conservationDelta(changes []StateChange, currentView map[string][]byte) (int64, bool) {
	var delta int64
	for _, c := range changes {
		if !strings.HasPrefix(c.Key, balancePrefix) {
			continue
		}
		newVal, ok := parseBalance(c.Value)
		if !ok {
			return 0, false
		}
		oldVal, ok := parseBalance(currentView[c.Key])
		if !ok {
			oldVal = 0
		}
		delta += newVal - oldVal
	}
	return delta, true
}

func sumBalances(kv map[string][]byte) int64 {
	var total int64
	for k, v := range kv {
		if !strings.HasPrefix(k, balancePrefix) {
			continue
		}
		n, ok := parseBalance(v)
		if ok {
			total += n
		}
	}
	return total
}

func parseBalance(v []byte) (int64, bool) {
	if len(v) == 0 {
		return 0, true
	}
	n, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Balance returns the balance:<name> value, 0 if unset.
func (s *Store) Balance(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, _ := s.tree.Get(balancePrefix + name)
	n, _ := parseBalance(v)
	return n
}

// Stake returns the stake:<name> value, 0 if unset.
func (s *Store) Stake(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, _ := s.tree.Get(stakePrefix + name)
	n, _ := parseBalance(v)
	return n
}

// HasMinimumStake reports whether name holds at least MinimumStake.
func (s *Store) HasMinimumStake(name string) bool {
	return s.Stake(name) >= MinimumStake
}

// ReduceStake applies a slashing penalty to name's stake, clamped at
// zero, and returns the resulting StateTransition outcome.
func (s *Store) ReduceStake(name string, amount int64) bool {
	if amount < 0 {
		amount = -amount
	}
	current := s.Stake(name)
	next := current - amount
	if next < 0 {
		next = 0
	}
	t := &StateTransition{Changes: []StateChange{
		{Key: stakePrefix + name, Value: []byte(strconv.FormatInt(next, 10))},
	}}
	return s.ApplyTransition(t)
}

// ValidateStateHistory rejects a proposed alternative checkpoint
// history per spec §4.2: any state disagreeing with a recorded
// checkpoint on conservation_checksum at a matching root_hash, or any
// conservation_checksum change between adjacent proposed states, is a
// long-range-attack signal.
func (s *Store) ValidateStateHistory(history []Checkpoint) bool {
	s.mu.Lock()
	recorded := make(map[[32]byte]int64, len(s.checkpoints))
	for _, c := range s.checkpoints {
		recorded[c.RootHash] = c.ConservationChecksum
	}
	s.mu.Unlock()

	for i, cp := range history {
		if want, ok := recorded[cp.RootHash]; ok && want != cp.ConservationChecksum {
			return false
		}
		if i > 0 && history[i-1].ConservationChecksum != cp.ConservationChecksum {
			return false
		}
	}
	return true
}

// SyncFromPeer rebuilds an ephemeral tree from peerState and compares
// its root to peerRoot. On mismatch local state is untouched and it
// returns false; on match the peer tree is adopted wholesale.
func (s *Store) SyncFromPeer(peerRoot [32]byte, peerState map[string][]byte) bool {
	candidate := merkle.New(peerState)
	if candidate.Root() != peerRoot {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree = candidate
	s.rootHistory = append(s.rootHistory, peerRoot)
	if len(s.rootHistory) > rootHistoryCap {
		s.rootHistory = s.rootHistory[len(s.rootHistory)-rootHistoryCap:]
	}
	return true
}
