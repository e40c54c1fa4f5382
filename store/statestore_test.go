package store

import (
	"testing"

	"aethel.dev/node/merkle"
)

func TestApplyTransitionBalancedAccepted(t *testing.T) {
	s := New()
	s.Genesis(map[string][]byte{"balance:alice": []byte("100")})

	t2 := &StateTransition{Changes: []StateChange{
		{Key: "balance:alice", Value: []byte("90")},
		{Key: "balance:bob", Value: []byte("10")},
	}}
	if !s.ApplyTransition(t2) {
		t.Fatalf("expected balanced transfer to be accepted")
	}
	if s.Balance("alice") != 90 || s.Balance("bob") != 10 {
		t.Fatalf("unexpected balances: alice=%d bob=%d", s.Balance("alice"), s.Balance("bob"))
	}
}

func TestApplyTransitionRejectsUnbalancedDelta(t *testing.T) {
	s := New()
	s.Genesis(map[string][]byte{"balance:alice": []byte("100")})

	bad := &StateTransition{Changes: []StateChange{
		{Key: "balance:alice", Value: []byte("90")},
		{Key: "balance:bob", Value: []byte("20")},
	}}
	if s.ApplyTransition(bad) {
		t.Fatalf("expected unbalanced transition to be rejected")
	}
	if s.Balance("alice") != 100 {
		t.Fatalf("expected rejected transition to leave state untouched")
	}
}

func TestApplyTransitionRejectsDoubleSpendWithinBatch(t *testing.T) {
	s := New()
	op := Outpoint{Txid: [32]byte{1}, OutIndex: 0}
	bad := &StateTransition{Changes: []StateChange{
		{Key: "balance:alice", Value: []byte("1"), Spend: &op},
		{Key: "balance:bob", Value: []byte("1"), Spend: &op},
	}}
	if s.ApplyTransition(bad) {
		t.Fatalf("expected duplicate outpoint in the same batch to be rejected")
	}
}

func TestApplyTransitionRejectsAlreadySpentOutpoint(t *testing.T) {
	s := New()
	op := Outpoint{Txid: [32]byte{2}, OutIndex: 1}
	first := &StateTransition{Changes: []StateChange{
		{Key: "balance:alice", Value: []byte("100"), Spend: &op},
		{Key: "balance:genesis", Value: []byte("-100")},
	}}
	if !s.ApplyTransition(first) {
		t.Fatalf("expected first spend to be accepted")
	}
	if !s.IsSpent(op) {
		t.Fatalf("expected outpoint to be marked spent")
	}

	second := &StateTransition{Changes: []StateChange{
		{Key: "balance:alice", Value: []byte("100"), Spend: &op},
		{Key: "balance:genesis", Value: []byte("-200")},
	}}
	if s.ApplyTransition(second) {
		t.Fatalf("expected re-spend of already spent outpoint to be rejected")
	}
}

func TestCheckpointEmittedEveryInterval(t *testing.T) {
	s := New()
	for i := 0; i < CheckpointInterval; i++ {
		s.ApplyTransition(&StateTransition{})
	}
	cps := s.Checkpoints()
	if len(cps) != 1 {
		t.Fatalf("expected exactly one checkpoint after %d transitions, got %d", CheckpointInterval, len(cps))
	}
	if cps[0].TransitionCount != CheckpointInterval {
		t.Fatalf("expected checkpoint at transition %d, got %d", CheckpointInterval, cps[0].TransitionCount)
	}
}

func TestHasMinimumStake(t *testing.T) {
	s := New()
	s.ApplyTransition(&StateTransition{Changes: []StateChange{
		{Key: "stake:node-0", Value: []byte("1000")},
	}})
	if !s.HasMinimumStake("node-0") {
		t.Fatalf("expected node-0 to meet the minimum stake")
	}
	if s.HasMinimumStake("node-1") {
		t.Fatalf("expected node-1 with no stake to fail the minimum")
	}
}

func TestReduceStakeClampsAtZero(t *testing.T) {
	s := New()
	s.ApplyTransition(&StateTransition{Changes: []StateChange{
		{Key: "stake:node-0", Value: []byte("500")},
	}})
	s.ReduceStake("node-0", 2000)
	if s.Stake("node-0") != 0 {
		t.Fatalf("expected stake to clamp at zero, got %d", s.Stake("node-0"))
	}
}

func TestSyncFromPeerAdoptsMatchingState(t *testing.T) {
	s := New()
	peerState := map[string][]byte{"balance:alice": []byte("100")}
	peerRoot := rootOf(peerState)
	if !s.SyncFromPeer(peerRoot, peerState) {
		t.Fatalf("expected sync to succeed on matching root")
	}
	if s.Balance("alice") != 100 {
		t.Fatalf("expected adopted state to reflect peer balance")
	}
}

func TestSyncFromPeerRejectsMismatchedRoot(t *testing.T) {
	s := New()
	s.Genesis(map[string][]byte{"balance:alice": []byte("100")})
	before := s.Root()

	peerState := map[string][]byte{"balance:alice": []byte("999")}
	var bogusRoot [32]byte
	bogusRoot[0] = 0xff
	if s.SyncFromPeer(bogusRoot, peerState) {
		t.Fatalf("expected mismatched root to be rejected")
	}
	if s.Root() != before {
		t.Fatalf("expected local state untouched after rejected sync")
	}
}

func TestValidateStateHistoryRejectsChangingChecksumAtSameRoot(t *testing.T) {
	s := New()
	root := [32]byte{9}
	s.checkpoints = []Checkpoint{{TransitionCount: 10, RootHash: root, ConservationChecksum: 100}}

	history := []Checkpoint{{TransitionCount: 10, RootHash: root, ConservationChecksum: 999}}
	if s.ValidateStateHistory(history) {
		t.Fatalf("expected mismatched conservation_checksum at recorded root to be rejected")
	}
}

func rootOf(kv map[string][]byte) [32]byte {
	return merkle.New(kv).Root()
}
