package mempool

import (
	"testing"

	"aethel.dev/node/proof"
)

func hashOf(b byte) [32]byte {
	var h [32]byte
	h[0] = b
	return h
}

func TestAddRejectsDuplicateByProofHash(t *testing.T) {
	m := New(10)
	h := hashOf(1)
	ok, limited := m.Add("proposer-a", proof.Proof{}, h, 1000)
	if !ok || limited {
		t.Fatalf("expected first add to succeed, ok=%v limited=%v", ok, limited)
	}
	ok, limited = m.Add("proposer-a", proof.Proof{}, h, 2000)
	if ok {
		t.Fatalf("expected duplicate proof hash to be rejected")
	}
	if m.Size() != 1 {
		t.Fatalf("expected size 1, got %d", m.Size())
	}
}

func TestTakeTopOrdersByDifficultyThenArrival(t *testing.T) {
	m := New(10)
	m.Add("p", proof.Proof{}, hashOf(1), 1000)
	m.Add("p", proof.Proof{}, hashOf(2), 3000)
	m.Add("p", proof.Proof{}, hashOf(3), 2000)

	top := m.TakeTop(2)
	if len(top) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(top))
	}
	if top[0].Difficulty != 3000 || top[1].Difficulty != 2000 {
		t.Fatalf("expected descending difficulty order, got %v, %v", top[0].Difficulty, top[1].Difficulty)
	}
	// Non-destructive: size unchanged.
	if m.Size() != 3 {
		t.Fatalf("expected TakeTop to leave the queue intact, size=%d", m.Size())
	}
}

func TestOverflowEvictsLowestDifficulty(t *testing.T) {
	m := New(2)
	m.Add("p", proof.Proof{}, hashOf(1), 100)
	m.Add("p", proof.Proof{}, hashOf(2), 200)
	m.Add("p", proof.Proof{}, hashOf(3), 300)

	if m.Size() != 2 {
		t.Fatalf("expected capacity-bounded size 2, got %d", m.Size())
	}
	if m.Contains(hashOf(1)) {
		t.Fatalf("expected lowest-difficulty entry to be evicted")
	}
	if !m.Contains(hashOf(2)) || !m.Contains(hashOf(3)) {
		t.Fatalf("expected higher-difficulty entries to survive")
	}
}

func TestRemoveCommittedDropsEntries(t *testing.T) {
	m := New(10)
	m.Add("p", proof.Proof{}, hashOf(1), 100)
	m.Add("p", proof.Proof{}, hashOf(2), 200)
	m.RemoveCommitted([][32]byte{hashOf(1)})
	if m.Contains(hashOf(1)) {
		t.Fatalf("expected committed entry to be removed")
	}
	if !m.Contains(hashOf(2)) {
		t.Fatalf("expected uncommitted entry to remain")
	}
}

func TestAddRespectsRateLimit(t *testing.T) {
	m := New(100)
	accepted := 0
	limitedCount := 0
	for i := 0; i < 40; i++ {
		ok, limited := m.Add("bursty-proposer", proof.Proof{}, hashOf(byte(i+1)), uint64(i))
		if ok {
			accepted++
		}
		if limited {
			limitedCount++
		}
	}
	if limitedCount == 0 {
		t.Fatalf("expected burst beyond limiter capacity to be rate limited at least once")
	}
}
