// Package mempool implements the Proof Mempool: a bounded
// max-priority queue of not-yet-committed proofs ordered by
// difficulty, ties broken by arrival order, per spec §4.3. The
// priority queue itself is a container/heap implementation shaped
// after go-ethereum's common/prque (its source is not present in the
// retrieved corpus, only its test file, so entryHeap's Push/Pop and
// Mempool.Size are modeled on that tested shape); dedup uses a bloom filter
// pre-check ahead of the authoritative map lookup, and Add is rate
// limited per proposer.
package mempool

import (
	"container/heap"
	"sync"

	"github.com/holiman/bloomfilter/v2"
	"golang.org/x/time/rate"

	"aethel.dev/node/proof"
)

// Entry is one mempool slot: a proof plus its externally-computed
// difficulty and the order it arrived in.
type Entry struct {
	Proof      proof.Proof
	ProofHash  [32]byte
	Difficulty uint64
	arrival    uint64
}

type entryHeap []*Entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].Difficulty != h[j].Difficulty {
		return h[i].Difficulty > h[j].Difficulty // max-heap on difficulty
	}
	return h[i].arrival < h[j].arrival // earlier arrival wins ties
}
func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x any)   { *h = append(*h, x.(*Entry)) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Mempool is the bounded max-priority queue of candidate proofs.
type Mempool struct {
	mu sync.Mutex

	heap     entryHeap
	byHash   map[[32]byte]*Entry
	capacity int
	nextSeq  uint64

	dupFilter *bloomfilter.Filter
	limiters  map[string]*rate.Limiter
	limiterMu sync.Mutex
}

// New builds a Mempool with the given bounded capacity. On overflow,
// Add evicts the lowest-difficulty entry, per spec §4.3.
func New(capacity int) *Mempool {
	// Sized by NewOptimal for capacity*4+1024 items at a 1%
	// false-positive rate; the filter is only ever an early-out in front of the authoritative
	// byHash map, so false positives cost an extra map lookup, never
	// correctness.
	filter, _ := bloomfilter.NewOptimal(uint64(capacity*4+1024), 0.01)
	return &Mempool{
		byHash:    make(map[[32]byte]*Entry),
		capacity:  capacity,
		dupFilter: filter,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// limiterFor returns (creating if needed) the per-proposer rate
// limiter: 10 proofs/sec sustained, burst of 20.
func (m *Mempool) limiterFor(proposerID string) *rate.Limiter {
	m.limiterMu.Lock()
	defer m.limiterMu.Unlock()
	l, ok := m.limiters[proposerID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(10), 20)
		m.limiters[proposerID] = l
	}
	return l
}

// Add inserts a proof at the given difficulty, rejecting duplicates by
// proof hash. proposerID rate-limits the caller; a caller exceeding its
// budget is rejected with ok=false, limited=true. On overflow past
// capacity, the lowest-difficulty entry is evicted to make room.
func (m *Mempool) Add(proposerID string, p proof.Proof, proofHash [32]byte, difficulty uint64) (ok bool, limited bool) {
	if !m.limiterFor(proposerID).Allow() {
		return false, true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byHash[proofHash]; exists {
		return false, false
	}

	e := &Entry{Proof: p, ProofHash: proofHash, Difficulty: difficulty, arrival: m.nextSeq}
	m.nextSeq++
	heap.Push(&m.heap, e)
	m.byHash[proofHash] = e
	m.dupFilter.Add(bloomKey(proofHash))

	if m.capacity > 0 && len(m.heap) > m.capacity {
		m.evictLowestLocked()
	}
	return true, false
}

// evictLowestLocked drops the single lowest-difficulty entry. Caller
// must hold m.mu.
func (m *Mempool) evictLowestLocked() {
	if len(m.heap) == 0 {
		return
	}
	// Find the lowest-difficulty entry (ties: latest arrival is worst).
	worst := 0
	for i := 1; i < len(m.heap); i++ {
		if isWorse(m.heap[i], m.heap[worst]) {
			worst = i
		}
	}
	victim := m.heap[worst]
	heap.Remove(&m.heap, worst)
	delete(m.byHash, victim.ProofHash)
}

func isWorse(a, b *Entry) bool {
	if a.Difficulty != b.Difficulty {
		return a.Difficulty < b.Difficulty
	}
	return a.arrival > b.arrival
}

// TakeTop returns (without removing) up to k highest-difficulty
// entries, per spec §4.3 "non-destructive peek used when proposing".
func (m *Mempool) TakeTop(k int) []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make(entryHeap, len(m.heap))
	copy(cp, m.heap)
	heap.Init(&cp)

	out := make([]Entry, 0, k)
	for i := 0; i < k && cp.Len() > 0; i++ {
		e := heap.Pop(&cp).(*Entry)
		out = append(out, *e)
	}
	return out
}

// RemoveCommitted drops every entry in hashes (typically after a block
// finalizes).
func (m *Mempool) RemoveCommitted(hashes [][32]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[[32]byte]struct{}, len(hashes))
	for _, h := range hashes {
		want[h] = struct{}{}
	}
	filtered := m.heap[:0]
	for _, e := range m.heap {
		if _, drop := want[e.ProofHash]; drop {
			delete(m.byHash, e.ProofHash)
			continue
		}
		filtered = append(filtered, e)
	}
	m.heap = filtered
	heap.Init(&m.heap)
}

// Contains reports whether proofHash is currently queued. The bloom
// filter serves as a fast negative pre-check: a "definitely absent"
// answer skips the map lookup entirely; a "maybe present" answer falls
// through to the authoritative map.
func (m *Mempool) Contains(proofHash [32]byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.dupFilter.Contains(bloomKey(proofHash)) {
		return false
	}
	_, ok := m.byHash[proofHash]
	return ok
}

// Size returns the current queue length.
func (m *Mempool) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.heap)
}

// bloomKey folds a 32-byte proof hash down to the uint64 the filter
// operates on; the first 8 bytes already carry full SHA-256 entropy.
func bloomKey(h [32]byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(h[i]) << (8 * i)
	}
	return v
}
