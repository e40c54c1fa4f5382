package node

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"aethel.dev/node/pbft"
	"aethel.dev/node/proof"
	"aethel.dev/node/wire"
)

// verifierPoolSize bounds how many proofs Runtime verifies
// concurrently. Proof verification (pass 5's bounded solver search) is
// the one CPU-bound step in the system, per spec §4.1/§5, so it is the
// step dispatched off the loop goroutine.
const verifierPoolSize = 8

// roundCheckInterval is how often the loop polls Engine.TimedOut()
// between events.
const roundCheckInterval = 250 * time.Millisecond

// verifiedProof is the result the verifier pool hands back to the
// loop: a proof that has already cleared (or failed) Judge.Verify and
// is ready for mempool admission.
type verifiedProof struct {
	proposerID string
	proof      proof.Proof
	proofHash  [32]byte
	result     proof.VerificationResult
}

// pbftInbound wraps one received PBFT message for loop processing.
type pbftInbound struct {
	senderID string
	msg      wire.PBFTMessage
}

// Runtime is the single-threaded Consensus Engine event loop, per
// spec §5 "Concurrency model": Run's goroutine is the only mutator of
// Engine/Store/Mempool state. Proof verification runs on a bounded
// errgroup worker pool and is delivered back onto the loop as a
// single verifiedProof event; nothing else ever touches Engine state
// off that goroutine.
type Runtime struct {
	Engine *pbft.Engine
	Judge  *proof.Judge
	Config Config

	events  chan any
	sem     chan struct{}
	inflght errgroup.Group
}

// NewRuntime builds a Runtime around an already-constructed Engine.
func NewRuntime(cfg Config, e *pbft.Engine, j *proof.Judge) *Runtime {
	return &Runtime{
		Engine: e,
		Judge:  j,
		Config: cfg,
		events: make(chan any, 256),
		sem:    make(chan struct{}, verifierPoolSize),
	}
}

// SubmitProof dispatches p to the bounded verifier pool. The result is
// delivered onto the loop as an event; SubmitProof itself never
// touches Engine/Store/Mempool state.
func (r *Runtime) SubmitProof(proposerID string, p proof.Proof) {
	r.sem <- struct{}{}
	r.inflght.Go(func() error {
		defer func() { <-r.sem }()
		result := r.Judge.Verify(p)
		r.events <- verifiedProof{
			proposerID: proposerID,
			proof:      p,
			proofHash:  result.ProofHash,
			result:     result,
		}
		return nil
	})
}

// Deliver enqueues an inbound PBFT protocol message for loop
// processing.
func (r *Runtime) Deliver(senderID string, msg wire.PBFTMessage) {
	r.events <- pbftInbound{senderID: senderID, msg: msg}
}

// Run drives the event loop until ctx is cancelled. It is the single
// goroutine permitted to mutate Engine/Store/Mempool state.
func (r *Runtime) Run(ctx context.Context) error {
	ticker := time.NewTicker(roundCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = r.inflght.Wait()
			return ctx.Err()
		case <-ticker.C:
			r.checkRoundTimeout()
		case ev := <-r.events:
			r.handleEvent(ev)
		}
	}
}

func (r *Runtime) checkRoundTimeout() {
	if r.Engine.TimedOut() {
		log.WithFields(map[string]any{
			"node_id": r.Engine.NodeID,
			"view":    r.Engine.View(),
		}).Warn("round timed out, advancing view")
		r.Engine.ViewChange()
	}
}

func (r *Runtime) handleEvent(ev any) {
	switch e := ev.(type) {
	case verifiedProof:
		r.handleVerifiedProof(e)
	case pbftInbound:
		r.handlePBFTMessage(e)
	}
}

func (r *Runtime) handleVerifiedProof(v verifiedProof) {
	entry := log.WithFields(map[string]any{
		"node_id":     r.Engine.NodeID,
		"proposer_id": v.proposerID,
	})
	if !v.result.Valid {
		entry.WithField("error", v.result.Error).Debug("proof rejected by judge")
		return
	}
	ok, limited := r.Engine.Mempool.Add(v.proposerID, v.proof, v.proofHash, v.result.Difficulty)
	if limited {
		entry.Debug("proposer rate limited, proof dropped")
		return
	}
	if !ok {
		entry.Debug("duplicate proof, already in mempool")
		return
	}
	entry.WithField("difficulty", v.result.Difficulty).Debug("proof admitted to mempool")
}

func (r *Runtime) handlePBFTMessage(in pbftInbound) {
	entry := log.WithFields(map[string]any{
		"node_id": r.Engine.NodeID,
		"sender":  in.senderID,
		"view":    in.msg.View,
		"seq":     in.msg.Sequence,
		"type":    in.msg.Type.String(),
	})

	switch in.msg.Type {
	case wire.MsgPrePrepare:
		if in.msg.Block == nil {
			entry.Warn("pre-prepare with nil block, ignoring")
			return
		}
		if _, ok, err := r.Engine.HandlePrePrepare(in.msg.View, in.msg.Sequence, in.senderID, *in.msg.Block); err != nil {
			entry.WithField("error", err).Warn("pre-prepare rejected")
		} else if ok {
			entry.Debug("pre-prepare accepted")
		}
	case wire.MsgPrepare:
		if justPrepared, err := r.Engine.HandlePrepare(in.msg.View, in.msg.Sequence, in.senderID, in.msg.Digest); err != nil {
			entry.WithField("error", err).Warn("prepare rejected")
		} else if justPrepared {
			entry.Debug("quorum reached, round now prepared")
		}
	case wire.MsgCommit:
		finalized, root, err := r.Engine.HandleCommit(in.msg.View, in.msg.Sequence, in.senderID, in.msg.Digest)
		if err != nil {
			entry.WithField("error", err).Warn("commit rejected")
			return
		}
		if finalized {
			entry.WithField("root", root).Info("block finalized")
		}
	}
}
