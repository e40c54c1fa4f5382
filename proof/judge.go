package proof

import (
	"strings"
	"time"
)

// Judge runs the five-pass verification pipeline and produces a
// VerificationResult, per spec §4.1. It owns one Solver (and therefore
// one result cache) and a Limits record; both are shared across every
// proof the node verifies, following the "parameterize, don't
// singleton" redesign note from spec §9.
type Judge struct {
	limits Limits
	solver *Solver
}

// NewJudge builds a Judge with the given Limits and a fresh solver cache.
func NewJudge(limits Limits) *Judge {
	return &Judge{limits: limits, solver: NewSolver(limits)}
}

// Verify runs all five passes against p, short-circuiting on the first
// failing pass. Every path returns a populated VerificationResult
// instead of a Go error.
func (j *Judge) Verify(p Proof) VerificationResult {
	start := time.Now()
	hash := ProofHash(p)

	fail := func(err *VerifyError) VerificationResult {
		return VerificationResult{
			Valid:              false,
			ProofHash:          hash,
			Error:              err.Kind,
			VerificationTimeMS: uint64(time.Since(start).Milliseconds()),
		}
	}

	if err := SanitizeProof(p); err != nil {
		r := fail(err)
		if pat, ok := strings.CutPrefix(err.Msg, "forbidden pattern "); ok {
			r.MatchedPattern = pat
		}
		return r
	}
	if err := CheckComplexity(p, j.limits); err != nil {
		return fail(err)
	}
	if err := CheckConservation(p); err != nil {
		r := fail(err)
		r.NetDelta = ConservationNetDelta(p)
		return r
	}
	if err := CheckOverflow(p, j.limits); err != nil {
		return fail(err)
	}

	sat, model, timedOut := j.solver.Solve(hash, p)
	elapsed := uint64(time.Since(start).Milliseconds())
	if timedOut {
		return VerificationResult{
			Valid:              false,
			ProofHash:          hash,
			Error:              ErrTimeout,
			VerificationTimeMS: elapsed,
		}
	}
	if !sat {
		return VerificationResult{
			Valid:              false,
			ProofHash:          hash,
			Error:              ErrContradiction,
			VerificationTimeMS: elapsed,
		}
	}

	salt, err := NewSalt()
	var masked map[VariableSymbol]int64
	if err == nil {
		masked = MaskSecrets(p, model, salt)
	} else {
		masked = model
	}

	difficulty := Difficulty(p, elapsed)
	return VerificationResult{
		Valid:              true,
		Difficulty:         difficulty,
		VerificationTimeMS: elapsed,
		ProofHash:          hash,
		Model:              masked,
	}
}

// Difficulty computes the §4.1 difficulty formula:
// base(1000) + 100*|guards| + 200*|post_conditions| + 500*|distinct_vars|
// + round(verification_time_ms).
func Difficulty(p Proof, verificationTimeMS uint64) uint64 {
	const base = 1000
	vars := len(p.DistinctVars())
	return uint64(base) +
		100*uint64(len(p.Guards)) +
		200*uint64(len(p.PostConditions)) +
		500*uint64(vars) +
		verificationTimeMS
}

// VerifyBlockProofs verifies every proof in a block and aggregates the
// result per spec §4.1 "Block verify": valid iff every contained proof
// is valid, total_difficulty = sum of per-proof difficulty.
func (j *Judge) VerifyBlockProofs(proofs []Proof) BlockVerificationResult {
	per := make([]VerificationResult, len(proofs))
	valid := true
	var total uint64
	for i, p := range proofs {
		r := j.Verify(p)
		per[i] = r
		if !r.Valid {
			valid = false
		}
		total += r.Difficulty
	}
	return BlockVerificationResult{
		Valid:           valid,
		TotalDifficulty: total,
		PerProof:        per,
	}
}
