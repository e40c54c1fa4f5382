package proof

import "testing"

func TestSolverCachesByProofHash(t *testing.T) {
	s := NewSolver(DefaultLimits())
	p := balanceProof(10, false)
	hash := ProofHash(p)

	sat1, model1, timedOut1 := s.Solve(hash, p)
	if timedOut1 || !sat1 {
		t.Fatalf("expected first solve to succeed")
	}
	sat2, model2, timedOut2 := s.Solve(hash, p)
	if timedOut2 || !sat2 {
		t.Fatalf("expected cached solve to succeed")
	}
	if model1["alice_balance"] != model2["alice_balance"] {
		t.Fatalf("expected cached model to match original")
	}
}

func TestSolverUnsatContradictingGuards(t *testing.T) {
	s := NewSolver(DefaultLimits())
	p := Proof{
		Guards: []Constraint{
			{LHS: Var("x"), Op: OpEQ, RHS: Lit(1)},
			{LHS: Var("x"), Op: OpEQ, RHS: Lit(2)},
		},
	}
	sat, _, timedOut := s.Solve(ProofHash(p), p)
	if timedOut {
		t.Fatalf("did not expect timeout")
	}
	if sat {
		t.Fatalf("expected unsat for contradictory guards")
	}
}
