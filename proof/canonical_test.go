package proof

import "testing"

func TestProofHashStableUnderReordering(t *testing.T) {
	p1 := Proof{
		Guards: []Constraint{
			{LHS: Var("a"), Op: OpGE, RHS: Lit(0)},
			{LHS: Var("b"), Op: OpGE, RHS: Lit(0)},
		},
	}
	p2 := Proof{
		Guards: []Constraint{
			{LHS: Var("b"), Op: OpGE, RHS: Lit(0)},
			{LHS: Var("a"), Op: OpGE, RHS: Lit(0)},
		},
	}
	if ProofHash(p1) != ProofHash(p2) {
		t.Fatalf("expected proof hash to be order-independent")
	}
}

func TestProofHashDiffersOnSecretFlag(t *testing.T) {
	base := Constraint{LHS: Var("a"), Op: OpGE, RHS: Lit(0)}
	secret := base
	secret.Secret = true

	h1 := ProofHash(Proof{Guards: []Constraint{base}})
	h2 := ProofHash(Proof{Guards: []Constraint{secret}})
	if h1 == h2 {
		t.Fatalf("expected secret marker to change the proof hash")
	}
}
