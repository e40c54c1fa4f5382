package proof

import "testing"

func TestCheckConservationZeroNet(t *testing.T) {
	p := Proof{
		PostConditions: []Constraint{
			{LHS: Var("alice_balance"), Op: OpEQ, RHS: BinOp(ArithSub, Var("old_alice_balance"), Lit(10))},
			{LHS: Var("bob_balance"), Op: OpEQ, RHS: BinOp(ArithAdd, Var("old_bob_balance"), Lit(10))},
		},
	}
	if err := CheckConservation(p); err != nil {
		t.Fatalf("expected conservation to hold, got %v", err)
	}
}

func TestCheckConservationNonzeroNet(t *testing.T) {
	p := Proof{
		PostConditions: []Constraint{
			{LHS: Var("alice_balance"), Op: OpEQ, RHS: BinOp(ArithAdd, Var("old_alice_balance"), Lit(10))},
		},
	}
	err := CheckConservation(p)
	if err == nil || err.Kind != ErrConservation {
		t.Fatalf("expected Conservation error, got %v", err)
	}
}

// TestCheckConservationTracksAnyVariableName guards against a
// regression where pass 3 only summed deltas for variables prefixed
// "balance:" — a state-store key convention (§4.2) that a §3 proof
// variable symbol, which may never contain a colon, can't carry. Per
// spec §4.1 pass 3 there is no name restriction: any post-condition of
// shape `v == old_v +/- k` contributes to the net delta.
func TestCheckConservationTracksAnyVariableName(t *testing.T) {
	p := Proof{
		PostConditions: []Constraint{
			{LHS: Var("widget_count"), Op: OpEQ, RHS: BinOp(ArithAdd, Var("old_widget_count"), Lit(1))},
		},
	}
	err := CheckConservation(p)
	if err == nil || err.Kind != ErrConservation {
		t.Fatalf("expected non-balance-named variable to still be tracked, got %v", err)
	}
	if got := ConservationNetDelta(p); got != 1 {
		t.Fatalf("expected net delta 1, got %d", got)
	}
}

func TestCheckConservationIgnoresNonLinearShape(t *testing.T) {
	p := Proof{
		PostConditions: []Constraint{
			{LHS: Var("alice_balance"), Op: OpGE, RHS: Lit(0)},
		},
	}
	if err := CheckConservation(p); err != nil {
		t.Fatalf("expected non-matching shape to be left to the solver, got %v", err)
	}
}
