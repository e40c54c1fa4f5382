package proof

// CheckConservation is pass 3: a fast syntactic pre-check of the
// conservation invariant (sum of all matching deltas is zero) that
// runs before the solver. Grounded on aethel/core/conservation.py's
// ConservationChecker, which walks post-conditions of the shape
// `X == old_X + delta` and sums the literal deltas before falling back
// to full solving for anything it cannot read off syntactically. Per
// spec §4.1 pass 3 this applies to every post-condition of that shape,
// with no restriction on the variable's name.
//
// A post-condition that does not match the recognized linear shape is
// left to the solver (pass 5) to validate; this pass only rejects
// proofs where the syntactically-extractable deltas already fail to
// net to zero.
func CheckConservation(p Proof) *VerifyError {
	var net int64
	for _, pc := range p.PostConditions {
		v, delta, ok := balanceDelta(pc)
		if !ok {
			continue
		}
		_ = v
		net += delta
	}
	if net != 0 {
		e := verr(ErrConservation, "balance deltas do not net to zero")
		return e
	}
	return nil
}

// ConservationNetDelta mirrors CheckConservation but returns the signed
// net delta for callers (e.g. VerificationResult.NetDelta) that want
// the value regardless of pass/fail.
func ConservationNetDelta(p Proof) int64 {
	var net int64
	for _, pc := range p.PostConditions {
		_, delta, ok := balanceDelta(pc)
		if ok {
			net += delta
		}
	}
	return net
}

// balanceDelta recognizes `X == old_X <+|-> <literal>` and
// `X == old_X` (delta zero), for any variable name X. Returns
// ok=false for any other shape, deferring to the solver.
func balanceDelta(c Constraint) (VariableSymbol, int64, bool) {
	if c.Op != OpEQ {
		return "", 0, false
	}
	if c.LHS.Kind != ExprVar {
		return "", 0, false
	}
	target := c.LHS.Var
	oldName := VariableSymbol("old_" + string(target))

	switch c.RHS.Kind {
	case ExprVar:
		if c.RHS.Var == oldName {
			return target, 0, true
		}
	case ExprBinOp:
		left, right := c.RHS.Left, c.RHS.Right
		if left.Kind == ExprVar && left.Var == oldName && right.Kind == ExprLiteral {
			switch c.RHS.Op {
			case ArithAdd:
				return target, right.Literal, true
			case ArithSub:
				return target, -right.Literal, true
			}
		}
	}
	return "", 0, false
}
