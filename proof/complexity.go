package proof

import (
	mapset "github.com/deckarep/golang-set"
)

// CheckComplexity is pass 2: reject proofs that exceed the shape limits
// from Limits before any constraint is evaluated. Distinct-variable
// tracking uses golang-set rather than a bare map so the cardinality
// check below reads the way it does in the rest of the pack's
// graph/analysis code.
func CheckComplexity(p Proof, limits Limits) *VerifyError {
	if len(p.Guards)+len(p.PostConditions) > limits.MaxConstraints {
		return verr(ErrTooComplex, "too many constraints")
	}

	vars := mapset.NewSet()
	for _, prm := range p.Params {
		vars.Add(prm.Name)
	}
	for _, g := range p.Guards {
		addExprVars(vars, g.LHS)
		addExprVars(vars, g.RHS)
		if g.TokenCount() > limits.MaxTokens {
			return verr(ErrTooComplex, "guard exceeds token limit")
		}
	}
	for _, pc := range p.PostConditions {
		addExprVars(vars, pc.LHS)
		addExprVars(vars, pc.RHS)
		if pc.TokenCount() > limits.MaxTokens {
			return verr(ErrTooComplex, "post-condition exceeds token limit")
		}
	}

	if vars.Cardinality() > limits.MaxVariables {
		return verr(ErrTooComplex, "too many distinct variables")
	}
	return nil
}

func addExprVars(set mapset.Set, e *Expr) {
	if e == nil {
		return
	}
	switch e.Kind {
	case ExprVar:
		set.Add(e.Var)
	case ExprBinOp:
		addExprVars(set, e.Left)
		addExprVars(set, e.Right)
	}
}
