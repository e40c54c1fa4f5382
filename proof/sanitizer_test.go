package proof

import "testing"

func TestSanitizeRejectsForbiddenPattern(t *testing.T) {
	err := Sanitize([]string{"balance:x", "rm -rf; echo"})
	if err == nil || err.Kind != ErrInjection {
		t.Fatalf("expected Injection error, got %v", err)
	}
}

func TestSanitizeAllowsCleanInput(t *testing.T) {
	err := Sanitize([]string{"balance:alice", "old_balance:alice"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestSanitizeProofChecksVariableNames(t *testing.T) {
	p := Proof{
		Guards: []Constraint{
			{LHS: Var("x`touch pwned`"), Op: OpGE, RHS: Lit(0)},
		},
	}
	if err := SanitizeProof(p); err == nil {
		t.Fatalf("expected injected variable name to be rejected")
	}
}

func TestSanitizeProofRejectsMalformedVariableSymbol(t *testing.T) {
	p := Proof{
		Guards: []Constraint{
			{LHS: Var("balance:alice"), Op: OpGE, RHS: Lit(0)},
		},
	}
	err := SanitizeProof(p)
	if err == nil || err.Kind != ErrInjection {
		t.Fatalf("expected a colon-bearing symbol to fail the §3 naming grammar, got %v", err)
	}
}

func TestSanitizeRejectsEvalPattern(t *testing.T) {
	err := Sanitize([]string{"eval(user_input)"})
	if err == nil || err.Kind != ErrInjection {
		t.Fatalf("expected Injection error, got %v", err)
	}
}

func TestSanitizeRejectsExecPattern(t *testing.T) {
	err := Sanitize([]string{"exec(cmd)"})
	if err == nil || err.Kind != ErrInjection {
		t.Fatalf("expected Injection error, got %v", err)
	}
}

func TestSanitizeRejectsDoubleUnderscore(t *testing.T) {
	err := Sanitize([]string{"__import__"})
	if err == nil || err.Kind != ErrInjection {
		t.Fatalf("expected Injection error, got %v", err)
	}
}

func TestSanitizeRejectsImportKeyword(t *testing.T) {
	err := Sanitize([]string{"import os"})
	if err == nil || err.Kind != ErrInjection {
		t.Fatalf("expected Injection error, got %v", err)
	}
}

func TestSanitizeRejectsControlCharacter(t *testing.T) {
	err := Sanitize([]string{"alice\x01balance"})
	if err == nil || err.Kind != ErrInjection {
		t.Fatalf("expected Injection error, got %v", err)
	}
}
