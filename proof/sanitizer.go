package proof

import "strings"

// forbiddenPatterns are substrings that must never appear in a proof's
// raw textual form, regardless of where they occur (parameter names,
// constraint source, etc), per spec.md §4.1 pass 1's literal list:
// eval(, exec(, a bare __, import , shell metacharacters, and template/
// SQL injection markers. Grounded on aethel/core/judge.py's sanitize
// pass.
var forbiddenPatterns = []string{
	"eval(", "exec(", "__", "import ",
	";", "--", "/*", "*/",
	"$(", "`",
	"<script", "</script",
	"drop table",
	"os.system", "subprocess",
}

// Sanitize is pass 1 of the verifier: reject proofs whose raw source
// text contains a forbidden injection pattern or a raw control
// character. Runs before any parsing or evaluation, over every raw
// token the caller can supply (parameter names, type tags, and the
// original constraint source strings).
func Sanitize(raw []string) *VerifyError {
	for _, field := range raw {
		for _, r := range field {
			if r < 0x20 || r == 0x7f {
				return verr(ErrInjection, "control character in proof text")
			}
		}
		lower := strings.ToLower(field)
		for _, pat := range forbiddenPatterns {
			if strings.Contains(lower, strings.ToLower(pat)) {
				return verr(ErrInjection, "forbidden pattern "+pat)
			}
		}
	}
	return nil
}

// SanitizeProof extracts every raw string surface of p (parameter
// names, variable symbols referenced in guards/post-conditions),
// rejects any symbol that does not match the §3 variable-symbol
// grammar, and runs Sanitize over the rest.
func SanitizeProof(p Proof) *VerifyError {
	raw := make([]string, 0, len(p.Params)*2)
	for _, prm := range p.Params {
		if !prm.Name.Valid() {
			return verr(ErrInjection, "malformed variable symbol "+string(prm.Name))
		}
		raw = append(raw, string(prm.Name), prm.TypeTag)
	}
	vars := p.DistinctVars()
	for v := range vars {
		if !v.Valid() {
			return verr(ErrInjection, "malformed variable symbol "+string(v))
		}
		raw = append(raw, string(v))
	}
	return Sanitize(raw)
}
