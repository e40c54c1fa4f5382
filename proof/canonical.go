package proof

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

// CanonicalForm produces the sorted, literal-normalized textual
// encoding of a proof's guards and post-conditions, secret markers
// preserved, per spec §4.1 "Proof hash". The sort-then-serialize idiom
// mirrors a classic UtxoSetHash construction (sort entries, then
// hash the concatenation) generalized from UTXO entries to
// constraints.
func CanonicalForm(p Proof) string {
	guards := canonicalConstraints(p.Guards)
	posts := canonicalConstraints(p.PostConditions)
	sort.Strings(guards)
	sort.Strings(posts)

	var b strings.Builder
	b.WriteString("guards:\n")
	for _, g := range guards {
		b.WriteString(g)
		b.WriteByte('\n')
	}
	b.WriteString("posts:\n")
	for _, pc := range posts {
		b.WriteString(pc)
		b.WriteByte('\n')
	}
	return b.String()
}

func canonicalConstraints(cs []Constraint) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		secretMarker := ""
		if c.Secret {
			secretMarker = "!"
		}
		out = append(out, fmt.Sprintf("%s%s %s %s", secretMarker, c.LHS, c.Op, c.RHS))
	}
	return out
}

// ProofHash is SHA-256 of the canonical serialization, per spec §4.1.
func ProofHash(p Proof) [32]byte {
	return sha256.Sum256([]byte(CanonicalForm(p)))
}
