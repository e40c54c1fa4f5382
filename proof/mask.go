package proof

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// MaskSecrets replaces every secret-flagged variable's value in model
// with an opaque SHA-256(value‖salt) commitment, per spec §4.1's
// zero-knowledge variant. Verification itself always runs over the true
// values; masking only affects what leaves the verifier in a
// VerificationResult, counter-example, or log line.
func MaskSecrets(p Proof, model map[VariableSymbol]int64, salt [16]byte) map[VariableSymbol]int64 {
	if model == nil {
		return nil
	}
	masked := make(map[VariableSymbol]int64, len(model))
	for name, value := range model {
		if !p.IsSecret(name) {
			masked[name] = value
			continue
		}
		masked[name] = commitmentAsInt64(value, salt)
	}
	return masked
}

// NewSalt draws a fresh per-proof masking salt.
func NewSalt() ([16]byte, error) {
	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return salt, err
	}
	return salt, nil
}

// commitmentAsInt64 folds SHA-256(value‖salt) down to an int64 so it
// fits the same model map the solver already returns; the full 32-byte
// commitment is recoverable via CommitmentHex for anything that needs
// to transmit or compare it directly.
func commitmentAsInt64(value int64, salt [16]byte) int64 {
	sum := commitment(value, salt)
	return int64(binary.BigEndian.Uint64(sum[:8]))
}

// CommitmentHex returns the full hex-encoded SHA-256(value‖salt)
// commitment for value, for callers that need the uncollapsed digest.
func CommitmentHex(value int64, salt [16]byte) string {
	sum := commitment(value, salt)
	return hex.EncodeToString(sum[:])
}

func commitment(value int64, salt [16]byte) [32]byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(value))
	h := sha256.New()
	h.Write(buf[:])
	h.Write(salt[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
