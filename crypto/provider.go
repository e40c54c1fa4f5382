// Package crypto provides the narrow cryptographic surface used by the
// transport and validator-signing layers. Protocol-level hashing (Merkle
// tree, proof hash, block digest) always uses SHA-256 directly at its call
// sites, per spec; this package covers the two concerns that sit outside
// that fixed protocol hash: wire-transport checksums and validator
// signatures.
package crypto

// Provider is the crypto surface consensus and transport code depend on.
// Implementations may swap the signature scheme or transport-checksum hash
// without touching callers.
type Provider interface {
	// Checksum4 returns the first 4 bytes of a transport-integrity hash
	// over payload. Used only for wire framing (wire/envelope.go), never
	// for protocol-level hashing.
	Checksum4(payload []byte) ([4]byte, error)

	// Sign produces a detached signature over digest using the private key
	// held for nodeID.
	Sign(nodeID string, digest [32]byte) ([]byte, error)

	// Verify reports whether sig is a valid signature over digest by pubkey.
	Verify(pubkey []byte, sig []byte, digest [32]byte) bool
}
