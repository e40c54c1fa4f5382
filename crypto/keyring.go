package crypto

import (
	"crypto/ed25519"
	"fmt"
	"sync"

	"golang.org/x/crypto/sha3"
)

// Keyring is the default Provider. It keeps ed25519 keypairs for every
// node_id it has been told about and uses SHA3-256 (golang.org/x/crypto)
// only for the wire-transport checksum — it is
// never used for protocol-level hashing, which always goes through
// crypto/sha256 at the call site (merkle tree, proof hash, block digest).
type Keyring struct {
	mu   sync.RWMutex
	keys map[string]ed25519.PrivateKey
}

func NewKeyring() *Keyring {
	return &Keyring{keys: make(map[string]ed25519.PrivateKey)}
}

// Generate creates and stores a fresh keypair for nodeID, returning its
// public key. Regenerating for an existing nodeID replaces the old key.
func (k *Keyring) Generate(nodeID string) (ed25519.PublicKey, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: generate key for %q: %w", nodeID, err)
	}
	k.mu.Lock()
	k.keys[nodeID] = priv
	k.mu.Unlock()
	return pub, nil
}

// Import installs an existing private key for nodeID (e.g. loaded from a
// keystore file). Not part of the Provider interface; used by tests and
// node bootstrap.
func (k *Keyring) Import(nodeID string, priv ed25519.PrivateKey) {
	k.mu.Lock()
	k.keys[nodeID] = priv
	k.mu.Unlock()
}

func (k *Keyring) PublicKey(nodeID string) (ed25519.PublicKey, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	priv, ok := k.keys[nodeID]
	if !ok {
		return nil, false
	}
	return priv.Public().(ed25519.PublicKey), true
}

func (k *Keyring) Checksum4(payload []byte) ([4]byte, error) {
	h := sha3.New256()
	_, _ = h.Write(payload)
	var out [4]byte
	copy(out[:], h.Sum(nil)[:4])
	return out, nil
}

func (k *Keyring) Sign(nodeID string, digest [32]byte) ([]byte, error) {
	k.mu.RLock()
	priv, ok := k.keys[nodeID]
	k.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("crypto: no key registered for node %q", nodeID)
	}
	return ed25519.Sign(priv, digest[:]), nil
}

func (k *Keyring) Verify(pubkey []byte, sig []byte, digest [32]byte) bool {
	if len(pubkey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pubkey), digest[:], sig)
}

var _ Provider = (*Keyring)(nil)
