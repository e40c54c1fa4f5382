package wire

import (
	"crypto/sha256"
	"encoding/binary"

	"aethel.dev/node/proof"
)

// ProofBlock is the unit the PBFT engine proposes and finalizes, per
// spec §3's ConsensusState / ProofBlock model.
type ProofBlock struct {
	BlockID           string
	Timestamp         uint64
	Proofs            []proof.Proof
	PreviousBlockHash [32]byte
	ProposerID        string
	Signature         []byte
}

func appendLP(dst []byte, field []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(field)))
	dst = append(dst, lenBuf[:]...)
	return append(dst, field...)
}

// Digest computes `block_digest = SHA256(block_id ‖ u64(timestamp) ‖
// Σ proof_hash ‖ previous_block_hash ‖ proposer_id)` with every
// variable-length field length-prefixed (u32 big-endian), per spec §6.
// Σ proof_hash is the byte-wise sum of every contained proof's SHA-256
// hash, taken as a 32-byte big-endian accumulator so the digest does
// not depend on proof ordering within the block.
func (b ProofBlock) Digest() [32]byte {
	var buf []byte
	buf = appendLP(buf, []byte(b.BlockID))

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], b.Timestamp)
	buf = append(buf, ts[:]...)

	sum := sumProofHashes(b.Proofs)
	buf = append(buf, sum[:]...)

	buf = append(buf, b.PreviousBlockHash[:]...)
	buf = appendLP(buf, []byte(b.ProposerID))

	return sha256.Sum256(buf)
}

// sumProofHashes adds every proof hash together as a big 256-bit
// accumulator (byte-wise addition with carry), order-independent by
// construction.
func sumProofHashes(proofs []proof.Proof) [32]byte {
	var acc [32]byte
	for _, p := range proofs {
		h := proof.ProofHash(p)
		addInto(&acc, h)
	}
	return acc
}

func addInto(acc *[32]byte, h [32]byte) {
	var carry uint16
	for i := 31; i >= 0; i-- {
		sum := uint16(acc[i]) + uint16(h[i]) + carry
		acc[i] = byte(sum)
		carry = sum >> 8
	}
}

// ProofHashes returns the SHA-256 hash of each proof in the block, in
// order, for use as mempool removal keys after finalization.
func (b ProofBlock) ProofHashes() [][32]byte {
	out := make([][32]byte, len(b.Proofs))
	for i, p := range b.Proofs {
		out[i] = proof.ProofHash(p)
	}
	return out
}
