package wire

import (
	"crypto/sha256"
	"fmt"
)

// MessageType discriminates a PBFT wire message, per spec §6:
// `{type: u8 ∈ {0:PrePrepare,1:Prepare,2:Commit}, ...}`.
type MessageType uint8

const (
	MsgPrePrepare MessageType = 0
	MsgPrepare    MessageType = 1
	MsgCommit     MessageType = 2
)

func (t MessageType) String() string {
	switch t {
	case MsgPrePrepare:
		return "PrePrepare"
	case MsgPrepare:
		return "Prepare"
	case MsgCommit:
		return "Commit"
	default:
		return fmt.Sprintf("MessageType(%d)", uint8(t))
	}
}

// PBFTMessage is the common envelope carried by every consensus
// message: view/sequence identify the round, SenderID + Signature
// authenticate it, and exactly one of Block (PrePrepare) or Digest
// (Prepare/Commit) is populated depending on Type.
type PBFTMessage struct {
	Type      MessageType
	View      uint64
	Sequence  uint64
	SenderID  string
	Block     *ProofBlock // populated iff Type == MsgPrePrepare
	Digest    [32]byte    // populated iff Type != MsgPrePrepare
	Signature []byte
}

// SignableDigest is the byte sequence a node signs and a verifier
// checks for a given message: view/sequence/sender/type plus whichever
// payload digest applies.
func (m PBFTMessage) SignableDigest() [32]byte {
	var payload [32]byte
	if m.Type == MsgPrePrepare && m.Block != nil {
		payload = m.Block.Digest()
	} else {
		payload = m.Digest
	}
	var buf []byte
	buf = append(buf, byte(m.Type))
	var vb, sb [8]byte
	putU64(vb[:], m.View)
	putU64(sb[:], m.Sequence)
	buf = append(buf, vb[:]...)
	buf = append(buf, sb[:]...)
	buf = appendLP(buf, []byte(m.SenderID))
	buf = append(buf, payload[:]...)
	return hash32(buf)
}

func putU64(dst []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		dst[i] = byte(v)
		v >>= 8
	}
}

func hash32(b []byte) [32]byte {
	return sha256.Sum256(b)
}
