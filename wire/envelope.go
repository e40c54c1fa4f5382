// Package wire implements the transport framing and message types
// exchanged between Aethel nodes: a fixed-prefix envelope carrying
// PBFT PRE-PREPARE / PREPARE / COMMIT payloads, plus the canonical
// ProofBlock digest.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"unicode"

	"aethel.dev/node/crypto"
)

const (
	// PrefixBytes is the fixed header length for every envelope:
	// 4-byte magic, 12-byte command, 4-byte length, 4-byte checksum.
	PrefixBytes  = 24
	CommandBytes = 12

	// MaxPayloadBytes bounds a single envelope's payload; a ProofBlock
	// with BLOCK_SIZE proofs at the §4.1 complexity ceiling comfortably
	// fits well under this.
	MaxPayloadBytes = 8_388_608
)

// Envelope is one framed wire message.
type Envelope struct {
	Magic   uint32
	Command string
	Payload []byte
}

// ReadError conveys how the caller should treat a malformed envelope:
// whether to disconnect the peer and by how much to raise its ban
// score.
type ReadError struct {
	Err           error
	BanScoreDelta int
	Disconnect    bool
}

func (e *ReadError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func encodeCommand(cmd string) ([CommandBytes]byte, error) {
	var out [CommandBytes]byte
	if cmd == "" {
		return out, fmt.Errorf("wire: empty command")
	}
	if len(cmd) > CommandBytes {
		return out, fmt.Errorf("wire: command too long")
	}
	for i := 0; i < len(cmd); i++ {
		c := cmd[i]
		if c >= 0x80 || c == 0x00 || !unicode.IsPrint(rune(c)) {
			return out, fmt.Errorf("wire: command contains non-printable ASCII")
		}
		out[i] = c
	}
	return out, nil
}

func decodeCommand(b [CommandBytes]byte) (string, error) {
	n := CommandBytes
	for i := 0; i < CommandBytes; i++ {
		if b[i] == 0x00 {
			n = i
			break
		}
	}
	for i := n; i < CommandBytes; i++ {
		if b[i] != 0x00 {
			return "", fmt.Errorf("wire: command not NUL-right-padded")
		}
	}
	cmd := string(b[:n])
	if cmd == "" {
		return "", fmt.Errorf("wire: empty command")
	}
	return cmd, nil
}

// WriteEnvelope frames and writes a single envelope to w.
func WriteEnvelope(w io.Writer, cp crypto.Provider, magic uint32, command string, payload []byte) error {
	if cp == nil {
		return fmt.Errorf("wire: nil crypto provider")
	}
	cmd12, err := encodeCommand(command)
	if err != nil {
		return err
	}
	if uint64(len(payload)) > MaxPayloadBytes {
		return fmt.Errorf("wire: payload too large")
	}
	c4, err := cp.Checksum4(payload)
	if err != nil {
		return err
	}

	var hdr [PrefixBytes]byte
	binary.BigEndian.PutUint32(hdr[0:4], magic)
	copy(hdr[4:16], cmd12[:])
	binary.LittleEndian.PutUint32(hdr[16:20], uint32(len(payload)))
	copy(hdr[20:24], c4[:])

	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err = w.Write(payload)
	return err
}

// ReadEnvelope reads exactly one envelope from r.
//
// Policy: magic mismatch disconnects
// without a ban (likely a misconfigured peer, not an attacker);
// oversize declared length disconnects immediately, before the
// attacker-controlled payload is ever read; checksum mismatch drops
// the message and raises ban score without disconnecting; truncation
// disconnects with a larger ban score bump.
func ReadEnvelope(r io.Reader, cp crypto.Provider, expectedMagic uint32) (*Envelope, *ReadError) {
	if cp == nil {
		return nil, &ReadError{Err: fmt.Errorf("wire: nil crypto provider"), Disconnect: true}
	}

	var hdr [PrefixBytes]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, &ReadError{Err: err, Disconnect: true}
	}

	magic := binary.BigEndian.Uint32(hdr[0:4])
	if magic != expectedMagic {
		return nil, &ReadError{Err: fmt.Errorf("wire: magic mismatch"), Disconnect: true}
	}

	var cmdBytes [CommandBytes]byte
	copy(cmdBytes[:], hdr[4:16])
	cmd, err := decodeCommand(cmdBytes)
	if err != nil {
		return nil, &ReadError{Err: err, BanScoreDelta: 10}
	}

	payloadLen := binary.LittleEndian.Uint32(hdr[16:20])
	if payloadLen > MaxPayloadBytes {
		return nil, &ReadError{Err: fmt.Errorf("wire: payload length exceeds MaxPayloadBytes"), Disconnect: true}
	}

	var expectedC4 [4]byte
	copy(expectedC4[:], hdr[20:24])

	payload := make([]byte, int(payloadLen))
	if payloadLen > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, &ReadError{Err: err, BanScoreDelta: 20, Disconnect: true}
		}
	}

	computedC4, err := cp.Checksum4(payload)
	if err != nil {
		return nil, &ReadError{Err: err, Disconnect: true}
	}
	if !bytes.Equal(expectedC4[:], computedC4[:]) {
		return nil, &ReadError{Err: fmt.Errorf("wire: checksum mismatch"), BanScoreDelta: 10}
	}

	return &Envelope{Magic: magic, Command: cmd, Payload: payload}, nil
}
