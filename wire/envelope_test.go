package wire

import (
	"bytes"
	"testing"

	"aethel.dev/node/crypto"
)

func TestWriteReadEnvelopeRoundTrip(t *testing.T) {
	kr := crypto.NewKeyring()
	var buf bytes.Buffer
	if err := WriteEnvelope(&buf, kr, 0xAE7E1, "pre-prepare", []byte("payload-bytes")); err != nil {
		t.Fatalf("WriteEnvelope: %v", err)
	}
	env, rerr := ReadEnvelope(&buf, kr, 0xAE7E1)
	if rerr != nil {
		t.Fatalf("ReadEnvelope: %v", rerr)
	}
	if env.Command != "pre-prepare" || string(env.Payload) != "payload-bytes" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestReadEnvelopeRejectsMagicMismatch(t *testing.T) {
	kr := crypto.NewKeyring()
	var buf bytes.Buffer
	WriteEnvelope(&buf, kr, 1, "cmd", nil)
	_, rerr := ReadEnvelope(&buf, kr, 2)
	if rerr == nil || !rerr.Disconnect {
		t.Fatalf("expected magic mismatch to disconnect, got %v", rerr)
	}
}

func TestReadEnvelopeDetectsChecksumTamper(t *testing.T) {
	kr := crypto.NewKeyring()
	var buf bytes.Buffer
	WriteEnvelope(&buf, kr, 1, "cmd", []byte("hello"))
	raw := buf.Bytes()
	raw[len(raw)-1] ^= 0xFF // corrupt payload after checksum was computed
	_, rerr := ReadEnvelope(bytes.NewReader(raw), kr, 1)
	if rerr == nil || rerr.Disconnect {
		t.Fatalf("expected checksum mismatch (no disconnect), got %v", rerr)
	}
}
