package wire

import (
	"encoding/binary"
	"fmt"
)

// AppendCompactSize encodes n as a Bitcoin-style CompactSize varint and
// appends it to dst. Nothing in the module calls it; PBFTMessage has
// no byte encoding of its own.
func AppendCompactSize(dst []byte, n uint64) []byte {
	switch {
	case n < 0xfd:
		return append(dst, byte(n))
	case n <= 0xffff:
		dst = append(dst, 0xfd)
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(n))
		return append(dst, b[:]...)
	case n <= 0xffff_ffff:
		dst = append(dst, 0xfe)
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(n))
		return append(dst, b[:]...)
	default:
		dst = append(dst, 0xff)
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], n)
		return append(dst, b[:]...)
	}
}

// EncodeCompactSize is the non-append convenience form.
func EncodeCompactSize(n uint64) []byte {
	return AppendCompactSize(nil, n)
}

// DecodeCompactSize decodes one CompactSize value from the front of
// buf, rejecting non-minimal encodings, and returns the value plus
// bytes consumed.
func DecodeCompactSize(buf []byte) (uint64, int, error) {
	if len(buf) == 0 {
		return 0, 0, fmt.Errorf("wire: empty CompactSize buffer")
	}
	tag := buf[0]
	switch {
	case tag < 0xfd:
		return uint64(tag), 1, nil
	case tag == 0xfd:
		if len(buf) < 3 {
			return 0, 0, fmt.Errorf("wire: truncated CompactSize (0xfd)")
		}
		v := binary.LittleEndian.Uint16(buf[1:3])
		if v < 0xfd {
			return 0, 0, fmt.Errorf("wire: non-minimal CompactSize (0xfd)")
		}
		return uint64(v), 3, nil
	case tag == 0xfe:
		if len(buf) < 5 {
			return 0, 0, fmt.Errorf("wire: truncated CompactSize (0xfe)")
		}
		v := binary.LittleEndian.Uint32(buf[1:5])
		if v <= 0xffff {
			return 0, 0, fmt.Errorf("wire: non-minimal CompactSize (0xfe)")
		}
		return uint64(v), 5, nil
	default:
		if len(buf) < 9 {
			return 0, 0, fmt.Errorf("wire: truncated CompactSize (0xff)")
		}
		v := binary.LittleEndian.Uint64(buf[1:9])
		if v <= 0xffff_ffff {
			return 0, 0, fmt.Errorf("wire: non-minimal CompactSize (0xff)")
		}
		return v, 9, nil
	}
}
