// Package keycodec packs and unpacks the composite byte-string keys the
// storage substrate compares with plain memcmp ordering: fixed-width
// big-endian integers so numeric fields sort numerically, and
// length-prefixed strings so a string field never swallows the bytes
// that follow it.
package keycodec

import (
	"encoding/binary"
	"fmt"
)

// AppendUint64 appends v in big-endian order. Big-endian, rather than
// the machine's native order, is what makes byte-lexicographic
// comparison of the packed key agree with numeric comparison of v.
func AppendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

// ReadUint64 reads the 8-byte big-endian integer at the front of buf
// and returns the remainder.
func ReadUint64(buf []byte) (uint64, []byte, error) {
	if len(buf) < 8 {
		return 0, nil, fmt.Errorf("keycodec: short buffer for uint64 (need 8, have %d)", len(buf))
	}
	return binary.BigEndian.Uint64(buf), buf[8:], nil
}

// AppendString appends a varint length prefix followed by s's bytes.
func AppendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

// ReadString reads a length-prefixed string from the front of buf and
// returns the remainder.
func ReadString(buf []byte) (string, []byte, error) {
	n, rest, err := readUvarint(buf)
	if err != nil {
		return "", nil, err
	}
	if uint64(len(rest)) < n {
		return "", nil, fmt.Errorf("keycodec: short buffer for string (need %d, have %d)", n, len(rest))
	}
	return string(rest[:n]), rest[n:], nil
}

func readUvarint(buf []byte) (uint64, []byte, error) {
	v, n := binary.Uvarint(buf)
	if n <= 0 {
		return 0, nil, fmt.Errorf("keycodec: invalid varint length prefix")
	}
	return v, buf[n:], nil
}
