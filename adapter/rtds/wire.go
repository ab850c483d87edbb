package rtds

import (
	"encoding/binary"
	"math"
)

// encodeFloats serialises vals as big-endian IEEE-754 single-precision
// floats, regardless of host byte order (§4.6's "byte-swapped to
// big-endian on little-endian hosts"; on a big-endian host this is a
// no-op because binary.BigEndian already matches the host layout).
func encodeFloats(vals []float32) []byte {
	out := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.BigEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// decodeFloats parses a big-endian byte slice of length 4*n into n
// float32 values. It panics if len(buf) is not a multiple of 4 — a
// framing bug upstream, not a data error.
func decodeFloats(buf []byte) []float32 {
	if len(buf)%4 != 0 {
		panic("rtds: decodeFloats: buffer length not a multiple of 4")
	}
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.BigEndian.Uint32(buf[i*4:]))
	}
	return out
}
