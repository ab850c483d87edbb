package simserver

import (
	"encoding/binary"
	"math"
)

// encodeFloatsBE/decodeFloatsBE serialise the RTDS-mirror dialect's
// float vectors, always big-endian regardless of host — mirrors
// adapter/rtds/wire.go's peer-side framing exactly.
func encodeFloatsBE(vals []float32) []byte {
	out := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.BigEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func decodeFloatsBE(buf []byte) []float32 {
	if len(buf)%4 != 0 {
		panic("simserver: misaligned float buffer")
	}
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.BigEndian.Uint32(buf[i*4:]))
	}
	return out
}

// encodeFloatsNative/decodeFloatsNative serialise the framed
// simulation dialect's vectors host-endian on both sides, per §6.
func encodeFloatsNative(vals []float32) []byte {
	out := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.NativeEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func decodeFloatsNative(buf []byte) []float32 {
	if len(buf)%4 != 0 {
		panic("simserver: misaligned float buffer")
	}
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.NativeEndian.Uint32(buf[i*4:]))
	}
	return out
}
