// Package audio converts browser microphone samples into the LINEAR16 format
// expected by speech recognizers.
package audio

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrOddLength is returned when a byte buffer cannot hold whole samples.
var ErrOddLength = errors.New("audio: buffer length is not a multiple of the sample size")

// Float32ToLinear16 converts normalized [-1,1] float samples to 16-bit signed
// little-endian PCM. Out-of-range samples are clipped; NaN becomes silence.
func Float32ToLinear16(samples []float32) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(floatToInt16(s)))
	}
	return out
}

func floatToInt16(s float32) int16 {
	if s != s { // NaN
		return 0
	}
	v := math.Max(-1, math.Min(1, float64(s)))
	if v < 0 {
		return int16(math.Round(v * 32768))
	}
	return int16(math.Round(v * 32767))
}

// DecodeFloat32 parses little-endian IEEE-754 float32 samples, the format of
// binary frames sent by the practice page's audio worklet.
func DecodeFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, ErrOddLength
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out, nil
}

// EncodeFloat32 is the inverse of DecodeFloat32.
func EncodeFloat32(samples []float32) []byte {
	out := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(s))
	}
	return out
}

// Linear16ToFloat32 converts 16-bit signed little-endian PCM to normalized
// float samples.
func Linear16ToFloat32(b []byte) ([]float32, error) {
	if len(b)%2 != 0 {
		return nil, ErrOddLength
	}
	out := make([]float32, len(b)/2)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(b[2*i:]))
		if v < 0 {
			out[i] = float32(v) / 32768
		} else {
			out[i] = float32(v) / 32767
		}
	}
	return out, nil
}
