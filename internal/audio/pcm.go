package audio

import (
	"encoding/binary"
	"math"
)

// PutFloat32s writes samples into dst as little-endian float32 bytes.
// dst must have capacity >= len(samples)*4. Returns the used portion.
func PutFloat32s(dst []byte, samples []float32) []byte {
	for i, s := range samples {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(s))
	}
	return dst[:len(samples)*4]
}

// Float32sToBytes converts float32 samples to a new little-endian byte slice.
func Float32sToBytes(samples []float32) []byte {
	return PutFloat32s(make([]byte, len(samples)*4), samples)
}

// PCM16ToIntsInto decodes s16le bytes into dst, growing it only when its
// capacity is too small. Returns the used portion.
func PCM16ToIntsInto(dst []int, pcm []byte) []int {
	n := len(pcm) / 2
	if cap(dst) < n {
		dst = make([]int, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	return dst
}

// BytesToInt16 converts s16le byte slice to int16 samples.
func BytesToInt16(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}
