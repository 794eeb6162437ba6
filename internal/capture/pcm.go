package capture

import "fmt"

// BytesToInt16LE converts little-endian PCM bytes to interleaved samples.
func BytesToInt16LE(b []byte) ([]int16, error) {
	if len(b)%2 != 0 {
		return nil, fmt.Errorf("pcm byte length %d is not sample-aligned", len(b))
	}
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(uint16(b[2*i]) | uint16(b[2*i+1])<<8)
	}
	return out, nil
}

// Int16ToBytesLE converts interleaved samples to little-endian PCM bytes.
func Int16ToBytesLE(s []int16) []byte {
	out := make([]byte, len(s)*2)
	for i, v := range s {
		out[2*i] = byte(uint16(v))
		out[2*i+1] = byte(uint16(v) >> 8)
	}
	return out
}
