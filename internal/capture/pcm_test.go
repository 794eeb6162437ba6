package capture

import (
	"reflect"
	"testing"
)

func TestPCMRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 12345}
	bytes := Int16ToBytesLE(samples)
	if len(bytes) != len(samples)*2 {
		t.Fatalf("expected %d bytes, got %d", len(samples)*2, len(bytes))
	}

	back, err := BytesToInt16LE(bytes)
	if err != nil {
		t.Fatalf("BytesToInt16LE returned error: %v", err)
	}
	if !reflect.DeepEqual(back, samples) {
		t.Fatalf("round trip mismatch: %v != %v", back, samples)
	}
}

func TestBytesToInt16LERejectsOddLength(t *testing.T) {
	if _, err := BytesToInt16LE([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for odd byte length")
	}
}

func TestInt16ToBytesLELayout(t *testing.T) {
	got := Int16ToBytesLE([]int16{0x0102})
	if got[0] != 0x02 || got[1] != 0x01 {
		t.Fatalf("expected little-endian layout, got %v", got)
	}
}
