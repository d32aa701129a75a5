package bloom

import (
	"fmt"
	"testing"
)

func TestNoFalseNegatives(t *testing.T) {
	f := New(1000, 0.01)

	keys := make([][]byte, 1000)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("key-%d", i))
		f.Add(keys[i])
	}

	for _, k := range keys {
		if !f.Test(k) {
			t.Fatalf("false negative for %q", k)
		}
	}
}

func TestEmptyFilterRejectsEverything(t *testing.T) {
	f := New(100, 0.01)

	if f.Test([]byte("absent")) {
		t.Fatal("expected miss on empty filter")
	}
}

func TestOnlineGrowthExtendsArray(t *testing.T) {
	f := New(1, 0.5) // tiny hint: a one-byte array

	before := len(f.Bits())

	for i := 0; i < 256; i++ {
		f.Add([]byte(fmt.Sprintf("k%d", i)))
	}

	if len(f.Bits()) < before {
		t.Fatalf("bit array shrank: %d -> %d", before, len(f.Bits()))
	}

	// Add indexes modulo m, which already spans the whole array, so growth
	// is driven directly here.
	f.growTo(uint64(before) + 3)
	if len(f.Bits()) != before+4 {
		t.Fatalf("growTo did not extend the array: got %d bytes, want %d", len(f.Bits()), before+4)
	}
	if f.m != uint64(len(f.Bits()))*8 {
		t.Fatalf("m not kept in sync with len(bits): m=%d, 8*len=%d", f.m, uint64(len(f.Bits()))*8)
	}
}

func TestRoundTripSerialization(t *testing.T) {
	f := New(500, 0.01)

	keys := [][]byte{[]byte("alpha"), []byte("beta"), []byte("gamma")}
	for _, k := range keys {
		f.Add(k)
	}

	reloaded := FromBytes(f.Bits(), f.K())

	for _, k := range keys {
		if !reloaded.Test(k) {
			t.Fatalf("reloaded filter lost membership for %q", k)
		}
	}
}

func TestHash64Deterministic(t *testing.T) {
	a := Hash64([]byte("same-key"))
	b := Hash64([]byte("same-key"))
	if a != b {
		t.Fatalf("hash not deterministic: %d != %d", a, b)
	}

	c := Hash64([]byte("different-key"))
	if a == c {
		t.Fatal("distinct keys hashed to the same value (statistically implausible, check wiring)")
	}
}
