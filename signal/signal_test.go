package signal

import "testing"

func TestKeyOrdering(t *testing.T) {
	a := New("gen1", "V")
	b := New("gen1", "W")
	c := New("gen2", "A")

	if !a.Less(b) {
		t.Fatal("expected gen1.V < gen1.W")
	}
	if !b.Less(c) {
		t.Fatal("expected gen1.W < gen2.A")
	}
	if c.Less(a) {
		t.Fatal("expected gen2.A not less than gen1.V")
	}
}

func TestKeyValid(t *testing.T) {
	if !New("d", "s").Valid() {
		t.Fatal("expected valid key")
	}
	if New("", "s").Valid() || New("d", "").Valid() || New("", "").Valid() {
		t.Fatal("expected empty components to be invalid")
	}
}

func TestKeyEquality(t *testing.T) {
	a := New("gen1", "V")
	b := New("gen1", "V")
	if a != b {
		t.Fatal("expected equal keys to compare equal")
	}
	m := map[Key]float32{a: 1.0}
	if m[b] != 1.0 {
		t.Fatal("expected key to be usable as a map key across equal instances")
	}
}

func TestUnknownSentinelExactEquality(t *testing.T) {
	v := float32(1e8)
	if v != Unknown {
		t.Fatal("expected sentinel to compare exactly equal to 1e8")
	}
	// 99999992 is the largest float32 below 1e8 (spacing there is 8);
	// a literal such as 99999999.9 would round to 1e8 itself.
	near := float32(99999992)
	if near == Unknown {
		t.Fatal("a near-sentinel command value must not equal the sentinel")
	}
}
