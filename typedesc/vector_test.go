package typedesc

import (
	"bytes"
	"strconv"
	"testing"
)

func TestVectorIndexBounds(t *testing.T) {
	vt := NewVectorType(4, NewIntType(8, false))
	if vt.InlineSize() != 32 {
		t.Fatalf("InlineSize() = %d, want 32", vt.InlineSize())
	}
	if !vt.SubobjectExists(nil, 0, 0, "3") {
		t.Fatalf("index 3 should exist in a 4-element vector")
	}
	if vt.SubobjectExists(nil, 0, 0, "4") {
		t.Fatalf("index 4 should not exist in a 4-element vector")
	}
	if vt.SubobjectExists(nil, 0, 0, "-1") {
		t.Fatalf("negative index should not exist")
	}
	if vt.SubobjectExists(nil, 0, 0, "not-a-number") {
		t.Fatalf("non-numeric selector should not exist")
	}
}

func TestVectorElementOffsets(t *testing.T) {
	vt := NewVectorType(4, NewIntType(8, false))
	for i := 0; i < 4; i++ {
		_, off, _, err := vt.Subobject(nil, 0, 100, strconv.Itoa(i))
		if err != nil {
			t.Fatalf("Subobject(%d): %v", i, err)
		}
		want := 100 + i*8
		if off != want {
			t.Fatalf("elem %d offset = %d, want %d", i, off, want)
		}
	}
}

func TestVectorOutOfRangeIsNoSuchChild(t *testing.T) {
	vt := NewVectorType(4, NewIntType(8, false))
	if _, _, _, err := vt.Subobject(nil, 0, 0, "9"); err == nil {
		t.Fatalf("Subobject(9) on a 4-element vector should fail")
	}
}

func TestVectorDeparse(t *testing.T) {
	vt := NewVectorType(3, NewIntType(8, false))
	var buf bytes.Buffer
	vt.Deparse(&buf)
	if buf.String() != "vector(3, uint(8))" {
		t.Fatalf("Deparse = %q", buf.String())
	}
}
