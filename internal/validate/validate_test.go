package validate_test

import (
	"testing"

	"github.com/netreach/gozmap/internal/validate"
)

func TestGenDeterministic(t *testing.T) {
	v, err := validate.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	a := v.Gen(0x0A000001, 0xC0000201)
	b := v.Gen(0x0A000001, 0xC0000201)

	if !a.Equal(b) {
		t.Fatalf("Gen(a,b) not deterministic within one process: %x != %x", a, b)
	}
}

func TestGenAsymmetric(t *testing.T) {
	v, err := validate.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	fwd := v.Gen(0x0A000001, 0xC0000201)
	rev := v.Gen(0xC0000201, 0x0A000001)

	if fwd.Equal(rev) {
		t.Fatalf("Gen(src,dst) == Gen(dst,src): validator is not direction-sensitive")
	}
}

func TestKeysDifferAcrossValidators(t *testing.T) {
	v1, err := validate.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	v2, err := validate.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	a := v1.Gen(1, 2)
	b := v2.Gen(1, 2)
	if a.Equal(b) {
		t.Fatalf("two independently keyed validators produced the same vector; key draw may not be random")
	}
}

func TestSrcPortWithinRange(t *testing.T) {
	v, err := validate.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const first, last = 32768, 61000
	for dst := uint32(0); dst < 5000; dst++ {
		vec := v.Gen(10, dst)
		port := vec.SrcPort(first, last)
		if port < first || port > last {
			t.Fatalf("SrcPort() = %d, want in [%d,%d]", port, first, last)
		}
	}
}

func TestWordSplitsVector(t *testing.T) {
	v, err := validate.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	vec := v.Gen(7, 9)

	var reconstructed validate.Vector
	for i := 0; i < validate.VectorLen/4; i++ {
		w := vec.Word(i)
		reconstructed[i*4] = byte(w >> 24)
		reconstructed[i*4+1] = byte(w >> 16)
		reconstructed[i*4+2] = byte(w >> 8)
		reconstructed[i*4+3] = byte(w)
	}
	if !vec.Equal(reconstructed) {
		t.Fatalf("Word() does not reconstruct the vector bytes: %x != %x", vec, reconstructed)
	}
}
