// Package validate implements the keyed pseudorandom function that binds a
// probe this scanner sent to the response it elicits, without storing any
// per-target state.
//
// The construction is grounded on the teacher's authentication code
// (internal/bfd/auth.go in the reference BFD daemon this module was
// adapted from), which keys a digest over wire fields and compares it in
// constant time via crypto/subtle. Here the "digest" is the validation
// vector itself: HMAC-SHA256 over the (src, dst) address pair, keyed by a
// process-lifetime secret drawn from crypto/rand exactly once, the same
// one-shot crypto/rand draw pattern used by that teacher's
// DiscriminatorAllocator.Allocate (internal/bfd/discriminator.go).
package validate

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
)

// VectorLen is the length in bytes of a validation vector: 16 bytes (128
// bits), a multiple of 32 bits and at least the 16-byte floor spec.md
// section 4.1 requires.
const VectorLen = 16

// Vector is a fixed-size validation vector.
type Vector [VectorLen]byte

// Validator generates deterministic, keyed validation vectors for
// (src, dst) address pairs. The zero value is not usable; construct with
// New.
type Validator struct {
	key []byte
}

// New draws a random key from the OS entropy source and returns a ready
// Validator. This corresponds to validate_init in spec.md section 4.1: it
// is called once per process, before any send or receive thread starts.
func New() (*Validator, error) {
	key := make([]byte, sha256.Size)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("draw validator key: %w", err)
	}
	return &Validator{key: key}, nil
}

// Gen computes validate_gen(src, dst): a deterministic function of the
// ordered pair (src, dst) under the process key. Swapping src and dst (as
// the receive engine does to recover a probe's original direction) yields
// a different vector with overwhelming probability, which is what lets the
// send and receive sides agree on a vector without exchanging one.
func (v *Validator) Gen(src, dst uint32) Vector {
	var msg [8]byte
	binary.BigEndian.PutUint32(msg[0:4], src)
	binary.BigEndian.PutUint32(msg[4:8], dst)

	mac := hmac.New(sha256.New, v.key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	var out Vector
	copy(out[:], sum[:VectorLen])
	return out
}

// SrcPort returns the source port this vector selects from [first, last],
// per spec.md section 4.1: "the first 16 bits of the validation vector
// select a source port from the configured port range."
func (v Vector) SrcPort(first, last uint16) uint16 {
	span := uint32(last) - uint32(first) + 1
	word := binary.BigEndian.Uint16(v[0:2])
	return first + uint16(uint32(word)%span)
}

// Word returns the vector's i'th 32-bit big-endian word, used by probe
// modules to seed probe-specific fields (TCP ISN, ICMP id/seq, etc.), per
// spec.md section 4.1.
func (v Vector) Word(i int) uint32 {
	return binary.BigEndian.Uint32(v[i*4 : i*4+4])
}

// Equal reports whether two vectors are identical, compared in constant
// time so that a validate_packet implementation doesn't leak timing
// information about how many leading bytes matched — the same defensive
// posture as the teacher's crypto/subtle.ConstantTimeCompare use for
// authentication digests.
func (v Vector) Equal(other Vector) bool {
	return subtle.ConstantTimeCompare(v[:], other[:]) == 1
}
