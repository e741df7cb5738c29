package iterator

import "math/bits"

// mulmod returns (a*b) mod p without overflowing uint64: a and b are each
// below a ~2^33 prime, so their product can exceed 2^64 by a few bits,
// which math/bits.Mul64/Div64 handle via the 128-bit intermediate that a
// plain "a * b % p" would silently wrap.
func mulmod(a, b, p uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	_, rem := bits.Div64(hi, lo, p)
	return rem
}

// modexp returns (base^exp) mod p.
func modexp(base, exp, p uint64) uint64 {
	result := uint64(1) % p
	base %= p
	for exp > 0 {
		if exp&1 == 1 {
			result = mulmod(result, base, p)
		}
		base = mulmod(base, base, p)
		exp >>= 1
	}
	return result
}
