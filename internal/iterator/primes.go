package iterator

import "math/big"

// minGroupOrder is the smallest size the cyclic group must exceed, per
// spec.md section 4.2: "a multiplicative group modulo a prime just above
// 2^32". The group used is Z*_p, of order p-1, so p itself must exceed
// 2^32 by enough that p-1 still covers the full IPv4 address space.
const minGroupOrder = 1 << 32

// NewParams returns the multiplicative-group parameters for a full
// Internet-wide scan: the smallest prime greater than 2^32, and a
// primitive root of that prime.
func NewParams() (Params, error) {
	return NewParamsAbove(minGroupOrder)
}

// NewParamsAbove returns group parameters for the smallest prime strictly
// greater than min. Exposed so tests can build a tiny synthetic group
// instead of paying for a 2^32-scale primitive-root search.
func NewParamsAbove(min uint64) (Params, error) {
	p := nextPrime(min)
	g, err := primitiveRoot(p)
	if err != nil {
		return Params{}, err
	}
	return Params{Prime: p, Root: g}, nil
}

// Params holds the fixed (prime, primitive root) pair identifying one
// cyclic group. The same Params must be used by every shard and sender in
// a scan: it (together with the shared seed exponent) is what makes the
// shards partition the group without overlap.
type Params struct {
	Prime uint64
	Root  uint64
}

func nextPrime(min uint64) uint64 {
	n := new(big.Int).SetUint64(min + 1)
	if n.Bit(0) == 0 {
		n.Add(n, big.NewInt(1))
	}
	for !n.ProbablyPrime(32) {
		n.Add(n, big.NewInt(2))
	}
	return n.Uint64()
}

// primitiveRoot finds a generator of Z*_p by factoring p-1 via trial
// division and testing small candidates g against each prime factor q of
// p-1: g is primitive iff g^((p-1)/q) != 1 (mod p) for every q.
//
// Trial division is practical here because p-1 is at most on the order of
// 2^33, so its factors are found within a sqrt(p-1) ~= 2^16.5 search, and
// this runs exactly once per scan process (spec.md's validate_init-style
// one-shot setup), never per packet.
func primitiveRoot(p uint64) (uint64, error) {
	order := p - 1
	factors := primeFactors(order)

	bigP := new(big.Int).SetUint64(p)
	bigOrder := new(big.Int).SetUint64(order)
	one := big.NewInt(1)

	for g := uint64(2); g < p; g++ {
		bigG := new(big.Int).SetUint64(g)
		isRoot := true
		for _, q := range factors {
			exp := new(big.Int).Div(bigOrder, new(big.Int).SetUint64(q))
			if new(big.Int).Exp(bigG, exp, bigP).Cmp(one) == 0 {
				isRoot = false
				break
			}
		}
		if isRoot {
			return g, nil
		}
	}
	return 0, errNoPrimitiveRoot
}

func primeFactors(n uint64) []uint64 {
	var factors []uint64
	for d := uint64(2); d*d <= n; d++ {
		if n%d == 0 {
			factors = append(factors, d)
			for n%d == 0 {
				n /= d
			}
		}
	}
	if n > 1 {
		factors = append(factors, n)
	}
	return factors
}
