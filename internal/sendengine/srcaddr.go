package sendengine

import "crypto/rand"

// SrcAddrRange reproduces get_src_ip's source-address rotation,
// including the exclusive/inclusive modulus discrepancy spec.md section 9
// design note 4 requires preserving verbatim: the random starting offset
// is taken modulo (last-first), excluding the top address, while the
// address count used for the per-packet rotation is last-first+1,
// including it. Reproduce as-is rather than silently fixing it.
type SrcAddrRange struct {
	first, last uint32
	numAddrs    uint32
	offset      uint32
	single      bool
}

// NewSrcAddrRange draws the random starting offset once, matching the
// original's one-shot aesrand draw at send_init time.
func NewSrcAddrRange(first, last uint32) (*SrcAddrRange, error) {
	if first == last {
		return &SrcAddrRange{first: first, last: last, numAddrs: 1, single: true}, nil
	}

	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return nil, err
	}
	raw := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])

	return &SrcAddrRange{
		first:    first,
		last:     last,
		numAddrs: last - first + 1, // inclusive, per get_src_ip
		offset:   raw % (last - first), // exclusive, per send_init — preserved verbatim
	}, nil
}

// SrcIP returns the source address for destination dst and sub-probe
// index i, per get_src_ip: (dst + offset + i) mod numAddrs + first, with
// the single-address case short-circuited.
func (r *SrcAddrRange) SrcIP(dst uint32, i int) uint32 {
	if r.single {
		return r.first
	}
	return (dst+r.offset+uint32(i))%r.numAddrs + r.first
}
