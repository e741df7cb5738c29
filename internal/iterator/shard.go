// Package iterator implements the cyclic-group walk of the IPv4 address
// space (spec.md section 4.2): a deterministic, state-free-to-store
// pseudorandom permutation of [0, 2^32) generated by repeated
// multiplication in Z*_p for a prime p just above 2^32, so that visiting
// every group element visits every IPv4 address exactly once without
// ever materializing the permutation.
//
// Sharding partitions this single walk across cooperating scanner
// processes and, within each process, across sender threads: thread t in
// shard s only ever visits exponents e0 + (s*S+t) + k*(T*S) for k =
// 0, 1, 2, ..., so the T*S threads across all shards partition the group
// with no overlap and no gaps.
package iterator

import (
	"errors"
	"net/netip"

	"github.com/netreach/gozmap/internal/blacklist"
)

var errNoPrimitiveRoot = errors.New("iterator: no primitive root found below prime")

// Config describes one (shard, sender) thread's position in the walk.
type Config struct {
	Params Params

	// Seed is the shared base exponent e0. Every shard and sender in one
	// scan must be constructed with the same Seed and Params for the
	// partition invariant to hold.
	Seed uint64

	TotalShards uint32
	ShardIndex  uint32
	Senders     int
	SenderIndex int

	// TargetFirst and TargetLast bound the IPv4 addresses this walk may
	// produce, inclusive.
	TargetFirst uint32
	TargetLast  uint32

	Blacklist *blacklist.List
}

// Shard walks the subsequence of the cyclic group assigned to one
// (shard, sender) pair, skipping group elements that fall outside the
// target range or the blacklist. It is not safe for concurrent use: each
// sender thread owns exactly one Shard.
type Shard struct {
	prime   uint64
	stepMul uint64
	start   uint64
	// stop is the group element one step past the last element of this
	// subsequence; reaching it ends the walk.
	stop uint64

	cur       uint64
	exhausted bool

	targetFirst, targetLast uint32
	blacklist               *blacklist.List
}

// NewShard constructs a Shard already positioned at its first valid IP
// (or exhausted, if the (shard, sender) subsequence contains none).
func NewShard(cfg Config) *Shard {
	offset := uint64(cfg.ShardIndex)*uint64(cfg.Senders) + uint64(cfg.SenderIndex)
	step := uint64(cfg.TotalShards) * uint64(cfg.Senders)

	s := &Shard{
		prime:       cfg.Params.Prime,
		stepMul:     modexp(cfg.Params.Root, step, cfg.Params.Prime),
		targetFirst: cfg.TargetFirst,
		targetLast:  cfg.TargetLast,
		blacklist:   cfg.Blacklist,
	}
	order := cfg.Params.Prime - 1
	if offset >= order {
		// The first exponent of this subsequence is already past the
		// group order, so it holds no element at all.
		s.exhausted = true
		return s
	}
	e0 := cfg.Seed%order + offset
	s.start = modexp(cfg.Params.Root, e0, cfg.Params.Prime)
	s.stop = s.start
	if step > 0 {
		// The subsequence holds the n exponents offset+k*step below the
		// group order.
		n := (order - offset + step - 1) / step
		s.stop = modexp(cfg.Params.Root, e0+n*step, cfg.Params.Prime)
	}
	s.cur = s.start
	s.resolveCur()
	return s
}

// valid reports whether group element v maps to an IP within bounds and
// outside the blacklist. Group elements live in [1, prime-1]; mapping
// v -> v-1 yields [0, prime-2], of which only [0, 2^32-1] are real IPv4
// addresses (the handful of elements at the very top of the group, where
// prime exceeds 2^32, have no IP and are always skipped).
func (s *Shard) valid(v uint64) (uint32, bool) {
	if v == 0 || v > 1<<32 {
		return 0, false
	}
	ip := uint32(v - 1)
	if ip == 0 {
		// All-zero is reserved as the exhaustion sentinel (spec.md
		// section 4.2) and is never itself a valid target.
		return 0, false
	}
	if ip < s.targetFirst || ip > s.targetLast {
		return 0, false
	}
	if !s.blacklist.Allowed(netip.AddrFrom4(toBytes(ip))) {
		return 0, false
	}
	return ip, true
}

func toBytes(ip uint32) [4]byte {
	return [4]byte{byte(ip >> 24), byte(ip >> 16), byte(ip >> 8), byte(ip)}
}

// resolveCur advances s.cur forward (without counting it as a produced
// step) until it lands on a valid IP, or the walk steps past the last
// element of its subsequence, meaning this (shard, sender) subsequence
// contains no valid address at all.
func (s *Shard) resolveCur() {
	if _, ok := s.valid(s.cur); ok {
		return
	}
	for {
		s.cur = mulmod(s.cur, s.stepMul, s.prime)
		if s.cur == s.stop {
			s.exhausted = true
			s.cur = 0
			return
		}
		if _, ok := s.valid(s.cur); ok {
			return
		}
	}
}

// CurIP returns the shard's current position without advancing,
// corresponding to shard_get_cur_ip. Returns 0 if the shard is exhausted.
func (s *Shard) CurIP() uint32 {
	if s.exhausted {
		return 0
	}
	ip, _ := s.valid(s.cur)
	return ip
}

// NextIP advances to the next valid IP and returns it, corresponding to
// shard_get_next_ip. Returns 0 once the walk steps past the last element
// of its subsequence, and on every call thereafter.
func (s *Shard) NextIP() uint32 {
	if s.exhausted {
		return 0
	}
	for {
		s.cur = mulmod(s.cur, s.stepMul, s.prime)
		if s.cur == s.stop {
			s.exhausted = true
			s.cur = 0
			return 0
		}
		if ip, ok := s.valid(s.cur); ok {
			return ip
		}
	}
}

// Exhausted reports whether the shard has produced its 0 sentinel.
func (s *Shard) Exhausted() bool {
	return s.exhausted
}
