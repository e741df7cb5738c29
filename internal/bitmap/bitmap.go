// Package bitmap implements the sparse, lazily page-allocated 2^32-bit set
// used by the receive engine to detect repeat source addresses.
//
// Ownership is exclusive to the receive thread (spec.md section 3): this
// type performs no internal synchronization, the same way the teacher's
// per-session counters document single-owner access in prose rather than
// locking (internal/bfd/session.go's "Per-session atomic counters" use
// atomics only because *multiple* goroutines read them; here there is
// exactly one reader and one writer, both the receive thread, so no
// synchronization primitive is warranted at all).
package bitmap

import "math/bits"

// pageBits is the number of bits held in one lazily-allocated page:
// 2^16 bits = 8 KiB. With 2^16 possible pages, the full address space is
// 2^16 * 2^16 = 2^32 bits, matching spec.md's "2^16 pages x 2^16 bits"
// sizing note.
const (
	pageBits  = 1 << 16
	pageWords = pageBits / 64
	pageCount = 1 << 16
)

// Bitmap is a sparse bit-set spanning the full uint32 address space. The
// zero value is ready to use; pages are allocated on first write.
type Bitmap struct {
	pages [pageCount][]uint64
}

// New returns an empty Bitmap. Equivalent to pbm_init in the reference
// implementation.
func New() *Bitmap {
	return &Bitmap{}
}

func split(addr uint32) (page int, word int, bit uint) {
	page = int(addr / pageBits)
	within := addr % pageBits
	word = int(within / 64)
	bit = uint(within % 64)
	return
}

// Set marks addr as seen, allocating its backing page if this is the
// page's first write.
func (b *Bitmap) Set(addr uint32) {
	page, word, bit := split(addr)
	if b.pages[page] == nil {
		b.pages[page] = make([]uint64, pageWords)
	}
	b.pages[page][word] |= 1 << bit
}

// Test reports whether addr has been marked via Set. Unallocated pages
// report false for every address they would cover.
func (b *Bitmap) Test(addr uint32) bool {
	page, word, bit := split(addr)
	if b.pages[page] == nil {
		return false
	}
	return b.pages[page][word]&(1<<bit) != 0
}

// Popcount returns the total number of addresses marked via Set, across
// every allocated page. Used to check the bitmap-monotonicity invariant:
// success_unique must equal Popcount() (spec.md section 8, property 4).
func (b *Bitmap) Popcount() uint64 {
	var n uint64
	for _, page := range b.pages {
		if page == nil {
			continue
		}
		for _, w := range page {
			n += uint64(bits.OnesCount64(w))
		}
	}
	return n
}
