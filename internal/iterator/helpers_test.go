package iterator_test

import (
	"net/netip"
	"testing"

	"github.com/netreach/gozmap/internal/blacklist"
)

func newBlockAddr(t *testing.T, ip uint32) *blacklist.List {
	t.Helper()
	b := [4]byte{byte(ip >> 24), byte(ip >> 16), byte(ip >> 8), byte(ip)}
	bl := blacklist.New()
	bl.AddBlacklist(netip.PrefixFrom(netip.AddrFrom4(b), 32))
	return bl
}
