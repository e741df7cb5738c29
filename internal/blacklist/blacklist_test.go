package blacklist_test

import (
	"net/netip"
	"strings"
	"testing"

	"github.com/netreach/gozmap/internal/blacklist"
)

func TestNilListAllowsEverything(t *testing.T) {
	var l *blacklist.List
	if !l.Allowed(netip.MustParseAddr("8.8.8.8")) {
		t.Fatalf("nil List must allow every address")
	}
}

func TestBlacklistExcludes(t *testing.T) {
	l := blacklist.New()
	l.AddBlacklist(netip.MustParsePrefix("10.0.0.0/8"))

	if l.Allowed(netip.MustParseAddr("10.1.2.3")) {
		t.Fatalf("address within blacklisted prefix must be disallowed")
	}
	if !l.Allowed(netip.MustParseAddr("11.1.2.3")) {
		t.Fatalf("address outside blacklist must be allowed")
	}
}

func TestWhitelistRestricts(t *testing.T) {
	l := blacklist.New()
	l.AddWhitelist(netip.MustParsePrefix("192.0.2.0/24"))

	if !l.Allowed(netip.MustParseAddr("192.0.2.5")) {
		t.Fatalf("address within whitelist must be allowed")
	}
	if l.Allowed(netip.MustParseAddr("198.51.100.5")) {
		t.Fatalf("address outside whitelist must be disallowed when a whitelist is set")
	}
}

func TestBlacklistOverridesWhitelist(t *testing.T) {
	l := blacklist.New()
	l.AddWhitelist(netip.MustParsePrefix("192.0.2.0/24"))
	l.AddBlacklist(netip.MustParsePrefix("192.0.2.128/25"))

	if !l.Allowed(netip.MustParseAddr("192.0.2.5")) {
		t.Fatalf("address in whitelist but not blacklist must be allowed")
	}
	if l.Allowed(netip.MustParseAddr("192.0.2.200")) {
		t.Fatalf("address in both whitelist and blacklist must be disallowed")
	}
}

func TestLoadBlacklistParsesCommentsAndBareAddrs(t *testing.T) {
	l := blacklist.New()
	input := "# comment\n\n10.0.0.0/8\n192.168.1.1\n"
	if err := l.LoadBlacklist(strings.NewReader(input)); err != nil {
		t.Fatalf("LoadBlacklist: %v", err)
	}
	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", l.Len())
	}
	if l.Allowed(netip.MustParseAddr("192.168.1.1")) {
		t.Fatalf("bare address line must be parsed as a /32")
	}
	if !l.Allowed(netip.MustParseAddr("192.168.1.2")) {
		t.Fatalf("neighboring address to a /32 entry must be allowed")
	}
}

func TestLoadBlacklistRejectsGarbage(t *testing.T) {
	l := blacklist.New()
	if err := l.LoadBlacklist(strings.NewReader("not-an-address\n")); err == nil {
		t.Fatalf("expected an error parsing a malformed line")
	}
}
