package discovery

import (
	"net"
	"testing"
)

func TestSortIPsByPreference(t *testing.T) {
	ips := []net.IP{
		net.ParseIP("fe80::1"),
		net.ParseIP("127.0.0.1"),
		net.ParseIP("fd00::1"),
		net.ParseIP("192.168.1.20"),
		net.ParseIP("169.254.3.4"),
	}
	want := []string{"192.168.1.20", "fd00::1", "fe80::1", "169.254.3.4", "127.0.0.1"}

	got := SortIPsByPreference(ips)
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Errorf("got[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if ips[0].String() != "fe80::1" {
		t.Error("input slice was modified")
	}
}

func TestSortIPsByPreference_Single(t *testing.T) {
	ips := []net.IP{net.ParseIP("10.0.0.1")}
	if got := SortIPsByPreference(ips); len(got) != 1 || !got[0].Equal(ips[0]) {
		t.Errorf("SortIPsByPreference() = %v", got)
	}
}

func TestFilterIPs(t *testing.T) {
	ips := []net.IP{
		net.ParseIP("10.0.0.1"),
		net.ParseIP("fd00::1"),
		net.ParseIP("192.168.0.2"),
	}
	if v4 := FilterIPv4(ips); len(v4) != 2 {
		t.Errorf("FilterIPv4() = %v, want 2 addresses", v4)
	}
	if v6 := FilterIPv6(ips); len(v6) != 1 || v6[0].String() != "fd00::1" {
		t.Errorf("FilterIPv6() = %v, want [fd00::1]", v6)
	}
}
