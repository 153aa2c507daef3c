package diag

import (
	"net"
	"testing"
)

func TestAnnouncementTXT(t *testing.T) {
	got := AnnouncementTXT(DefaultCatalog())
	want := []string{"txtvers=1", "proto=line", "tests=16"}
	if len(got) != len(want) {
		t.Fatalf("AnnouncementTXT() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("AnnouncementTXT()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLocalIP(t *testing.T) {
	ip := net.ParseIP(LocalIP())
	if ip == nil || ip.To4() == nil {
		t.Errorf("LocalIP() = %q, want an IPv4 address", LocalIP())
	}
}

func TestAnnouncementStopNil(t *testing.T) {
	var a *Announcement
	a.Stop()
}
