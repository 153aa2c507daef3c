package diag

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/grandcat/zeroconf"
)

// Announcement advertises the link listener over mDNS so a companion on the
// same Wi-Fi can find the station without a USB reverse tunnel.
type Announcement struct {
	server *zeroconf.Server
}

// AnnouncementTXT returns the TXT records published for a station.
func AnnouncementTXT(c *Catalog) []string {
	return []string{
		"txtvers=1",
		"proto=line",
		"tests=" + strconv.Itoa(c.Len()),
	}
}

// Announce registers name as a ServiceType instance on port.
func Announce(name string, port int, c *Catalog) (*Announcement, error) {
	srv, err := zeroconf.Register(name, ServiceType, "local.", port, AnnouncementTXT(c), nil)
	if err != nil {
		return nil, fmt.Errorf("mDNS register: %w", err)
	}
	slog.Info("mDNS registered", "name", name, "service", ServiceType, "port", port)
	return &Announcement{server: srv}, nil
}

// Stop withdraws the advertisement.
func (a *Announcement) Stop() {
	if a != nil && a.server != nil {
		a.server.Shutdown()
	}
}

// LocalIP returns the address the station is reachable at on the default
// route, for the startup banner. No packet is sent.
func LocalIP() string {
	conn, err := net.Dial("udp4", "224.0.0.1:80")
	if err != nil {
		return "0.0.0.0"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}
