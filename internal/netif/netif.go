// Package netif discovers the local hardware and IPv4 address used to fill
// the display-value address fields of built frames.
package netif

import (
	"net"
)

// Zero addresses substituted when no interface can be resolved.
const (
	ZeroHardwareAddr = "00:00:00:00:00:00"
	ZeroIPv4         = "0.0.0.0"
)

// Interface is one resolved {hardware address, IPv4 address} pair.
type Interface struct {
	Name         string
	HardwareAddr string // "aa:bb:cc:dd:ee:ff"
	IPv4         string // dotted decimal
}

// Resolver yields at most one interface. ok=false means nothing usable was found.
type Resolver interface {
	Resolve() (iface Interface, ok bool)
}

// ResolveOrZero resolves via r and falls back to the zero addresses.
func ResolveOrZero(r Resolver) Interface {
	if r != nil {
		if iface, ok := r.Resolve(); ok {
			return iface
		}
	}
	return Interface{HardwareAddr: ZeroHardwareAddr, IPv4: ZeroIPv4}
}

// Static always returns the same interface. An empty Static resolves to nothing.
type Static Interface

// Resolve implements Resolver.
func (s Static) Resolve() (Interface, bool) {
	if s.HardwareAddr == "" && s.IPv4 == "" {
		return Interface{}, false
	}
	iface := Interface(s)
	if iface.HardwareAddr == "" {
		iface.HardwareAddr = ZeroHardwareAddr
	}
	if iface.IPv4 == "" {
		iface.IPv4 = ZeroIPv4
	}
	return iface, true
}

// System inspects the host's interfaces. When Name is set only that
// interface is considered; otherwise the first up, non-loopback interface
// carrying both a hardware address and a non-link-local IPv4 address wins.
type System struct {
	Name string
}

// Resolve implements Resolver.
func (s System) Resolve() (Interface, bool) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return Interface{}, false
	}

	for _, iface := range ifaces {
		if s.Name != "" && iface.Name != s.Name {
			continue
		}
		if s.Name == "" && (iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0) {
			continue
		}
		if len(iface.HardwareAddr) != 6 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		if ip4 := firstIPv4(addrs); ip4 != nil {
			return Interface{
				Name:         iface.Name,
				HardwareAddr: iface.HardwareAddr.String(),
				IPv4:         ip4.String(),
			}, true
		}
	}
	return Interface{}, false
}

func firstIPv4(addrs []net.Addr) net.IP {
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip4 := ipNet.IP.To4()
		if ip4 == nil {
			continue
		}
		// Skip link-local 169.254.x.x
		if ip4[0] == 169 && ip4[1] == 254 {
			continue
		}
		return ip4
	}
	return nil
}
