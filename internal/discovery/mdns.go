// Package discovery advertises this process on the LAN over mDNS and reports
// other processes advertising the same service.
package discovery

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"

	"github.com/betamos/zeroconf"
)

const (
	DefaultService = "_multipass._udp"
	Domain         = "local."
	DefaultPort    = 6121
)

// Op says whether a peer appeared or went away.
type Op int

const (
	Added Op = iota + 1
	Removed
)

// Peer is a process found on the local network. Name is the instance name it
// published, which mesh peers set to their local participant id.
type Peer struct {
	Name string
	Addr string
	Port int
}

// Discovery publishes one instance and browses for others of the same type.
type Discovery struct {
	client *zeroconf.Client
}

// New publishes instance on port under service and calls onPeer for every
// other instance seen. The own instance is filtered out.
func New(service, instance string, port int, onPeer func(Peer, Op)) (*Discovery, error) {
	if service == "" {
		service = DefaultService
	}
	if port <= 0 || port > 65535 {
		port = DefaultPort
	}
	svcType := zeroconf.NewType(service)
	self := zeroconf.NewService(svcType, instance, uint16(port))

	client, err := zeroconf.New().
		Publish(self).
		Browse(func(e zeroconf.Event) {
			if e.Name == instance {
				return
			}
			handleEvent(e, onPeer)
		}, svcType).
		Open()
	if err != nil {
		return nil, fmt.Errorf("zeroconf: %w", err)
	}
	return &Discovery{client: client}, nil
}

func handleEvent(e zeroconf.Event, onPeer func(Peer, Op)) {
	if onPeer == nil {
		return
	}
	peer := Peer{Name: e.Name, Port: int(e.Port)}
	if e.Op == zeroconf.OpRemoved {
		onPeer(peer, Removed)
		return
	}
	addr, ok := pickAddr(e.Addrs, int(e.Port))
	if !ok {
		return
	}
	peer.Addr = addr
	onPeer(peer, Added)
}

// pickAddr returns a dialable host:port, preferring IPv4.
func pickAddr(addrs []netip.Addr, port int) (string, bool) {
	var fallback netip.Addr
	for _, a := range addrs {
		if !a.IsValid() {
			continue
		}
		if a.Is4() || a.Is4In6() {
			return net.JoinHostPort(a.Unmap().String(), strconv.Itoa(port)), true
		}
		if !fallback.IsValid() {
			fallback = a
		}
	}
	if !fallback.IsValid() {
		return "", false
	}
	return net.JoinHostPort(fallback.String(), strconv.Itoa(port)), true
}

// Close stops publishing and browsing.
func (d *Discovery) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}

// ParseAddr splits "host:port".
func ParseAddr(s string) (host string, port int, err error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return "", 0, err
	}
	port, err = strconv.Atoi(portStr)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}
