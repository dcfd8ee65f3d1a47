package discovery

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPickAddr(t *testing.T) {
	req := require.New(t)
	v6 := netip.MustParseAddr("fe80::1")
	v4 := netip.MustParseAddr("192.168.1.5")

	addr, ok := pickAddr([]netip.Addr{v6, v4}, 6121)
	req.True(ok)
	req.Equal("192.168.1.5:6121", addr)

	addr, ok = pickAddr([]netip.Addr{v6}, 6121)
	req.True(ok)
	req.Equal("[fe80::1]:6121", addr)

	addr, ok = pickAddr([]netip.Addr{netip.MustParseAddr("::ffff:10.0.0.2")}, 1)
	req.True(ok)
	req.Equal("10.0.0.2:1", addr)

	_, ok = pickAddr([]netip.Addr{{}}, 6121)
	req.False(ok)
}

func TestParseAddr(t *testing.T) {
	req := require.New(t)
	host, port, err := ParseAddr("127.0.0.1:4242")
	req.NoError(err)
	req.Equal("127.0.0.1", host)
	req.Equal(4242, port)

	_, _, err = ParseAddr("nope")
	req.Error(err)
}
