package discovery

import (
	"net"
	"testing"

	"github.com/hashicorp/mdns"
	"github.com/stretchr/testify/assert"
)

func TestPeerOf(t *testing.T) {
	_, ok := peerOf(nil)
	assert.False(t, ok)

	_, ok = peerOf(&mdns.ServiceEntry{Name: "v6only", Port: 8080})
	assert.False(t, ok)

	p, ok := peerOf(&mdns.ServiceEntry{
		Name:       "studio._canvas._tcp.local.",
		AddrV4:     net.IPv4(192, 168, 1, 20),
		Port:       8080,
		InfoFields: []string{"canvas"},
	})
	assert.True(t, ok)
	assert.Equal(t, "192.168.1.20:8080", p.Addr)
	assert.Equal(t, []string{"canvas"}, p.Info)
}
