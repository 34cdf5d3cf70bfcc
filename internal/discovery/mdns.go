// Package discovery advertises a canvas server on the local network and
// finds other ones.
package discovery

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/mdns"
)

const ServiceType = "_canvas._tcp"

// Peer is a canvas server found on the network.
type Peer struct {
	Name string
	Addr string
	Info []string
}

// Advertise announces this server until the returned server is shut down.
func Advertise(port int, info ...string) (*mdns.Server, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("could not get hostname: %w", err)
	}

	service, err := mdns.NewMDNSService(host, ServiceType, "", "", port, nil, info)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}
	return server, nil
}

// Browse queries for canvas servers until timeout elapses or ctx is done.
func Browse(ctx context.Context, timeout time.Duration) ([]Peer, error) {
	entries := make(chan *mdns.ServiceEntry, 8)
	collected := make(chan []Peer, 1)
	go func() {
		var peers []Peer
		for e := range entries {
			if p, ok := peerOf(e); ok {
				peers = append(peers, p)
			}
		}
		collected <- peers
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true

	done := make(chan error, 1)
	go func() { done <- mdns.Query(params) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
		// Query returns once its timeout elapses
		<-done
	}
	close(entries)
	return <-collected, err
}

func peerOf(e *mdns.ServiceEntry) (Peer, bool) {
	if e == nil || e.AddrV4 == nil || e.Port == 0 {
		return Peer{}, false
	}
	return Peer{
		Name: e.Name,
		Addr: fmt.Sprintf("%s:%d", e.AddrV4.String(), e.Port),
		Info: e.InfoFields,
	}, true
}
