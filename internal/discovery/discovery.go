// Package discovery is an optional LAN announcer: it advertises this
// node's trustd service over mDNS so operators running a small cluster
// on the same network segment can find peers without static config.
// Nothing else in the tree depends on discovery succeeding — a failure
// here is logged and otherwise ignored.
package discovery

import (
	"context"
	"log/slog"

	"github.com/grandcat/zeroconf"
)

const serviceType = "_trustd._tcp"
const domain = "local."

// Announcer wraps the zeroconf server so callers can shut it down
// cleanly.
type Announcer struct {
	server *zeroconf.Server
}

// Announce registers this node's service on the LAN. instance is a
// human-readable node name, port is the HTTP listen port.
func Announce(instance string, port int, log *slog.Logger) (*Announcer, error) {
	server, err := zeroconf.Register(instance, serviceType, domain, port, []string{"trustd=1"}, nil)
	if err != nil {
		return nil, err
	}
	log.Info("discovery: announcing on LAN", slog.String("instance", instance), slog.Int("port", port))
	return &Announcer{server: server}, nil
}

// Shutdown stops advertising the service.
func (a *Announcer) Shutdown() {
	if a != nil && a.server != nil {
		a.server.Shutdown()
	}
}

// Peer is a discovered trustd node.
type Peer struct {
	Instance string
	Host     string
	Port     int
}

// Browse looks for other trustd nodes on the LAN until ctx is done,
// sending each discovered peer to the returned channel.
func Browse(ctx context.Context, log *slog.Logger) (<-chan Peer, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, err
	}

	entries := make(chan *zeroconf.ServiceEntry)
	peers := make(chan Peer)

	go func() {
		defer close(peers)
		for entry := range entries {
			if len(entry.AddrIPv4) == 0 {
				continue
			}
			peers <- Peer{
				Instance: entry.Instance,
				Host:     entry.AddrIPv4[0].String(),
				Port:     entry.Port,
			}
		}
	}()

	if err := resolver.Browse(ctx, serviceType, domain, entries); err != nil {
		log.Warn("discovery: browse failed", slog.String("err", err.Error()))
		return nil, err
	}

	return peers, nil
}
