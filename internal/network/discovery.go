package network

import (
	"context"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	routingdisc "github.com/libp2p/go-libp2p/p2p/discovery/routing"
)

// mdnsNotifee bridges go-libp2p's mDNS discovery callback into this
// package's event bus and auto-connect behavior.
type mdnsNotifee struct {
	h *Host
}

func (n *mdnsNotifee) HandlePeerFound(pi peer.AddrInfo) {
	n.h.bus.Publish(Event{Kind: EventDiscoveredMDNS, PeerID: pi.ID.String(), Timestamp: now()})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = n.h.h.Connect(ctx, pi)
}

// startMDNS registers LAN peer discovery under the configured
// rendezvous string, used as the mDNS service tag.
func startMDNS(h host.Host, serviceTag string, parent *Host) error {
	svc := mdns.NewMdnsService(h, serviceTag, &mdnsNotifee{h: parent})
	return svc.Start()
}

// connectionNotifiee reports connection_established/closed events to
// the bus.
func (n *Host) connectionNotifiee() network.Notifiee {
	return &network.NotifyBundle{
		ConnectedF: func(_ network.Network, c network.Conn) {
			n.bus.Publish(Event{Kind: EventConnectionEstablished, PeerID: c.RemotePeer().String(), Timestamp: now()})
		},
		DisconnectedF: func(_ network.Network, c network.Conn) {
			n.bus.Publish(Event{Kind: EventConnectionClosed, PeerID: c.RemotePeer().String(), Timestamp: now()})
		},
	}
}

// now returns the wall-clock time used to stamp network events.
func now() time.Time { return time.Now() }

// startRendezvous advertises this node and periodically searches for
// peers under the rendezvous string via the DHT's routing-backed
// discovery, the WAN counterpart to mDNS.
func (n *Host) startRendezvous(ctx context.Context) {
	disc := routingdisc.NewRoutingDiscovery(n.dht)
	_, _ = disc.Advertise(ctx, n.cfg.RendezvousString)

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			peersCh, err := disc.FindPeers(ctx, n.cfg.RendezvousString)
			if err != nil {
				continue
			}
			for pi := range peersCh {
				if pi.ID == n.h.ID() {
					continue
				}
				n.bus.Publish(Event{Kind: EventDiscoveredRendezvous, PeerID: pi.ID.String(), Timestamp: now()})
				connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
				_ = n.h.Connect(connCtx, pi)
				cancel()
			}
		}
	}
}
