package network

import (
	"context"
	"fmt"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"

	"github.com/ipvm-wg/homestar/internal/config"
	"github.com/ipvm-wg/homestar/internal/invocation"
	"github.com/ipvm-wg/homestar/internal/logging"
)

const receiptsTopic = "receipts"

// Host owns every libp2p collaborator the core depends on: the raw
// host, gossipsub, and the Kademlia DHT. It is the only component that
// talks to libp2p directly; the scheduler and runner reach it through
// the higher-level methods defined across this package's other files.
type Host struct {
	cfg *config.NetworkConfig
	log *logging.Logger
	bus *Bus

	h      host.Host
	ps     *pubsub.PubSub
	dht    *dht.IpfsDHT
	topic  *pubsub.Topic
	quorum *QuorumTracker

	onReceipt func(r invocation.Receipt, receiptCID cid.Cid)
}

// OnReceipt registers the callback invoked for every receipt received
// over gossip from another peer; the same receipt may arrive more than
// once. The scheduler sets this once at
// startup to feed gossiped receipts into its local cache.
func (n *Host) OnReceipt(fn func(r invocation.Receipt, receiptCID cid.Cid)) {
	n.onReceipt = fn
}

// NewHost starts a libp2p host with gossipsub and a Kademlia DHT
// attached, using the supplied identity key. The returned Host has not
// yet joined the receipts topic or started discovery — call Start for
// that.
func NewHost(ctx context.Context, cfg *config.NetworkConfig, key crypto.PrivKey, log *logging.Logger, bus *Bus) (*Host, error) {
	listenAddrs := make([]multiaddr.Multiaddr, 0, len(cfg.ListenAddrs))
	for _, a := range cfg.ListenAddrs {
		ma, err := multiaddr.NewMultiaddr(a)
		if err != nil {
			return nil, fmt.Errorf("network: parse listen addr %q: %w", a, err)
		}
		listenAddrs = append(listenAddrs, ma)
	}

	h, err := libp2p.New(
		libp2p.Identity(key),
		libp2p.ListenAddrs(listenAddrs...),
		libp2p.EnableNATService(),
		libp2p.EnableAutoNATv2(),
	)
	if err != nil {
		return nil, fmt.Errorf("network: create libp2p host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("network: create gossipsub: %w", err)
	}

	kad, err := dht.New(ctx, h, dht.Mode(dht.ModeAuto))
	if err != nil {
		return nil, fmt.Errorf("network: create dht: %w", err)
	}

	topic, err := ps.Join(receiptsTopic)
	if err != nil {
		return nil, fmt.Errorf("network: join receipts topic: %w", err)
	}

	n := &Host{
		cfg:    cfg,
		log:    log,
		bus:    bus,
		h:      h,
		ps:     ps,
		dht:    kad,
		topic:  topic,
		quorum: NewQuorumTracker(cfg.QuorumTarget),
	}

	h.Network().Notify(n.connectionNotifiee())

	return n, nil
}

// Start bootstraps the DHT, connects configured bootstrap peers, and
// launches mDNS/rendezvous discovery and the bootstrap redial loop.
func (n *Host) Start(ctx context.Context) error {
	if err := n.dht.Bootstrap(ctx); err != nil {
		return fmt.Errorf("network: bootstrap dht: %w", err)
	}

	for _, addr := range n.cfg.BootstrapPeers {
		pi, err := peer.AddrInfoFromString(addr)
		if err != nil {
			n.log.Error("invalid bootstrap peer address", "addr", addr, "err", err)
			continue
		}
		if err := n.h.Connect(ctx, *pi); err != nil {
			n.log.Error("bootstrap connect failed", "peer", pi.ID.String(), "err", err)
			continue
		}
	}

	if n.cfg.EnableMDNS {
		if err := startMDNS(n.h, n.cfg.RendezvousString, n); err != nil {
			return fmt.Errorf("network: start mdns: %w", err)
		}
	}

	go n.redialLoop(ctx)
	go n.subscribeReceipts(ctx)
	go n.startRendezvous(ctx)

	return nil
}

// Close tears down the host and its DHT.
func (n *Host) Close() error {
	if err := n.dht.Close(); err != nil {
		return err
	}
	return n.h.Close()
}

// PeerID returns this node's libp2p peer ID string.
func (n *Host) PeerID() string { return n.h.ID().String() }

func (n *Host) redialLoop(ctx context.Context) {
	ticker := time.NewTicker(n.cfg.RedialInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, addr := range n.cfg.BootstrapPeers {
				pi, err := peer.AddrInfoFromString(addr)
				if err != nil {
					continue
				}
				if n.h.Network().Connectedness(pi.ID) != network.Connected {
					_ = n.h.Connect(ctx, *pi)
				}
			}
		}
	}
}
