// Package asn is the public entry point: given a config.Config it wires
// identity, the swarm builder, the composite behaviour, and the event loop
// together, and hands back a Client plus the event stream to drive.
package asn

import (
	"context"
	"fmt"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/asn-net/asn/internal/behaviour"
	"github.com/asn-net/asn/internal/client"
	"github.com/asn-net/asn/internal/config"
	"github.com/asn-net/asn/internal/eventloop"
	"github.com/asn-net/asn/internal/identity"
	"github.com/asn-net/asn/internal/swarmbuilder"
)

// Node is the assembled, runnable system. Run must be called (typically on
// its own goroutine) to actually drive the event loop; until then, Client
// calls and Events reads will not make progress.
type Node struct {
	Client *client.Client
	Events <-chan eventloop.Event
	PeerID peer.ID

	loop  *eventloop.Loop
	stack *swarmbuilder.Stack
}

// Run drives the event loop until ctx is cancelled. It returns once the
// loop has finished shutting down. Callers typically invoke this on its own
// goroutine immediately after New.
func (n *Node) Run(ctx context.Context) {
	n.loop.Run(ctx)
}

// Close tears down the underlying swarm. Call only after Run has returned
// (i.e. after the ctx passed to Run is cancelled).
func (n *Node) Close() error {
	return n.stack.Close()
}

// New constructs a Node from cfg: it resolves or generates an identity,
// builds the libp2p swarm, wires the composite behaviour, and constructs
// (but does not start) the event loop.
func New(ctx context.Context, cfg config.Config) (*Node, error) {
	priv, err := resolveIdentity(cfg.Identity)
	if err != nil {
		return nil, fmt.Errorf("asn: resolve identity: %w", err)
	}

	var rendezvousPeer *peer.AddrInfo
	if cfg.Rendezvous.PeerAddr != "" {
		rendezvousPeer, err = parsePeerAddr(cfg.Rendezvous.PeerAddr)
		if err != nil {
			return nil, fmt.Errorf("asn: parse rendezvous peer: %w", err)
		}
	}

	stack, err := swarmbuilder.Build(ctx, swarmbuilder.Options{
		Identity:    priv,
		ListenAddrs: cfg.Listen.Addrs,
		RelayPeer:   rendezvousPeer,
	})
	if err != nil {
		return nil, fmt.Errorf("asn: build swarm: %w", err)
	}

	bh, err := behaviour.New(behaviour.Config{
		Host:           stack.Host,
		DHT:            stack.DHT,
		PubSub:         stack.PubSub,
		RendezvousPeer: rendezvousPeer,
	})
	if err != nil {
		_ = stack.Close()
		return nil, fmt.Errorf("asn: build behaviour: %w", err)
	}

	loop := eventloop.New(eventloop.Config{
		Host:                stack.Host,
		Behaviour:           bh,
		AdditionalTopics:    cfg.Topics.Additional,
		RendezvousPeer:      rendezvousPeer,
		RendezvousNamespace: cfg.Rendezvous.Namespace,
	})

	return &Node{
		Client: client.New(loop.Commands()),
		Events: loop.Events(),
		PeerID: stack.Host.ID(),
		loop:   loop,
		stack:  stack,
	}, nil
}

// resolveIdentity prefers a deterministic seed byte (local test topologies)
// over the persistent key-file path, matching config.Identity's documented
// precedence.
func resolveIdentity(id config.Identity) (crypto.PrivKey, error) {
	if id.SeedByte != nil {
		return identity.FromSeed(*id.SeedByte)
	}
	priv, _, err := identity.LoadOrCreate(id.KeyFile)
	return priv, err
}

func parsePeerAddr(addr string) (*peer.AddrInfo, error) {
	maddr, err := ma.NewMultiaddr(addr)
	if err != nil {
		return nil, err
	}
	return peer.AddrInfoFromP2pAddr(maddr)
}
