// Package behaviour assembles the composite set of libp2p sub-protocols
// into one unit and re-exports their asynchronous activity as a single
// sum-of-events channel, mirroring the Rust `#[derive(NetworkBehaviour)]`
// aggregate pattern. Go's client libraries for these sub-protocols are not
// poll-driven the way rust-libp2p's are, so the sum is reconstructed
// explicitly: every continuous event source (mDNS notifee, gossipsub
// subscriptions, the host's own event bus, connection notifications) is
// forwarded by a dedicated goroutine onto one buffered channel, which
// internal/eventloop is the sole reader of.
//
// Command-driven sub-protocol operations that must be matched to a pending
// table entry (DHT Provide/FindProviders, rendezvous Register/Discover, Dial,
// outbound AgentRequest) are NOT modeled here — those are kicked off directly
// by internal/eventloop's command handlers, since only the loop knows the
// query/request id a given operation corresponds to. This package owns only
// the protocols with no caller-visible "pending operation" shape: Identify,
// mDNS, Gossipsub, and connection/reachability observability.
package behaviour

import (
	"context"
	"fmt"
	"time"

	logging "github.com/ipfs/go-log/v2"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	rzv "github.com/libp2p/go-libp2p/p2p/protocol/rendezvous"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/asn-net/asn/internal/proto"
)

var log = logging.Logger("asn/behaviour")

// EventKind tags the variant carried by an Event.
type EventKind int

const (
	EventConnectionEstablished EventKind = iota
	EventIdentifyReceived
	EventMdnsPeerFound
	EventMdnsPeerExpired
	EventGossipMessage
	EventGossipSubscribed
	EventGossipUnsubscribed
	EventObservability
)

// Event is the re-exported sum of every sub-protocol's asynchronous activity
// that is not tied to a pending command. Only the fields relevant to Kind
// are populated.
type Event struct {
	Kind EventKind

	Peer         peer.ID
	PeerInfo     peer.AddrInfo
	Outbound     bool
	ObservedAddr ma.Multiaddr
	Topic        string
	Data         []byte
	MessageID    string
	Source       string
	Detail       string
}

// Behaviour owns the composite set of sub-protocols that are not directly
// driven by a pending-table command.
type Behaviour struct {
	host host.Host
	dht  *dht.IpfsDHT
	ps   *pubsub.PubSub
	rzc  rzv.RendezvousClient

	mdnsService mdns.Service

	topics map[string]*pubsub.Topic
	subs   map[string]*pubsub.Subscription

	events chan Event
}

// Config parameterizes New.
type Config struct {
	Host            host.Host
	DHT             *dht.IpfsDHT
	PubSub          *pubsub.PubSub
	RendezvousPeer  *peer.AddrInfo // nil disables rendezvous entirely
	MdnsServiceTag  string
	EventBufferSize int
}

// New wires the composite behaviour around an already-constructed host, DHT,
// and pubsub instance (all produced by internal/swarmbuilder), and starts
// the continuous forwarding goroutines (mDNS notifee, gossipsub bootstrap
// topic subscriptions are added by Bootstrap, connection notifications,
// identify observations).
func New(cfg Config) (*Behaviour, error) {
	if cfg.EventBufferSize <= 0 {
		cfg.EventBufferSize = 256
	}

	b := &Behaviour{
		host:   cfg.Host,
		dht:    cfg.DHT,
		ps:     cfg.PubSub,
		topics: make(map[string]*pubsub.Topic),
		subs:   make(map[string]*pubsub.Subscription),
		events: make(chan Event, cfg.EventBufferSize),
	}

	if cfg.RendezvousPeer != nil {
		cfg.Host.Peerstore().AddAddrs(cfg.RendezvousPeer.ID, cfg.RendezvousPeer.Addrs, time.Hour)
		b.rzc = rzv.NewRendezvousClient(cfg.Host, cfg.RendezvousPeer.ID)
	}

	tag := cfg.MdnsServiceTag
	if tag == "" {
		tag = proto.MdnsServiceTag
	}
	b.mdnsService = mdns.NewMdnsService(cfg.Host, tag, &mdnsNotifee{b: b})
	if err := b.mdnsService.Start(); err != nil {
		return nil, fmt.Errorf("behaviour: start mdns: %w", err)
	}

	cfg.Host.Network().Notify(&network.NotifyBundle{
		ConnectedF: func(_ network.Network, c network.Conn) {
			b.emit(Event{
				Kind:     EventConnectionEstablished,
				Peer:     c.RemotePeer(),
				Outbound: c.Stat().Direction == network.DirOutbound,
			})
		},
	})

	b.watchEventBus()

	return b, nil
}

// Events returns the channel internal/eventloop selects on for every
// sub-protocol event this package forwards.
func (b *Behaviour) Events() <-chan Event {
	return b.events
}

func (b *Behaviour) emit(ev Event) {
	select {
	case b.events <- ev:
	default:
		log.Warnw("event channel full, dropping event", "kind", ev.Kind)
	}
}

// Bootstrap subscribes the two bootstrap topics plus any additional topics
// and runs the DHT's routing table bootstrap. It does not change the DHT
// mode; the DHT is already in server mode from construction. Failures are logged, not returned: they are non-fatal.
func (b *Behaviour) Bootstrap(ctx context.Context, additionalTopics []string) {
	for _, t := range append([]string{proto.BootstrapTopicEveryone, proto.BootstrapTopicCapabilities}, additionalTopics...) {
		if _, err := b.Subscribe(t); err != nil {
			log.Warnw("bootstrap: subscribe failed", "topic", t, "err", err)
		}
	}

	if err := b.dht.Bootstrap(ctx); err != nil {
		log.Warnw("bootstrap: dht bootstrap failed", "err", err)
	}
}

// Subscribe idempotently joins and subscribes to an additional gossip topic,
// starting the forwarding goroutine that turns subscription.Next() results
// into GossipMessage events.
func (b *Behaviour) Subscribe(topic string) (*pubsub.Subscription, error) {
	if sub, ok := b.subs[topic]; ok {
		return sub, nil
	}

	t, err := b.ps.Join(topic)
	if err != nil {
		return nil, fmt.Errorf("behaviour: join topic %q: %w", topic, err)
	}
	sub, err := t.Subscribe()
	if err != nil {
		return nil, fmt.Errorf("behaviour: subscribe topic %q: %w", topic, err)
	}

	b.topics[topic] = t
	b.subs[topic] = sub
	b.emit(Event{Kind: EventGossipSubscribed, Topic: topic, Peer: b.host.ID()})

	go b.pumpTopic(topic, sub)

	return sub, nil
}

// Topic returns a previously-joined topic handle for publishing, or nil if
// the topic has not been subscribed.
func (b *Behaviour) Topic(topic string) *pubsub.Topic {
	return b.topics[topic]
}

// Shutdown unsubscribes from the two bootstrap topics. The DHT has no
// public runtime mode switch in this library version, so the "set DHT
// mode to none" half of the shutdown hook is a documented simplification
// (see DESIGN.md) rather than a literal mode transition.
func (b *Behaviour) Shutdown() {
	for _, t := range []string{proto.BootstrapTopicEveryone, proto.BootstrapTopicCapabilities} {
		b.unsubscribe(t)
	}
}

func (b *Behaviour) unsubscribe(topic string) {
	if sub, ok := b.subs[topic]; ok {
		sub.Cancel()
		delete(b.subs, topic)
		b.emit(Event{Kind: EventGossipUnsubscribed, Topic: topic, Peer: b.host.ID()})
	}
	if t, ok := b.topics[topic]; ok {
		_ = t.Close()
		delete(b.topics, topic)
	}
}

func (b *Behaviour) pumpTopic(topic string, sub *pubsub.Subscription) {
	for {
		msg, err := sub.Next(context.Background())
		if err != nil {
			// Subscription cancelled (Shutdown/unsubscribe) or context done.
			return
		}
		b.emit(Event{
			Kind:      EventGossipMessage,
			Topic:     topic,
			Peer:      msg.ReceivedFrom,
			Data:      msg.Data,
			MessageID: msg.ID,
		})
	}
}

// RendezvousRegister registers this node under the configured rendezvous
// namespace against the designated rendezvous peer. It is a no-op returning
// an error if no rendezvous peer was configured.
func (b *Behaviour) RendezvousRegister(ctx context.Context, namespace string) (time.Duration, error) {
	if b.rzc == nil {
		return 0, fmt.Errorf("behaviour: no rendezvous peer configured")
	}
	return b.rzc.Register(ctx, namespace)
}

// RendezvousDiscover asks the rendezvous peer for registrations in namespace,
// replaying cookie for incremental updates.
func (b *Behaviour) RendezvousDiscover(ctx context.Context, namespace string, cookie []byte) ([]rzv.Registration, []byte, error) {
	if b.rzc == nil {
		return nil, nil, fmt.Errorf("behaviour: no rendezvous peer configured")
	}
	return b.rzc.Discover(ctx, namespace, 0, cookie)
}

// HasRendezvousPeer reports whether a rendezvous peer was configured.
func (b *Behaviour) HasRendezvousPeer() bool {
	return b.rzc != nil
}

// DHT exposes the underlying Kademlia instance for StartProviding/
// GetProviders command handlers in internal/eventloop, which own the
// query-id pending table these calls are matched through.
func (b *Behaviour) DHT() *dht.IpfsDHT {
	return b.dht
}

// Host exposes the underlying libp2p host for Dial/RequestAgent command
// handlers.
func (b *Behaviour) Host() host.Host {
	return b.host
}

type mdnsNotifee struct {
	b *Behaviour
}

func (n *mdnsNotifee) HandlePeerFound(pi peer.AddrInfo) {
	n.b.emit(Event{Kind: EventMdnsPeerFound, PeerInfo: pi, Peer: pi.ID})
}

// watchEventBus subscribes to the small set of host-level events this
// package surfaces as observability-only log lines: identify's observed
// external address, reachability changes (AutoNAT), and NAT device
// detection (UPnP). Ping has no discrete per-probe event in go-libp2p's
// default ping protocol, and this package forwards no ping or
// disconnection events; only EventConnectionEstablished is surfaced for
// connections — see DESIGN.md.
func (b *Behaviour) watchEventBus() {
	sub, err := b.host.EventBus().Subscribe([]any{
		new(event.EvtPeerIdentificationCompleted),
		new(event.EvtLocalReachabilityChanged),
		new(event.EvtNATDeviceTypeChanged),
		new(event.EvtLocalAddressesUpdated),
	})
	if err != nil {
		log.Warnw("failed to subscribe host event bus", "err", err)
		return
	}

	go func() {
		defer sub.Close()
		for e := range sub.Out() {
			switch ev := e.(type) {
			case event.EvtPeerIdentificationCompleted:
				if ev.ObservedAddr != nil {
					b.emit(Event{
						Kind:         EventIdentifyReceived,
						Peer:         ev.Peer,
						ObservedAddr: ev.ObservedAddr,
					})
				}
			case event.EvtLocalReachabilityChanged:
				b.emit(Event{Kind: EventObservability, Source: "autonat", Detail: ev.Reachability.String()})
			case event.EvtNATDeviceTypeChanged:
				b.emit(Event{Kind: EventObservability, Source: "upnp", Detail: ev.NatDeviceType.String()})
			case event.EvtLocalAddressesUpdated:
				b.emit(Event{Kind: EventObservability, Source: "addresses", Detail: fmt.Sprintf("%d current", len(ev.Current))})
			}
		}
	}()
}

// EventMdnsPeerExpired is never emitted from this package: go-libp2p's
// mdns.Notifee interface only exposes HandlePeerFound, with no expiry
// callback. internal/eventloop tracks last-seen times for mDNS-discovered
// peers and, each time an mDNS peer is found, sweeps out the ones not seen
// within its expiry window, without going through this event kind (see
// DESIGN.md for this adaptation).
