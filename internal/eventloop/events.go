package eventloop

import (
	"context"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/asn-net/asn/internal/asnerr"
	"github.com/asn-net/asn/internal/behaviour"
	"github.com/asn-net/asn/internal/proto"
)

func (l *Loop) handleInternalEvent(ctx context.Context, ie internalEvent) {
	switch {
	case ie.behaviourEvent != nil:
		l.handleBehaviourEvent(ctx, *ie.behaviourEvent)
	case ie.dialOutcome != nil:
		l.handleDialOutcome(*ie.dialOutcome)
	case ie.startProviding != nil:
		l.handleStartProvidingOutcome(*ie.startProviding)
	case ie.getProviders != nil:
		l.handleGetProvidersOutcome(*ie.getProviders)
	case ie.requestAgent != nil:
		l.handleRequestAgentOutcome(*ie.requestAgent)
	case ie.rendezvousRegister != nil:
		l.handleRendezvousRegisterOutcome(*ie.rendezvousRegister)
	case ie.rendezvousDiscover != nil:
		l.handleRendezvousDiscoverOutcome(ctx, *ie.rendezvousDiscover)
	case ie.mdnsSweep != nil:
		l.handleMdnsSweep(*ie.mdnsSweep)
	}
}

// handleDialOutcome completes a pending Dial sink (if any) and, regardless
// of whether one was pending, attempts rendezvous registration when the
// connected peer is the designated rendezvous peer.
func (l *Loop) handleDialOutcome(o dialOutcome) {
	if reply, ok := l.pending.dial[o.peer]; ok {
		delete(l.pending.dial, o.peer)
		if o.err != nil {
			reply <- &asnerr.DialFailure{Peer: o.peer, Err: o.err}
		} else {
			reply <- nil
		}
	}

	if o.err != nil {
		return
	}
	if l.cfg.RendezvousPeer == nil || o.peer != l.cfg.RendezvousPeer.ID {
		return
	}

	go func() {
		regCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		ttl, err := l.bh.RendezvousRegister(regCtx, l.namespace)
		l.internal <- internalEvent{rendezvousRegister: &rendezvousRegisterOutcome{ttl: ttl, err: err}}
	}()
}

func (l *Loop) handleStartProvidingOutcome(o startProvidingOutcome) {
	reply, ok := l.pending.startProviding[o.id]
	if !ok {
		log.Debugw("start-providing terminal event for unknown id", "id", o.id)
		return
	}
	delete(l.pending.startProviding, o.id)
	reply <- o.err
}

// handleGetProvidersOutcome always completes the reply sink, including with
// an empty set: the reply sink is never left dangling on a "finished with
// nothing" terminal.
func (l *Loop) handleGetProvidersOutcome(o getProvidersOutcome) {
	reply, ok := l.pending.getProviders[o.id]
	if !ok {
		log.Debugw("get-providers terminal event for unknown id", "id", o.id)
		return
	}
	delete(l.pending.getProviders, o.id)
	reply <- o.peers
}

func (l *Loop) handleRequestAgentOutcome(o requestAgentOutcome) {
	reply, ok := l.pending.request[o.id]
	if !ok {
		log.Debugw("request-agent terminal event for unknown id", "id", o.id)
		return
	}
	delete(l.pending.request, o.id)
	if o.err != nil {
		reply <- RequestAgentResult{Err: &asnerr.RequestTransport{Err: o.err}}
		return
	}
	reply <- RequestAgentResult{Body: o.body}
}

func (l *Loop) handleRendezvousRegisterOutcome(o rendezvousRegisterOutcome) {
	if o.err != nil {
		log.Warnw("rendezvous registration failed", "namespace", l.namespace, "err", o.err)
		return
	}
	log.Infow("rendezvous registration succeeded", "namespace", l.namespace, "ttl", o.ttl)
}

// handleRendezvousDiscoverOutcome replaces the stored cookie and dials every
// newly-listed registration's peer-id-suffixed address.
func (l *Loop) handleRendezvousDiscoverOutcome(ctx context.Context, o rendezvousDiscoverOutcome) {
	if o.err != nil {
		log.Warnw("rendezvous discovery failed", "err", o.err)
		return
	}
	l.cookie = o.cookie

	for _, reg := range o.regs {
		pi := reg.Peer
		if pi.ID == l.host.ID() {
			continue
		}
		for _, addr := range pi.Addrs {
			suffixed := ensurePeerIDSuffix(addr, pi.ID)
			l.host.Peerstore().AddAddr(pi.ID, suffixed, time.Hour)
		}
		if len(l.host.Network().ConnsToPeer(pi.ID)) > 0 {
			continue
		}
		go func(target peer.ID) {
			dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			defer cancel()
			err := l.host.Connect(dialCtx, peer.AddrInfo{ID: target})
			l.internal <- internalEvent{dialOutcome: &dialOutcome{peer: target, err: err}}
		}(pi.ID)
	}
}

func ensurePeerIDSuffix(addr ma.Multiaddr, p peer.ID) ma.Multiaddr {
	for _, proto := range addr.Protocols() {
		if proto.Code == ma.P_P2P {
			return addr
		}
	}
	suffix, err := ma.NewMultiaddr("/p2p/" + p.String())
	if err != nil {
		return addr
	}
	return addr.Encapsulate(suffix)
}

func (l *Loop) handleMdnsSweep(o mdnsSweepOutcome) {
	for _, p := range o.expired {
		delete(l.mdnsExplicit, p)
		log.Debugw("mdns peer expired", "peer", p)
	}
}

func (l *Loop) handleBehaviourEvent(ctx context.Context, ev behaviour.Event) {
	switch ev.Kind {
	case behaviour.EventConnectionEstablished:
		if ev.Outbound {
			l.handleDialerConnectionEstablished(ev.Peer)
		}

	case behaviour.EventIdentifyReceived:
		if ev.ObservedAddr != nil {
			l.host.Peerstore().AddAddr(ev.Peer, ev.ObservedAddr, time.Hour)
			log.Debugw("identify: observed external address", "peer", ev.Peer, "addr", ev.ObservedAddr)
		}

	case behaviour.EventMdnsPeerFound:
		l.mdnsLastSeen[ev.Peer] = time.Now()
		if _, already := l.mdnsExplicit[ev.Peer]; !already {
			l.mdnsExplicit[ev.Peer] = struct{}{}
			l.host.Peerstore().AddAddrs(ev.Peer, ev.PeerInfo.Addrs, mdnsExpiryWindow)
			log.Infow("mdns: peer discovered", "peer", ev.Peer)
		}
		l.sweepExpiredMdnsPeers()

	case behaviour.EventGossipMessage:
		log.Infow("gossip message received", "topic", ev.Topic, "from", ev.Peer, "message_id", ev.MessageID)
		l.maybeForwardGossipPayload(ev)

	case behaviour.EventGossipSubscribed:
		log.Debugw("gossip: subscribed", "topic", ev.Topic)

	case behaviour.EventGossipUnsubscribed:
		log.Debugw("gossip: unsubscribed", "topic", ev.Topic)

	case behaviour.EventObservability:
		log.Debugw("observability event", "source", ev.Source, "detail", ev.Detail)

	default:
		log.Debugw("unhandled behaviour event kind", "kind", ev.Kind)
	}
}

// handleDialerConnectionEstablished attempts rendezvous registration for
// every outbound connection to the configured rendezvous peer, however it
// was opened (mDNS, relay, an explicit Dial, or the startup connect).
// Connections that also produce a dialOutcome are registered again by
// handleDialOutcome, so such a connection triggers two registrations.
func (l *Loop) handleDialerConnectionEstablished(p peer.ID) {
	if l.cfg.RendezvousPeer == nil || p != l.cfg.RendezvousPeer.ID {
		return
	}
	go func() {
		regCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		ttl, err := l.bh.RendezvousRegister(regCtx, l.namespace)
		l.internal <- internalEvent{rendezvousRegister: &rendezvousRegisterOutcome{ttl: ttl, err: err}}
	}()
}

func (l *Loop) sweepExpiredMdnsPeers() {
	now := time.Now()
	var expired []peer.ID
	for p, seen := range l.mdnsLastSeen {
		if now.Sub(seen) > mdnsExpiryWindow {
			expired = append(expired, p)
			delete(l.mdnsLastSeen, p)
		}
	}
	if len(expired) > 0 {
		l.handleMdnsSweep(mdnsSweepOutcome{expired: expired})
	}
}

// maybeForwardGossipPayload decodes the supplemental TaskProposal/
// BidResponse wire shapes (see internal/eventloop/commands.go's encoders)
// and, on success, forwards the matching event to the application. Decode
// failures are tolerated silently — this topic may also carry plain
// GossipMessage traffic the application handles itself via its own topic
// subscription.
func (l *Loop) maybeForwardGossipPayload(ev behaviour.Event) {
	if taskID, kind, desc, ok := decodeTaskProposal(ev.Data); ok {
		l.emitEvent(TaskProposalEvent{
			Topic: ev.Topic,
			From:  ev.Peer,
			Proposal: proto.TaskProposal{
				TaskID:      taskID,
				Kind:        kind,
				Description: desc,
			},
		})
		return
	}
	if taskID, bidder, price, ok := decodeBidResponse(ev.Data); ok {
		l.emitEvent(BidResponseEvent{
			Topic: ev.Topic,
			From:  ev.Peer,
			Bid: proto.BidResponse{
				TaskID: taskID,
				Bidder: bidder,
				Price:  price,
			},
		})
	}
}

// emitEvent sends ev on the outbound stream. It runs inline rather than in
// a goroutine — emitting two events out of order would violate the
// "events observed in the order the loop produced them" guarantee.
func (l *Loop) emitEvent(ev Event) {
	l.events <- ev
}
