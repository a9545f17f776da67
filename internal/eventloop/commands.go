package eventloop

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	cid "github.com/ipfs/go-cid"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	mh "github.com/multiformats/go-multihash"

	"github.com/asn-net/asn/internal/asnerr"
	"github.com/asn-net/asn/internal/proto"
	"github.com/asn-net/asn/internal/reqresp"
)

// agentNameCID deterministically derives the DHT provider-record key for an
// agent name. Provider keys are conceptually the raw UTF-8 bytes of the
// agent name, but go-libp2p-kad-dht's Provide/FindProvidersAsync require a
// cid.Cid, not a raw byte key — so the same bytes are always wrapped in the
// same CID (SHA-256 multihash, raw codec), preserving byte-identical
// matching while satisfying the library's type.
func agentNameCID(agentName string) (cid.Cid, error) {
	sum, err := mh.Sum([]byte(agentName), mh.SHA2_256, -1)
	if err != nil {
		return cid.Undef, fmt.Errorf("hash agent name: %w", err)
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

func (l *Loop) handleCommand(ctx context.Context, cmd Command) {
	switch c := cmd.(type) {
	case *StartListeningCmd:
		l.handleStartListening(c)
	case *DialCmd:
		l.handleDial(ctx, c)
	case *BootstrapCmd:
		l.handleBootstrap(ctx, c)
	case *StartProvidingCmd:
		l.handleStartProviding(ctx, c)
	case *GetProvidersCmd:
		l.handleGetProviders(ctx, c)
	case *RequestAgentCmd:
		l.handleRequestAgent(ctx, c)
	case *RespondLLMCmd:
		l.handleRespondLLM(c)
	case *GossipMessageCmd:
		l.handleGossipMessage(ctx, c)
	case *ProposeTaskCmd:
		l.handleProposeTask(ctx, c)
	case *SubmitBidCmd:
		l.handleSubmitBid(ctx, c)
	default:
		log.Warnw("unknown command type", "type", fmt.Sprintf("%T", cmd))
	}
}

func (l *Loop) handleStartListening(c *StartListeningCmd) {
	addr, err := ma.NewMultiaddr(c.Addr)
	if err != nil {
		c.Reply <- &asnerr.BindFailure{Addr: c.Addr, Err: err}
		return
	}
	if err := l.host.Network().Listen(addr); err != nil {
		c.Reply <- &asnerr.BindFailure{Addr: c.Addr, Err: err}
		return
	}
	c.Reply <- nil
}

func (l *Loop) handleDial(ctx context.Context, c *DialCmd) {
	if _, inFlight := l.pending.dial[c.Peer]; inFlight {
		c.Reply <- &asnerr.DuplicateDial{Peer: c.Peer}
		return
	}

	addr, err := ma.NewMultiaddr(c.Addr)
	if err != nil {
		c.Reply <- &asnerr.DialFailure{Peer: c.Peer, Addr: c.Addr, Err: err}
		return
	}

	l.host.Peerstore().AddAddr(c.Peer, addr, time.Hour)
	l.pending.dial[c.Peer] = c.Reply

	go func() {
		dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		err := l.host.Connect(dialCtx, peer.AddrInfo{ID: c.Peer, Addrs: []ma.Multiaddr{addr}})
		l.internal <- internalEvent{dialOutcome: &dialOutcome{peer: c.Peer, err: err}}
	}()
}

func (l *Loop) handleBootstrap(ctx context.Context, c *BootstrapCmd) {
	l.bh.Bootstrap(ctx, l.cfg.AdditionalTopics)
	c.Reply <- struct{}{}
}

func (l *Loop) handleStartProviding(ctx context.Context, c *StartProvidingCmd) {
	id := uuid.NewString()
	l.pending.startProviding[id] = c.Reply

	key, err := agentNameCID(c.AgentName)
	if err != nil {
		delete(l.pending.startProviding, id)
		c.Reply <- &asnerr.ProviderStoreFull{AgentName: c.AgentName, Err: err}
		return
	}

	go func() {
		provideCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		err := l.bh.DHT().Provide(provideCtx, key, true)
		if err != nil {
			err = &asnerr.ProviderStoreFull{AgentName: c.AgentName, Err: err}
		}
		l.internal <- internalEvent{startProviding: &startProvidingOutcome{id: id, err: err}}
	}()
}

func (l *Loop) handleGetProviders(ctx context.Context, c *GetProvidersCmd) {
	id := uuid.NewString()
	l.pending.getProviders[id] = c.Reply

	key, err := agentNameCID(c.AgentName)
	if err != nil {
		delete(l.pending.getProviders, id)
		c.Reply <- nil
		return
	}

	go func() {
		findCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		peers := []peer.ID{}
		for pi := range l.bh.DHT().FindProvidersAsync(findCtx, key, 0) {
			peers = append(peers, pi.ID)
		}
		l.internal <- internalEvent{getProviders: &getProvidersOutcome{id: id, peers: peers}}
	}()
}

func (l *Loop) handleRequestAgent(ctx context.Context, c *RequestAgentCmd) {
	id := uuid.NewString()
	l.pending.request[id] = c.Reply

	go func() {
		reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		resp, err := reqresp.SendRequest(reqCtx, l.host, c.Peer, proto.AgentRequest{AgentName: c.AgentName, Message: c.Message})
		l.internal <- internalEvent{requestAgent: &requestAgentOutcome{id: id, body: resp.Body, err: err}}
	}()
}

func (l *Loop) handleRespondLLM(c *RespondLLMCmd) {
	select {
	case c.ResponseChannel <- proto.AgentResponse{Body: c.Body}:
	default:
		log.Debugw("RespondLLM: response channel not ready to receive, dropping (peer likely disconnected)")
	}
}

func (l *Loop) handleGossipMessage(ctx context.Context, c *GossipMessageCmd) {
	topic := l.bh.Topic(c.Topic)
	if topic == nil {
		var err error
		topic, err = l.subscribeAdHoc(c.Topic)
		if err != nil {
			log.Warnw("gossip publish: topic unavailable", "topic", c.Topic, "err", err)
			return
		}
	}
	if err := topic.Publish(ctx, []byte(c.Message)); err != nil {
		log.Warnw("gossip publish failed", "topic", c.Topic, "err", err)
	}
}

func (l *Loop) handleProposeTask(ctx context.Context, c *ProposeTaskCmd) {
	topic := l.bh.Topic(c.Topic)
	if topic == nil {
		var err error
		topic, err = l.subscribeAdHoc(c.Topic)
		if err != nil {
			log.Warnw("propose task: topic unavailable", "topic", c.Topic, "err", err)
			return
		}
	}
	payload := encodeTaskProposal(c.Proposal)
	if err := topic.Publish(ctx, payload); err != nil {
		log.Warnw("propose task publish failed", "topic", c.Topic, "err", err)
	}
}

func (l *Loop) handleSubmitBid(ctx context.Context, c *SubmitBidCmd) {
	topic := l.bh.Topic(c.Topic)
	if topic == nil {
		var err error
		topic, err = l.subscribeAdHoc(c.Topic)
		if err != nil {
			log.Warnw("submit bid: topic unavailable", "topic", c.Topic, "err", err)
			return
		}
	}
	payload := encodeBidResponse(c.Bid)
	if err := topic.Publish(ctx, payload); err != nil {
		log.Warnw("submit bid publish failed", "topic", c.Topic, "err", err)
	}
}

// taskProposalTag and bidResponseTag mark which of the two NUL-joined
// gossip payload shapes a message carries, since both TaskProposal and
// BidResponse ride the same caller-chosen topics and a bare field count
// can't tell them apart.
const (
	taskProposalTag = 'T'
	bidResponseTag  = 'B'
)

// encodeTaskProposal/decodeTaskProposal and encodeBidResponse/
// decodeBidResponse give TaskProposal and BidResponse, two supplemental
// payload types alongside AgentRequest/AgentResponse, a minimal wire shape
// distinct from the tagged stream codec, since they ride gossip topics
// rather than request/response streams: a one-byte tag followed by
// NUL-joined fields. Not intended to carry field values containing NUL
// bytes.
func encodeTaskProposal(p proto.TaskProposal) []byte {
	body := fmt.Sprintf("%s\x00%s\x00%s", p.TaskID, p.Kind, p.Description)
	return append([]byte{taskProposalTag}, body...)
}

func decodeTaskProposal(data []byte) (taskID, kind, description string, ok bool) {
	if len(data) == 0 || data[0] != taskProposalTag {
		return "", "", "", false
	}
	parts := bytesSplitN(data[1:], '\x00', 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return string(parts[0]), string(parts[1]), string(parts[2]), true
}

func encodeBidResponse(b proto.BidResponse) []byte {
	body := fmt.Sprintf("%s\x00%s\x00%d", b.TaskID, b.Bidder, b.Price)
	return append([]byte{bidResponseTag}, body...)
}

func decodeBidResponse(data []byte) (taskID, bidder string, price uint64, ok bool) {
	if len(data) == 0 || data[0] != bidResponseTag {
		return "", "", 0, false
	}
	parts := bytesSplitN(data[1:], '\x00', 3)
	if len(parts) != 3 {
		return "", "", 0, false
	}
	parsed, err := strconv.ParseUint(string(parts[2]), 10, 64)
	if err != nil {
		return "", "", 0, false
	}
	return string(parts[0]), string(parts[1]), parsed, true
}

func bytesSplitN(data []byte, sep byte, n int) [][]byte {
	var out [][]byte
	start := 0
	for i := 0; i < len(data) && len(out) < n-1; i++ {
		if data[i] == sep {
			out = append(out, data[start:i])
			start = i + 1
		}
	}
	out = append(out, data[start:])
	return out
}

func (l *Loop) subscribeAdHoc(topic string) (*pubsub.Topic, error) {
	if _, err := l.bh.Subscribe(topic); err != nil {
		return nil, err
	}
	return l.bh.Topic(topic), nil
}
