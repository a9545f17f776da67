// Package eventloop is the heart of the system: the single task that owns
// the swarm, multiplexes commands/events/ticks, and matches asynchronous
// sub-protocol outcomes to the pending-table entry the originating command
// registered.
package eventloop

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/asn-net/asn/internal/proto"
)

// Command is the sum type crossing the client-handle → loop boundary. Each
// variant is a concrete struct carrying its own reply sink, matching a
// "consume by move" one-shot reply discipline — a double reply is a
// type-level impossibility since callers must supply a fresh channel per
// call and the loop only ever sends once.
type Command interface {
	isCommand()
}

// StartListeningCmd requests that the swarm begin listening on Addr.
type StartListeningCmd struct {
	Addr  string
	Reply chan error
}

func (*StartListeningCmd) isCommand() {}

// DialCmd requests an outbound connection to Peer at Addr.
type DialCmd struct {
	Peer  peer.ID
	Addr  string
	Reply chan error
}

func (*DialCmd) isCommand() {}

// BootstrapCmd invokes the composite behaviour's bootstrap hook.
type BootstrapCmd struct {
	Reply chan struct{}
}

func (*BootstrapCmd) isCommand() {}

// StartProvidingCmd advertises AgentName as a DHT-provided capability.
type StartProvidingCmd struct {
	AgentName string
	Reply     chan error
}

func (*StartProvidingCmd) isCommand() {}

// GetProvidersCmd looks up providers of AgentName in the DHT.
type GetProvidersCmd struct {
	AgentName string
	Reply     chan []peer.ID
}

func (*GetProvidersCmd) isCommand() {}

// RequestAgentResult is the outcome of a RequestAgentCmd.
type RequestAgentResult struct {
	Body []byte
	Err  error
}

// RequestAgentCmd sends an AgentRequest to Peer and waits for the response.
type RequestAgentCmd struct {
	Peer      peer.ID
	AgentName string
	Message   string
	Reply     chan RequestAgentResult
}

func (*RequestAgentCmd) isCommand() {}

// RespondLLMCmd delivers a response body to the channel an InboundRequest
// event handed to the application. Fire-and-forget: there is no reply.
type RespondLLMCmd struct {
	Body            []byte
	ResponseChannel chan<- proto.AgentResponse
}

func (*RespondLLMCmd) isCommand() {}

// GossipMessageCmd publishes Message on Topic. Fire-and-forget.
type GossipMessageCmd struct {
	Topic   string
	Message string
}

func (*GossipMessageCmd) isCommand() {}

// ProposeTaskCmd broadcasts a TaskProposal on Topic. Fire-and-forget like
// GossipMessageCmd, carried over the same gossip transport.
type ProposeTaskCmd struct {
	Topic    string
	Proposal proto.TaskProposal
}

func (*ProposeTaskCmd) isCommand() {}

// SubmitBidCmd broadcasts a BidResponse on Topic. Fire-and-forget like
// ProposeTaskCmd, carried over the same gossip transport.
type SubmitBidCmd struct {
	Topic string
	Bid   proto.BidResponse
}

func (*SubmitBidCmd) isCommand() {}

// Event is the sum type crossing the loop → application boundary.
type Event interface {
	isEvent()
}

// InboundRequestEvent is emitted when a peer sends this node an AgentRequest.
// The application must eventually send RespondLLMCmd with ResponseChannel;
// failing to do so leaves the peer waiting until reqresp's
// DefaultResponseTimeout resets the stream.
type InboundRequestEvent struct {
	AgentName       string
	Message         string
	ResponseChannel chan<- proto.AgentResponse
}

func (InboundRequestEvent) isEvent() {}

// TaskProposalEvent is emitted when a TaskProposal arrives over gossip.
// Exercised as an opaque payload, not wired to any bidding/escrow logic.
type TaskProposalEvent struct {
	Topic    string
	From     peer.ID
	Proposal proto.TaskProposal
}

func (TaskProposalEvent) isEvent() {}

// BidResponseEvent is emitted when a BidResponse arrives over gossip.
// Exercised as an opaque payload, not wired to any escrow/award-selection
// logic.
type BidResponseEvent struct {
	Topic string
	From  peer.ID
	Bid   proto.BidResponse
}

func (BidResponseEvent) isEvent() {}

// mdnsExpiryWindow is how long an mDNS-discovered peer stays in the loop's
// mDNS peer set (and its addresses in the peerstore) without being
// re-observed before this loop synthesizes the expiry go-libp2p's
// mdns.Notifee interface never reports natively (see internal/behaviour's
// note on EventMdnsPeerExpired). The set is tracked by the loop only; it is
// not handed to gossipsub as explicit or direct peers.
const mdnsExpiryWindow = 2 * time.Minute
