// Package proto defines the protocol identifiers and wire message shapes
// that cross a libp2p stream or gossip topic. Command/Event types that cross
// the in-process client/event-loop boundary live in internal/eventloop; this
// package only concerns itself with what goes over the network.
package proto

const (
	// ProtocolVersion is advertised by the identify sub-protocol and used
	// verbatim as the request/response stream protocol ID. Compatibility
	// between nodes rests entirely on this string — there is no version
	// field inside the wire codec.
	ProtocolVersion = "/asn/1.0.0"

	// RendezvousNamespace is the static namespace every node registers
	// itself under and discovers peers from.
	RendezvousNamespace = "binary-souls"

	// BootstrapTopicEveryone and BootstrapTopicCapabilities are always
	// subscribed when a node bootstraps.
	BootstrapTopicEveryone     = "everyone"
	BootstrapTopicCapabilities = "capabilities"

	// MdnsServiceTag names the local mDNS discovery service.
	MdnsServiceTag = "asn-mdns"
)

// AgentRequest is the request half of an agent invocation: the name of the
// capability being invoked, and an opaque message string carried to it.
// Agent names are matched byte-for-byte; no normalization is applied.
type AgentRequest struct {
	AgentName string
	Message   string
}

// AgentResponse is the response half of an agent invocation: an opaque
// byte sequence produced by the provider's agent handler.
type AgentResponse struct {
	Body []byte
}

// TaskProposal is a gossip-carried announcement of work available for bid.
// It is supplemental to the distilled agent request/response exchange:
// carried over the existing gossip transport via Client.ProposeTask/
// TaskProposalEvent, with no escrow or award-selection logic behind it.
type TaskProposal struct {
	TaskID      string
	Kind        string
	Description string
}

// BidResponse is a gossip-carried response to a TaskProposal, carried over
// the same gossip transport via Client.SubmitBid/BidResponseEvent. Like
// TaskProposal, there is no escrow or award-selection logic behind it —
// matching a bid to a proposal is left to the application.
type BidResponse struct {
	TaskID string
	Bidder string
	Price  uint64
}
