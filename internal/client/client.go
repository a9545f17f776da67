// Package client provides the cheaply-cloneable handle applications use to
// drive a running event loop. Every method sends a Command and, where the
// operation is request/reply rather than fire-and-forget, blocks on a
// fresh reply channel until the loop answers it — a oneshot-channel-per-call
// pattern for pending acknowledgements.
package client

import (
	"context"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/asn-net/asn/internal/asnerr"
	"github.com/asn-net/asn/internal/eventloop"
	"github.com/asn-net/asn/internal/proto"
)

// Client is a lightweight handle over an event loop's command channel. The
// zero value is not usable; construct with New. A Client is safe to copy
// and share across goroutines — the underlying channel send is the only
// shared state.
type Client struct {
	commands chan<- eventloop.Command
}

// New wraps a loop's command channel in a Client.
func New(commands chan<- eventloop.Command) *Client {
	return &Client{commands: commands}
}

// StartListening requests that the swarm begin listening on addr.
func (c *Client) StartListening(ctx context.Context, addr string) error {
	reply := make(chan error, 1)
	if err := c.send(ctx, &eventloop.StartListeningCmd{Addr: addr, Reply: reply}); err != nil {
		return err
	}
	return await(ctx, reply)
}

// Dial requests an outbound connection to peer p at addr.
func (c *Client) Dial(ctx context.Context, p peer.ID, addr string) error {
	reply := make(chan error, 1)
	if err := c.send(ctx, &eventloop.DialCmd{Peer: p, Addr: addr, Reply: reply}); err != nil {
		return err
	}
	return await(ctx, reply)
}

// Bootstrap triggers the composite behaviour's bootstrap hook and blocks
// until it has run. Failures inside it are logged, not returned.
func (c *Client) Bootstrap(ctx context.Context) error {
	reply := make(chan struct{}, 1)
	if err := c.send(ctx, &eventloop.BootstrapCmd{Reply: reply}); err != nil {
		return err
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartProviding advertises agentName as a capability this node can serve.
func (c *Client) StartProviding(ctx context.Context, agentName string) error {
	reply := make(chan error, 1)
	if err := c.send(ctx, &eventloop.StartProvidingCmd{AgentName: agentName, Reply: reply}); err != nil {
		return err
	}
	return await(ctx, reply)
}

// GetProviders looks up the set of peers currently providing agentName. An
// empty, non-nil slice with a nil error means the lookup completed and
// found nobody.
func (c *Client) GetProviders(ctx context.Context, agentName string) ([]peer.ID, error) {
	reply := make(chan []peer.ID, 1)
	if err := c.send(ctx, &eventloop.GetProvidersCmd{AgentName: agentName, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case peers, ok := <-reply:
		if !ok {
			return nil, errLoopClosed
		}
		return peers, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RequestAgent sends message to the named agent hosted by peer p and
// returns its response body.
func (c *Client) RequestAgent(ctx context.Context, p peer.ID, agentName, message string) ([]byte, error) {
	reply := make(chan eventloop.RequestAgentResult, 1)
	if err := c.send(ctx, &eventloop.RequestAgentCmd{Peer: p, AgentName: agentName, Message: message, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case res, ok := <-reply:
		if !ok {
			return nil, errLoopClosed
		}
		return res.Body, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RespondLLM answers an InboundRequestEvent the application previously
// received, delivering body over the event's ResponseChannel. Fire-and-
// forget: the loop either delivers it or, if the peer has since
// disconnected, drops it silently.
func (c *Client) RespondLLM(body []byte, responseChannel chan<- proto.AgentResponse) {
	c.commands <- &eventloop.RespondLLMCmd{Body: body, ResponseChannel: responseChannel}
}

// GossipMessage publishes message on topic. Fire-and-forget.
func (c *Client) GossipMessage(topic, message string) {
	c.commands <- &eventloop.GossipMessageCmd{Topic: topic, Message: message}
}

// ProposeTask broadcasts a TaskProposal on topic. Fire-and-forget.
func (c *Client) ProposeTask(topic string, proposal proto.TaskProposal) {
	c.commands <- &eventloop.ProposeTaskCmd{Topic: topic, Proposal: proposal}
}

// SubmitBid broadcasts a BidResponse on topic. Fire-and-forget.
func (c *Client) SubmitBid(topic string, bid proto.BidResponse) {
	c.commands <- &eventloop.SubmitBidCmd{Topic: topic, Bid: bid}
}

func (c *Client) send(ctx context.Context, cmd eventloop.Command) error {
	select {
	case c.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func await(ctx context.Context, reply chan error) error {
	select {
	case err, ok := <-reply:
		if !ok {
			return errLoopClosed
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// errLoopClosed is returned when a reply channel is closed out from under a
// waiting caller, which only happens during loop shutdown (eventloop.Loop's
// shutdown closes every pending sink rather than completing it).
var errLoopClosed = asnerr.ErrLoopClosed
