// Package reqresp implements the AgentRequest/AgentResponse stream protocol:
// a single libp2p stream protocol, identified by the same string identify
// advertises as its protocol version, carrying one AgentRequest and
// returning one AgentResponse per stream.
//
// The pattern — register a stream handler that decodes a request, hands it
// to a callback together with a reply channel, and waits (with a timeout)
// for the callback to produce a response — adapts a pending-ack-channel
// design to a request/response shape instead of fire-and-forget/heartbeat
// shapes.
package reqresp

import (
	"context"
	"fmt"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"

	"github.com/asn-net/asn/internal/codec"
	"github.com/asn-net/asn/internal/proto"
)

var log = logging.Logger("asn/reqresp")

// DefaultResponseTimeout bounds how long an inbound stream stays open
// waiting for the local handler to produce a response: a requester whose
// peer never calls RespondLLM eventually sees the stream close rather than
// hanging forever.
const DefaultResponseTimeout = 30 * time.Second

// Handler is invoked for every inbound AgentRequest. The implementation
// must eventually send exactly one AgentResponse on reply, or the stream
// will be closed unanswered once ResponseTimeout elapses.
type Handler func(from peer.ID, req proto.AgentRequest, reply chan<- proto.AgentResponse)

// Server registers the request/response stream handler on a host.
type Server struct {
	ResponseTimeout time.Duration
}

// Register installs the stream handler for proto.ProtocolVersion on h,
// dispatching every inbound request to onRequest.
func (s *Server) Register(h host.Host, onRequest Handler) {
	timeout := s.ResponseTimeout
	if timeout <= 0 {
		timeout = DefaultResponseTimeout
	}

	h.SetStreamHandler(protocol.ID(proto.ProtocolVersion), func(stream network.Stream) {
		defer stream.Close()

		req, err := codec.ReadAgentRequest(stream)
		if err != nil {
			log.Debugw("inbound request decode failed", "peer", stream.Conn().RemotePeer(), "err", err)
			stream.Reset()
			return
		}

		reply := make(chan proto.AgentResponse, 1)
		onRequest(stream.Conn().RemotePeer(), req, reply)

		select {
		case resp := <-reply:
			if err := codec.WriteAgentResponse(stream, resp); err != nil {
				log.Debugw("inbound response write failed", "peer", stream.Conn().RemotePeer(), "err", err)
			}
		case <-time.After(timeout):
			log.Debugw("inbound request timed out waiting for handler response",
				"peer", stream.Conn().RemotePeer(), "agent_name", req.AgentName)
			stream.Reset()
		}
	})
}

// SendRequest opens a stream to target, writes req, and waits for the single
// AgentResponse it carries back. Any transport-layer failure (no stream,
// reset, decode error) is returned as-is for the caller to wrap into a
// RequestTransport error kind.
func SendRequest(ctx context.Context, h host.Host, target peer.ID, req proto.AgentRequest) (proto.AgentResponse, error) {
	stream, err := h.NewStream(ctx, target, protocol.ID(proto.ProtocolVersion))
	if err != nil {
		return proto.AgentResponse{}, fmt.Errorf("open stream: %w", err)
	}
	defer stream.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetDeadline(deadline)
	}

	if err := codec.WriteAgentRequest(stream, req); err != nil {
		stream.Reset()
		return proto.AgentResponse{}, fmt.Errorf("write request: %w", err)
	}

	resp, err := codec.ReadAgentResponse(stream)
	if err != nil {
		stream.Reset()
		return proto.AgentResponse{}, fmt.Errorf("read response: %w", err)
	}

	return resp, nil
}
