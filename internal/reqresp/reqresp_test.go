package reqresp

import (
	"context"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/asn-net/asn/internal/proto"
)

func newTestHost(t *testing.T) host.Host {
	t.Helper()
	h, err := libp2p.New(
		libp2p.ListenAddrStrings("/ip4/127.0.0.1/tcp/0"),
		libp2p.NoSecurity,
		libp2p.DisableRelay(),
	)
	if err != nil {
		t.Fatalf("libp2p.New: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func connectHosts(t *testing.T, a, b host.Host) {
	t.Helper()
	ai := peer.AddrInfo{ID: b.ID(), Addrs: b.Addrs()}
	if err := a.Connect(context.Background(), ai); err != nil {
		t.Fatalf("connect: %v", err)
	}
}

func TestRequestResponseRoundTrip(t *testing.T) {
	provider := newTestHost(t)
	seeker := newTestHost(t)
	connectHosts(t, seeker, provider)

	srv := &Server{ResponseTimeout: 2 * time.Second}
	srv.Register(provider, func(from peer.ID, req proto.AgentRequest, reply chan<- proto.AgentResponse) {
		if req.AgentName != "weather" || req.Message != "London?" {
			t.Errorf("unexpected inbound request: %+v", req)
		}
		reply <- proto.AgentResponse{Body: []byte{0x48, 0x69}}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := SendRequest(ctx, seeker, provider.ID(), proto.AgentRequest{AgentName: "weather", Message: "London?"})
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if string(resp.Body) != "Hi" {
		t.Fatalf("response body = %q, want Hi", resp.Body)
	}
}

func TestRequestResponseHandlerNeverReplies(t *testing.T) {
	provider := newTestHost(t)
	seeker := newTestHost(t)
	connectHosts(t, seeker, provider)

	srv := &Server{ResponseTimeout: 200 * time.Millisecond}
	srv.Register(provider, func(from peer.ID, req proto.AgentRequest, reply chan<- proto.AgentResponse) {
		// Deliberately never sends on reply.
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := SendRequest(ctx, seeker, provider.ID(), proto.AgentRequest{AgentName: "x", Message: "y"}); err == nil {
		t.Fatalf("expected error when handler never replies")
	}
}

func TestRequestResponseNoStreamHandler(t *testing.T) {
	a := newTestHost(t)
	b := newTestHost(t)
	connectHosts(t, a, b)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := SendRequest(ctx, a, b.ID(), proto.AgentRequest{AgentName: "x", Message: "y"}); err == nil {
		t.Fatalf("expected error when peer has no registered handler")
	}
}
