package eventloop

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/asn-net/asn/internal/behaviour"
	"github.com/asn-net/asn/internal/identity"
	"github.com/asn-net/asn/internal/proto"
	"github.com/asn-net/asn/internal/swarmbuilder"
)

// node bundles everything a test needs to tear a single local swarm down
// cleanly, mirroring the construction sequence the top-level asn package
// performs for real.
type node struct {
	stack  *swarmbuilder.Stack
	bh     *behaviour.Behaviour
	loop   *Loop
	cancel context.CancelFunc
	done   chan struct{}
}

func newTestNode(t *testing.T, seed byte) *node {
	t.Helper()

	priv, err := identity.FromSeed(seed)
	if err != nil {
		t.Fatalf("identity.FromSeed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	stack, err := swarmbuilder.Build(ctx, swarmbuilder.Options{
		Identity:    priv,
		ListenAddrs: []string{"/ip4/127.0.0.1/tcp/0"},
	})
	if err != nil {
		cancel()
		t.Fatalf("swarmbuilder.Build: %v", err)
	}

	bh, err := behaviour.New(behaviour.Config{
		Host:   stack.Host,
		DHT:    stack.DHT,
		PubSub: stack.PubSub,
	})
	if err != nil {
		cancel()
		_ = stack.Close()
		t.Fatalf("behaviour.New: %v", err)
	}

	loop := New(Config{
		Host:      stack.Host,
		Behaviour: bh,
	})

	n := &node{stack: stack, bh: bh, loop: loop, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(n.done)
		loop.Run(ctx)
	}()

	// Drain the unbuffered outbound event stream so InboundRequestEvent
	// and TaskProposalEvent sends never block the loop goroutine mid-test.
	go func() {
		for range loop.Events() {
		}
	}()

	return n
}

func (n *node) Close() {
	n.cancel()
	<-n.done
	_ = n.stack.Close()
}

func connectNodes(t *testing.T, a, b *node) {
	t.Helper()
	bInfo := peer.AddrInfo{ID: b.stack.Host.ID(), Addrs: b.stack.Host.Addrs()}
	if len(bInfo.Addrs) == 0 {
		t.Fatal("node b has no listen addresses")
	}

	reply := make(chan error, 1)
	a.loop.Commands() <- &DialCmd{Peer: bInfo.ID, Addr: bInfo.Addrs[0].String(), Reply: reply}

	select {
	case err := <-reply:
		if err != nil {
			t.Fatalf("dial a->b failed: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("dial a->b did not complete")
	}
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// go-libp2p and its transitive deps start a number of long-lived
		// background goroutines (connection managers, resource manager,
		// QUIC reuse) that outlive an individual host.Close() by design
		// and are not under this package's control.
		goleak.IgnoreTopFunction("github.com/libp2p/go-libp2p/p2p/net/swarm.(*Swarm).addConn.func2"),
		goleak.IgnoreTopFunction("github.com/libp2p/go-libp2p-kad-dht.(*IpfsDHT).persistRTIfNeeded"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

func TestBootstrapSubscribesAndShutdownCleans(t *testing.T) {
	n := newTestNode(t, 1)
	defer n.Close()

	reply := make(chan struct{})
	n.loop.Commands() <- &BootstrapCmd{Reply: reply}

	select {
	case <-reply:
	case <-time.After(5 * time.Second):
		t.Fatal("bootstrap did not complete")
	}

	for _, topic := range []string{proto.BootstrapTopicEveryone, proto.BootstrapTopicCapabilities} {
		if n.bh.Topic(topic) == nil {
			t.Fatalf("expected topic %q to be joined after Bootstrap", topic)
		}
	}
}

func TestProvideAndFetchRoundTrip(t *testing.T) {
	a := newTestNode(t, 2)
	defer a.Close()
	b := newTestNode(t, 3)
	defer b.Close()

	connectNodes(t, a, b)

	provideReply := make(chan error, 1)
	a.loop.Commands() <- &StartProvidingCmd{AgentName: "weather-bot", Reply: provideReply}
	select {
	case err := <-provideReply:
		if err != nil {
			t.Fatalf("StartProviding failed: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("StartProviding did not complete")
	}

	getReply := make(chan []peer.ID, 1)
	b.loop.Commands() <- &GetProvidersCmd{AgentName: "weather-bot", Reply: getReply}

	select {
	case peers := <-getReply:
		found := false
		for _, p := range peers {
			if p == a.stack.Host.ID() {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected %s among providers, got %v", a.stack.Host.ID(), peers)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("GetProviders did not complete")
	}
}

func TestGetProvidersEmptySetDoesNotHang(t *testing.T) {
	n := newTestNode(t, 4)
	defer n.Close()

	reply := make(chan []peer.ID, 1)
	n.loop.Commands() <- &GetProvidersCmd{AgentName: "nobody-provides-this", Reply: reply}

	select {
	case peers := <-reply:
		if len(peers) != 0 {
			t.Fatalf("expected empty provider set, got %v", peers)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("GetProviders with no providers hung instead of completing with an empty set")
	}
}

func TestDialFailureSurfacedAsError(t *testing.T) {
	n := newTestNode(t, 5)
	defer n.Close()

	pid, err := peer.Decode("12D3KooWGRUmEZzRswUVbUPjgGnNqFazCKvb3A6xaBHtLPBKCZbZ")
	if err != nil {
		t.Fatalf("peer.Decode: %v", err)
	}

	reply := make(chan error, 1)
	n.loop.Commands() <- &DialCmd{Peer: pid, Addr: "/ip4/127.0.0.1/tcp/1", Reply: reply}

	select {
	case err := <-reply:
		if err == nil {
			t.Fatal("expected dial failure, got nil")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("dial did not complete")
	}
}

func TestDuplicateDialRejected(t *testing.T) {
	n := newTestNode(t, 7)
	defer n.Close()

	pid, err := peer.Decode("12D3KooWGRUmEZzRswUVbUPjgGnNqFazCKvb3A6xaBHtLPBKCZbZ")
	if err != nil {
		t.Fatalf("peer.Decode: %v", err)
	}

	first := make(chan error, 1)
	second := make(chan error, 1)
	n.loop.Commands() <- &DialCmd{Peer: pid, Addr: "/ip4/127.0.0.1/tcp/1", Reply: first}
	n.loop.Commands() <- &DialCmd{Peer: pid, Addr: "/ip4/127.0.0.1/tcp/1", Reply: second}

	select {
	case err := <-second:
		if err == nil {
			t.Fatal("expected DuplicateDial error on second reply, got nil")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("duplicate dial did not return promptly")
	}

	select {
	case <-first:
	case <-time.After(10 * time.Second):
		t.Fatal("first dial did not complete")
	}
}

// TestCancellationClosesPendingSink verifies that cancelling the loop's
// context, rather than leaving an outstanding command's reply channel
// unresolved forever, causes shutdown to close every pending sink so a
// blocked receiver observes a zero value instead of hanging.
func TestCancellationClosesPendingSink(t *testing.T) {
	n := newTestNode(t, 6)

	pid, err := peer.Decode("12D3KooWGRUmEZzRswUVbUPjgGnNqFazCKvb3A6xaBHtLPBKCZbZ")
	if err != nil {
		t.Fatalf("peer.Decode: %v", err)
	}

	reply := make(chan error, 1)
	n.loop.Commands() <- &DialCmd{Peer: pid, Addr: "/ip4/127.0.0.1/tcp/65530", Reply: reply}

	n.cancel()
	<-n.done
	_ = n.stack.Close()

	select {
	case _, ok := <-reply:
		_ = ok // either a late failure reply or a closed-channel zero value is acceptable
	case <-time.After(10 * time.Second):
		t.Fatal("pending dial sink was neither completed nor closed after shutdown")
	}
}
