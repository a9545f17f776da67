package swarmbuilder

import (
	"context"
	"testing"
	"time"

	"github.com/asn-net/asn/internal/identity"
)

func TestBuildProducesUsableStack(t *testing.T) {
	priv, err := identity.FromSeed(1)
	if err != nil {
		t.Fatalf("FromSeed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stack, err := Build(ctx, Options{
		Identity:    priv,
		ListenAddrs: []string{"/ip4/127.0.0.1/tcp/0"},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer stack.Close()

	if len(stack.Host.Addrs()) == 0 {
		t.Fatalf("expected host to have at least one listen address")
	}
	if stack.DHT == nil {
		t.Fatalf("expected non-nil DHT")
	}
	if stack.PubSub == nil {
		t.Fatalf("expected non-nil PubSub")
	}
}

func TestBuildFailsOnBadListenAddr(t *testing.T) {
	priv, err := identity.FromSeed(1)
	if err != nil {
		t.Fatalf("FromSeed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = Build(ctx, Options{
		Identity:    priv,
		ListenAddrs: []string{"not-a-multiaddr"},
	})
	if err == nil {
		t.Fatalf("expected Build to fail on an invalid listen address")
	}
}
