package eventloop

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	rzv "github.com/libp2p/go-libp2p/p2p/protocol/rendezvous"

	"github.com/asn-net/asn/internal/behaviour"
)

// internalEvent unifies every continuous sub-protocol event (forwarded from
// internal/behaviour) and every short-lived async-command goroutine's
// outcome onto one channel of this type, which is the loop's single read
// source besides commands, cancellation, and the discovery tick. Exactly
// one field is non-nil per value.
type internalEvent struct {
	behaviourEvent     *behaviour.Event
	dialOutcome        *dialOutcome
	startProviding     *startProvidingOutcome
	getProviders       *getProvidersOutcome
	requestAgent       *requestAgentOutcome
	rendezvousRegister *rendezvousRegisterOutcome
	rendezvousDiscover *rendezvousDiscoverOutcome
	mdnsSweep          *mdnsSweepOutcome
}

type dialOutcome struct {
	peer peer.ID
	err  error
}

type startProvidingOutcome struct {
	id  string
	err error
}

type getProvidersOutcome struct {
	id    string
	peers []peer.ID
}

type requestAgentOutcome struct {
	id   string
	body []byte
	err  error
}

type rendezvousRegisterOutcome struct {
	ttl time.Duration
	err error
}

type rendezvousDiscoverOutcome struct {
	cookie []byte
	regs   []rzv.Registration
	err    error
}

// mdnsSweepOutcome carries peers whose mDNS sighting window has lapsed,
// produced by the sweep the loop runs on each mDNS sighting rather than by
// the mdns library (see types.go's mdnsExpiryWindow).
type mdnsSweepOutcome struct {
	expired []peer.ID
}

// pendingTables holds the four pending-id → reply-sink maps that correlate
// an async command with its eventual outcome. Owned exclusively by the
// loop; never touched from any other goroutine.
type pendingTables struct {
	dial           map[peer.ID]chan error
	startProviding map[string]chan error
	getProviders   map[string]chan []peer.ID
	request        map[string]chan RequestAgentResult
}

func newPendingTables() *pendingTables {
	return &pendingTables{
		dial:           make(map[peer.ID]chan error),
		startProviding: make(map[string]chan error),
		getProviders:   make(map[string]chan []peer.ID),
		request:        make(map[string]chan RequestAgentResult),
	}
}
