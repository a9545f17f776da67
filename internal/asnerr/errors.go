// Package asnerr defines the error kinds that cross the client/event-loop
// boundary. These are concrete types, not sentinel values, so callers can
// recover the offending address/peer with errors.As instead of string
// matching.
package asnerr

import (
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
)

// BindFailure is returned when StartListening fails to bind a listener.
type BindFailure struct {
	Addr string
	Err  error
}

func (e *BindFailure) Error() string {
	return fmt.Sprintf("bind failure on %s: %v", e.Addr, e.Err)
}

func (e *BindFailure) Unwrap() error { return e.Err }

// DialFailure is returned when Dial fails to establish an outbound connection.
type DialFailure struct {
	Peer peer.ID
	Addr string
	Err  error
}

func (e *DialFailure) Error() string {
	return fmt.Sprintf("dial failure to %s (%s): %v", e.Peer, e.Addr, e.Err)
}

func (e *DialFailure) Unwrap() error { return e.Err }

// RequestTransport is returned when an outbound AgentRequest fails at the
// request/response transport layer (no stream, reset, timeout).
type RequestTransport struct {
	Peer peer.ID
	Err  error
}

func (e *RequestTransport) Error() string {
	return fmt.Sprintf("request transport failure to %s: %v", e.Peer, e.Err)
}

func (e *RequestTransport) Unwrap() error { return e.Err }

// ProviderStoreFull is returned when the DHT rejects a StartProviding call.
type ProviderStoreFull struct {
	AgentName string
	Err       error
}

func (e *ProviderStoreFull) Error() string {
	return fmt.Sprintf("provider store rejected %q: %v", e.AgentName, e.Err)
}

func (e *ProviderStoreFull) Unwrap() error { return e.Err }

// DuplicateDial is returned when a Dial is issued for a peer that already has
// an outstanding dial in flight.
type DuplicateDial struct {
	Peer peer.ID
}

func (e *DuplicateDial) Error() string {
	return fmt.Sprintf("dial already in flight for peer %s", e.Peer)
}

// ErrLoopClosed is returned to a client call whose reply channel was closed
// without a reply — the event loop shut down with the operation pending.
var ErrLoopClosed = fmt.Errorf("asn: event loop closed before replying")
