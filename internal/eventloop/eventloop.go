package eventloop

import (
	"context"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/asn-net/asn/internal/behaviour"
	"github.com/asn-net/asn/internal/proto"
	"github.com/asn-net/asn/internal/reqresp"
)

var log = logging.Logger("asn/eventloop")

const discoveryTickInterval = 30 * time.Second

// Config parameterizes a Loop.
type Config struct {
	Host              host.Host
	Behaviour         *behaviour.Behaviour
	AdditionalTopics  []string
	RendezvousPeer    *peer.AddrInfo
	RendezvousNamespace string // empty uses proto.RendezvousNamespace
	ExternalAddr      ma.Multiaddr // optional, registered at startup
	CommandBufferSize int
}

// Loop is the single task that owns the swarm. It is
// constructed by the top-level asn package and must be driven by calling
// Run on a goroutine the application controls.
type Loop struct {
	cfg   Config
	host  host.Host
	bh    *behaviour.Behaviour
	namespace string

	commands chan Command
	events   chan Event
	internal chan internalEvent

	pending *pendingTables

	cookie []byte

	mdnsLastSeen map[peer.ID]time.Time
	mdnsExplicit map[peer.ID]struct{}
}

// New constructs a Loop. It does not start running until Run is called.
func New(cfg Config) *Loop {
	bufSize := cfg.CommandBufferSize
	if bufSize <= 0 {
		bufSize = 32
	}
	namespace := cfg.RendezvousNamespace
	if namespace == "" {
		namespace = proto.RendezvousNamespace
	}

	l := &Loop{
		cfg:          cfg,
		host:         cfg.Host,
		bh:           cfg.Behaviour,
		namespace:    namespace,
		commands:     make(chan Command, bufSize),
		events:       make(chan Event), // outbound stream deliberately unbuffered: sends block until the application drains.
		internal:     make(chan internalEvent, 64),
		pending:      newPendingTables(),
		mdnsLastSeen: make(map[peer.ID]time.Time),
		mdnsExplicit: make(map[peer.ID]struct{}),
	}

	go l.pumpBehaviourEvents()

	srv := &reqresp.Server{}
	srv.Register(cfg.Host, l.onInboundRequest)

	return l
}

// onInboundRequest bridges a reqresp inbound stream (running on its own
// per-stream goroutine, outside the loop) to an InboundRequestEvent the
// application observes from Events(). The reply channel is handed through
// verbatim; the application answers it via RespondLLMCmd.
func (l *Loop) onInboundRequest(from peer.ID, req proto.AgentRequest, reply chan<- proto.AgentResponse) {
	l.emitEvent(InboundRequestEvent{
		AgentName:       req.AgentName,
		Message:         req.Message,
		ResponseChannel: reply,
	})
}

// Commands returns the channel the client handle sends commands on.
func (l *Loop) Commands() chan<- Command {
	return l.commands
}

// Events returns the outbound event stream the application must drain.
func (l *Loop) Events() <-chan Event {
	return l.events
}

func (l *Loop) pumpBehaviourEvents() {
	for ev := range l.bh.Events() {
		ev := ev
		l.internal <- internalEvent{behaviourEvent: &ev}
	}
}

// Run drives the loop until ctx is cancelled or the command channel is
// closed. Cancellation drops all pending sinks; outstanding client waits
// observe a closed-channel error. Shutdown does not drain pending sinks.
func (l *Loop) Run(ctx context.Context) {
	defer l.shutdown()

	l.startup(ctx)

	ticker := time.NewTicker(discoveryTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Infow("event loop cancelled, shutting down")
			return

		case ie := <-l.internal:
			l.handleInternalEvent(ctx, ie)

		case cmd, ok := <-l.commands:
			if !ok {
				log.Infow("command channel closed, shutting down")
				return
			}
			l.handleCommand(ctx, cmd)

		case <-ticker.C:
			l.onDiscoveryTick(ctx)
		}
	}
}

// startup registers the configured external address, dials the rendezvous
// peer if configured, and attempts rendezvous registration.
func (l *Loop) startup(ctx context.Context) {
	if l.cfg.ExternalAddr != nil {
		l.host.Peerstore().AddAddr(l.host.ID(), l.cfg.ExternalAddr, time.Hour)
	}

	if l.cfg.RendezvousPeer == nil {
		return
	}

	go func() {
		dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		err := l.host.Connect(dialCtx, *l.cfg.RendezvousPeer)
		l.internal <- internalEvent{dialOutcome: &dialOutcome{peer: l.cfg.RendezvousPeer.ID, err: err}}
	}()
}

func (l *Loop) onDiscoveryTick(ctx context.Context) {
	if !l.bh.HasRendezvousPeer() {
		return
	}
	go func() {
		discoverCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		regs, cookie, err := l.bh.RendezvousDiscover(discoverCtx, l.namespace, l.cookie)
		l.internal <- internalEvent{rendezvousDiscover: &rendezvousDiscoverOutcome{cookie: cookie, regs: regs, err: err}}
	}()
}

func (l *Loop) shutdown() {
	l.bh.Shutdown()

	for _, ch := range l.pending.dial {
		close(ch)
	}
	for _, ch := range l.pending.startProviding {
		close(ch)
	}
	for _, ch := range l.pending.getProviders {
		close(ch)
	}
	for _, ch := range l.pending.request {
		close(ch)
	}
}
