// Command asnnode is a minimal demonstration runner for the network core: it
// loads (or creates) a node directory's config file, constructs a Node, and
// drives it until interrupted, printing every event it observes. It is not
// a full CLI front end — no peer-directory content serving, no rendezvous
// monitor HTTP server, no desktop UI — those surfaces are out of scope.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/asn-net/asn"
	"github.com/asn-net/asn/internal/config"
	"github.com/asn-net/asn/internal/eventloop"
)

func main() {
	nodeDir := flag.String("dir", ".", "node directory containing asn.json")
	flag.Parse()

	absDir, err := filepath.Abs(*nodeDir)
	if err != nil {
		log.Fatalf("invalid node directory: %v", err)
	}

	cfgPath := filepath.Join(absDir, "asn.json")
	cfg, created, err := config.Ensure(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if created {
		log.Printf("wrote default config to %s", cfgPath)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutting down...")
		cancel()
	}()

	node, err := asn.New(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to construct node: %v", err)
	}
	defer node.Close()

	fmt.Println("────────────────────────────────────────")
	fmt.Printf("asn node starting\n")
	fmt.Printf("peer id: %s\n", node.PeerID)
	fmt.Printf("listening on: %v\n", cfg.Listen.Addrs)
	fmt.Println("────────────────────────────────────────")

	done := make(chan struct{})
	go func() {
		defer close(done)
		node.Run(ctx)
	}()

	if err := node.Client.Bootstrap(ctx); err != nil {
		log.Printf("bootstrap: %v", err)
	}

	printEvents(ctx, node.Events)
	<-done
}

func printEvents(ctx context.Context, events <-chan eventloop.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch e := ev.(type) {
			case eventloop.InboundRequestEvent:
				log.Printf("inbound request for %q: %q", e.AgentName, e.Message)
			case eventloop.TaskProposalEvent:
				log.Printf("task proposal on %q from %s: %+v", e.Topic, e.From, e.Proposal)
			case eventloop.BidResponseEvent:
				log.Printf("bid response on %q from %s: %+v", e.Topic, e.From, e.Bid)
			default:
				log.Printf("event: %+v", e)
			}
		}
	}
}
