package eventloop

import (
	"testing"

	"github.com/asn-net/asn/internal/proto"
)

func TestTaskProposalRoundTrip(t *testing.T) {
	want := proto.TaskProposal{TaskID: "t1", Kind: "data-processing", Description: "scrape and summarize"}
	taskID, kind, desc, ok := decodeTaskProposal(encodeTaskProposal(want))
	if !ok {
		t.Fatalf("decodeTaskProposal: ok=false")
	}
	if taskID != want.TaskID || kind != want.Kind || desc != want.Description {
		t.Fatalf("decodeTaskProposal = (%q,%q,%q), want (%q,%q,%q)", taskID, kind, desc, want.TaskID, want.Kind, want.Description)
	}
}

func TestBidResponseRoundTrip(t *testing.T) {
	want := proto.BidResponse{TaskID: "t1", Bidder: "12D3KooW...", Price: 42}
	taskID, bidder, price, ok := decodeBidResponse(encodeBidResponse(want))
	if !ok {
		t.Fatalf("decodeBidResponse: ok=false")
	}
	if taskID != want.TaskID || bidder != want.Bidder || price != want.Price {
		t.Fatalf("decodeBidResponse = (%q,%q,%d), want (%q,%q,%d)", taskID, bidder, price, want.TaskID, want.Bidder, want.Price)
	}
}

func TestTaskProposalAndBidResponseDoNotCrossDecode(t *testing.T) {
	proposal := encodeTaskProposal(proto.TaskProposal{TaskID: "t1", Kind: "k", Description: "d"})
	if _, _, _, ok := decodeBidResponse(proposal); ok {
		t.Fatalf("decodeBidResponse unexpectedly accepted a TaskProposal payload")
	}

	bid := encodeBidResponse(proto.BidResponse{TaskID: "t1", Bidder: "b", Price: 1})
	if _, _, _, ok := decodeTaskProposal(bid); ok {
		t.Fatalf("decodeTaskProposal unexpectedly accepted a BidResponse payload")
	}
}

func TestDecodeGossipPayloadRejectsGarbage(t *testing.T) {
	if _, _, _, ok := decodeTaskProposal(nil); ok {
		t.Fatalf("decodeTaskProposal accepted empty input")
	}
	if _, _, _, ok := decodeBidResponse([]byte("not a tagged payload")); ok {
		t.Fatalf("decodeBidResponse accepted untagged input")
	}
}
