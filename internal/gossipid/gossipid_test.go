package gossipid

import (
	"testing"

	pb "github.com/libp2p/go-libp2p-pubsub/pb"
)

func TestIDDeterministic(t *testing.T) {
	a := ID([]byte("hello"))
	b := ID([]byte("hello"))
	if a != b {
		t.Fatalf("ID not deterministic: %q != %q", a, b)
	}
}

func TestIDDiffersByPayload(t *testing.T) {
	a := ID([]byte("hello"))
	b := ID([]byte("world"))
	if a == b {
		t.Fatalf("distinct payloads produced the same id: %q", a)
	}
}

func TestIDIsDecimal(t *testing.T) {
	id := ID([]byte("news"))
	for _, r := range id {
		if r < '0' || r > '9' {
			t.Fatalf("id %q contains non-decimal rune %q", id, r)
		}
	}
}

func TestMessageIDFnMatchesID(t *testing.T) {
	data := []byte("London?")
	msg := &pb.Message{Data: data}
	if got, want := MessageIDFn(msg), ID(data); got != want {
		t.Fatalf("MessageIDFn = %q, want %q", got, want)
	}
}
