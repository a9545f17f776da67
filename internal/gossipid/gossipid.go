// Package gossipid computes the deterministic, non-cryptographic gossipsub
// message id this overlay uses in place of go-libp2p-pubsub's default
// (source peer id + sequence number) id function: the id is the textual
// decimal form of a 64-bit hash of the message bytes, and every participant
// must agree on exactly which hash and which byte order — cespare/xxhash/v2
// is pinned here for that reason.
package gossipid

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	pb "github.com/libp2p/go-libp2p-pubsub/pb"
)

// ID returns the decimal string form of the 64-bit xxhash of data.
func ID(data []byte) string {
	return strconv.FormatUint(xxhash.Sum64(data), 10)
}

// MessageIDFn adapts ID to the signature pubsub.NewGossipSub's
// WithMessageIdFn option expects.
func MessageIDFn(msg *pb.Message) string {
	return ID(msg.GetData())
}

var _ pubsub.MsgIdFunction = MessageIDFn
