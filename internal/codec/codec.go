// Package codec implements the deterministic binary tagged-record wire
// encoding for AgentRequest/AgentResponse and frames each record on the
// stream with go-msgio length-delimited framing. There is no
// version field in the record itself; wire compatibility is enforced solely
// by the identify protocol-version string the two peers negotiated to open
// the stream in the first place.
package codec

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/libp2p/go-msgio"

	"github.com/asn-net/asn/internal/proto"
)

// Record tags. A single byte precedes every encoded record so a reader can
// validate it received the message type it expected.
const (
	tagAgentRequest  byte = 0x01
	tagAgentResponse byte = 0x02
)

// maxFrameSize bounds a single decoded frame to guard against a malicious or
// buggy peer claiming an enormous length prefix.
const maxFrameSize = 16 << 20 // 16 MiB

// WriteAgentRequest frames and writes an AgentRequest to w.
func WriteAgentRequest(w io.Writer, req proto.AgentRequest) error {
	return writeFrame(w, encodeAgentRequest(req))
}

// ReadAgentRequest reads and decodes a single AgentRequest frame from r.
func ReadAgentRequest(r io.Reader) (proto.AgentRequest, error) {
	buf, err := readFrame(r)
	if err != nil {
		return proto.AgentRequest{}, err
	}
	return decodeAgentRequest(buf)
}

// WriteAgentResponse frames and writes an AgentResponse to w.
func WriteAgentResponse(w io.Writer, resp proto.AgentResponse) error {
	return writeFrame(w, encodeAgentResponse(resp))
}

// ReadAgentResponse reads and decodes a single AgentResponse frame from r.
func ReadAgentResponse(r io.Reader) (proto.AgentResponse, error) {
	buf, err := readFrame(r)
	if err != nil {
		return proto.AgentResponse{}, err
	}
	return decodeAgentResponse(buf)
}

func writeFrame(w io.Writer, body []byte) error {
	mw := msgio.NewVarintWriter(w)
	if err := mw.WriteMsg(body); err != nil {
		return fmt.Errorf("codec: write frame: %w", err)
	}
	return nil
}

func readFrame(r io.Reader) ([]byte, error) {
	mr := msgio.NewVarintReaderSize(r, maxFrameSize)
	buf, err := mr.ReadMsg()
	if err != nil {
		return nil, fmt.Errorf("codec: read frame: %w", err)
	}
	return buf, nil
}

func encodeAgentRequest(req proto.AgentRequest) []byte {
	buf := make([]byte, 0, 1+2*binary.MaxVarintLen64+len(req.AgentName)+len(req.Message))
	buf = append(buf, tagAgentRequest)
	buf = appendString(buf, req.AgentName)
	buf = appendString(buf, req.Message)
	return buf
}

func decodeAgentRequest(buf []byte) (proto.AgentRequest, error) {
	if len(buf) < 1 || buf[0] != tagAgentRequest {
		return proto.AgentRequest{}, fmt.Errorf("codec: expected AgentRequest tag, got %v", peekTag(buf))
	}
	rest := buf[1:]
	name, rest, err := readString(rest)
	if err != nil {
		return proto.AgentRequest{}, fmt.Errorf("codec: decode agent_name: %w", err)
	}
	msg, _, err := readString(rest)
	if err != nil {
		return proto.AgentRequest{}, fmt.Errorf("codec: decode message: %w", err)
	}
	return proto.AgentRequest{AgentName: name, Message: msg}, nil
}

func encodeAgentResponse(resp proto.AgentResponse) []byte {
	buf := make([]byte, 0, 1+binary.MaxVarintLen64+len(resp.Body))
	buf = append(buf, tagAgentResponse)
	buf = appendBytes(buf, resp.Body)
	return buf
}

func decodeAgentResponse(buf []byte) (proto.AgentResponse, error) {
	if len(buf) < 1 || buf[0] != tagAgentResponse {
		return proto.AgentResponse{}, fmt.Errorf("codec: expected AgentResponse tag, got %v", peekTag(buf))
	}
	body, _, err := readBytes(buf[1:])
	if err != nil {
		return proto.AgentResponse{}, fmt.Errorf("codec: decode body: %w", err)
	}
	return proto.AgentResponse{Body: body}, nil
}

func peekTag(buf []byte) any {
	if len(buf) == 0 {
		return "<empty>"
	}
	return buf[0]
}

func appendString(buf []byte, s string) []byte {
	return appendBytes(buf, []byte(s))
}

func appendBytes(buf []byte, b []byte) []byte {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(b)))
	buf = append(buf, lenBuf[:n]...)
	return append(buf, b...)
}

func readString(buf []byte) (string, []byte, error) {
	b, rest, err := readBytes(buf)
	if err != nil {
		return "", nil, err
	}
	return string(b), rest, nil
}

func readBytes(buf []byte) ([]byte, []byte, error) {
	length, n := binary.Uvarint(buf)
	if n <= 0 {
		return nil, nil, fmt.Errorf("malformed length prefix")
	}
	buf = buf[n:]
	if uint64(len(buf)) < length {
		return nil, nil, fmt.Errorf("truncated record: want %d bytes, have %d", length, len(buf))
	}
	return buf[:length], buf[length:], nil
}
