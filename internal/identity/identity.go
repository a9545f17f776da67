// Package identity derives and persists the node's Ed25519 libp2p identity.
//
// Two sources are supported: a deterministic single-byte seed (local testing
// only — the seed occupies byte zero of an otherwise-zeroed 32-byte Ed25519
// seed buffer) or a freshly generated key persisted to a key file, following
// the usual load-or-create pattern for a persistent node identity.
package identity

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/libp2p/go-libp2p/core/crypto"
)

// FromSeed deterministically derives an Ed25519 private key from a single
// seed byte. The same seed always yields the same key pair — intended for
// local, repeatable test topologies, never for production identities.
func FromSeed(seed byte) (crypto.PrivKey, error) {
	buf := make([]byte, 32)
	buf[0] = seed
	priv, _, err := crypto.GenerateEd25519Key(&seededReader{b: buf})
	if err != nil {
		return nil, fmt.Errorf("identity: derive from seed: %w", err)
	}
	return priv, nil
}

// seededReader is an io.Reader that yields a fixed byte sequence, used to
// drive crypto.GenerateEd25519Key deterministically from a seed buffer.
type seededReader struct {
	b   []byte
	pos int
}

func (r *seededReader) Read(p []byte) (int, error) {
	n := copy(p, r.b[r.pos:])
	r.pos += n
	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	if n < len(p) {
		n = len(p)
	}
	return n, nil
}

// LoadOrCreate loads a persistent Ed25519 identity from keyFile, generating
// and saving a fresh one if the file does not exist or is corrupt.
func LoadOrCreate(keyFile string) (priv crypto.PrivKey, isNew bool, err error) {
	data, readErr := os.ReadFile(keyFile)
	if readErr == nil {
		if p, unmarshalErr := crypto.UnmarshalPrivateKey(data); unmarshalErr == nil {
			return p, false, nil
		}
		// Corrupt key file: fall through and regenerate.
	}

	p, _, genErr := crypto.GenerateEd25519Key(nil)
	if genErr != nil {
		return nil, false, fmt.Errorf("identity: generate key: %w", genErr)
	}

	raw, marshalErr := crypto.MarshalPrivateKey(p)
	if marshalErr != nil {
		return nil, false, fmt.Errorf("identity: marshal key: %w", marshalErr)
	}

	if dir := filepath.Dir(keyFile); dir != "." && dir != "" {
		if mkErr := os.MkdirAll(dir, 0o700); mkErr != nil {
			return nil, false, fmt.Errorf("identity: create key directory: %w", mkErr)
		}
	}
	if writeErr := os.WriteFile(keyFile, raw, 0o600); writeErr != nil {
		return nil, false, fmt.Errorf("identity: save key: %w", writeErr)
	}

	return p, true, nil
}
