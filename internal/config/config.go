// internal/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/asn-net/asn/internal/proto"
	"github.com/asn-net/asn/internal/util"
)

// Config is the on-disk configuration for a node's network core.
type Config struct {
	Identity   Identity   `json:"identity"`
	Listen     Listen     `json:"listen"`
	Rendezvous Rendezvous `json:"rendezvous"`
	Topics     Topics     `json:"topics"`
	Timeouts   Timeouts   `json:"timeouts"`
}

// Identity selects how the node derives its Ed25519 key pair.
type Identity struct {
	// KeyFile is the persistent identity key path, used when SeedByte is nil.
	KeyFile string `json:"key_file"`

	// SeedByte, when set, derives a deterministic identity (local testing
	// only) instead of loading/creating a persistent key file.
	SeedByte *byte `json:"seed_byte,omitempty"`
}

// Listen holds the multiaddresses the swarm builder listens on at startup.
type Listen struct {
	Addrs []string `json:"addrs"`
}

// Rendezvous configures the designated rendezvous peer this node registers
// against and discovers from.
type Rendezvous struct {
	// PeerAddr is the peer-id-suffixed multiaddress of the rendezvous peer.
	// Empty means no rendezvous peer is configured.
	PeerAddr string `json:"peer_addr,omitempty"`

	// Namespace overrides the default rendezvous namespace.
	Namespace string `json:"namespace"`
}

// Topics lists additional gossip topics to subscribe beyond the two
// bootstrap topics (everyone, capabilities).
type Topics struct {
	Additional []string `json:"additional"`
}

// Timeouts holds connect/request timeout settings. They are validated and
// saved with the rest of the config, but the network core does not read
// them: its dial, provide, lookup and request operations use fixed timeouts
// of their own.
type Timeouts struct {
	ConnectSeconds int `json:"connect_seconds"`
	RequestSeconds int `json:"request_seconds"`
}

// Default returns the baseline configuration a fresh node starts from.
func Default() Config {
	return Config{
		Identity: Identity{
			KeyFile: "data/identity.key",
		},
		Listen: Listen{
			Addrs: []string{"/ip4/0.0.0.0/tcp/0"},
		},
		Rendezvous: Rendezvous{
			Namespace: proto.RendezvousNamespace,
		},
		Topics: Topics{},
		Timeouts: Timeouts{
			ConnectSeconds: 10,
			RequestSeconds: 30,
		},
	}
}

// Validate checks the configuration for obviously invalid values.
func (c *Config) Validate() error {
	if c.Identity.SeedByte == nil && strings.TrimSpace(c.Identity.KeyFile) == "" {
		return errors.New("identity.key_file is required when identity.seed_byte is unset")
	}

	if len(c.Listen.Addrs) == 0 {
		return errors.New("listen.addrs must contain at least one multiaddress")
	}

	if strings.TrimSpace(c.Rendezvous.Namespace) == "" {
		return errors.New("rendezvous.namespace is required")
	}

	for _, t := range c.Topics.Additional {
		if strings.TrimSpace(t) == "" {
			return errors.New("topics.additional must not contain empty topic names")
		}
	}

	if c.Timeouts.ConnectSeconds <= 0 {
		return errors.New("timeouts.connect_seconds must be > 0")
	}
	if c.Timeouts.RequestSeconds <= 0 {
		return errors.New("timeouts.request_seconds must be > 0")
	}

	return nil
}

// Load reads and validates a Config from path, starting from Default() so
// omitted JSON fields remain initialized.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Save validates and writes cfg to path as indented JSON.
func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return util.WriteJSONFile(path, cfg)
}

// Ensure loads config if it exists; otherwise creates a default config file.
// Returns (cfg, createdNew, err).
func Ensure(path string) (Config, bool, error) {
	if _, err := os.Stat(path); err == nil {
		cfg, err := Load(path)
		return cfg, false, err
	} else if !os.IsNotExist(err) {
		return Config{}, false, err
	}

	cfg := Default()
	if err := Save(path, cfg); err != nil {
		return Config{}, false, fmt.Errorf("create default config: %w", err)
	}
	return cfg, true, nil
}
