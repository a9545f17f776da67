package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Timeout durations. No package in this module references them; the swarm,
// DHT, and gossip call sites use their own literal timeouts.
const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultRequestTimeout = 30 * time.Second
	ShortTimeout          = 2 * time.Second
)

// jsonFileMode and jsonDirMode are the permissions WriteJSONFile applies to
// the file it writes and any directories it creates along the way.
const (
	jsonFileMode = 0o644
	jsonDirMode  = 0o755
)

// ResolvePath anchors rel under base unless rel is already absolute, in
// which case it wins outright (cleaned). filepath.Join alone can't express
// this: it strips leading slashes from later arguments, so
// filepath.Join("a", "/b") yields "a/b" rather than the "/b" an absolute
// override implies.
func ResolvePath(base, rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(base, rel)
}

// ValidateTopicName rejects the gossip topic names that indicate a caller
// mistake (empty string, embedded whitespace) rather than an
// opaque-but-valid topic. Agent names are never run through this:
// agent-name matching must stay byte-identical with no normalization.
func ValidateTopicName(name string) error {
	if name == "" {
		return errors.New("topic name is empty")
	}
	if strings.ContainsAny(name, " \t\r\n") {
		return errors.New("topic name must not contain whitespace")
	}
	return nil
}

// WriteJSONFile marshals v as indented JSON and writes it to path,
// creating any missing parent directories first.
func WriteJSONFile(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, jsonDirMode); err != nil {
			return fmt.Errorf("util: create directory %q: %w", dir, err)
		}
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("util: marshal %q: %w", path, err)
	}
	if err := os.WriteFile(path, b, jsonFileMode); err != nil {
		return fmt.Errorf("util: write %q: %w", path, err)
	}
	return nil
}
