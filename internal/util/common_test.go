package util

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePathAbsoluteOverridesBase(t *testing.T) {
	got := ResolvePath("/base", "/abs/path")
	if got != filepath.Clean("/abs/path") {
		t.Fatalf("ResolvePath = %q, want /abs/path", got)
	}
}

func TestResolvePathRelativeJoinsBase(t *testing.T) {
	got := ResolvePath("/base", "rel/path")
	if got != filepath.Join("/base", "rel/path") {
		t.Fatalf("ResolvePath = %q", got)
	}
}

func TestValidateTopicName(t *testing.T) {
	if err := ValidateTopicName("everyone"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateTopicName(""); err == nil {
		t.Fatalf("expected error for empty topic name")
	}
	if err := ValidateTopicName("has space"); err == nil {
		t.Fatalf("expected error for topic name with whitespace")
	}
}

func TestWriteJSONFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.json")

	type payload struct {
		Name string `json:"name"`
	}
	if err := WriteJSONFile(path, payload{Name: "asn"}); err != nil {
		t.Fatalf("WriteJSONFile: %v", err)
	}
	if _, err := filepath.Glob(path); err != nil {
		t.Fatalf("unexpected glob error: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	var got payload
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Name != "asn" {
		t.Fatalf("round trip Name = %q, want asn", got.Name)
	}
}
