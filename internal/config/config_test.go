package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() config failed validation: %v", err)
	}
}

func TestValidateRequiresKeyFileOrSeed(t *testing.T) {
	cfg := Default()
	cfg.Identity.KeyFile = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error when key_file is empty and seed_byte is nil")
	}

	seed := byte(3)
	cfg.Identity.SeedByte = &seed
	if err := cfg.Validate(); err != nil {
		t.Fatalf("seed_byte set should satisfy identity requirement: %v", err)
	}
}

func TestValidateRequiresListenAddr(t *testing.T) {
	cfg := Default()
	cfg.Listen.Addrs = nil
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for empty listen.addrs")
	}
}

func TestValidateRejectsEmptyTopicName(t *testing.T) {
	cfg := Default()
	cfg.Topics.Additional = []string{"alerts", "  "}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for blank additional topic")
	}
}

func TestEnsureCreatesDefaultThenLoads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg, created, err := Ensure(path)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if !created {
		t.Fatalf("expected created=true on first Ensure")
	}
	if cfg.Rendezvous.Namespace != "binary-souls" {
		t.Fatalf("Rendezvous.Namespace = %q, want binary-souls", cfg.Rendezvous.Namespace)
	}

	cfg2, created2, err := Ensure(path)
	if err != nil {
		t.Fatalf("Ensure (reload): %v", err)
	}
	if created2 {
		t.Fatalf("expected created=false on second Ensure")
	}
	if cfg2.Identity.KeyFile != cfg.Identity.KeyFile {
		t.Fatalf("reloaded config mismatch: %+v vs %+v", cfg2, cfg)
	}
}

func TestSaveRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Default()
	cfg.Timeouts.ConnectSeconds = 0
	if err := Save(path, cfg); err == nil {
		t.Fatalf("expected Save to reject invalid config")
	}
}
