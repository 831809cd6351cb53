package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseJSONOverlaysFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"listen":":9000","mtu":1400}`), 0644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := Config{Listen: ":1234", MTU: 1500, Target: "127.0.0.1:1"}
	if err := ParseJSON(&cfg, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Listen != ":9000" || cfg.MTU != 1400 {
		t.Fatalf("unexpected overlay result: %+v", cfg)
	}
	if cfg.Target != "127.0.0.1:1" {
		t.Fatalf("expected untouched field to survive overlay, got %q", cfg.Target)
	}
}

func TestParseJSONMissingFile(t *testing.T) {
	cfg := Config{}
	if err := ParseJSON(&cfg, "/nonexistent/path.json"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestDeriveMasterKeyLength(t *testing.T) {
	key := DeriveMasterKey("correct horse battery staple")
	if len(key) != masterKeyLen {
		t.Fatalf("expected %d-byte key, got %d", masterKeyLen, len(key))
	}
}

func TestDeriveMasterKeyDeterministic(t *testing.T) {
	a := DeriveMasterKey("same passphrase")
	b := DeriveMasterKey("same passphrase")
	if string(a) != string(b) {
		t.Fatalf("expected deterministic derivation")
	}
	c := DeriveMasterKey("different passphrase")
	if string(a) == string(c) {
		t.Fatalf("expected different passphrases to derive different keys")
	}
}
