package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestParseFlagsDefaults(t *testing.T) {
	cfg, exit, _ := parseFlags([]string{"--fixture", "vectors.json"})
	if exit {
		t.Fatal("unexpected exit")
	}
	if cfg.Fixture != "vectors.json" || cfg.Verbosity != 2 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestParseFlagsRequiresFixture(t *testing.T) {
	_, exit, code := parseFlags(nil)
	if !exit || code != 2 {
		t.Fatalf("exit=%v code=%d, want required-flag failure", exit, code)
	}
}

func TestParseFlagsVersion(t *testing.T) {
	_, exit, code := parseFlags([]string{"--version"})
	if !exit || code != 0 {
		t.Fatalf("exit=%v code=%d", exit, code)
	}
}

func TestLoadFixture(t *testing.T) {
	ff := fixtureFile{
		Validators: []fixtureValidator{
			{Bandersnatch: "0x01", Ed25519: "0x0101"},
		},
	}
	raw, _ := json.Marshal(ff)
	path := filepath.Join(t.TempDir(), "fixture.json")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatal(err)
	}

	fx, err := loadFixture(path)
	if err != nil {
		t.Fatalf("loadFixture: %v", err)
	}
	if len(fx.Validators) != 1 {
		t.Fatalf("validators = %d", len(fx.Validators))
	}
	s := fx.GenesisState()
	if s.Validators.Current[0].Bandersnatch[0] != 0x01 {
		t.Fatal("genesis validator not installed")
	}
	if len(s.Safrole.Seal.Keys) == 0 {
		t.Fatal("genesis seal schedule missing")
	}
}

func TestLoadFixtureBadHex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.json")
	os.WriteFile(path, []byte(`{"blocks":["0xZZ"]}`), 0o600)
	if _, err := loadFixture(path); err == nil {
		t.Fatal("invalid hex accepted")
	}
}
