package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultPairValid(t *testing.T) {
	pair := DefaultPair()
	if err := pair.Validate(); err != nil {
		t.Fatalf("default pair invalid: %v", err)
	}
	if pair.Native.Decimals != 18 || pair.Token.Decimals != 6 {
		t.Fatalf("unexpected default decimals: %+v", pair)
	}
}

func TestLoadPair(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "assets.yaml")
	payload := "native:\n  symbol: WETH\n  decimals: 18\ntoken:\n  symbol: USDT\n  decimals: 6\nstale_after: 30s\n"
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	pair, err := LoadPair(path)
	if err != nil {
		t.Fatalf("LoadPair() error = %v", err)
	}
	if pair.Native.Symbol != "WETH" || pair.Token.Symbol != "USDT" {
		t.Fatalf("unexpected symbols: %+v", pair)
	}
	if pair.StaleAfter != 30*time.Second {
		t.Fatalf("unexpected stale_after: %s", pair.StaleAfter)
	}
}

func TestLoadPairEmptyPathUsesDefaults(t *testing.T) {
	pair, err := LoadPair("")
	if err != nil {
		t.Fatalf("LoadPair(\"\") error = %v", err)
	}
	if pair != DefaultPair() {
		t.Fatalf("expected defaults, got %+v", pair)
	}
}

func TestLoadPairRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "assets.yaml")
	payload := "native:\n  symbol: SAME\ntoken:\n  symbol: SAME\n"
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := LoadPair(path); err == nil {
		t.Fatal("expected validation error for identical symbols")
	}

	if _, err := LoadPair(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
