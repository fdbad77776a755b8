package ledger

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ReferenceScale is the fixed decimal scale all oracle prices are normalized
// to before any downstream arithmetic. Mixing differently-scaled prices is
// the most dangerous latent bug class in this system, so the scale is a
// single package-level constant rather than per-call configuration.
const ReferenceScale uint8 = 8

// Asset describes one side of the traded pair.
type Asset struct {
	Symbol   string `yaml:"symbol"`
	Decimals uint8  `yaml:"decimals"`
}

// Pair bundles the native asset and the pegged token together with the
// oracle freshness window. Loaded once at startup and treated as immutable.
type Pair struct {
	Native     Asset         `yaml:"native"`
	Token      Asset         `yaml:"token"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

// DefaultPair mirrors the original deployment: 18-decimal native asset,
// 6-decimal pegged token, one-minute oracle freshness window.
func DefaultPair() Pair {
	return Pair{
		Native:     Asset{Symbol: "ETH", Decimals: 18},
		Token:      Asset{Symbol: "USDC", Decimals: 6},
		StaleAfter: time.Minute,
	}
}

// Validate ensures the pair is usable for quote arithmetic.
func (p Pair) Validate() error {
	if p.Native.Symbol == "" || p.Token.Symbol == "" {
		return fmt.Errorf("asset symbols are required")
	}
	if p.Native.Symbol == p.Token.Symbol {
		return fmt.Errorf("native and token symbols must differ")
	}
	if p.Native.Decimals > 30 || p.Token.Decimals > 30 {
		return fmt.Errorf("asset decimals out of range")
	}
	if p.StaleAfter < 0 {
		return fmt.Errorf("stale_after must be non-negative")
	}
	return nil
}

// LoadPair reads the pair description from a YAML file, falling back to
// DefaultPair when path is empty. Fields absent from the file keep their
// default values.
func LoadPair(path string) (Pair, error) {
	pair := DefaultPair()
	if path == "" {
		return pair, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Pair{}, fmt.Errorf("read pair config: %w", err)
	}
	if err := yaml.Unmarshal(data, &pair); err != nil {
		return Pair{}, fmt.Errorf("parse pair config: %w", err)
	}
	if err := pair.Validate(); err != nil {
		return Pair{}, fmt.Errorf("invalid pair config %s: %w", path, err)
	}
	return pair, nil
}
