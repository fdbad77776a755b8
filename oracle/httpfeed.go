package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"strconv"
	"time"
)

const (
	envFeedURL       = "ORACLE_FEED_URL"
	envFeedTimeoutMS = "ORACLE_FEED_TIMEOUT_MS"

	defaultFeedTimeout = 3 * time.Second
)

// HTTPFeedConfig holds the endpoint parameters for a remote JSON price feed.
type HTTPFeedConfig struct {
	URL     string
	Timeout time.Duration
}

// Validate ensures required fields are populated.
func (c HTTPFeedConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("feed URL is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("feed timeout must be positive")
	}
	return nil
}

// HTTPFeedConfigFromEnv constructs an HTTPFeedConfig from environment
// variables. The URL is required; the timeout defaults to 3s.
func HTTPFeedConfigFromEnv() (HTTPFeedConfig, error) {
	cfg := HTTPFeedConfig{
		URL:     os.Getenv(envFeedURL),
		Timeout: defaultFeedTimeout,
	}
	if v := os.Getenv(envFeedTimeoutMS); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return HTTPFeedConfig{}, fmt.Errorf("invalid %s: %w", envFeedTimeoutMS, err)
		}
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}
	return cfg, cfg.Validate()
}

// HTTPFeed reads prices from a remote aggregator exposing a small JSON
// document. One GET per Latest call; freshness comes from the document's
// updated_at field.
type HTTPFeed struct {
	cfg    HTTPFeedConfig
	client *http.Client
}

// NewHTTPFeed validates the configuration and prepares a feed.
func NewHTTPFeed(cfg HTTPFeedConfig) (*HTTPFeed, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &HTTPFeed{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type feedDocument struct {
	Answer    string `json:"answer"`
	Decimals  uint8  `json:"decimals"`
	UpdatedAt int64  `json:"updated_at"`
}

// Latest fetches and decodes the remote document.
func (f *HTTPFeed) Latest(ctx context.Context) (Sample, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.URL, nil)
	if err != nil {
		return Sample{}, fmt.Errorf("build feed request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Sample{}, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Sample{}, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	var doc feedDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return Sample{}, fmt.Errorf("decode feed document: %w", err)
	}

	answer, ok := new(big.Int).SetString(doc.Answer, 10)
	if !ok {
		return Sample{}, fmt.Errorf("feed answer %q is not an integer", doc.Answer)
	}

	return Sample{
		Answer:    answer,
		Decimals:  doc.Decimals,
		UpdatedAt: time.Unix(doc.UpdatedAt, 0).UTC(),
	}, nil
}
