// Command pricepump drives the mock price feed for local development,
// posting a randomized price around a base value on a fixed interval.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

type setPriceRequest struct {
	Price string `json:"price"`
}

func main() {
	var (
		target   = flag.String("target", "http://localhost:8080", "ledger API base URL")
		base     = flag.Float64("base", 3500, "base price in reference units")
		jitter   = flag.Float64("jitter", 30, "max absolute deviation from base")
		interval = flag.Duration("interval", 3*time.Second, "update interval")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "pricepump ", log.LstdFlags)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	client := &http.Client{Timeout: 5 * time.Second}
	url := *target + "/admin/price"

	for {
		price := *base + (rand.Float64()*2-1)**jitter
		if err := postPrice(client, url, price); err != nil {
			logger.Printf("update failed: %v", err)
		} else {
			logger.Printf("price set to %.2f", price)
		}

		select {
		case <-sigCh:
			logger.Println("stopping")
			return
		case <-ticker.C:
		}
	}
}

func postPrice(client *http.Client, url string, price float64) error {
	payload, err := json.Marshal(setPriceRequest{Price: fmt.Sprintf("%.2f", price)})
	if err != nil {
		return err
	}

	resp, err := client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}
