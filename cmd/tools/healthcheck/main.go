// Command healthcheck probes the ledger API's /healthz endpoint. Exit code 0
// when healthy, 1 otherwise; suitable for container health checks.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
)

func main() {
	var (
		target  = flag.String("target", "http://localhost:8080", "ledger API base URL")
		timeout = flag.Duration("timeout", 2*time.Second, "request timeout")
	)
	flag.Parse()

	client := &http.Client{Timeout: *timeout}
	resp, err := client.Get(*target + "/healthz")
	if err != nil {
		fmt.Fprintf(os.Stderr, "healthcheck: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "healthcheck: status %s\n", resp.Status)
		os.Exit(1)
	}
}
