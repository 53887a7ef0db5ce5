// Package main is the container health probe. By default it checks liveness;
// -ready also requires the database and catalog to answer on /readyz.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/garyellow/weamind-linebot-go/internal/config"
)

// probeTimeout stays under the orchestrator's usual 10s check timeout.
const probeTimeout = 8 * time.Second

func main() {
	ready := flag.Bool("ready", false, "probe /readyz instead of /livez")
	flag.Parse()

	port := os.Getenv(config.EnvPort)
	if port == "" {
		port = config.DefaultPort
	}
	path := "/livez"
	if *ready {
		path = "/readyz"
	}

	if err := probe(fmt.Sprintf("http://localhost:%s%s", port, path)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func probe(url string) error {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("probe %s: status %d", url, resp.StatusCode)
	}
	return nil
}
